package lobby

import (
	"errors"
	"fmt"
	"testing"

	"github.com/playhub/lobby/internal/core/auth"
	"github.com/playhub/lobby/internal/packets"
	"github.com/playhub/lobby/internal/registry"
	"github.com/playhub/lobby/internal/results"
	"github.com/playhub/lobby/internal/room"
)

func TestStatusFor(t *testing.T) {
	tests := map[string]struct {
		err  error
		want string
	}{
		"malformed":         {fmt.Errorf("%w: join_room data", packets.ErrMalformedMessage), packets.StatusBadRequest},
		"duplicate_login":   {registry.ErrAlreadyPrimary, packets.StatusAlreadyLoggedIn},
		"bad_password":      {auth.ErrInvalidCredentials, packets.StatusInvalidCredentials},
		"wrapped_min":       {fmt.Errorf("%w: have 1, need 2", room.ErrBelowMinimumPlayers), packets.StatusBelowMinimumPlayers},
		"launch":            {fmt.Errorf("%w: no free port", room.ErrLaunchFailed), packets.StatusLaunchFailed},
		"already_recorded":  {results.ErrAlreadyRecorded, packets.StatusAlreadyRecorded},
		"stale_match":       {fmt.Errorf("%w: abc", results.ErrUnknownMatch), packets.StatusNotFound},
		"invalid_report":    {results.ErrInvalidReport, packets.StatusBadRequest},
		"unknown_error":     {errors.New("database is locked"), packets.StatusInternalError},
		"directory_failure": {fmt.Errorf("%w: timeout", auth.ErrUnknown), packets.StatusInternalError},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}
