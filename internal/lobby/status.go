package lobby

import (
	"errors"

	"github.com/playhub/lobby/internal/core/auth"
	"github.com/playhub/lobby/internal/packets"
	"github.com/playhub/lobby/internal/registry"
	"github.com/playhub/lobby/internal/results"
	"github.com/playhub/lobby/internal/room"
)

var errAlreadyLoggedIn = errors.New("connection is already logged in")

// statuses maps each error a handler can return to its reply status. Checked
// in order with errors.Is; anything unmatched is an internal error.
var statuses = []struct {
	err    error
	status string
}{
	{packets.ErrMalformedMessage, packets.StatusBadRequest},
	{auth.ErrEmptyCredentials, packets.StatusBadRequest},
	{registry.ErrInvalidRole, packets.StatusBadRequest},
	{room.ErrInvalidVisibility, packets.StatusBadRequest},
	{room.ErrEmptyMessage, packets.StatusBadRequest},
	{results.ErrInvalidReport, packets.StatusBadRequest},

	{auth.ErrUsernameTaken, packets.StatusUsernameTaken},
	{auth.ErrInvalidRole, packets.StatusInvalidRole},
	{auth.ErrInvalidCredentials, packets.StatusInvalidCredentials},
	{auth.ErrInvalidToken, packets.StatusInvalidToken},
	{errAlreadyLoggedIn, packets.StatusAlreadyLoggedIn},
	{registry.ErrAlreadyPrimary, packets.StatusAlreadyLoggedIn},
	{registry.ErrAccountMismatch, packets.StatusAlreadyLoggedIn},

	{room.ErrUnknownGame, packets.StatusUnknownGame},
	{room.ErrRoomNotFound, packets.StatusNotFound},
	{room.ErrInviteNotFound, packets.StatusNotFound},
	{auth.ErrAccountNotFound, packets.StatusNotFound},
	{results.ErrUnknownMatch, packets.StatusNotFound},
	{room.ErrRoomFull, packets.StatusRoomFull},
	{room.ErrRoomNotJoinable, packets.StatusRoomNotJoinable},
	{room.ErrRoomBusy, packets.StatusRoomBusy},
	{room.ErrAlreadyMember, packets.StatusAlreadyMember},
	{room.ErrNotMember, packets.StatusNotMember},
	{room.ErrNotInvited, packets.StatusNotInvited},
	{room.ErrNotHost, packets.StatusNotHost},
	{room.ErrBelowMinimumPlayers, packets.StatusBelowMinimumPlayers},
	{room.ErrLaunchFailed, packets.StatusLaunchFailed},

	{results.ErrAlreadyRecorded, packets.StatusAlreadyRecorded},
}

func statusFor(err error) string {
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return packets.StatusInternalError
}
