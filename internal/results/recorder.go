// Package results accepts match outcomes reported by game servers and applies
// them to account stats.
package results

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/playhub/lobby/internal/core/data"
	"github.com/playhub/lobby/internal/leaderboard"
	"github.com/playhub/lobby/internal/room"
)

var (
	ErrInvalidReport   = errors.New("invalid result report")
	ErrUnknownMatch    = errors.New("no such match")
	ErrAlreadyRecorded = errors.New("match result already recorded")
)

// Report is what a game server sends when its match ends.
type Report struct {
	RoomID       int
	MatchID      string
	Winners      []string
	Participants []string
}

// Rooms exposes the match a room is currently bound to.
type Rooms interface {
	Match(roomID int) (room.Snapshot, error)
}

// Leaderboard is refreshed after every recorded match.
type Leaderboard interface {
	Refresh(ctx context.Context) ([]leaderboard.Entry, error)
}

// Used to persist results; swapped out in tests.
var recordMatch = data.RecordMatch

type Recorder struct {
	db     *gorm.DB
	rooms  Rooms
	board  Leaderboard
	logger *logrus.Logger

	mu      sync.Mutex
	pending map[string]*matchLock
}

type matchLock struct {
	sync.Mutex
	refs int
}

func NewRecorder(db *gorm.DB, rooms Rooms, board Leaderboard, logger *logrus.Logger) *Recorder {
	return &Recorder{
		db:      db,
		rooms:   rooms,
		board:   board,
		logger:  logger,
		pending: make(map[string]*matchLock),
	}
}

// Record validates report against the room's current match and persists it.
// A match is only ever counted once; later reports get ErrAlreadyRecorded.
func (r *Recorder) Record(ctx context.Context, report Report) error {
	if err := validate(report); err != nil {
		return err
	}

	snapshot, err := r.rooms.Match(report.RoomID)
	if errors.Is(err, room.ErrRoomNotFound) {
		return fmt.Errorf("%w: room %d", ErrUnknownMatch, report.RoomID)
	} else if err != nil {
		return err
	}
	if snapshot.MatchID != report.MatchID || (snapshot.Status != room.Running && snapshot.Status != room.Finished) {
		return fmt.Errorf("%w: %s in room %d", ErrUnknownMatch, report.MatchID, report.RoomID)
	}
	members := make(map[string]bool, len(snapshot.Members))
	for _, m := range snapshot.Members {
		members[m] = true
	}
	for _, p := range report.Participants {
		if !members[p] {
			return fmt.Errorf("%w: %s is not in room %d", ErrInvalidReport, p, report.RoomID)
		}
	}

	unlock := r.lock(report.MatchID)
	defer unlock()

	err = recordMatch(r.db.WithContext(ctx), &data.MatchResult{
		MatchID:      report.MatchID,
		RoomID:       report.RoomID,
		Winners:      report.Winners,
		Participants: report.Participants,
	})
	switch {
	case errors.Is(err, data.ErrMatchAlreadyRecorded):
		return ErrAlreadyRecorded
	case errors.Is(err, data.ErrUnknownAccount):
		return fmt.Errorf("%w: %v", ErrInvalidReport, err)
	case err != nil:
		return fmt.Errorf("error recording match %s: %w", report.MatchID, err)
	}

	r.logger.WithFields(logrus.Fields{
		"room_id":  report.RoomID,
		"match_id": report.MatchID,
		"winners":  report.Winners,
		"players":  report.Participants,
	}).Info("recorded match result")

	if _, err := r.board.Refresh(ctx); err != nil {
		r.logger.Errorf("failed to refresh leaderboard after match %s: %v", report.MatchID, err)
	}
	return nil
}

// lock serializes reports for the same match.
func (r *Recorder) lock(matchID string) func() {
	r.mu.Lock()
	l, ok := r.pending[matchID]
	if !ok {
		l = &matchLock{}
		r.pending[matchID] = l
	}
	l.refs++
	r.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		r.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(r.pending, matchID)
		}
		r.mu.Unlock()
	}
}

func validate(report Report) error {
	if report.MatchID == "" {
		return fmt.Errorf("%w: missing match id", ErrInvalidReport)
	}
	if len(report.Participants) == 0 {
		return fmt.Errorf("%w: no players", ErrInvalidReport)
	}

	players := make(map[string]bool, len(report.Participants))
	for _, p := range report.Participants {
		if p == "" || players[p] {
			return fmt.Errorf("%w: player %q listed twice or empty", ErrInvalidReport, p)
		}
		players[p] = true
	}

	winners := make(map[string]bool, len(report.Winners))
	for _, w := range report.Winners {
		if !players[w] {
			return fmt.Errorf("%w: winner %s did not play", ErrInvalidReport, w)
		}
		if winners[w] {
			return fmt.Errorf("%w: winner %s listed twice", ErrInvalidReport, w)
		}
		winners[w] = true
	}
	return nil
}
