package results

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/playhub/lobby/internal/core"
	"github.com/playhub/lobby/internal/core/data"
	"github.com/playhub/lobby/internal/core/data/datatest"
	"github.com/playhub/lobby/internal/leaderboard"
	"github.com/playhub/lobby/internal/room"
)

const matchID = "5f0c6a52-6f3c-4b7e-9d59-1d2a8a3e7c11"

type fakeRooms map[int]room.Snapshot

func (f fakeRooms) Match(roomID int) (room.Snapshot, error) {
	snapshot, ok := f[roomID]
	if !ok {
		return room.Snapshot{}, room.ErrRoomNotFound
	}
	return snapshot, nil
}

type countingBoard struct {
	mu        sync.Mutex
	refreshes int
	err       error
}

func (c *countingBoard) Refresh(context.Context) ([]leaderboard.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshes++
	return nil, c.err
}

func setUp(t *testing.T) (*Recorder, *gorm.DB, *countingBoard) {
	t.Helper()
	db := datatest.NewDatabase(t)
	datatest.CreateAccounts(t, db, "alice", "bob", "carol")

	rooms := fakeRooms{
		1: {ID: 1, Members: []string{"alice", "bob"}, Status: room.Running, MatchID: matchID},
		2: {ID: 2, Members: []string{"alice", "carol"}, Status: room.Waiting},
	}
	board := &countingBoard{}
	return NewRecorder(db, rooms, board, core.NewTestLogger()), db, board
}

func stats(t *testing.T, db *gorm.DB, username string) (int, int) {
	t.Helper()
	account, err := data.FindAccountByUsername(db, username)
	require.NoError(t, err)
	require.NotNil(t, account)
	return account.Wins, account.Played
}

func TestRecord_TwiceCountsOnce(t *testing.T) {
	recorder, db, board := setUp(t)
	report := Report{RoomID: 1, MatchID: matchID, Winners: []string{"alice"}, Participants: []string{"alice", "bob"}}

	require.NoError(t, recorder.Record(context.Background(), report))
	assert.ErrorIs(t, recorder.Record(context.Background(), report), ErrAlreadyRecorded)

	wins, played := stats(t, db, "alice")
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, played)
	wins, played = stats(t, db, "bob")
	assert.Equal(t, 0, wins)
	assert.Equal(t, 1, played)
	assert.Equal(t, 1, board.refreshes)
}

func TestRecord_ConcurrentReports(t *testing.T) {
	recorder, db, _ := setUp(t)
	report := Report{RoomID: 1, MatchID: matchID, Winners: []string{"bob"}, Participants: []string{"alice", "bob"}}

	const reporters = 10
	errs := make(chan error, reporters)
	var wg sync.WaitGroup
	for i := 0; i < reporters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- recorder.Record(context.Background(), report)
		}()
	}
	wg.Wait()
	close(errs)

	recorded := 0
	for err := range errs {
		if err == nil {
			recorded++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyRecorded)
		}
	}
	assert.Equal(t, 1, recorded)

	wins, played := stats(t, db, "bob")
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, played)
	assert.Empty(t, recorder.pending)
}

func TestRecord_Rejected(t *testing.T) {
	tests := map[string]struct {
		report  Report
		wantErr error
	}{
		"no_players": {
			report:  Report{RoomID: 1, MatchID: matchID},
			wantErr: ErrInvalidReport,
		},
		"missing_match_id": {
			report:  Report{RoomID: 1, Participants: []string{"alice", "bob"}},
			wantErr: ErrInvalidReport,
		},
		"winner_did_not_play": {
			report:  Report{RoomID: 1, MatchID: matchID, Winners: []string{"carol"}, Participants: []string{"alice", "bob"}},
			wantErr: ErrInvalidReport,
		},
		"duplicate_player": {
			report:  Report{RoomID: 1, MatchID: matchID, Participants: []string{"alice", "alice"}},
			wantErr: ErrInvalidReport,
		},
		"duplicate_winner": {
			report:  Report{RoomID: 1, MatchID: matchID, Winners: []string{"bob", "bob"}, Participants: []string{"alice", "bob"}},
			wantErr: ErrInvalidReport,
		},
		"player_not_in_room": {
			report:  Report{RoomID: 1, MatchID: matchID, Participants: []string{"alice", "carol"}},
			wantErr: ErrInvalidReport,
		},
		"unknown_room": {
			report:  Report{RoomID: 9, MatchID: matchID, Participants: []string{"alice"}},
			wantErr: ErrUnknownMatch,
		},
		"stale_match_id": {
			report:  Report{RoomID: 1, MatchID: "old-match", Participants: []string{"alice"}},
			wantErr: ErrUnknownMatch,
		},
		"room_never_started": {
			report:  Report{RoomID: 2, Participants: []string{"alice"}, MatchID: matchID},
			wantErr: ErrUnknownMatch,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			recorder, db, board := setUp(t)

			err := recorder.Record(context.Background(), tt.report)
			assert.ErrorIs(t, err, tt.wantErr)

			_, played := stats(t, db, "alice")
			assert.Zero(t, played)
			assert.Zero(t, board.refreshes)
		})
	}
}

func TestRecord_FinishedRoomStillAccepted(t *testing.T) {
	db := datatest.NewDatabase(t)
	datatest.CreateAccounts(t, db, "alice", "bob")
	rooms := fakeRooms{1: {ID: 1, Members: []string{"alice", "bob"}, Status: room.Finished, MatchID: matchID}}
	recorder := NewRecorder(db, rooms, &countingBoard{}, core.NewTestLogger())

	err := recorder.Record(context.Background(), Report{RoomID: 1, MatchID: matchID, Participants: []string{"alice", "bob"}})
	require.NoError(t, err)
}

func TestRecord_DeletedAccount(t *testing.T) {
	recorder, db, _ := setUp(t)
	account, err := data.FindAccountByUsername(db, "bob")
	require.NoError(t, err)
	require.NoError(t, data.PermanentlyDeleteAccount(db, account))

	err = recorder.Record(context.Background(), Report{RoomID: 1, MatchID: matchID, Winners: []string{"alice"}, Participants: []string{"alice", "bob"}})
	assert.ErrorIs(t, err, ErrInvalidReport)

	wins, _ := stats(t, db, "alice")
	assert.Zero(t, wins, "a rejected report must not change any stats")
}

func TestRecord_LeaderboardFailureIsNotFatal(t *testing.T) {
	recorder, db, board := setUp(t)
	board.err = errors.New("leaderboard unavailable")

	err := recorder.Record(context.Background(), Report{RoomID: 1, MatchID: matchID, Winners: []string{"alice"}, Participants: []string{"alice", "bob"}})
	require.NoError(t, err)

	wins, _ := stats(t, db, "alice")
	assert.Equal(t, 1, wins)
}

func TestRecord_DatabaseError(t *testing.T) {
	original := recordMatch
	defer func() { recordMatch = original }()
	recordMatch = func(*gorm.DB, *data.MatchResult) error { return errors.New("disk I/O error") }

	recorder, _, board := setUp(t)
	err := recorder.Record(context.Background(), Report{RoomID: 1, MatchID: matchID, Participants: []string{"alice", "bob"}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyRecorded)
	assert.Zero(t, board.refreshes)
}
