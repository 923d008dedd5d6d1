// Package room owns matchmaking rooms: creation, membership, invites, chat
// and the start of each room's game server.
package room

import (
	"errors"
	"sync"
	"time"

	"github.com/playhub/lobby/internal/catalog"
	"github.com/playhub/lobby/internal/launcher"
)

var (
	ErrUnknownGame         = errors.New("unknown game")
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomFull            = errors.New("room is full")
	ErrRoomNotJoinable     = errors.New("room is not accepting players")
	ErrRoomBusy            = errors.New("room has a game in progress")
	ErrAlreadyMember       = errors.New("already a member of the room")
	ErrNotMember           = errors.New("not a member of the room")
	ErrNotInvited          = errors.New("room is private and no invite was accepted")
	ErrNotHost             = errors.New("only the host can do that")
	ErrBelowMinimumPlayers = errors.New("not enough players to start")
	ErrLaunchFailed        = errors.New("game server failed to launch")
	ErrInviteNotFound      = errors.New("invite not found")
	ErrInvalidVisibility   = errors.New("room type must be public or private")
	ErrEmptyMessage        = errors.New("chat message is empty")
)

type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

// ParseVisibility defaults to Public when s is empty.
func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(s) {
	case "", Public:
		return Public, nil
	case Private:
		return Private, nil
	}
	return "", ErrInvalidVisibility
}

type Status string

const (
	Waiting  Status = "waiting"
	Starting Status = "starting"
	Running  Status = "running"
	Finished Status = "finished"
)

const maxChatEntries = 200

// ChatEntry is one line of a room's chat log.
type ChatEntry struct {
	User string
	Msg  string
	TS   int64
}

// Room is guarded by its own mutex so unrelated rooms never contend.
type Room struct {
	ID         int
	Game       catalog.Game
	Visibility Visibility
	CreatedAt  time.Time

	mu      sync.Mutex
	host    string
	members []string
	status  Status
	port    int
	matchID string
	handle  *launcher.Handle
	invites map[string]*Invite
	chat    []ChatEntry
	// Set once the room has been dropped from the manager.
	removed bool
}

// Snapshot is a consistent copy of a room's state.
type Snapshot struct {
	ID         int
	Game       catalog.Game
	Host       string
	Members    []string
	Visibility Visibility
	Status     Status
	Port       int
	MatchID    string
}

func (r *Room) snapshotLocked() Snapshot {
	return Snapshot{
		ID:         r.ID,
		Game:       r.Game,
		Host:       r.host,
		Members:    append([]string(nil), r.members...),
		Visibility: r.Visibility,
		Status:     r.status,
		Port:       r.port,
		MatchID:    r.matchID,
	}
}

func (r *Room) isMember(account string) bool {
	for _, m := range r.members {
		if m == account {
			return true
		}
	}
	return false
}

// visibleTo reports whether account may see the room in listings.
func (r *Room) visibleTo(account string) bool {
	if r.Visibility == Public || r.isMember(account) {
		return true
	}
	invite, ok := r.invites[account]
	return ok && invite.Status != InviteRevoked
}

func (r *Room) removeMember(account string) {
	for i, m := range r.members {
		if m == account {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return
		}
	}
}
