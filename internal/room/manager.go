package room

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/playhub/lobby/internal/catalog"
	"github.com/playhub/lobby/internal/launcher"
	"github.com/playhub/lobby/internal/notify"
	"github.com/playhub/lobby/internal/packets"
)

// Games looks up catalog entries.
type Games interface {
	Get(id int) (catalog.Game, bool)
}

// Launcher starts a room's game server.
type Launcher interface {
	Launch(req launcher.Request) (*launcher.Handle, error)
}

// Notifier delivers pushes without blocking.
type Notifier interface {
	Push(account string, push *packets.Push) notify.Delivery
	// PushAll delivers push to every account except skip.
	PushAll(accounts []string, skip string, push *packets.Push)
}

// Manager holds every room. Its own lock only guards the room table; each room
// has a lock for its state. The table lock is never acquired while a room lock
// is held, and pushes are only sent once every lock has been released.
type Manager struct {
	games    Games
	launcher Launcher
	notifier Notifier
	logger   *logrus.Logger

	mu     sync.RWMutex
	rooms  map[int]*Room
	nextID int
}

func NewManager(games Games, l Launcher, notifier Notifier, logger *logrus.Logger) *Manager {
	return &Manager{
		games:    games,
		launcher: l,
		notifier: notifier,
		logger:   logger,
		rooms:    make(map[int]*Room),
		nextID:   1,
	}
}

// lockRoom returns the room with its lock held, or ErrRoomNotFound.
func (m *Manager) lockRoom(id int) (*Room, error) {
	m.mu.RLock()
	r, ok := m.rooms[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}

	r.mu.Lock()
	if r.removed {
		r.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// drop removes an empty room from the table. Called without any room lock held.
func (m *Manager) drop(r *Room) {
	m.mu.Lock()
	if m.rooms[r.ID] == r {
		delete(m.rooms, r.ID)
	}
	m.mu.Unlock()
	m.logger.WithField("room_id", r.ID).Info("removed empty room")
}

// Create makes a waiting room with host as its only member.
func (m *Manager) Create(host string, gameID int, visibility Visibility) (Snapshot, error) {
	game, ok := m.games.Get(gameID)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrUnknownGame, gameID)
	}
	if visibility != Public && visibility != Private {
		return Snapshot{}, ErrInvalidVisibility
	}

	r := &Room{
		Game:       game,
		Visibility: visibility,
		CreatedAt:  time.Now(),
		host:       host,
		members:    []string{host},
		status:     Waiting,
		invites:    make(map[string]*Invite),
	}

	m.mu.Lock()
	r.ID = m.nextID
	m.nextID++
	m.rooms[r.ID] = r
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"room_id": r.ID,
		"host":    host,
		"game":    game.Name,
		"type":    visibility,
	}).Info("created room")

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(), nil
}

// Join adds account to a waiting room. Capacity is checked and the member
// added in the same critical section, so of two joins racing for the last
// slot exactly one succeeds.
func (m *Manager) Join(account string, roomID int) error {
	r, err := m.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()
	return r.joinLocked(account)
}

func (r *Room) joinLocked(account string) error {
	if r.isMember(account) {
		return ErrAlreadyMember
	}
	if r.status != Waiting {
		return ErrRoomNotJoinable
	}
	if len(r.members) >= r.Game.PlayersMax {
		return ErrRoomFull
	}
	if r.Visibility == Private {
		invite, ok := r.invites[account]
		if !ok || invite.Status != InviteAccepted {
			return ErrNotInvited
		}
	}
	r.members = append(r.members, account)
	return nil
}

// Leave removes account from a room that isn't starting or running. A waiting
// room whose host leaves passes the host role to the next member in turn
// order; a room left empty is dropped.
func (m *Manager) Leave(account string, roomID int) error {
	r, err := m.lockRoom(roomID)
	if err != nil {
		return err
	}

	if !r.isMember(account) {
		r.mu.Unlock()
		return ErrNotMember
	}
	if r.status == Starting || r.status == Running {
		r.mu.Unlock()
		return ErrRoomBusy
	}

	r.removeMember(account)
	empty := len(r.members) == 0
	if empty {
		r.removed = true
	} else if r.host == account {
		r.host = r.members[0]
		m.logger.WithField("room_id", r.ID).Infof("host %s left, %s is now host", account, r.host)
	}
	r.mu.Unlock()

	if empty {
		m.drop(r)
	}
	return nil
}

// StartGame launches the room's game server and returns its port. Only the
// host may start a waiting room with at least the catalog minimum of players.
// Every other member is pushed game_started once the room is running.
func (m *Manager) StartGame(host string, roomID int) (int, error) {
	r, err := m.lockRoom(roomID)
	if err != nil {
		return 0, err
	}

	if r.host != host {
		r.mu.Unlock()
		return 0, ErrNotHost
	}
	if r.status != Waiting {
		r.mu.Unlock()
		return 0, ErrRoomNotJoinable
	}
	if len(r.members) < r.Game.PlayersMin {
		r.mu.Unlock()
		return 0, fmt.Errorf("%w: have %d, need %d", ErrBelowMinimumPlayers, len(r.members), r.Game.PlayersMin)
	}

	r.status = Starting
	matchID := uuid.NewString()
	log := m.logger.WithFields(logrus.Fields{"room_id": r.ID, "match_id": matchID})

	// The room lock is held across the launch so the exit callback can't
	// observe the room before it's marked running.
	h, err := m.launcher.Launch(launcher.Request{
		RoomID:  r.ID,
		MatchID: matchID,
		Game:    r.Game,
		Players: append([]string(nil), r.members...),
		OnExit:  func(report launcher.ExitReport) { m.finish(r, report) },
	})
	if err != nil {
		r.status = Waiting
		r.mu.Unlock()
		log.Warnf("failed to start game: %v", err)
		return 0, fmt.Errorf("%w: %v", ErrLaunchFailed, err)
	}

	r.status = Running
	r.port = h.Port
	r.matchID = matchID
	r.handle = h
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	log.WithField("port", h.Port).Info("game started")

	push, err := packets.NewPush(packets.GameStartedAction, packets.GameStarted{
		RoomID:      snapshot.ID,
		Port:        snapshot.Port,
		GameID:      snapshot.Game.ID,
		GameName:    snapshot.Game.DisplayName(),
		GameVersion: snapshot.Game.Version,
	})
	if err != nil {
		log.Errorf("failed to build game_started push: %v", err)
		return snapshot.Port, nil
	}
	m.notifier.PushAll(snapshot.Members, host, push)
	return snapshot.Port, nil
}

// finish moves a running room to finished when its game server exits. It runs
// on the launcher's supervisor goroutine before the port is released.
func (m *Manager) finish(r *Room, report launcher.ExitReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.matchID != report.MatchID || r.status != Running {
		return
	}
	r.status = Finished
	r.port = 0
	r.handle = nil

	log := m.logger.WithFields(logrus.Fields{"room_id": r.ID, "match_id": report.MatchID})
	if report.Err != nil {
		log.Warnf("game server exited abnormally (code %d), room finished", report.ExitCode)
	} else {
		log.Info("game server exited, room finished")
	}
}

// Get returns a room's state if account is allowed to see it.
func (m *Manager) Get(account string, roomID int) (Snapshot, error) {
	r, err := m.lockRoom(roomID)
	if err != nil {
		return Snapshot{}, err
	}
	defer r.mu.Unlock()

	if !r.visibleTo(account) {
		return Snapshot{}, ErrRoomNotFound
	}
	return r.snapshotLocked(), nil
}

// List returns, ordered by id, every public room plus the private rooms
// account belongs to or has been invited to.
func (m *Manager) List(account string) []Snapshot {
	var snapshots []Snapshot
	for _, r := range m.all() {
		r.mu.Lock()
		if !r.removed && r.visibleTo(account) {
			snapshots = append(snapshots, r.snapshotLocked())
		}
		r.mu.Unlock()
	}
	return snapshots
}

// ListPublic returns every public room, ordered by id.
func (m *Manager) ListPublic() []Snapshot {
	var snapshots []Snapshot
	for _, r := range m.all() {
		r.mu.Lock()
		if !r.removed && r.Visibility == Public {
			snapshots = append(snapshots, r.snapshotLocked())
		}
		r.mu.Unlock()
	}
	return snapshots
}

// TurnOrder returns the members in join order. Games that take turns treat it
// as a ring; the manager enforces nothing about turns itself.
func (m *Manager) TurnOrder(roomID int) ([]string, error) {
	r, err := m.lockRoom(roomID)
	if err != nil {
		return nil, err
	}
	defer r.mu.Unlock()
	return append([]string(nil), r.members...), nil
}

// Match returns the state needed to attribute a result to the room's current
// or most recent match.
func (m *Manager) Match(roomID int) (Snapshot, error) {
	r, err := m.lockRoom(roomID)
	if err != nil {
		return Snapshot{}, err
	}
	defer r.mu.Unlock()
	return r.snapshotLocked(), nil
}

// RoomsOf returns the ids of every room account is a member of.
func (m *Manager) RoomsOf(account string) []int {
	var ids []int
	for _, r := range m.all() {
		r.mu.Lock()
		if !r.removed && r.isMember(account) {
			ids = append(ids, r.ID)
		}
		r.mu.Unlock()
	}
	return ids
}

// Count returns the number of rooms in each status.
func (m *Manager) Count() map[Status]int {
	counts := make(map[Status]int)
	for _, r := range m.all() {
		r.mu.Lock()
		if !r.removed {
			counts[r.status]++
		}
		r.mu.Unlock()
	}
	return counts
}

func (m *Manager) all() []*Room {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms
}

// Invite lets invitee into a private room once they accept. Re-inviting after
// a revoke resets the invite to pending.
func (m *Manager) Invite(host string, roomID int, invitee string) error {
	r, err := m.lockRoom(roomID)
	if err != nil {
		return err
	}

	if r.host != host {
		r.mu.Unlock()
		return ErrNotHost
	}
	if r.isMember(invitee) {
		r.mu.Unlock()
		return ErrAlreadyMember
	}
	if r.status != Waiting {
		r.mu.Unlock()
		return ErrRoomNotJoinable
	}

	r.invites[invitee] = &Invite{
		RoomID:    r.ID,
		Inviter:   host,
		Invitee:   invitee,
		Status:    InvitePending,
		CreatedAt: time.Now(),
	}
	game := r.Game
	r.mu.Unlock()

	push, err := packets.NewPush(packets.RoomInviteAction, packets.RoomInvite{
		RoomID:   roomID,
		Host:     host,
		GameID:   game.ID,
		GameName: game.DisplayName(),
	})
	if err == nil {
		m.notifier.Push(invitee, push)
	}
	return nil
}

// AcceptInvite marks account's invite accepted and joins the room. If the join
// fails (the room filled up, say) the invite stays accepted so a later
// join_room can succeed.
func (m *Manager) AcceptInvite(account string, roomID int) error {
	r, err := m.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	invite, ok := r.invites[account]
	if !ok || invite.Status == InviteRevoked {
		return ErrInviteNotFound
	}
	invite.Status = InviteAccepted
	return r.joinLocked(account)
}

// RevokeInvite cancels an invite. Members who already joined stay.
func (m *Manager) RevokeInvite(host string, roomID int, invitee string) error {
	r, err := m.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	if r.host != host {
		return ErrNotHost
	}
	invite, ok := r.invites[invitee]
	if !ok || invite.Status == InviteRevoked {
		return ErrInviteNotFound
	}
	invite.Status = InviteRevoked
	return nil
}

// ListInvites returns account's pending invites, ordered by room id.
func (m *Manager) ListInvites(account string) []InviteSummary {
	var summaries []InviteSummary
	for _, r := range m.all() {
		r.mu.Lock()
		if invite, ok := r.invites[account]; ok && !r.removed && invite.Status == InvitePending {
			summaries = append(summaries, InviteSummary{Invite: *invite, Room: r.snapshotLocked()})
		}
		r.mu.Unlock()
	}
	return summaries
}

// SendChat appends a message to the room's log and pushes it to the other members.
func (m *Manager) SendChat(account string, roomID int, msg string) (ChatEntry, error) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return ChatEntry{}, ErrEmptyMessage
	}

	r, err := m.lockRoom(roomID)
	if err != nil {
		return ChatEntry{}, err
	}
	if !r.isMember(account) {
		r.mu.Unlock()
		return ChatEntry{}, ErrNotMember
	}

	entry := ChatEntry{User: account, Msg: msg, TS: time.Now().Unix()}
	r.chat = append(r.chat, entry)
	if len(r.chat) > maxChatEntries {
		r.chat = append([]ChatEntry(nil), r.chat[len(r.chat)-maxChatEntries:]...)
	}
	members := append([]string(nil), r.members...)
	r.mu.Unlock()

	push, err := packets.NewPush(packets.RoomChatAction, packets.RoomChat{
		RoomID: roomID,
		User:   entry.User,
		Msg:    entry.Msg,
		TS:     entry.TS,
	})
	if err == nil {
		m.notifier.PushAll(members, account, push)
	}
	return entry, nil
}

// ListChat returns the room's chat log, oldest first.
func (m *Manager) ListChat(account string, roomID int) ([]ChatEntry, error) {
	r, err := m.lockRoom(roomID)
	if err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	if !r.visibleTo(account) {
		return nil, ErrRoomNotFound
	}
	return append([]ChatEntry(nil), r.chat...), nil
}
