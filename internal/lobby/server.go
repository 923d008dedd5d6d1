// Package lobby is the broker's protocol backend: it decodes each request from
// a connection, runs it against the account directory, registry, room manager
// and result recorder, and replies with a status.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/playhub/lobby/internal/catalog"
	"github.com/playhub/lobby/internal/core/auth"
	"github.com/playhub/lobby/internal/core/client"
	"github.com/playhub/lobby/internal/leaderboard"
	"github.com/playhub/lobby/internal/packets"
	"github.com/playhub/lobby/internal/registry"
	"github.com/playhub/lobby/internal/results"
	"github.com/playhub/lobby/internal/room"
)

// ErrSessionEnded is returned by Handle once the client has logged out and
// its connection has been drained.
var ErrSessionEnded = errors.New("session ended by client")

// Server handles every connection to the lobby port, both player clients and
// game servers reporting results.
type Server struct {
	Name   string
	Logger *logrus.Logger

	Accounts    *auth.Directory
	Registry    *registry.Registry
	Catalog     *catalog.Catalog
	Rooms       *room.Manager
	Results     *results.Recorder
	Leaderboard *leaderboard.Service

	handlers map[string]handler

	// Token issued by each connection's login, revoked on logout.
	mu     sync.Mutex
	tokens map[string]string
}

// session is the caller of a request: its connection and, once it has
// authenticated, the account and role it is bound to.
type session struct {
	client  *client.Client
	account string
	role    registry.Role
}

func (s session) loggedIn() bool { return s.account != "" }

type handler struct {
	// Requests from connections that haven't authenticated get not_logged_in.
	authenticated bool
	fn            func(ctx context.Context, s session, req *packets.Request) (interface{}, error)
}

func (s *Server) Identifier() string {
	return s.Name
}

func (s *Server) Init(_ context.Context) error {
	if s.Accounts == nil || s.Registry == nil || s.Catalog == nil || s.Rooms == nil || s.Results == nil || s.Leaderboard == nil {
		return fmt.Errorf("%s server is missing a dependency", s.Name)
	}
	s.tokens = make(map[string]string)
	s.handlers = map[string]handler{
		packets.RegisterAction:     {fn: s.handleRegister},
		packets.LoginAction:        {fn: s.handleLogin},
		packets.LogoutAction:       {fn: s.handleLogout},
		packets.IdentifyAction:     {fn: s.handleIdentify},
		packets.ResumeAction:       {fn: s.handleResume},
		packets.ListGamesAction:    {fn: s.handleListGames},
		packets.ListRoomsAction:    {fn: s.handleListRooms},
		packets.LeaderboardAction:  {fn: s.handleLeaderboard},
		packets.RecordResultAction: {fn: s.handleRecordResult},
		packets.ListOnlineAction:   {authenticated: true, fn: s.handleListOnline},
		packets.RoomStateAction:    {authenticated: true, fn: s.handleRoomState},
		packets.CreateRoomAction:   {authenticated: true, fn: s.handleCreateRoom},
		packets.JoinRoomAction:     {authenticated: true, fn: s.handleJoinRoom},
		packets.LeaveRoomAction:    {authenticated: true, fn: s.handleLeaveRoom},
		packets.InviteUserAction:   {authenticated: true, fn: s.handleInviteUser},
		packets.ListInvitesAction:  {authenticated: true, fn: s.handleListInvites},
		packets.AcceptInviteAction: {authenticated: true, fn: s.handleAcceptInvite},
		packets.RevokeInviteAction: {authenticated: true, fn: s.handleRevokeInvite},
		packets.StartGameAction:    {authenticated: true, fn: s.handleStartGame},
		packets.SendChatAction:     {authenticated: true, fn: s.handleSendChat},
		packets.ListChatAction:     {authenticated: true, fn: s.handleListChat},
		packets.MyStatsAction:      {authenticated: true, fn: s.handleMyStats},
	}
	return nil
}

// SetUpClient registers the new connection, unauthenticated.
func (s *Server) SetUpClient(c *client.Client) {
	s.Registry.Register(c)
}

// TearDown drops every registry binding held by the connection. Room
// membership is keyed by account and survives so the player can resume.
func (s *Server) TearDown(c *client.Client) {
	s.Registry.Unregister(c.ID())

	s.mu.Lock()
	delete(s.tokens, c.ID())
	s.mu.Unlock()
}

// Handle processes one frame. Errors caused by the request are reported to the
// client; only a failure to reply (or a logout) ends the connection.
func (s *Server) Handle(ctx context.Context, c *client.Client, body []byte) error {
	req, err := packets.DecodeRequest(body)
	if err != nil {
		s.Logger.Debugf("[%s] malformed request from %s: %v", s.Name, c.IPAddr(), err)
		return s.reply(c, req, packets.StatusBadRequest, packets.Reason{Reason: err.Error()})
	}

	h, ok := s.handlers[req.Action]
	if !ok {
		return s.reply(c, req, packets.StatusUnknownAction, packets.Reason{Reason: req.Action})
	}

	sess := session{client: c}
	sess.account, sess.role, _ = s.Registry.AccountOf(c.ID())
	if h.authenticated && !sess.loggedIn() {
		return s.reply(c, req, packets.StatusNotLoggedIn, nil)
	}

	data, err := h.fn(ctx, sess, req)
	if err != nil {
		status := statusFor(err)
		log := s.Logger.WithFields(logrus.Fields{"action": req.Action, "client": c.IPAddr(), "account": sess.account})
		if status == packets.StatusInternalError {
			log.Errorf("request failed: %v", err)
			return s.reply(c, req, status, nil)
		}
		log.Debugf("request rejected: %v", err)
		return s.reply(c, req, status, packets.Reason{Reason: err.Error()})
	}

	if err := s.reply(c, req, packets.StatusOK, data); err != nil {
		return err
	}
	if req.Action == packets.LogoutAction {
		c.Drain()
		return ErrSessionEnded
	}
	return nil
}

func (s *Server) reply(c *client.Client, req *packets.Request, status string, data interface{}) error {
	reply, err := packets.NewReply(req, status, data)
	if err != nil {
		return err
	}
	return c.Send(reply)
}
