package lobby

import (
	"context"
	"fmt"
	"strconv"

	"github.com/playhub/lobby/internal/core/auth"
	"github.com/playhub/lobby/internal/packets"
	"github.com/playhub/lobby/internal/registry"
	"github.com/playhub/lobby/internal/results"
	"github.com/playhub/lobby/internal/room"
)

// Accounts

func (s *Server) handleRegister(_ context.Context, _ session, req *packets.Request) (interface{}, error) {
	var creds packets.Credentials
	if err := req.Bind(&creds); err != nil {
		return nil, err
	}

	account, err := s.Accounts.Register(creds.Username, creds.Password, creds.Role)
	if err != nil {
		return nil, err
	}
	s.Logger.Infof("[%s] registered %s account %s", s.Name, account.Role, account.Username)
	return nil, nil
}

func (s *Server) handleLogin(_ context.Context, sess session, req *packets.Request) (interface{}, error) {
	if sess.loggedIn() {
		return nil, errAlreadyLoggedIn
	}

	var creds packets.Credentials
	if err := req.Bind(&creds); err != nil {
		return nil, err
	}
	account, err := s.Accounts.Authenticate(creds.Username, creds.Password, creds.Role)
	if err != nil {
		return nil, err
	}

	// Of two racing logins for the same account only one gets the primary slot.
	if err := s.Registry.Identify(sess.client.ID(), account.Username, registry.Primary); err != nil {
		return nil, err
	}

	token := s.Accounts.IssueToken(account.Username)
	s.mu.Lock()
	s.tokens[sess.client.ID()] = token
	s.mu.Unlock()

	s.Logger.Infof("[%s] %s logged in from %s", s.Name, account.Username, sess.client.IPAddr())
	return packets.LoginResult{
		Username: account.Username,
		Role:     account.Role,
		Wins:     account.Wins,
		Played:   account.Played,
		Token:    token,
	}, nil
}

// handleLogout revokes the login token; Handle closes the connection once the
// reply has been written.
func (s *Server) handleLogout(_ context.Context, sess session, _ *packets.Request) (interface{}, error) {
	s.mu.Lock()
	token, ok := s.tokens[sess.client.ID()]
	delete(s.tokens, sess.client.ID())
	s.mu.Unlock()

	if ok {
		s.Accounts.RevokeToken(token)
	}
	if sess.loggedIn() {
		s.Logger.Infof("[%s] %s logged out", s.Name, sess.account)
	}
	return nil, nil
}

// handleIdentify binds the connection to the account a login token was issued
// to, typically as that account's monitor connection. A connection that
// already logged in may omit the token to switch its own role.
func (s *Server) handleIdentify(_ context.Context, sess session, req *packets.Request) (interface{}, error) {
	var identify packets.Identify
	if err := req.Bind(&identify); err != nil {
		return nil, err
	}
	role, err := registry.ParseRole(identify.Role)
	if err != nil {
		return nil, err
	}

	account := sess.account
	if identify.Token != "" {
		if account, err = s.Accounts.ValidateToken(identify.Token); err != nil {
			return nil, err
		}
	} else if !sess.loggedIn() {
		return nil, auth.ErrInvalidToken
	}

	if err := s.Registry.Identify(sess.client.ID(), account, role); err != nil {
		return nil, err
	}
	s.Logger.Infof("[%s] %s identified %s connection from %s", s.Name, account, role, sess.client.IPAddr())
	return nil, nil
}

// handleResume re-binds a reconnecting client as its account's primary
// connection. Rooms it belonged to are untouched by the disconnect.
func (s *Server) handleResume(_ context.Context, sess session, req *packets.Request) (interface{}, error) {
	var resume packets.Resume
	if err := req.Bind(&resume); err != nil {
		return nil, err
	}

	account, err := s.Accounts.ValidateToken(resume.Token)
	if err != nil {
		return nil, err
	}
	if account != resume.Username {
		return nil, auth.ErrInvalidToken
	}
	if err := s.Registry.Identify(sess.client.ID(), account, registry.Primary); err != nil {
		return nil, err
	}

	stats, err := s.Accounts.Stats(account)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.tokens[sess.client.ID()] = resume.Token
	s.mu.Unlock()

	s.Logger.Infof("[%s] %s resumed from %s", s.Name, account, sess.client.IPAddr())
	return packets.LoginResult{Username: account, Wins: stats.Wins, Played: stats.Played}, nil
}

func (s *Server) handleMyStats(_ context.Context, sess session, _ *packets.Request) (interface{}, error) {
	stats, err := s.Accounts.Stats(sess.account)
	if err != nil {
		return nil, err
	}
	return packets.Stats{Wins: stats.Wins, Played: stats.Played}, nil
}

func (s *Server) handleListOnline(_ context.Context, _ session, req *packets.Request) (interface{}, error) {
	var filter packets.ListOnline
	if err := req.Bind(&filter); err != nil {
		return nil, err
	}

	users := []string{}
	for _, username := range s.Registry.Online() {
		if filter.Role != "" {
			account, err := s.Accounts.Account(username)
			if err != nil || account.Role != filter.Role {
				continue
			}
		}
		users = append(users, username)
	}
	return packets.OnlineUsers{Users: users}, nil
}

func (s *Server) handleLeaderboard(ctx context.Context, _ session, _ *packets.Request) (interface{}, error) {
	entries, err := s.Leaderboard.Top(ctx, 0)
	if err != nil {
		return nil, err
	}

	board := packets.Leaderboard{Entries: make([]packets.LeaderboardEntry, len(entries))}
	for i, e := range entries {
		board.Entries[i] = packets.LeaderboardEntry{Rank: e.Rank, Username: e.Username, Wins: e.Wins, Played: e.Played}
	}
	return board, nil
}

// Games and rooms

func (s *Server) handleListGames(_ context.Context, _ session, _ *packets.Request) (interface{}, error) {
	list := packets.GameList{Games: make(map[string]packets.GameInfo)}
	for _, game := range s.Catalog.List() {
		list.Games[strconv.Itoa(game.ID)] = packets.GameInfo{
			Name:        game.DisplayName(),
			Version:     game.Version,
			PlayersMin:  game.PlayersMin,
			PlayersMax:  game.PlayersMax,
			Developer:   game.Developer,
			Description: game.Description,
		}
	}
	return list, nil
}

// handleListRooms shows anonymous callers only public rooms.
func (s *Server) handleListRooms(_ context.Context, sess session, _ *packets.Request) (interface{}, error) {
	var snapshots []room.Snapshot
	if sess.loggedIn() {
		snapshots = s.Rooms.List(sess.account)
	} else {
		snapshots = s.Rooms.ListPublic()
	}

	list := packets.RoomList{Rooms: make([]packets.RoomSummary, len(snapshots))}
	for i, snapshot := range snapshots {
		list.Rooms[i] = RoomSummary(snapshot)
	}
	return list, nil
}

func (s *Server) handleRoomState(_ context.Context, sess session, req *packets.Request) (interface{}, error) {
	var ref packets.RoomRef
	if err := req.Bind(&ref); err != nil {
		return nil, err
	}
	snapshot, err := s.Rooms.Get(sess.account, ref.RoomID)
	if err != nil {
		return nil, err
	}
	return RoomSummary(snapshot), nil
}

func (s *Server) handleCreateRoom(_ context.Context, sess session, req *packets.Request) (interface{}, error) {
	var create packets.CreateRoom
	if err := req.Bind(&create); err != nil {
		return nil, err
	}
	visibility, err := room.ParseVisibility(create.Type)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.Rooms.Create(sess.account, create.GameID, visibility)
	if err != nil {
		return nil, err
	}
	return packets.RoomCreated{RoomID: snapshot.ID}, nil
}

func (s *Server) handleJoinRoom(_ context.Context, sess session, req *packets.Request) (interface{}, error) {
	var ref packets.RoomRef
	if err := req.Bind(&ref); err != nil {
		return nil, err
	}
	return nil, s.Rooms.Join(sess.account, ref.RoomID)
}

func (s *Server) handleLeaveRoom(_ context.Context, sess session, req *packets.Request) (interface{}, error) {
	var ref packets.RoomRef
	if err := req.Bind(&ref); err != nil {
		return nil, err
	}
	return nil, s.Rooms.Leave(sess.account, ref.RoomID)
}

func (s *Server) handleStartGame(_ context.Context, sess session, req *packets.Request) (interface{}, error) {
	var ref packets.RoomRef
	if err := req.Bind(&ref); err != nil {
		return nil, err
	}
	port, err := s.Rooms.StartGame(sess.account, ref.RoomID)
	if err != nil {
		return nil, err
	}
	return packets.GamePort{RoomID: ref.RoomID, Port: port}, nil
}

// Invites

func (s *Server) handleInviteUser(_ context.Context, sess session, req *packets.Request) (interface{}, error) {
	var invite packets.InviteUser
	if err := req.Bind(&invite); err != nil {
		return nil, err
	}
	if _, err := s.Accounts.Account(invite.Username); err != nil {
		return nil, err
	}
	return nil, s.Rooms.Invite(sess.account, invite.RoomID, invite.Username)
}

func (s *Server) handleListInvites(_ context.Context, sess session, _ *packets.Request) (interface{}, error) {
	invites := s.Rooms.ListInvites(sess.account)

	list := packets.InviteList{Invites: make([]packets.InviteSummary, len(invites))}
	for i, invite := range invites {
		list.Invites[i] = packets.InviteSummary{
			RoomID:   invite.Room.ID,
			GameID:   invite.Room.Game.ID,
			GameName: invite.Room.Game.DisplayName(),
			Host:     invite.Invite.Inviter,
			Type:     string(invite.Room.Visibility),
			Status:   string(invite.Invite.Status),
		}
	}
	return list, nil
}

func (s *Server) handleAcceptInvite(_ context.Context, sess session, req *packets.Request) (interface{}, error) {
	var ref packets.RoomRef
	if err := req.Bind(&ref); err != nil {
		return nil, err
	}
	return nil, s.Rooms.AcceptInvite(sess.account, ref.RoomID)
}

func (s *Server) handleRevokeInvite(_ context.Context, sess session, req *packets.Request) (interface{}, error) {
	var invite packets.InviteUser
	if err := req.Bind(&invite); err != nil {
		return nil, err
	}
	return nil, s.Rooms.RevokeInvite(sess.account, invite.RoomID, invite.Username)
}

// Chat

func (s *Server) handleSendChat(_ context.Context, sess session, req *packets.Request) (interface{}, error) {
	var chat packets.SendChat
	if err := req.Bind(&chat); err != nil {
		return nil, err
	}
	entry, err := s.Rooms.SendChat(sess.account, chat.RoomID, chat.Message)
	if err != nil {
		return nil, err
	}
	return packets.ChatEntry{User: entry.User, Msg: entry.Msg, TS: entry.TS}, nil
}

func (s *Server) handleListChat(_ context.Context, sess session, req *packets.Request) (interface{}, error) {
	var ref packets.RoomRef
	if err := req.Bind(&ref); err != nil {
		return nil, err
	}
	entries, err := s.Rooms.ListChat(sess.account, ref.RoomID)
	if err != nil {
		return nil, err
	}

	log := packets.ChatLog{RoomID: ref.RoomID, Entries: make([]packets.ChatEntry, len(entries))}
	for i, e := range entries {
		log.Entries[i] = packets.ChatEntry{User: e.User, Msg: e.Msg, TS: e.TS}
	}
	return log, nil
}

// Results

// handleRecordResult is called by game servers, which never log in; the match
// id they were started with is what ties the report to a room.
func (s *Server) handleRecordResult(ctx context.Context, sess session, req *packets.Request) (interface{}, error) {
	var result packets.RecordResult
	if err := req.Bind(&result); err != nil {
		return nil, err
	}
	if result.RoomID == 0 {
		return nil, fmt.Errorf("%w: missing room id", results.ErrInvalidReport)
	}

	return nil, s.Results.Record(ctx, results.Report{
		RoomID:       result.RoomID,
		MatchID:      result.MatchID,
		Winners:      result.Winners,
		Participants: result.Players,
	})
}

// RoomSummary is how a room is described to clients.
func RoomSummary(snapshot room.Snapshot) packets.RoomSummary {
	return packets.RoomSummary{
		RoomID:      snapshot.ID,
		GameID:      snapshot.Game.ID,
		GameName:    snapshot.Game.DisplayName(),
		GameVersion: snapshot.Game.Version,
		Host:        snapshot.Host,
		Players:     snapshot.Members,
		MaxPlayers:  snapshot.Game.PlayersMax,
		MinPlayers:  snapshot.Game.PlayersMin,
		Type:        string(snapshot.Visibility),
		Status:      string(snapshot.Status),
		Port:        snapshot.Port,
	}
}
