package lobbyclient

import (
	"context"

	"github.com/playhub/lobby/internal/packets"
)

func (c *Client) Register(ctx context.Context, username, password, role string) error {
	return c.Call(ctx, packets.RegisterAction, packets.Credentials{Username: username, Password: password, Role: role}, nil)
}

func (c *Client) Login(ctx context.Context, username, password string) (*packets.LoginResult, error) {
	var result packets.LoginResult
	err := c.Call(ctx, packets.LoginAction, packets.Credentials{Username: username, Password: password}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Identify binds this connection to the account token was issued to. Use
// role "monitor" for a push-only connection.
func (c *Client) Identify(ctx context.Context, role, token string) error {
	return c.Call(ctx, packets.IdentifyAction, packets.Identify{Role: role, Token: token}, nil)
}

func (c *Client) Resume(ctx context.Context, username, token string) (*packets.LoginResult, error) {
	var result packets.LoginResult
	if err := c.Call(ctx, packets.ResumeAction, packets.Resume{Username: username, Token: token}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CreateRoom(ctx context.Context, gameID int, visibility string) (int, error) {
	var created packets.RoomCreated
	err := c.Call(ctx, packets.CreateRoomAction, packets.CreateRoom{GameID: gameID, Type: visibility}, &created)
	return created.RoomID, err
}

func (c *Client) JoinRoom(ctx context.Context, roomID int) error {
	return c.Call(ctx, packets.JoinRoomAction, packets.RoomRef{RoomID: roomID}, nil)
}

func (c *Client) RoomState(ctx context.Context, roomID int) (*packets.RoomSummary, error) {
	var summary packets.RoomSummary
	if err := c.Call(ctx, packets.RoomStateAction, packets.RoomRef{RoomID: roomID}, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// StartGame returns the port the room's game server listens on.
func (c *Client) StartGame(ctx context.Context, roomID int) (int, error) {
	var port packets.GamePort
	err := c.Call(ctx, packets.StartGameAction, packets.RoomRef{RoomID: roomID}, &port)
	return port.Port, err
}

func (c *Client) RecordResult(ctx context.Context, result packets.RecordResult) error {
	return c.Call(ctx, packets.RecordResultAction, result, nil)
}

func (c *Client) MyStats(ctx context.Context) (*packets.Stats, error) {
	var stats packets.Stats
	if err := c.Call(ctx, packets.MyStatsAction, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) Leaderboard(ctx context.Context) ([]packets.LeaderboardEntry, error) {
	var board packets.Leaderboard
	if err := c.Call(ctx, packets.LeaderboardAction, nil, &board); err != nil {
		return nil, err
	}
	return board.Entries, nil
}
