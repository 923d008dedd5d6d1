package packets

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Actions a client (or game server) may request.
const (
	RegisterAction     = "register"
	LoginAction        = "login"
	LogoutAction       = "logout"
	IdentifyAction     = "identify"
	ResumeAction       = "resume"
	ListGamesAction    = "list_games"
	ListRoomsAction    = "list_rooms"
	ListOnlineAction   = "list_online"
	RoomStateAction    = "room_state"
	CreateRoomAction   = "create_room"
	JoinRoomAction     = "join_room"
	LeaveRoomAction    = "leave_room"
	InviteUserAction   = "invite_user"
	ListInvitesAction  = "list_invites"
	AcceptInviteAction = "accept_invite"
	RevokeInviteAction = "revoke_invite"
	StartGameAction    = "start_game"
	SendChatAction     = "send_chat"
	ListChatAction     = "list_chat"
	RecordResultAction = "record_result"
	LeaderboardAction  = "leaderboard"
	MyStatsAction      = "my_stats"
)

// Actions carried by server pushes.
const (
	GameStartedAction = "game_started"
	RoomInviteAction  = "room_invite"
	RoomChatAction    = "room_chat"
)

// Reply statuses. Anything other than StatusOK is an error code.
const (
	StatusOK                  = "ok"
	StatusBadRequest          = "bad_request"
	StatusUnknownAction       = "unknown_action"
	StatusInternalError       = "internal_error"
	StatusNotLoggedIn         = "not_logged_in"
	StatusUsernameTaken       = "username_taken"
	StatusInvalidRole         = "invalid_role"
	StatusInvalidCredentials  = "invalid_credentials"
	StatusAlreadyLoggedIn     = "already_logged_in"
	StatusInvalidToken        = "invalid_token"
	StatusUnknownGame         = "unknown_game"
	StatusNotFound            = "not_found"
	StatusRoomFull            = "room_full"
	StatusRoomNotJoinable     = "room_not_joinable"
	StatusRoomBusy            = "room_busy"
	StatusAlreadyMember       = "already_member"
	StatusNotMember           = "not_member"
	StatusNotInvited          = "not_invited"
	StatusNotHost             = "not_host"
	StatusBelowMinimumPlayers = "below_minimum_players"
	StatusLaunchFailed        = "launch_failed"
	StatusAlreadyRecorded     = "already_recorded"
)

var ErrMalformedMessage = errors.New("malformed message")

// Request is a client-to-server message.
type Request struct {
	Action    string          `json:"action"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Bind decodes the request's data into v. A missing data object leaves v untouched.
func (r *Request) Bind(v interface{}) error {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("%w: %s data: %v", ErrMalformedMessage, r.Action, err)
	}
	return nil
}

// ServerMessage is anything the server sends: either a *Reply or a *Push. The
// distinction is made once, by DecodeServerMessage, and never re-inspected.
type ServerMessage interface {
	serverMessage()
}

// Reply answers exactly one Request.
type Reply struct {
	Status    string          `json:"status"`
	Action    string          `json:"action,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Push is an unsolicited server message. It never satisfies a pending request.
type Push struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func (*Reply) serverMessage() {}
func (*Push) serverMessage()  {}

// OK reports whether the reply carries a success status.
func (r *Reply) OK() bool { return r.Status == StatusOK }

// Bind decodes the reply's data into v.
func (r *Reply) Bind(v interface{}) error {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// Bind decodes the push's data into v.
func (p *Push) Bind(v interface{}) error {
	if len(p.Data) == 0 || string(p.Data) == "null" {
		return nil
	}
	return json.Unmarshal(p.Data, v)
}

// envelope is the superset of every message shape, used only while decoding.
type envelope struct {
	Action    string          `json:"action"`
	Status    *string         `json:"status"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

// DecodeRequest parses a frame body received by the server.
func DecodeRequest(body []byte) (*Request, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Action == "" {
		return &Request{RequestID: env.RequestID}, fmt.Errorf("%w: missing action", ErrMalformedMessage)
	}
	return &Request{Action: env.Action, RequestID: env.RequestID, Data: env.Data}, nil
}

// DecodeServerMessage parses a frame body received by a client. Messages with
// a status are replies; messages with only an action are pushes.
func DecodeServerMessage(body []byte) (ServerMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch {
	case env.Status != nil:
		return &Reply{Status: *env.Status, Action: env.Action, RequestID: env.RequestID, Data: env.Data}, nil
	case env.Action != "":
		return &Push{Action: env.Action, Data: env.Data}, nil
	default:
		return nil, fmt.Errorf("%w: neither status nor action present", ErrMalformedMessage)
	}
}

// NewRequest builds a request with data marshaled from v (which may be nil).
func NewRequest(action, requestID string, v interface{}) (*Request, error) {
	data, err := marshalData(v)
	if err != nil {
		return nil, err
	}
	return &Request{Action: action, RequestID: requestID, Data: data}, nil
}

// NewReply builds a reply to req with data marshaled from v (which may be nil).
func NewReply(req *Request, status string, v interface{}) (*Reply, error) {
	data, err := marshalData(v)
	if err != nil {
		return nil, err
	}
	reply := &Reply{Status: status, Data: data}
	if req != nil {
		reply.Action = req.Action
		reply.RequestID = req.RequestID
	}
	return reply, nil
}

// NewPush builds a push with data marshaled from v.
func NewPush(action string, v interface{}) (*Push, error) {
	data, err := marshalData(v)
	if err != nil {
		return nil, err
	}
	return &Push{Action: action, Data: data}, nil
}

func marshalData(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("error encoding message data: %w", err)
	}
	return data, nil
}
