package packets

// Request payloads.

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type Identify struct {
	Role  string `json:"role"`
	Token string `json:"token"`
}

type Resume struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

type ListOnline struct {
	Role string `json:"role,omitempty"`
}

type CreateRoom struct {
	GameID int    `json:"game_id"`
	Type   string `json:"type"`
}

// RoomRef is the payload of every action that only names a room.
type RoomRef struct {
	RoomID int `json:"room_id"`
}

type InviteUser struct {
	RoomID   int    `json:"room_id"`
	Username string `json:"username"`
}

type SendChat struct {
	RoomID  int    `json:"room_id"`
	Message string `json:"message"`
}

type RecordResult struct {
	RoomID  int      `json:"room_id"`
	MatchID string   `json:"match_id"`
	Winners []string `json:"winners"`
	Players []string `json:"players"`
}

// Reply payloads.

type Reason struct {
	Reason string `json:"reason"`
}

type LoginResult struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Wins     int    `json:"wins"`
	Played   int    `json:"played"`
	Token    string `json:"token,omitempty"`
}

type Stats struct {
	Wins   int `json:"wins"`
	Played int `json:"played"`
}

type GameInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	PlayersMin  int    `json:"players_min"`
	PlayersMax  int    `json:"players_max"`
	Developer   string `json:"developer,omitempty"`
	Description string `json:"description,omitempty"`
}

// GameList maps the catalog id (as a string, since JSON object keys must be) to its entry.
type GameList struct {
	Games map[string]GameInfo `json:"games"`
}

type RoomCreated struct {
	RoomID int `json:"room_id"`
}

type RoomSummary struct {
	RoomID      int      `json:"room_id"`
	GameID      int      `json:"game_id"`
	GameName    string   `json:"game_name"`
	GameVersion string   `json:"game_version"`
	Host        string   `json:"host"`
	Players     []string `json:"players"`
	MaxPlayers  int      `json:"max_players"`
	MinPlayers  int      `json:"min_players"`
	Type        string   `json:"type"`
	Status      string   `json:"status"`
	Port        int      `json:"port,omitempty"`
}

type RoomList struct {
	Rooms []RoomSummary `json:"rooms"`
}

type OnlineUsers struct {
	Users []string `json:"users"`
}

type InviteSummary struct {
	RoomID   int    `json:"room_id"`
	GameID   int    `json:"game_id"`
	GameName string `json:"game_name"`
	Host     string `json:"host"`
	Type     string `json:"type"`
	Status   string `json:"status"`
}

type InviteList struct {
	Invites []InviteSummary `json:"invites"`
}

type GamePort struct {
	RoomID int `json:"room_id"`
	Port   int `json:"port"`
}

type ChatEntry struct {
	User string `json:"user"`
	Msg  string `json:"msg"`
	TS   int64  `json:"ts"`
}

type ChatLog struct {
	RoomID  int         `json:"room_id"`
	Entries []ChatEntry `json:"entries"`
}

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Played   int    `json:"played"`
}

type Leaderboard struct {
	Entries []LeaderboardEntry `json:"entries"`
}

// Push payloads.

type GameStarted struct {
	RoomID      int    `json:"room_id"`
	Port        int    `json:"port"`
	GameID      int    `json:"game_id"`
	GameName    string `json:"game_name"`
	GameVersion string `json:"game_version"`
}

type RoomInvite struct {
	RoomID   int    `json:"room_id"`
	Host     string `json:"host"`
	GameID   int    `json:"game_id"`
	GameName string `json:"game_name"`
}

type RoomChat struct {
	RoomID int    `json:"room_id"`
	User   string `json:"user"`
	Msg    string `json:"msg"`
	TS     int64  `json:"ts"`
}
