package hostmsg

// Message is an outbound client message. Requests expect an ack, reject or
// response keyed by request id; the rest are fire-and-forget.
type Message interface {
	MessageType() string
}

// Request marks messages that travel on the request channel.
type Request interface {
	Message
	isRequest()
}

type GetConnectToken struct {
	GameID GameID `json:"game_id"`
}

type JoinLobby struct {
	LobbyID  LobbyID `json:"lobby_id"`
	Password string  `json:"password,omitempty"`
}

type MakeLobby struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"max_players"`
	Password   string `json:"password,omitempty"`
}

type LeaveLobby struct {
	LobbyID LobbyID `json:"lobby_id"`
}

type LaunchLobbyGame struct {
	LobbyID LobbyID `json:"lobby_id"`
}

type LobbySearch struct {
	Request LobbySearchRequest `json:"request"`
}

type AckPendingLobby struct {
	LobbyID LobbyID `json:"lobby_id"`
}

type NackPendingLobby struct {
	LobbyID LobbyID `json:"lobby_id"`
}

const (
	TypeGetConnectToken  = "get_connect_token"
	TypeJoinLobby        = "join_lobby"
	TypeMakeLobby        = "make_lobby"
	TypeLeaveLobby       = "leave_lobby"
	TypeLaunchLobbyGame  = "launch_lobby_game"
	TypeLobbySearch      = "lobby_search"
	TypeAckPendingLobby  = "ack_pending_lobby"
	TypeNackPendingLobby = "nack_pending_lobby"
)

func (GetConnectToken) MessageType() string  { return TypeGetConnectToken }
func (JoinLobby) MessageType() string        { return TypeJoinLobby }
func (MakeLobby) MessageType() string        { return TypeMakeLobby }
func (LeaveLobby) MessageType() string       { return TypeLeaveLobby }
func (LaunchLobbyGame) MessageType() string  { return TypeLaunchLobbyGame }
func (LobbySearch) MessageType() string      { return TypeLobbySearch }
func (AckPendingLobby) MessageType() string  { return TypeAckPendingLobby }
func (NackPendingLobby) MessageType() string { return TypeNackPendingLobby }

func (GetConnectToken) isRequest() {}
func (JoinLobby) isRequest()       {}
func (MakeLobby) isRequest()       {}
func (LeaveLobby) isRequest()      {}
func (LaunchLobbyGame) isRequest() {}
func (LobbySearch) isRequest()     {}
