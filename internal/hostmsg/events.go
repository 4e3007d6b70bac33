package hostmsg

// Event is anything the host connection hands to the client tick: host
// messages, request-channel signals and connection reports.
type Event interface {
	isEvent()
}

type ReportKind int

const (
	ReportConnected ReportKind = iota
	ReportDisconnected
	ReportClosedByServer
	ReportClosedBySelf
	ReportIsDead
)

func (k ReportKind) String() string {
	switch k {
	case ReportConnected:
		return "connected"
	case ReportDisconnected:
		return "disconnected"
	case ReportClosedByServer:
		return "closed_by_server"
	case ReportClosedBySelf:
		return "closed_by_self"
	case ReportIsDead:
		return "is_dead"
	default:
		return "unknown"
	}
}

// ConnectionReport is produced by the transport, never received on the wire.
// AbortedRequests is only populated for ReportIsDead.
type ConnectionReport struct {
	Kind            ReportKind
	AbortedRequests []RequestID
}

type LobbyStateUpdate struct {
	Lobby LobbyData `json:"lobby"`
}

type LobbyLeave struct {
	LobbyID LobbyID `json:"lobby_id"`
}

type PendingLobbyAckRequest struct {
	LobbyID LobbyID `json:"lobby_id"`
}

type PendingLobbyAckFail struct {
	LobbyID LobbyID `json:"lobby_id"`
}

type GameStart struct {
	GameID    GameID             `json:"game_id"`
	Token     ServerConnectToken `json:"connect_token"`
	StartInfo GameStartInfo      `json:"start_info"`
}

type GameAborted struct {
	GameID GameID `json:"game_id"`
}

type GameOver struct {
	GameID GameID         `json:"game_id"`
	Report GameOverReport `json:"report"`
}

type RequestAck struct {
	RequestID RequestID
}

type RequestReject struct {
	RequestID RequestID
	Reason    string
}

type RequestResponse struct {
	RequestID RequestID
	Response  Response
}

// SendFailed and ResponseLost are synthesized by the transport.
type SendFailed struct {
	RequestID RequestID
}

type ResponseLost struct {
	RequestID RequestID
}

// Response is the data carried by a successful request response.
type Response interface {
	isResponse()
}

type ConnectTokenResponse struct {
	GameID GameID             `json:"game_id"`
	Token  ServerConnectToken `json:"connect_token"`
}

type LobbySearchResponse struct {
	Result LobbySearchResult `json:"result"`
}

func (ConnectionReport) isEvent()       {}
func (LobbyStateUpdate) isEvent()       {}
func (LobbyLeave) isEvent()             {}
func (PendingLobbyAckRequest) isEvent() {}
func (PendingLobbyAckFail) isEvent()    {}
func (GameStart) isEvent()              {}
func (GameAborted) isEvent()            {}
func (GameOver) isEvent()               {}
func (RequestAck) isEvent()             {}
func (RequestReject) isEvent()          {}
func (RequestResponse) isEvent()        {}
func (SendFailed) isEvent()             {}
func (ResponseLost) isEvent()           {}

func (ConnectTokenResponse) isResponse() {}
func (LobbySearchResponse) isResponse()  {}
