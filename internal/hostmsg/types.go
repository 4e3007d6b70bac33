package hostmsg

import "encoding/json"

type (
	RequestID uint64
	GameID    uint64
	LobbyID   uint64
)

// ServerConnectToken authorizes one connection to one game server. It is
// opaque to the client.
type ServerConnectToken string

// GameStartInfo is the host-issued game-start package, passed through to the
// game runner untouched.
type GameStartInfo json.RawMessage

func (g GameStartInfo) MarshalJSON() ([]byte, error) {
	if len(g) == 0 {
		return []byte("null"), nil
	}
	return json.RawMessage(g).MarshalJSON()
}

func (g *GameStartInfo) UnmarshalJSON(b []byte) error {
	return (*json.RawMessage)(g).UnmarshalJSON(b)
}

// Clone returns an independent copy so holders never share backing arrays.
func (g GameStartInfo) Clone() GameStartInfo {
	if g == nil {
		return nil
	}
	out := make(GameStartInfo, len(g))
	copy(out, g)
	return out
}

// GameOverReport is the opaque end-of-game summary produced by the host or by
// a local game.
type GameOverReport json.RawMessage

func (r GameOverReport) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return json.RawMessage(r).MarshalJSON()
}

func (r *GameOverReport) UnmarshalJSON(b []byte) error {
	return (*json.RawMessage)(r).UnmarshalJSON(b)
}

type LobbyMember struct {
	ClientID string `json:"client_id"`
	Team     int    `json:"team"`
}

type LobbyData struct {
	ID         LobbyID       `json:"id"`
	Name       string        `json:"name"`
	OwnerID    string        `json:"owner_id"`
	MaxPlayers int           `json:"max_players"`
	Members    []LobbyMember `json:"members"`
}

func (l LobbyData) HasMember(clientID string) bool {
	for _, m := range l.Members {
		if m.ClientID == clientID {
			return true
		}
	}
	return false
}

func (l LobbyData) validate(msgType string) error {
	if l.ID == 0 {
		return &MissingFieldError{MessageType: msgType, Field: "lobby.id"}
	}
	if l.MaxPlayers <= 0 {
		return &InvalidFieldError{MessageType: msgType, Field: "lobby.max_players", Reason: "must be positive"}
	}
	if len(l.Members) > l.MaxPlayers {
		return &InvalidFieldError{MessageType: msgType, Field: "lobby.members", Reason: "more members than max_players"}
	}
	return nil
}

type LobbySearchRequest struct {
	NameFilter string `json:"name_filter,omitempty"`
	PageSize   int    `json:"page_size"`
	Cursor     string `json:"cursor,omitempty"`
}

type LobbySearchResult struct {
	Request    LobbySearchRequest `json:"request"`
	Lobbies    []LobbyData        `json:"lobbies"`
	NextCursor string             `json:"next_cursor,omitempty"`
}
