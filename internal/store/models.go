package store

import (
	"encoding/json"
	"time"
)

type GameReport struct {
	ID        string          `json:"id"`
	ClientID  string          `json:"client_id"`
	GameID    string          `json:"game_id"`
	Local     bool            `json:"local"`
	Report    json.RawMessage `json:"report,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type SessionEvent struct {
	ID        string          `json:"id"`
	ClientID  string          `json:"client_id"`
	Event     string          `json:"event"`
	EventID   string          `json:"event_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
