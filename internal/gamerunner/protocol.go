package gamerunner

import (
	"encoding/json"

	"providence/internal/hostmsg"
)

// Lines written to an instance's stdin.
const (
	LineStart      = "start"
	LineStartLocal = "start_local"
	LineToken      = "connect_token"
	LineEnd        = "end"
)

// Lines read from an instance's stdout.
const (
	ReportRequestConnectToken = "request_connect_token"
	ReportGameOver            = "game_over"
)

// StartPayload is one instruction for a game instance.
type StartPayload struct {
	Type       string                     `json:"type"`
	InstanceID string                     `json:"instance_id"`
	GameID     hostmsg.GameID             `json:"game_id"`
	Token      hostmsg.ServerConnectToken `json:"connect_token,omitempty"`
	StartInfo  hostmsg.GameStartInfo      `json:"start_info,omitempty"`
	Config     json.RawMessage            `json:"config,omitempty"`
}

// InstanceReport is one line reported by a game instance.
type InstanceReport struct {
	Type   string                 `json:"type"`
	GameID hostmsg.GameID         `json:"game_id"`
	Report hostmsg.GameOverReport `json:"report,omitempty"`
}
