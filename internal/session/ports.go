package session

import (
	"encoding/json"

	"providence/internal/hostmsg"
)

// HostConn is one transport handle to the host service. Implementations must
// never block: Request and Send enqueue, Drain hands over whatever arrived
// since the last call.
type HostConn interface {
	Request(req hostmsg.Request) (hostmsg.RequestID, error)
	Send(msg hostmsg.Message) error
	Drain() []hostmsg.Event
	Close()
}

// HostConnFactory constructs a fresh handle. It is called once at startup and
// again every time the previous handle is dead.
type HostConnFactory func() HostConn

// GameRunner receives game commands. Handle must not block; the runner
// reports back through Session.PostRunnerReport.
type GameRunner interface {
	Handle(cmd GameCommand)
}

type GameCommand interface {
	CommandName() string
}

// StartGame connects the runner to a host-issued game. For the game the
// runner already hosts it carries a fresh token to reconnect with.
type StartGame struct {
	GameID    hostmsg.GameID
	Token     hostmsg.ServerConnectToken
	StartInfo hostmsg.GameStartInfo
}

// LaunchPack configures a local-only game.
type LaunchPack struct {
	GameID hostmsg.GameID  `json:"game_id"`
	Config json.RawMessage `json:"config,omitempty"`
}

type StartLocalGame struct {
	Pack LaunchPack
}

type EndGame struct{}

type AbortGame struct{}

func (StartGame) CommandName() string      { return "start" }
func (StartLocalGame) CommandName() string { return "start_local" }
func (EndGame) CommandName() string        { return "end" }
func (AbortGame) CommandName() string      { return "abort" }

// RunnerReport is sent by the game runner back into the session.
type RunnerReport interface {
	isRunnerReport()
}

// TokenRequested means the running instance lost its game server and needs a
// new connect token.
type TokenRequested struct {
	GameID hostmsg.GameID
}

type GameEnded struct {
	GameID hostmsg.GameID
}

type GameAbortedByRunner struct {
	GameID hostmsg.GameID
}

// LocalGameEnded and LocalGameAborted come from a same-process local game.
type LocalGameEnded struct {
	GameID hostmsg.GameID
	Report hostmsg.GameOverReport
}

type LocalGameAborted struct {
	GameID hostmsg.GameID
}

func (TokenRequested) isRunnerReport()      {}
func (GameEnded) isRunnerReport()           {}
func (GameAbortedByRunner) isRunnerReport() {}
func (LocalGameEnded) isRunnerReport()      {}
func (LocalGameAborted) isRunnerReport()    {}
