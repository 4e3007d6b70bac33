package session

import (
	"context"
	"sync"

	"providence/internal/hostmsg"
)

// Command is a control operation submitted from outside the tick goroutine.
type Command interface {
	commandName() string
}

type JoinLobbyCommand struct {
	LobbyID  hostmsg.LobbyID `json:"lobby_id"`
	Password string          `json:"password,omitempty"`
}

type MakeLobbyCommand struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"max_players"`
	Password   string `json:"password,omitempty"`
}

type LeaveLobbyCommand struct{}

type LaunchLobbyCommand struct{}

type SearchLobbiesCommand struct {
	Request hostmsg.LobbySearchRequest `json:"request"`
}

type AckLobbyCommand struct{}

type NackLobbyCommand struct{}

type StartLocalGameCommand struct {
	Pack LaunchPack `json:"pack"`
}

type EndGameCommand struct{}

func (JoinLobbyCommand) commandName() string      { return "join_lobby" }
func (MakeLobbyCommand) commandName() string      { return "make_lobby" }
func (LeaveLobbyCommand) commandName() string     { return "leave_lobby" }
func (LaunchLobbyCommand) commandName() string    { return "launch_lobby" }
func (SearchLobbiesCommand) commandName() string  { return "search_lobbies" }
func (AckLobbyCommand) commandName() string       { return "ack_lobby" }
func (NackLobbyCommand) commandName() string      { return "nack_lobby" }
func (StartLocalGameCommand) commandName() string { return "start_local_game" }
func (EndGameCommand) commandName() string        { return "end_game" }

type CommandResult struct {
	RequestID hostmsg.RequestID `json:"request_id,omitempty"`
	GameID    hostmsg.GameID    `json:"game_id,omitempty"`
}

type commandReply struct {
	result CommandResult
	err    error
}

type commandEnvelope struct {
	cmd   Command
	reply chan commandReply
}

const maxMailbox = 1024

// mailbox carries runner reports and commands into the tick goroutine.
type mailbox struct {
	mu     sync.Mutex
	items  []any
	closed bool
}

func (m *mailbox) push(item any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrSessionStopped
	}
	if len(m.items) >= maxMailbox {
		return ErrMailboxOverflow
	}
	m.items = append(m.items, item)
	return nil
}

func (m *mailbox) drain() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items
	m.items = nil
	return items
}

func (m *mailbox) close() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	items := m.items
	m.items = nil
	return items
}

// Submit queues cmd for the next tick and waits for its result.
func (s *Session) Submit(ctx context.Context, cmd Command) (CommandResult, error) {
	env := commandEnvelope{cmd: cmd, reply: make(chan commandReply, 1)}
	if err := s.mail.push(env); err != nil {
		return CommandResult{}, err
	}
	select {
	case r := <-env.reply:
		return r.result, r.err
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	}
}

// PostRunnerReport never blocks; reports are applied on the next tick.
func (s *Session) PostRunnerReport(report RunnerReport) error {
	return s.mail.push(report)
}
