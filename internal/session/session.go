package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"providence/internal/config"
	"providence/internal/hostmsg"
)

const defaultSearchPageSize = 20

// Session owns every piece of client session state. All of it is mutated
// from Tick only; other goroutines go through Submit, PostRunnerReport,
// Snapshot and Events.
type Session struct {
	clientID string

	sup     *Supervisor
	tracker *RequestTracker
	ack     *AckTimer
	orch    *Orchestrator
	lobbies LobbyCache
	runner  GameRunner

	events *EventBuffer
	mail   mailbox

	lastStarter StarterView

	snapMu sync.RWMutex
	snap   Snapshot
}

func New(cfg config.SessionConfig, clientID string, factory HostConnFactory, runner GameRunner, now time.Time) *Session {
	s := &Session{
		clientID: clientID,
		tracker:  NewRequestTracker(),
		ack:      NewAckTimer(cfg.AckRequestTimeout, cfg.AckRequestTimerBuffer),
		runner:   runner,
		events:   NewEventBuffer(clientID, 500),
	}
	s.orch = NewOrchestrator(cfg.TokenRequestInterval, s.dispatch)
	s.sup = NewSupervisor(factory, cfg.ReconnectInterval, now)
	s.lastStarter = s.orch.View()
	s.publishSnapshot(now)
	return s
}

func (s *Session) Events() *EventBuffer { return s.events }

// Run ticks the session until ctx is done, then closes the transport.
func (s *Session) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

func (s *Session) shutdown() {
	for _, item := range s.mail.close() {
		if env, ok := item.(commandEnvelope); ok {
			env.reply <- commandReply{err: ErrSessionStopped}
		}
	}
	if conn := s.sup.Conn(); conn != nil {
		conn.Close()
	}
	s.events.Close()
	log.Info().Msg("session stopped")
}

// Tick runs one pass: reconnect timer, transport queue, mailbox, ack timer,
// game start drain, then a fresh snapshot.
func (s *Session) Tick(now time.Time) {
	metricTicks.Add(1)
	if s.sup.Tick(now) {
		s.events.Append(EventHostClientConstructed, map[string]any{"status": s.sup.Status().String()})
	}
	for _, ev := range s.sup.Conn().Drain() {
		s.handleHostEvent(ev, now)
	}
	for _, item := range s.mail.drain() {
		switch v := item.(type) {
		case commandEnvelope:
			res, err := s.apply(v.cmd, now)
			v.reply <- commandReply{result: res, err: err}
		case RunnerReport:
			s.handleRunnerReport(v)
		}
		s.publishStarterIfChanged()
	}
	expired, focus := s.ack.Tick(now)
	if expired {
		s.events.Append(EventAckRequestCleared, map[string]any{"reason": "expired"})
	}
	if focus {
		s.events.Append(EventFocusRequested, map[string]any{"reason": "ack_request_midpoint"})
	}
	s.orch.Tick(now, s.requestConnectToken)
	s.publishStarterIfChanged()
	s.publishSnapshot(now)
}

func (s *Session) handleHostEvent(ev hostmsg.Event, now time.Time) {
	switch msg := ev.(type) {
	case hostmsg.ConnectionReport:
		s.handleReport(msg)
	case hostmsg.LobbyStateUpdate:
		s.lobbies.SetDisplay(msg.Lobby)
		s.events.Append(EventLobbyDisplay, msg.Lobby)
	case hostmsg.LobbyLeave:
		if s.lobbies.ClearDisplay(msg.LobbyID) {
			s.events.Append(EventLobbyDisplay, nil)
		} else {
			s.mismatch("lobby_leave", "lobby_id", uint64(msg.LobbyID))
		}
		if s.ack.ClearIfLobby(msg.LobbyID) {
			s.events.Append(EventAckRequestCleared, map[string]any{"reason": "lobby_left", "lobby_id": msg.LobbyID})
		}
	case hostmsg.PendingLobbyAckRequest:
		if s.ack.Set(msg.LobbyID, now) {
			s.events.Append(EventFocusRequested, map[string]any{"reason": "ack_request"})
		}
		s.events.Append(EventAckRequest, map[string]any{"lobby_id": msg.LobbyID})
	case hostmsg.PendingLobbyAckFail:
		if s.ack.ClearIfLobby(msg.LobbyID) {
			s.events.Append(EventAckRequestCleared, map[string]any{"reason": "ack_failed", "lobby_id": msg.LobbyID})
		} else {
			s.mismatch("pending_lobby_ack_fail", "lobby_id", uint64(msg.LobbyID))
		}
	case hostmsg.GameStart:
		if s.ack.Clear() {
			s.events.Append(EventAckRequestCleared, map[string]any{"reason": "game_start"})
		}
		s.orch.OnGameStart(msg)
	case hostmsg.GameAborted:
		s.orch.OnGameAborted(msg.GameID)
	case hostmsg.GameOver:
		s.orch.OnGameOver(msg.GameID)
		s.events.Append(EventGameOver, GameOverEvent{GameID: msg.GameID, Report: msg.Report})
	case hostmsg.RequestAck:
		s.resolve(msg.RequestID, OutcomeSuccess)
	case hostmsg.RequestReject:
		log.Info().Uint64("request_id", uint64(msg.RequestID)).Str("reason", msg.Reason).Msg("request rejected by host")
		s.resolve(msg.RequestID, OutcomeFailure)
	case hostmsg.RequestResponse:
		if !s.resolve(msg.RequestID, OutcomeSuccess) {
			return
		}
		s.handleResponse(msg.Response)
	case hostmsg.SendFailed:
		s.resolve(msg.RequestID, OutcomeFailure)
	case hostmsg.ResponseLost:
		s.resolve(msg.RequestID, OutcomeFailure)
	default:
		log.Warn().Msgf("unhandled host event %T", ev)
	}
	s.publishStarterIfChanged()
}

func (s *Session) handleReport(report hostmsg.ConnectionReport) {
	prev, aborted := s.sup.HandleReport(report)
	status := s.sup.Status()
	if prev != status {
		s.events.Append(EventConnectionStatus, ConnectionStatusEvent{
			Status: status.String(),
			Report: report.Kind.String(),
		})
	}
	for _, id := range aborted {
		s.resolve(id, OutcomeFailure)
	}
	if status == StatusDead {
		for _, ended := range s.tracker.ForceClearAll() {
			s.requestEnded(ended)
		}
	}
	if status != StatusConnected {
		s.connectionLost()
	}
}

func (s *Session) connectionLost() {
	s.orch.OnConnectionLost()
	if s.ack.Clear() {
		s.events.Append(EventAckRequestCleared, map[string]any{"reason": "connection_lost"})
	}
	if s.lobbies.ClearAnyDisplay() {
		s.events.Append(EventLobbyDisplay, nil)
	}
}

func (s *Session) handleResponse(resp hostmsg.Response) {
	switch r := resp.(type) {
	case hostmsg.ConnectTokenResponse:
		s.orch.OnConnectToken(r.GameID, r.Token)
	case hostmsg.LobbySearchResponse:
		if s.lobbies.SetPage(r.Result) {
			s.events.Append(EventLobbyPage, r.Result)
		} else {
			log.Debug().Msg("stale lobby search result dropped")
		}
	}
}

func (s *Session) handleRunnerReport(report RunnerReport) {
	switch r := report.(type) {
	case TokenRequested:
		s.orch.OnTokenRequested(r.GameID)
	case GameEnded:
		s.orch.OnRunnerEnded(r.GameID)
	case GameAbortedByRunner:
		s.orch.OnRunnerAborted(r.GameID)
	case LocalGameEnded:
		s.orch.OnLocalEnded(r.GameID)
		s.events.Append(EventGameOver, GameOverEvent{GameID: r.GameID, Local: true, Report: r.Report})
	case LocalGameAborted:
		s.orch.OnLocalAborted(r.GameID)
	}
}

func (s *Session) resolve(id hostmsg.RequestID, outcome Outcome) bool {
	ended, ok := s.tracker.Resolve(id, outcome)
	if !ok {
		s.mismatch("request_signal", "request_id", uint64(id))
		return false
	}
	s.requestEnded(ended)
	return true
}

func (s *Session) requestEnded(ended RequestEnded) {
	s.events.Append(EventRequestEnded, ended)
	if ended.Kind == KindConnectToken && ended.Outcome == OutcomeFailure {
		s.orch.OnConnectTokenFailed()
	}
}

func (s *Session) mismatch(what, field string, id uint64) {
	metricProtocolMismatches.Add(1)
	log.Warn().Str("signal", what).Uint64(field, id).Msg("signal does not match client state, dropped")
}

func (s *Session) dispatch(cmd GameCommand) {
	data := map[string]any{"command": cmd.CommandName()}
	switch c := cmd.(type) {
	case StartGame:
		data["game_id"] = c.GameID
	case StartLocalGame:
		data["game_id"] = c.Pack.GameID
	}
	s.events.Append(EventGameCommand, data)
	s.runner.Handle(cmd)
}

func (s *Session) publishStarterIfChanged() {
	v := s.orch.View()
	if starterViewEqual(v, s.lastStarter) {
		return
	}
	s.lastStarter = v
	s.events.Append(EventStarter, v)
}

func starterViewEqual(a, b StarterView) bool {
	if a.HasStarter != b.HasStarter || a.GameID != b.GameID ||
		a.TokenCached != b.TokenCached || a.NeedTokenFetch != b.NeedTokenFetch {
		return false
	}
	if a.Running == nil || b.Running == nil {
		return a.Running == b.Running
	}
	return *a.Running == *b.Running
}

// issueRequest sends req if no request of kind is in flight and the host is
// reachable.
func (s *Session) issueRequest(kind RequestKind, req hostmsg.Request, now time.Time) (hostmsg.RequestID, error) {
	if s.tracker.Has(kind) {
		metricRequestsRejected.Add(1)
		log.Warn().Str("kind", kind.String()).Msg("request rejected, one already pending")
		return 0, ErrRequestPending
	}
	if s.sup.Status() != StatusConnected {
		return 0, ErrNotConnected
	}
	id, err := s.sup.Conn().Request(req)
	if err != nil {
		return 0, err
	}
	if err := s.tracker.Add(kind, id, now); err != nil {
		return 0, err
	}
	log.Debug().Str("kind", kind.String()).Uint64("request_id", uint64(id)).Msg("request issued")
	return id, nil
}

func (s *Session) requestConnectToken(id hostmsg.GameID, now time.Time) error {
	_, err := s.issueRequest(KindConnectToken, hostmsg.GetConnectToken{GameID: id}, now)
	return err
}

func (s *Session) apply(cmd Command, now time.Time) (CommandResult, error) {
	switch c := cmd.(type) {
	case JoinLobbyCommand:
		id, err := s.JoinLobby(c.LobbyID, c.Password, now)
		return CommandResult{RequestID: id}, err
	case MakeLobbyCommand:
		id, err := s.MakeLobby(c.Name, c.MaxPlayers, c.Password, now)
		return CommandResult{RequestID: id}, err
	case LeaveLobbyCommand:
		id, err := s.LeaveLobby(now)
		return CommandResult{RequestID: id}, err
	case LaunchLobbyCommand:
		id, err := s.LaunchLobby(now)
		return CommandResult{RequestID: id}, err
	case SearchLobbiesCommand:
		id, err := s.SearchLobbies(c.Request, now)
		return CommandResult{RequestID: id}, err
	case AckLobbyCommand:
		return CommandResult{}, s.AckLobby()
	case NackLobbyCommand:
		return CommandResult{}, s.NackLobby()
	case StartLocalGameCommand:
		id, err := s.StartLocalGame(c.Pack)
		return CommandResult{GameID: id}, err
	case EndGameCommand:
		return CommandResult{}, s.EndGame()
	default:
		return CommandResult{}, ErrUnknownCommand
	}
}

// The operations below must run on the tick goroutine. Use Submit elsewhere.

func (s *Session) JoinLobby(id hostmsg.LobbyID, password string, now time.Time) (hostmsg.RequestID, error) {
	if id == 0 {
		return 0, ErrInvalidRequest
	}
	if _, ok := s.lobbies.Display(); ok {
		return 0, ErrAlreadyInLobby
	}
	return s.issueRequest(KindJoinLobby, hostmsg.JoinLobby{LobbyID: id, Password: password}, now)
}

func (s *Session) MakeLobby(name string, maxPlayers int, password string, now time.Time) (hostmsg.RequestID, error) {
	name = strings.TrimSpace(name)
	if name == "" || maxPlayers <= 0 {
		return 0, ErrInvalidRequest
	}
	if _, ok := s.lobbies.Display(); ok {
		return 0, ErrAlreadyInLobby
	}
	return s.issueRequest(KindMakeLobby, hostmsg.MakeLobby{Name: name, MaxPlayers: maxPlayers, Password: password}, now)
}

func (s *Session) LeaveLobby(now time.Time) (hostmsg.RequestID, error) {
	lobby, ok := s.lobbies.Display()
	if !ok {
		return 0, ErrNotInLobby
	}
	return s.issueRequest(KindLeaveLobby, hostmsg.LeaveLobby{LobbyID: lobby.ID}, now)
}

func (s *Session) LaunchLobby(now time.Time) (hostmsg.RequestID, error) {
	lobby, ok := s.lobbies.Display()
	if !ok {
		return 0, ErrNotInLobby
	}
	if _, pending := s.ack.Current(); pending {
		return 0, ErrAckRequestActive
	}
	return s.issueRequest(KindLaunchLobby, hostmsg.LaunchLobbyGame{LobbyID: lobby.ID}, now)
}

func (s *Session) SearchLobbies(req hostmsg.LobbySearchRequest, now time.Time) (hostmsg.RequestID, error) {
	if req.PageSize <= 0 {
		req.PageSize = defaultSearchPageSize
	}
	id, err := s.issueRequest(KindSearchLobbies, hostmsg.LobbySearch{Request: req}, now)
	if err != nil {
		return 0, err
	}
	s.lobbies.SetPageRequest(req)
	return id, nil
}

func (s *Session) AckLobby() error {
	if s.sup.Status() != StatusConnected {
		return ErrNotConnected
	}
	return s.ack.Ack(s.sup.Conn())
}

func (s *Session) NackLobby() error {
	if s.sup.Status() != StatusConnected {
		return ErrNotConnected
	}
	return s.ack.Nack(s.sup.Conn())
}

func (s *Session) StartLocalGame(pack LaunchPack) (hostmsg.GameID, error) {
	return s.orch.StartLocal(pack)
}

// EndGame closes a finished game, typically one showing its game-over screen.
func (s *Session) EndGame() error {
	return s.orch.EndGame()
}
