package session

import (
	"errors"
	"testing"
	"time"

	"providence/internal/hostmsg"
)

type orchHarness struct {
	o         *Orchestrator
	cmds      []GameCommand
	tokenReqs []hostmsg.GameID
	reqErr    error
}

func newOrchHarness() *orchHarness {
	h := &orchHarness{}
	h.o = NewOrchestrator(3*time.Second, func(cmd GameCommand) { h.cmds = append(h.cmds, cmd) })
	return h
}

func (h *orchHarness) tick(now time.Time) {
	h.o.Tick(now, func(id hostmsg.GameID, _ time.Time) error {
		if h.reqErr != nil {
			return h.reqErr
		}
		h.tokenReqs = append(h.tokenReqs, id)
		return nil
	})
}

func (h *orchHarness) count(name string) int {
	n := 0
	for _, c := range h.cmds {
		if c.CommandName() == name {
			n++
		}
	}
	return n
}

func gameStart(id hostmsg.GameID, token string) hostmsg.GameStart {
	return hostmsg.GameStart{GameID: id, Token: hostmsg.ServerConnectToken(token), StartInfo: hostmsg.GameStartInfo(`{"map":"delta"}`)}
}

// running starts game id through a GameStart push and a drain tick.
func (h *orchHarness) running(t *testing.T, id hostmsg.GameID) {
	t.Helper()
	h.o.OnGameStart(gameStart(id, "tok-first"))
	h.tick(t0)
	if h.count("start") != 1 {
		t.Fatalf("expected game %d to start, cmds=%+v", id, h.cmds)
	}
}

func TestTokenIsConsumedOnce(t *testing.T) {
	h := newOrchHarness()
	h.o.OnGameStart(gameStart(7, "tok-7"))
	h.tick(t0)
	h.tick(t0.Add(time.Second))
	h.tick(t0.Add(2 * time.Second))

	if h.count("start") != 1 {
		t.Fatalf("expected exactly one start, got %d", h.count("start"))
	}
	start := h.cmds[0].(StartGame)
	if start.GameID != 7 || start.Token != "tok-7" || string(start.StartInfo) != `{"map":"delta"}` {
		t.Fatalf("unexpected start: %+v", start)
	}
	if _, ok := h.o.token.Peek(); ok {
		t.Fatal("token should have been taken")
	}

	// The runner ending the game must not let the drain reuse anything.
	h.o.OnRunnerEnded(7)
	h.tick(t0.Add(3 * time.Second))
	if h.count("start") != 1 {
		t.Fatalf("unexpected second start after game ended")
	}
}

func TestDuplicateGameStartForRunningGameIsIgnored(t *testing.T) {
	h := newOrchHarness()
	h.running(t, 5)
	before := h.o.token

	h.o.OnGameStart(gameStart(5, "tok-second"))
	h.tick(t0.Add(time.Second))

	if h.o.token != before {
		t.Fatalf("token cache changed: %+v -> %+v", before, h.o.token)
	}
	if len(h.cmds) != 1 {
		t.Fatalf("expected no further commands, got %+v", h.cmds)
	}
}

func TestGameStartForOtherGameAbortsRunningOne(t *testing.T) {
	h := newOrchHarness()
	h.running(t, 1)

	var cachedAtAbort bool
	h.o.dispatch = func(cmd GameCommand) {
		if _, ok := cmd.(AbortGame); ok {
			_, cachedAtAbort = h.o.token.Peek()
		}
		h.cmds = append(h.cmds, cmd)
	}
	h.o.OnGameStart(gameStart(2, "tok-2"))
	h.o.OnGameStart(gameStart(2, "tok-2b"))

	if h.count("abort") != 1 {
		t.Fatalf("expected exactly one abort, got %d", h.count("abort"))
	}
	if cachedAtAbort {
		t.Fatal("abort must precede caching the new token")
	}
	if id, ok := h.o.token.Peek(); !ok || id != 2 {
		t.Fatalf("expected token for game 2, got %d ok=%v", id, ok)
	}

	// No start until the runner confirms the old game is gone.
	h.tick(t0.Add(time.Second))
	if h.count("start") != 1 {
		t.Fatal("new game started before old one aborted")
	}
	h.o.OnRunnerAborted(1)
	h.tick(t0.Add(2 * time.Second))
	if h.count("start") != 2 || h.count("abort") != 1 {
		t.Fatalf("unexpected commands: %+v", h.cmds)
	}
	last := h.cmds[len(h.cmds)-1].(StartGame)
	if last.GameID != 2 || last.Token != "tok-2b" {
		t.Fatalf("unexpected start: %+v", last)
	}
}

func TestHostAbortClearsStarterAndAbortsRunningGame(t *testing.T) {
	h := newOrchHarness()
	h.running(t, 3)

	h.o.OnGameAborted(99)
	if !h.o.starter.HasStarter() || h.count("abort") != 0 {
		t.Fatal("abort for unknown game must be ignored")
	}
	h.o.OnGameAborted(3)
	if h.o.starter.HasStarter() {
		t.Fatal("starter should be cleared")
	}
	if h.count("abort") != 1 {
		t.Fatalf("expected abort, got %+v", h.cmds)
	}
	h.o.OnRunnerAborted(3)
	if h.count("abort") != 1 {
		t.Fatal("runner confirmation must not abort twice")
	}
	if h.o.View().Running != nil {
		t.Fatal("running game should be cleared")
	}
}

func TestGameOverKeepsGameRunning(t *testing.T) {
	h := newOrchHarness()
	h.running(t, 4)
	h.o.OnGameOver(4)
	if h.o.starter.HasStarter() {
		t.Fatal("starter should be cleared on game over")
	}
	if h.count("end") != 0 || h.o.View().Running == nil {
		t.Fatal("game over must not end the game")
	}
	if err := h.o.EndGame(); err != nil {
		t.Fatalf("end game: %v", err)
	}
	if h.count("end") != 1 {
		t.Fatal("expected end command")
	}
}

func TestMismatchedTokenIsDropped(t *testing.T) {
	h := newOrchHarness()
	h.o.starter.Set(8, hostmsg.GameStartInfo(`{}`))
	h.o.token.Set(9, "tok-9")
	h.tick(t0)
	if len(h.cmds) != 0 {
		t.Fatalf("unexpected commands: %+v", h.cmds)
	}
	if _, ok := h.o.token.Peek(); ok {
		t.Fatal("mismatched token should be dropped")
	}
}

func TestLocalGameRejectedWhileHostGamePending(t *testing.T) {
	h := newOrchHarness()
	h.o.starter.Set(8, hostmsg.GameStartInfo(`{}`))
	if _, err := h.o.StartLocal(LaunchPack{}); !errors.Is(err, ErrStarterPending) {
		t.Fatalf("expected ErrStarterPending, got %v", err)
	}
	h.o.OnConnectionLost()

	id, err := h.o.StartLocal(LaunchPack{})
	if err != nil {
		t.Fatalf("start local: %v", err)
	}
	if id != firstLocalGameID {
		t.Fatalf("unexpected local id %d", id)
	}
	if _, err := h.o.StartLocal(LaunchPack{}); !errors.Is(err, ErrGameRunning) {
		t.Fatalf("expected ErrGameRunning, got %v", err)
	}
	h.o.OnLocalEnded(id)
	next, err := h.o.StartLocal(LaunchPack{})
	if err != nil || next != firstLocalGameID+1 {
		t.Fatalf("expected next local id, got %d err=%v", next, err)
	}
}

func TestTokenRequestedByRunnerIsFetchedAndDelivered(t *testing.T) {
	h := newOrchHarness()
	h.running(t, 6)

	h.o.OnTokenRequested(6)
	h.tick(t0.Add(time.Second))
	if len(h.tokenReqs) != 1 || h.tokenReqs[0] != 6 {
		t.Fatalf("expected one token request for game 6, got %v", h.tokenReqs)
	}

	// A failed fetch retries no sooner than the retry interval.
	h.o.OnConnectTokenFailed()
	h.tick(t0.Add(2 * time.Second))
	if len(h.tokenReqs) != 1 {
		t.Fatalf("retried too early: %v", h.tokenReqs)
	}
	h.tick(t0.Add(4 * time.Second))
	if len(h.tokenReqs) != 2 {
		t.Fatalf("expected retry, got %v", h.tokenReqs)
	}

	h.o.OnConnectToken(6, "tok-fresh")
	h.tick(t0.Add(5 * time.Second))
	if h.count("start") != 2 {
		t.Fatalf("expected token delivery to running game, got %+v", h.cmds)
	}
	last := h.cmds[len(h.cmds)-1].(StartGame)
	if last.Token != "tok-fresh" {
		t.Fatalf("unexpected token %q", last.Token)
	}
	if v := h.o.View(); v.Running == nil || v.Running.NeedsToken {
		t.Fatalf("running game should be healthy again: %+v", v.Running)
	}
}

func TestTokenRequestDeferredWhileDisconnected(t *testing.T) {
	h := newOrchHarness()
	h.running(t, 6)
	h.o.OnTokenRequested(6)
	h.reqErr = ErrNotConnected
	h.tick(t0.Add(time.Second))
	h.reqErr = nil
	h.tick(t0.Add(1500 * time.Millisecond))
	if len(h.tokenReqs) != 1 {
		t.Fatalf("expected deferred request to be issued, got %v", h.tokenReqs)
	}
}

func TestConnectionLossClearsStarterUnconditionally(t *testing.T) {
	h := newOrchHarness()
	h.o.OnGameStart(gameStart(12, "tok"))
	h.o.OnConnectionLost()
	if h.o.starter.HasStarter() {
		t.Fatal("starter should be cleared")
	}
	h.tick(t0)
	if len(h.cmds) != 0 {
		t.Fatalf("no start expected without a starter: %+v", h.cmds)
	}
}

func TestRunnerAbortOfRunningGameEmitsOneAbort(t *testing.T) {
	h := newOrchHarness()
	h.running(t, 6)

	h.o.OnRunnerAborted(6)
	if h.count("abort") != 1 {
		t.Fatalf("expected one abort, got %+v", h.cmds)
	}
	if h.o.View().Running != nil {
		t.Fatal("running game should be cleared")
	}
	if h.o.starter.HasStarter() {
		t.Fatal("starter for the aborted game should be cleared")
	}
	h.o.OnRunnerAborted(6)
	if h.count("abort") != 1 {
		t.Fatal("abort for a game no longer running must be ignored")
	}
}

func TestLocalAbortOfRunningLocalGameEmitsOneAbort(t *testing.T) {
	h := newOrchHarness()
	id, err := h.o.StartLocal(LaunchPack{})
	if err != nil {
		t.Fatalf("start local: %v", err)
	}
	h.o.OnLocalAborted(id + 1)
	if h.count("abort") != 0 || h.o.View().Running == nil {
		t.Fatal("abort for another local game must be ignored")
	}
	h.o.OnLocalAborted(id)
	if h.count("abort") != 1 {
		t.Fatalf("expected one abort, got %+v", h.cmds)
	}
	if h.o.View().Running != nil {
		t.Fatal("running game should be cleared")
	}
}

func TestHostGameStartAbortsLocalGameWithSameID(t *testing.T) {
	h := newOrchHarness()
	if _, err := h.o.StartLocal(LaunchPack{GameID: 5}); err != nil {
		t.Fatalf("start local: %v", err)
	}
	h.o.OnGameStart(gameStart(5, "tok-host"))
	if h.count("abort") != 1 {
		t.Fatalf("local game must be aborted, cmds=%+v", h.cmds)
	}
	if id, ok := h.o.token.Peek(); !ok || id != 5 {
		t.Fatalf("expected host token cached for game 5, got %d ok=%v", id, ok)
	}

	h.tick(t0)
	if h.count("start") != 0 {
		t.Fatal("host game started before the local game was gone")
	}
	h.o.OnLocalAborted(5)
	if !h.o.starter.HasStarter() {
		t.Fatal("local abort must not clear the host starter")
	}
	h.tick(t0.Add(time.Second))
	if h.count("start") != 1 || h.count("abort") != 1 {
		t.Fatalf("unexpected commands: %+v", h.cmds)
	}
	start := h.cmds[len(h.cmds)-1].(StartGame)
	if start.GameID != 5 || start.Token != "tok-host" {
		t.Fatalf("unexpected start: %+v", start)
	}
	if r := h.o.View().Running; r == nil || r.Local || r.GameID != 5 {
		t.Fatalf("expected host game 5 running, got %+v", r)
	}
}

func TestHostGameStartAbortsRunningLocalGame(t *testing.T) {
	h := newOrchHarness()
	local, err := h.o.StartLocal(LaunchPack{})
	if err != nil {
		t.Fatalf("start local: %v", err)
	}
	h.o.OnGameStart(gameStart(12, "tok-12"))
	if h.count("abort") != 1 {
		t.Fatalf("expected abort of local game, cmds=%+v", h.cmds)
	}
	h.o.OnLocalEnded(local)
	h.tick(t0)
	if h.count("start") != 1 {
		t.Fatalf("expected host game start, cmds=%+v", h.cmds)
	}
	if start := h.cmds[len(h.cmds)-1].(StartGame); start.GameID != 12 {
		t.Fatalf("unexpected start: %+v", start)
	}
}
