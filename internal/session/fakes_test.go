package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"providence/internal/config"
	"providence/internal/hostmsg"
)

type fakeConn struct {
	mu       sync.Mutex
	nextID   hostmsg.RequestID
	requests []hostmsg.Request
	sent     []hostmsg.Message
	queue    []hostmsg.Event
	sendErr  error
	closed   bool
}

func (c *fakeConn) Request(req hostmsg.Request) (hostmsg.RequestID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.requests = append(c.requests, req)
	return c.nextID, nil
}

func (c *fakeConn) Send(msg hostmsg.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Drain() []hostmsg.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.queue
	c.queue = nil
	return out
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) push(evs ...hostmsg.Event) {
	c.mu.Lock()
	c.queue = append(c.queue, evs...)
	c.mu.Unlock()
}

func (c *fakeConn) lastRequest() hostmsg.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return nil
	}
	return c.requests[len(c.requests)-1]
}

type fakeRunner struct {
	mu   sync.Mutex
	cmds []GameCommand
}

func (r *fakeRunner) Handle(cmd GameCommand) {
	r.mu.Lock()
	r.cmds = append(r.cmds, cmd)
	r.mu.Unlock()
}

func (r *fakeRunner) commands() []GameCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]GameCommand, len(r.cmds))
	copy(out, r.cmds)
	return out
}

func (r *fakeRunner) count(name string) int {
	n := 0
	for _, c := range r.commands() {
		if c.CommandName() == name {
			n++
		}
	}
	return n
}

type countingSender struct {
	sent []hostmsg.Message
	err  error
}

func (s *countingSender) Send(msg hostmsg.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

var errSendFailed = errors.New("send failed")

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		ReconnectInterval:     5 * time.Second,
		TokenRequestInterval:  3 * time.Second,
		AckRequestTimeout:     15 * time.Second,
		AckRequestTimerBuffer: time.Second,
	}
}

type sessionHarness struct {
	s      *Session
	conns  []*fakeConn
	runner *fakeRunner
}

func (h *sessionHarness) conn() *fakeConn { return h.conns[len(h.conns)-1] }

func newHarness(t *testing.T) *sessionHarness {
	t.Helper()
	h := &sessionHarness{runner: &fakeRunner{}}
	factory := func() HostConn {
		c := &fakeConn{}
		h.conns = append(h.conns, c)
		return c
	}
	h.s = New(testSessionConfig(), "client-1", factory, h.runner, t0)
	return h
}

// connected returns a harness whose transport has reported Connected at t0.
func connected(t *testing.T) *sessionHarness {
	t.Helper()
	h := newHarness(t)
	h.conn().push(hostmsg.ConnectionReport{Kind: hostmsg.ReportConnected})
	h.s.Tick(t0)
	if got := h.s.Snapshot().Status; got != "connected" {
		t.Fatalf("expected connected, got %s", got)
	}
	return h
}

func eventNames(buf *EventBuffer) []string {
	var names []string
	for _, ev := range buf.ReplayAfter("") {
		names = append(names, ev.Event)
	}
	return names
}

func countEvents(buf *EventBuffer, name string) int {
	n := 0
	for _, ev := range buf.ReplayAfter("") {
		if ev.Event == name {
			n++
		}
	}
	return n
}
