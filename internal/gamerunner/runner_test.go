package gamerunner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"providence/internal/hostmsg"
	"providence/internal/session"
)

type fakeInstance struct {
	mu        sync.Mutex
	delivered []StartPayload
	stops     []bool
	reports   chan InstanceReport
	err       error
	closeOnce sync.Once
}

func (f *fakeInstance) Deliver(p StartPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, p)
	return nil
}

func (f *fakeInstance) Stop(graceful bool) {
	f.mu.Lock()
	f.stops = append(f.stops, graceful)
	f.mu.Unlock()
	f.exit(nil)
}

func (f *fakeInstance) exit(err error) {
	f.closeOnce.Do(func() {
		f.err = err
		close(f.reports)
	})
}

func (f *fakeInstance) Reports() <-chan InstanceReport { return f.reports }
func (f *fakeInstance) Err() error                     { return f.err }

func (f *fakeInstance) deliveries() []StartPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]StartPayload, len(f.delivered))
	copy(out, f.delivered)
	return out
}

type fakeLauncher struct {
	mu        sync.Mutex
	instances []*fakeInstance
	firsts    []StartPayload
	err       error
}

func (l *fakeLauncher) Launch(_ context.Context, first StartPayload) (Instance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	inst := &fakeInstance{reports: make(chan InstanceReport, 8)}
	l.instances = append(l.instances, inst)
	l.firsts = append(l.firsts, first)
	return inst, nil
}

func (l *fakeLauncher) launched() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.instances)
}

func (l *fakeLauncher) instance(i int) *fakeInstance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.instances[i]
}

type reportSink struct {
	ch chan session.RunnerReport
}

func (s *reportSink) PostRunnerReport(r session.RunnerReport) error {
	s.ch <- r
	return nil
}

func (s *reportSink) next(t *testing.T) session.RunnerReport {
	t.Helper()
	select {
	case r := <-s.ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for runner report")
		return nil
	}
}

func startRunner(t *testing.T, l Launcher) (*Runner, *reportSink) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sink := &reportSink{ch: make(chan session.RunnerReport, 8)}
	r := New(l)
	r.Start(ctx, sink)
	return r, sink
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunnerStartsGameAndDeliversFreshToken(t *testing.T) {
	l := &fakeLauncher{}
	r, sink := startRunner(t, l)

	r.Handle(session.StartGame{GameID: 9, Token: "tok-1", StartInfo: hostmsg.GameStartInfo(`{"a":1}`)})
	waitFor(t, func() bool { return l.launched() == 1 })
	first := l.firsts[0]
	if first.Type != LineStart || first.GameID != 9 || first.Token != "tok-1" || first.InstanceID == "" {
		t.Fatalf("unexpected first payload: %+v", first)
	}

	inst := l.instance(0)
	inst.reports <- InstanceReport{Type: ReportRequestConnectToken, GameID: 9}
	if got, ok := sink.next(t).(session.TokenRequested); !ok || got.GameID != 9 {
		t.Fatalf("expected token request, got %#v", got)
	}

	r.Handle(session.StartGame{GameID: 9, Token: "tok-2"})
	waitFor(t, func() bool { return len(inst.deliveries()) == 1 })
	if d := inst.deliveries()[0]; d.Type != LineToken || d.Token != "tok-2" {
		t.Fatalf("unexpected delivery: %+v", d)
	}
	if l.launched() != 1 {
		t.Fatal("restart must not launch a second instance")
	}

	inst.exit(nil)
	if got, ok := sink.next(t).(session.GameEnded); !ok || got.GameID != 9 {
		t.Fatalf("expected ended, got %#v", got)
	}
}

func TestRunnerAbortReportsAborted(t *testing.T) {
	l := &fakeLauncher{}
	r, sink := startRunner(t, l)

	r.Handle(session.AbortGame{})
	r.Handle(session.StartGame{GameID: 4, Token: "t"})
	waitFor(t, func() bool { return l.launched() == 1 })
	r.Handle(session.AbortGame{})

	if got, ok := sink.next(t).(session.GameAbortedByRunner); !ok || got.GameID != 4 {
		t.Fatalf("expected aborted, got %#v", got)
	}
	inst := l.instance(0)
	inst.mu.Lock()
	stops := append([]bool(nil), inst.stops...)
	inst.mu.Unlock()
	if len(stops) != 1 || stops[0] {
		t.Fatalf("expected one forced stop, got %v", stops)
	}
}

func TestRunnerLocalGameReportsResult(t *testing.T) {
	l := &fakeLauncher{}
	r, sink := startRunner(t, l)

	r.Handle(session.StartLocalGame{Pack: session.LaunchPack{GameID: 1 << 63, Config: []byte(`{"bots":2}`)}})
	waitFor(t, func() bool { return l.launched() == 1 })
	if first := l.firsts[0]; first.Type != LineStartLocal || string(first.Config) != `{"bots":2}` {
		t.Fatalf("unexpected local payload: %+v", first)
	}
	inst := l.instance(0)
	inst.reports <- InstanceReport{Type: ReportGameOver, Report: hostmsg.GameOverReport(`{"winner":1}`)}
	r.Handle(session.EndGame{})

	got, ok := sink.next(t).(session.LocalGameEnded)
	if !ok || got.GameID != 1<<63 || string(got.Report) != `{"winner":1}` {
		t.Fatalf("expected local game end with report, got %#v", got)
	}
}

func TestRunnerCrashCountsAsAbort(t *testing.T) {
	l := &fakeLauncher{}
	r, sink := startRunner(t, l)
	r.Handle(session.StartGame{GameID: 2, Token: "t"})
	waitFor(t, func() bool { return l.launched() == 1 })
	l.instance(0).exit(errors.New("exit status 2"))
	if _, ok := sink.next(t).(session.GameAbortedByRunner); !ok {
		t.Fatal("expected aborted report for crashed instance")
	}
}

func TestRunnerLaunchFailureReportsAbort(t *testing.T) {
	l := &fakeLauncher{err: ErrNoBinary}
	r, sink := startRunner(t, l)
	r.Handle(session.StartLocalGame{Pack: session.LaunchPack{GameID: 5}})
	if got, ok := sink.next(t).(session.LocalGameAborted); !ok || got.GameID != 5 {
		t.Fatalf("expected local abort, got %#v", got)
	}
}

func TestRunnerAbortSurvivesFullQueue(t *testing.T) {
	l := &fakeLauncher{}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sink := &reportSink{ch: make(chan session.RunnerReport, 8)}
	r := New(l)

	for i := 0; i < 40; i++ {
		r.Handle(session.StartGame{GameID: 9, Token: "t"})
	}
	r.Handle(session.AbortGame{})
	r.Start(ctx, sink)

	if got, ok := sink.next(t).(session.GameAbortedByRunner); !ok || got.GameID != 9 {
		t.Fatalf("expected aborted, got %#v", got)
	}
	if l.launched() != 1 {
		t.Fatalf("expected one launch, got %d", l.launched())
	}
}

func TestRunnerAbortBeforeQueuedStartIsNoop(t *testing.T) {
	l := &fakeLauncher{}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sink := &reportSink{ch: make(chan session.RunnerReport, 8)}
	r := New(l)

	r.Handle(session.AbortGame{})
	r.Handle(session.StartGame{GameID: 3, Token: "t"})
	r.Start(ctx, sink)

	waitFor(t, func() bool { return l.launched() == 1 })
	time.Sleep(20 * time.Millisecond)
	inst := l.instance(0)
	inst.mu.Lock()
	stops := len(inst.stops)
	inst.mu.Unlock()
	if stops != 0 {
		t.Fatalf("abort handed in before the start must not stop it, stops=%d", stops)
	}
}
