package session

import (
	"errors"
	"testing"
	"time"

	"providence/internal/hostmsg"
)

func TestAckTimerDisplayCountdownIsMonotonic(t *testing.T) {
	timeout, buffer := 15*time.Second, time.Second
	timer := NewAckTimer(timeout, buffer)
	timer.Set(9, t0)

	prev := timer.TimeRemainingForDisplay()
	if prev != timeout-buffer {
		t.Fatalf("expected %s on set, got %s", timeout-buffer, prev)
	}
	var zeroAt time.Duration = -1
	for step := time.Duration(0); step <= 16*time.Second; step += 700 * time.Millisecond {
		timer.Tick(t0.Add(step))
		got := timer.TimeRemainingForDisplay()
		if got > prev {
			t.Fatalf("display time went up at %s: %s > %s", step, got, prev)
		}
		if got == 0 && zeroAt < 0 {
			zeroAt = step
		}
		prev = got
	}
	if zeroAt < 0 || zeroAt > timeout-buffer {
		t.Fatalf("display reached zero at %s, want <= %s", zeroAt, timeout-buffer)
	}
}

func TestAckTimerSameInstantTickDoesNotAdvance(t *testing.T) {
	timer := NewAckTimer(10*time.Second, 0)
	timer.Set(1, t0)
	timer.Tick(t0)
	if got := timer.Remaining(); got != 10*time.Second {
		t.Fatalf("expected untouched timer, got %s", got)
	}
}

func TestAckTimerToleratesClockGoingBackwards(t *testing.T) {
	timer := NewAckTimer(10*time.Second, 0)
	timer.Set(1, t0)
	timer.Tick(t0.Add(4 * time.Second))
	timer.Tick(t0.Add(2 * time.Second))
	if got := timer.Remaining(); got != 6*time.Second {
		t.Fatalf("expected 6s remaining, got %s", got)
	}
	timer.Tick(t0.Add(5 * time.Second))
	if got := timer.Remaining(); got != 5*time.Second {
		t.Fatalf("expected 5s remaining, got %s", got)
	}
}

func TestAckTimerExpiresWithoutNack(t *testing.T) {
	timer := NewAckTimer(3*time.Second, time.Second)
	timer.Set(4, t0)
	if expired, _ := timer.Tick(t0.Add(2 * time.Second)); expired {
		t.Fatal("expired too early")
	}
	expired, _ := timer.Tick(t0.Add(3 * time.Second))
	if !expired {
		t.Fatal("expected expiry")
	}
	if _, ok := timer.Current(); ok {
		t.Fatal("expired request should be forgotten")
	}
	if err := timer.Nack(&countingSender{}); !errors.Is(err, ErrNoAckRequest) {
		t.Fatalf("expected ErrNoAckRequest, got %v", err)
	}
}

func TestAckTimerFocusFiresTwicePerRequest(t *testing.T) {
	timer := NewAckTimer(15*time.Second, time.Second)
	focuses := 0
	if timer.Set(2, t0) {
		focuses++
	}
	for step := 100 * time.Millisecond; step < 15*time.Second; step += 100 * time.Millisecond {
		_, focus := timer.Tick(t0.Add(step))
		if focus {
			if step < 7*time.Second {
				t.Fatalf("second focus fired before midpoint at %s", step)
			}
			focuses++
		}
	}
	if focuses != 2 {
		t.Fatalf("expected 2 focus intents, got %d", focuses)
	}
}

func TestAckTimerAckAndNackSendOnce(t *testing.T) {
	timer := NewAckTimer(15*time.Second, time.Second)
	timer.Set(11, t0)
	sender := &countingSender{}

	if err := timer.Ack(sender); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if err := timer.Ack(sender); !errors.Is(err, ErrAlreadyAcked) {
		t.Fatalf("expected ErrAlreadyAcked, got %v", err)
	}
	if err := timer.Nack(sender); err != nil {
		t.Fatalf("nack after ack: %v", err)
	}
	if err := timer.Nack(sender); !errors.Is(err, ErrAlreadyNacked) {
		t.Fatalf("expected ErrAlreadyNacked, got %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sender.sent))
	}
	if ack, ok := sender.sent[0].(hostmsg.AckPendingLobby); !ok || ack.LobbyID != 11 {
		t.Fatalf("unexpected first send: %#v", sender.sent[0])
	}
	if _, ok := sender.sent[1].(hostmsg.NackPendingLobby); !ok {
		t.Fatalf("unexpected second send: %#v", sender.sent[1])
	}
	req, ok := timer.Current()
	if !ok || !req.Acked || !req.Nacked {
		t.Fatalf("record should survive ack and nack: %+v ok=%v", req, ok)
	}
}

func TestAckTimerFailedSendCanBeRetried(t *testing.T) {
	timer := NewAckTimer(15*time.Second, time.Second)
	timer.Set(3, t0)
	sender := &countingSender{err: errSendFailed}
	if err := timer.Ack(sender); !errors.Is(err, errSendFailed) {
		t.Fatalf("expected send error, got %v", err)
	}
	sender.err = nil
	if err := timer.Ack(sender); err != nil {
		t.Fatalf("retry ack: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(sender.sent))
	}
}

func TestAckTimerSetResetsState(t *testing.T) {
	timer := NewAckTimer(15*time.Second, time.Second)
	timer.Set(3, t0)
	_ = timer.Ack(&countingSender{})
	timer.Tick(t0.Add(5 * time.Second))

	timer.Set(4, t0.Add(5*time.Second))
	req, _ := timer.Current()
	if req.LobbyID != 4 || req.Acked || req.Nacked {
		t.Fatalf("expected fresh request for lobby 4, got %+v", req)
	}
	if timer.Remaining() != 15*time.Second {
		t.Fatalf("expected full timeout, got %s", timer.Remaining())
	}
	if timer.ClearIfLobby(3) {
		t.Fatal("clear for another lobby should not match")
	}
	if !timer.ClearIfLobby(4) {
		t.Fatal("clear for lobby 4 should match")
	}
}

func TestAckTimerResendForSameLobbyStartsNewLifetime(t *testing.T) {
	timer := NewAckTimer(15*time.Second, time.Second)
	timer.Set(2, t0)
	_ = timer.Ack(&countingSender{})
	focuses := 0
	for step := time.Second; step <= 8*time.Second; step += time.Second {
		if _, focus := timer.Tick(t0.Add(step)); focus {
			focuses++
		}
	}
	if focuses != 1 {
		t.Fatalf("expected midpoint focus before re-send, got %d", focuses)
	}

	resent := t0.Add(8 * time.Second)
	if !timer.Set(2, resent) {
		t.Fatal("re-send for the same lobby should request focus")
	}
	req, _ := timer.Current()
	if req.Acked || !req.RequestTime.Equal(resent) || timer.Remaining() != 15*time.Second {
		t.Fatalf("expected a fresh lifetime, got %+v remaining=%s", req, timer.Remaining())
	}
	focuses = 0
	for step := time.Second; step <= 8*time.Second; step += time.Second {
		if _, focus := timer.Tick(resent.Add(step)); focus {
			focuses++
		}
	}
	if focuses != 1 {
		t.Fatalf("expected midpoint focus after re-send, got %d", focuses)
	}
}
