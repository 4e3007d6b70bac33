package session

import "time"

// elapsedSince is now-then clamped at zero. Clock steps backwards (or a
// resumed process) must never run timers in reverse.
func elapsedSince(then, now time.Time) time.Duration {
	if then.IsZero() {
		return 0
	}
	d := now.Sub(then)
	if d < 0 {
		return 0
	}
	return d
}

func saturatingSub(a, b time.Duration) time.Duration {
	if b >= a {
		return 0
	}
	return a - b
}

// repeatingTimer fires every period of accumulated tick time.
type repeatingTimer struct {
	period  time.Duration
	elapsed time.Duration
	last    time.Time
}

func newRepeatingTimer(period time.Duration, start time.Time) repeatingTimer {
	return repeatingTimer{period: period, last: start}
}

// tick advances the timer to now and reports whether at least one period
// completed. Missed periods collapse into a single fire.
func (t *repeatingTimer) tick(now time.Time) bool {
	t.elapsed += elapsedSince(t.last, now)
	if now.After(t.last) || t.last.IsZero() {
		t.last = now
	}
	if t.elapsed < t.period {
		return false
	}
	if t.period <= 0 {
		t.elapsed = 0
	} else {
		t.elapsed %= t.period
	}
	return true
}
