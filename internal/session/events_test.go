package session

import "testing"

func TestEventBufferOrderAndReplay(t *testing.T) {
	buf := NewEventBuffer("c1", 10)
	ev1 := buf.Append("a", map[string]any{"n": 1})
	ev2 := buf.Append("b", map[string]any{"n": 2})
	ev3 := buf.Append("c", map[string]any{"n": 3})

	if ev1.EventID != "1" || ev2.EventID != "2" || ev3.EventID != "3" {
		t.Fatalf("unexpected event ids: %s %s %s", ev1.EventID, ev2.EventID, ev3.EventID)
	}
	if ev1.ClientID != "c1" {
		t.Fatalf("expected client id on event, got %q", ev1.ClientID)
	}

	replay := buf.ReplayAfter("1")
	if len(replay) != 2 {
		t.Fatalf("expected 2 replay events, got %d", len(replay))
	}
	if replay[0].EventID != "2" || replay[1].EventID != "3" {
		t.Fatalf("unexpected replay order: %+v", replay)
	}
}

func TestEventBufferTrimsAndFansOut(t *testing.T) {
	buf := NewEventBuffer("c1", 2)
	ch := buf.Subscribe()
	buf.Append("a", nil)
	buf.Append("b", nil)
	buf.Append("c", nil)

	if got := buf.ReplayAfter(""); len(got) != 2 || got[0].Event != "b" {
		t.Fatalf("unexpected buffer contents: %+v", got)
	}
	for _, want := range []string{"a", "b", "c"} {
		ev := <-ch
		if ev.Event != want {
			t.Fatalf("expected %s, got %s", want, ev.Event)
		}
	}
	buf.Close()
	if _, ok := <-ch; ok {
		t.Fatal("subscriber channel should be closed")
	}
	if ev := buf.Append("d", nil); ev.EventID != "" {
		t.Fatal("append after close should be ignored")
	}
}
