package session

import (
	"errors"
	"testing"
)

func TestTrackerAllowsOneRequestPerKind(t *testing.T) {
	tr := NewRequestTracker()
	if err := tr.Add(KindJoinLobby, 1, t0); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := tr.Add(KindJoinLobby, 2, t0); !errors.Is(err, ErrRequestPending) {
		t.Fatalf("expected ErrRequestPending, got %v", err)
	}
	p, ok := tr.Get(KindJoinLobby)
	if !ok || p.ID != 1 {
		t.Fatalf("expected request 1 to stay recorded, got %+v ok=%v", p, ok)
	}
	if len(tr.Snapshot()) != 1 {
		t.Fatalf("expected one pending request, got %d", len(tr.Snapshot()))
	}
	if err := tr.Add(KindMakeLobby, 3, t0); err != nil {
		t.Fatalf("other kind should be independent: %v", err)
	}
}

func TestTrackerResolveScansKinds(t *testing.T) {
	tr := NewRequestTracker()
	_ = tr.Add(KindJoinLobby, 1, t0)
	_ = tr.Add(KindConnectToken, 7, t0)

	ended, ok := tr.Resolve(7, OutcomeFailure)
	if !ok {
		t.Fatal("expected resolve to match")
	}
	if ended.Kind != KindConnectToken || ended.Outcome != OutcomeFailure {
		t.Fatalf("unexpected ended: %+v", ended)
	}
	if tr.Has(KindConnectToken) || !tr.Has(KindJoinLobby) {
		t.Fatal("only the matched kind should be removed")
	}
	if _, ok := tr.Resolve(7, OutcomeSuccess); ok {
		t.Fatal("second resolve of the same id should not match")
	}
}

func TestTrackerForceClearAllFailsEveryKind(t *testing.T) {
	tr := NewRequestTracker()
	_ = tr.Add(KindSearchLobbies, 4, t0)
	_ = tr.Add(KindJoinLobby, 2, t0)

	ended := tr.ForceClearAll()
	if len(ended) != 2 {
		t.Fatalf("expected 2 ended requests, got %d", len(ended))
	}
	if ended[0].Kind != KindJoinLobby || ended[1].Kind != KindSearchLobbies {
		t.Fatalf("unexpected order: %+v", ended)
	}
	for _, e := range ended {
		if e.Outcome != OutcomeFailure {
			t.Fatalf("expected failure, got %+v", e)
		}
	}
	for _, k := range allRequestKinds {
		if tr.Has(k) {
			t.Fatalf("kind %s still pending", k)
		}
	}
}
