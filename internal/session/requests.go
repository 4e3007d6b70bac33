package session

import (
	"time"

	"github.com/rs/zerolog/log"

	"providence/internal/hostmsg"
)

type RequestKind int

const (
	KindJoinLobby RequestKind = iota
	KindMakeLobby
	KindLeaveLobby
	KindLaunchLobby
	KindSearchLobbies
	KindConnectToken
)

var allRequestKinds = []RequestKind{
	KindJoinLobby,
	KindMakeLobby,
	KindLeaveLobby,
	KindLaunchLobby,
	KindSearchLobbies,
	KindConnectToken,
}

func (k RequestKind) String() string {
	switch k {
	case KindJoinLobby:
		return "join_lobby"
	case KindMakeLobby:
		return "make_lobby"
	case KindLeaveLobby:
		return "leave_lobby"
	case KindLaunchLobby:
		return "launch_lobby"
	case KindSearchLobbies:
		return "search_lobbies"
	case KindConnectToken:
		return "connect_token"
	default:
		return "unknown"
	}
}

func (k RequestKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

func (o Outcome) String() string {
	if o == OutcomeSuccess {
		return "success"
	}
	return "failure"
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

type PendingRequest struct {
	ID          hostmsg.RequestID `json:"request_id"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

type RequestEnded struct {
	Kind    RequestKind       `json:"kind"`
	ID      hostmsg.RequestID `json:"request_id"`
	Outcome Outcome           `json:"outcome"`
}

// RequestTracker holds at most one in-flight request per kind.
type RequestTracker struct {
	pending map[RequestKind]PendingRequest
}

func NewRequestTracker() *RequestTracker {
	return &RequestTracker{pending: make(map[RequestKind]PendingRequest, len(allRequestKinds))}
}

func (t *RequestTracker) Has(kind RequestKind) bool {
	_, ok := t.pending[kind]
	return ok
}

func (t *RequestTracker) Get(kind RequestKind) (PendingRequest, bool) {
	p, ok := t.pending[kind]
	return p, ok
}

// Add records a request. Callers are expected to check Has first; a second
// add for the same kind is logged and ignored.
func (t *RequestTracker) Add(kind RequestKind, id hostmsg.RequestID, now time.Time) error {
	if existing, ok := t.pending[kind]; ok {
		metricRequestsRejected.Add(1)
		log.Warn().
			Str("kind", kind.String()).
			Uint64("request_id", uint64(id)).
			Uint64("pending_request_id", uint64(existing.ID)).
			Msg("request already pending for kind")
		return ErrRequestPending
	}
	t.pending[kind] = PendingRequest{ID: id, SubmittedAt: now}
	metricRequestsIssued.Add(1)
	return nil
}

// Resolve ends the request with the given id, whatever its kind.
func (t *RequestTracker) Resolve(id hostmsg.RequestID, outcome Outcome) (RequestEnded, bool) {
	for _, kind := range allRequestKinds {
		p, ok := t.pending[kind]
		if !ok || p.ID != id {
			continue
		}
		delete(t.pending, kind)
		if outcome == OutcomeFailure {
			metricRequestsFailed.Add(1)
		}
		return RequestEnded{Kind: kind, ID: id, Outcome: outcome}, true
	}
	log.Debug().
		Uint64("request_id", uint64(id)).
		Str("outcome", outcome.String()).
		Msg("no pending request for id")
	return RequestEnded{}, false
}

// ForceClearAll fails every pending request, in kind order.
func (t *RequestTracker) ForceClearAll() []RequestEnded {
	var ended []RequestEnded
	for _, kind := range allRequestKinds {
		p, ok := t.pending[kind]
		if !ok {
			continue
		}
		delete(t.pending, kind)
		metricRequestsFailed.Add(1)
		ended = append(ended, RequestEnded{Kind: kind, ID: p.ID, Outcome: OutcomeFailure})
	}
	return ended
}

// Snapshot copies the pending set keyed by kind name.
func (t *RequestTracker) Snapshot() map[string]PendingRequest {
	out := make(map[string]PendingRequest, len(t.pending))
	for kind, p := range t.pending {
		out[kind.String()] = p
	}
	return out
}
