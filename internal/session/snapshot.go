package session

import (
	"time"

	"providence/internal/hostmsg"
)

type AckView struct {
	AckRequest
	DisplayRemainingMS int64 `json:"display_remaining_ms"`
}

// Snapshot is a copy of the session state as of the end of a tick.
type Snapshot struct {
	ClientID  string                     `json:"client_id"`
	Status    string                     `json:"status"`
	Requests  map[string]PendingRequest  `json:"pending_requests"`
	Ack       *AckView                   `json:"ack_request,omitempty"`
	Lobby     *hostmsg.LobbyData         `json:"lobby,omitempty"`
	Page      *hostmsg.LobbySearchResult `json:"lobby_page,omitempty"`
	Starter   StarterView                `json:"starter"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

func (s *Session) Snapshot() Snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

func (s *Session) publishSnapshot(now time.Time) {
	snap := Snapshot{
		ClientID:  s.clientID,
		Status:    s.sup.Status().String(),
		Requests:  s.tracker.Snapshot(),
		Starter:   s.lastStarter,
		UpdatedAt: now,
	}
	if req, ok := s.ack.Current(); ok {
		snap.Ack = &AckView{
			AckRequest:         req,
			DisplayRemainingMS: s.ack.TimeRemainingForDisplay().Milliseconds(),
		}
	}
	if lobby, ok := s.lobbies.Display(); ok {
		snap.Lobby = &lobby
	}
	if page, ok := s.lobbies.Page(); ok {
		snap.Page = &page
	}
	s.snapMu.Lock()
	s.snap = snap
	s.snapMu.Unlock()
}
