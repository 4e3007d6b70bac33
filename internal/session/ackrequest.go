package session

import (
	"time"

	"github.com/rs/zerolog/log"

	"providence/internal/hostmsg"
)

// MessageSender is the fire-and-forget half of HostConn.
type MessageSender interface {
	Send(msg hostmsg.Message) error
}

// AckRequest is the host's prompt to confirm a pending lobby.
type AckRequest struct {
	LobbyID     hostmsg.LobbyID `json:"lobby_id"`
	RequestTime time.Time       `json:"request_time"`
	Acked       bool            `json:"acked"`
	Nacked      bool            `json:"nacked"`
}

type ackState struct {
	AckRequest
	elapsed  time.Duration
	lastTick time.Time
	focuses  int
}

// AckTimer counts down the single live ack request. Focus intents fire on set
// and once more at the midpoint of the displayed countdown.
type AckTimer struct {
	timeout time.Duration
	buffer  time.Duration
	cur     *ackState
}

func NewAckTimer(timeout, buffer time.Duration) *AckTimer {
	return &AckTimer{timeout: timeout, buffer: buffer}
}

// Set replaces any existing request and restarts the countdown. It always
// returns a focus intent.
func (t *AckTimer) Set(lobby hostmsg.LobbyID, now time.Time) bool {
	if t.cur != nil {
		log.Debug().
			Uint64("lobby_id", uint64(t.cur.LobbyID)).
			Uint64("new_lobby_id", uint64(lobby)).
			Msg("ack request replaced")
	}
	t.cur = &ackState{
		AckRequest: AckRequest{LobbyID: lobby, RequestTime: now},
		lastTick:   now,
		focuses:    1,
	}
	return true
}

// Tick advances the countdown. expired means the request timed out and was
// forgotten; no nack is sent for it.
func (t *AckTimer) Tick(now time.Time) (expired bool, focus bool) {
	if t.cur == nil || now.Equal(t.cur.RequestTime) {
		return false, false
	}
	t.cur.elapsed += elapsedSince(t.cur.lastTick, now)
	if now.After(t.cur.lastTick) {
		t.cur.lastTick = now
	}
	if t.cur.elapsed >= t.timeout {
		log.Info().Uint64("lobby_id", uint64(t.cur.LobbyID)).Msg("ack request expired")
		t.cur = nil
		return true, false
	}
	if t.cur.focuses == 1 && t.cur.elapsed >= t.displayDuration()/2 {
		t.cur.focuses = 2
		return false, true
	}
	return false, false
}

func (t *AckTimer) displayDuration() time.Duration {
	return saturatingSub(t.timeout, t.buffer)
}

func (t *AckTimer) Ack(sender MessageSender) error {
	if t.cur == nil {
		return ErrNoAckRequest
	}
	if t.cur.Acked {
		log.Warn().Uint64("lobby_id", uint64(t.cur.LobbyID)).Msg("ack request already acked")
		return ErrAlreadyAcked
	}
	if err := sender.Send(hostmsg.AckPendingLobby{LobbyID: t.cur.LobbyID}); err != nil {
		return err
	}
	t.cur.Acked = true
	return nil
}

// Nack may follow an ack; the host takes the later answer.
func (t *AckTimer) Nack(sender MessageSender) error {
	if t.cur == nil {
		return ErrNoAckRequest
	}
	if t.cur.Nacked {
		log.Warn().Uint64("lobby_id", uint64(t.cur.LobbyID)).Msg("ack request already nacked")
		return ErrAlreadyNacked
	}
	if err := sender.Send(hostmsg.NackPendingLobby{LobbyID: t.cur.LobbyID}); err != nil {
		return err
	}
	t.cur.Nacked = true
	return nil
}

// Clear drops the request and reports whether one existed.
func (t *AckTimer) Clear() bool {
	had := t.cur != nil
	t.cur = nil
	return had
}

// ClearIfLobby drops the request only when it is for lobby.
func (t *AckTimer) ClearIfLobby(lobby hostmsg.LobbyID) bool {
	if t.cur == nil || t.cur.LobbyID != lobby {
		return false
	}
	t.cur = nil
	return true
}

func (t *AckTimer) Current() (AckRequest, bool) {
	if t.cur == nil {
		return AckRequest{}, false
	}
	return t.cur.AckRequest, true
}

func (t *AckTimer) Remaining() time.Duration {
	if t.cur == nil {
		return 0
	}
	return saturatingSub(t.timeout, t.cur.elapsed)
}

// TimeRemainingForDisplay reaches zero a buffer ahead of the real timeout.
func (t *AckTimer) TimeRemainingForDisplay() time.Duration {
	return saturatingSub(t.Remaining(), t.buffer)
}
