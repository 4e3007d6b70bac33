package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"providence/internal/session"
)

// Archive is the write side of the store used by Recorder.
type Archive interface {
	InsertGameReport(ctx context.Context, r GameReport) (string, error)
	InsertSessionEvent(ctx context.Context, ev SessionEvent) error
}

// Recorder persists game results and connection changes from a session's
// event stream.
type Recorder struct {
	archive Archive
	timeout time.Duration
}

func NewRecorder(archive Archive) *Recorder {
	return &Recorder{archive: archive, timeout: 5 * time.Second}
}

// Run consumes events until ctx is done or the buffer closes.
func (r *Recorder) Run(ctx context.Context, buf *session.EventBuffer) {
	ch := buf.Subscribe()
	defer buf.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := r.Record(ctx, ev); err != nil {
				metricArchiveErrors.Add(1)
				log.Warn().Err(err).Str("event", ev.Event).Msg("archive write failed")
			}
		}
	}
}

// Record stores one event if it is one the archive keeps.
func (r *Recorder) Record(ctx context.Context, ev session.StreamEvent) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	switch ev.Event {
	case session.EventGameOver:
		over, ok := ev.Data.(session.GameOverEvent)
		if !ok {
			return nil
		}
		_, err := r.archive.InsertGameReport(ctx, GameReport{
			ClientID: ev.ClientID,
			GameID:   strconv.FormatUint(uint64(over.GameID), 10),
			Local:    over.Local,
			Report:   json.RawMessage(over.Report),
		})
		if err == nil {
			metricReportsArchived.Add(1)
		}
		return err
	case session.EventConnectionStatus, session.EventHostClientConstructed:
		payload, err := json.Marshal(ev.Data)
		if err != nil {
			return err
		}
		return r.archive.InsertSessionEvent(ctx, SessionEvent{
			ClientID: ev.ClientID,
			Event:    ev.Event,
			EventID:  ev.EventID,
			Payload:  payload,
		})
	}
	return nil
}

// StartJanitor prunes archived session events older than retention.
func (s *Store) StartJanitor(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				n, err := s.PruneSessionEvents(ctx, now.Add(-retention))
				if err != nil {
					log.Warn().Err(err).Msg("prune session events failed")
					continue
				}
				if n > 0 {
					log.Debug().Int64("deleted", n).Msg("pruned session events")
				}
			}
		}
	}()
}
