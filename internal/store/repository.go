package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

const maxListLimit = 200

func (s *Store) InsertGameReport(ctx context.Context, r GameReport) (string, error) {
	if r.ID == "" {
		r.ID = NewID()
	}
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO game_reports (id, client_id, game_id, local, report) VALUES ($1,$2,$3,$4,$5)`,
		r.ID, r.ClientID, r.GameID, r.Local, nullableJSON(r.Report))
	return r.ID, err
}

func (s *Store) ListGameReports(ctx context.Context, limit int) ([]GameReport, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT id, client_id, game_id, local, report, created_at FROM game_reports ORDER BY created_at DESC, id DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (GameReport, error) {
		var r GameReport
		err := row.Scan(&r.ID, &r.ClientID, &r.GameID, &r.Local, &r.Report, &r.CreatedAt)
		return r, err
	})
}

func (s *Store) GetGameReport(ctx context.Context, id string) (GameReport, error) {
	var r GameReport
	err := s.Pool.QueryRow(ctx,
		`SELECT id, client_id, game_id, local, report, created_at FROM game_reports WHERE id = $1`, id).
		Scan(&r.ID, &r.ClientID, &r.GameID, &r.Local, &r.Report, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return GameReport{}, ErrNotFound
	}
	return r, err
}

func (s *Store) InsertSessionEvent(ctx context.Context, ev SessionEvent) error {
	if ev.ID == "" {
		ev.ID = NewID()
	}
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO session_events (id, client_id, event, event_id, payload) VALUES ($1,$2,$3,$4,$5)`,
		ev.ID, ev.ClientID, ev.Event, ev.EventID, nullableJSON(ev.Payload))
	return err
}

func (s *Store) ListSessionEvents(ctx context.Context, event string, limit int) ([]SessionEvent, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT id, client_id, event, event_id, payload, created_at FROM session_events WHERE event = $1 ORDER BY id LIMIT $2`,
		event, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SessionEvent, error) {
		var ev SessionEvent
		err := row.Scan(&ev.ID, &ev.ClientID, &ev.Event, &ev.EventID, &ev.Payload, &ev.CreatedAt)
		return ev, err
	})
}

// PruneSessionEvents deletes events older than before.
func (s *Store) PruneSessionEvents(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM session_events WHERE created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
