package httptransport

import (
	"context"
	"net/http"

	"providence/internal/store"
)

// ReportArchive is the read side of the game report archive.
type ReportArchive interface {
	ListGameReports(ctx context.Context, limit int) ([]store.GameReport, error)
	Ping(ctx context.Context) error
}

type AdminHandlers struct {
	ctrl    SessionControl
	archive ReportArchive
}

// NewAdminHandlers accepts a nil archive when archiving is disabled.
func NewAdminHandlers(ctrl SessionControl, archive ReportArchive) *AdminHandlers {
	return &AdminHandlers{ctrl: ctrl, archive: archive}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := map[string]any{"ok": true, "host": h.ctrl.Snapshot().Status, "archive": "disabled"}
		if h.archive != nil {
			if err := h.archive.Ping(r.Context()); err != nil {
				out["ok"] = false
				out["archive"] = "down"
				writeJSON(w, http.StatusServiceUnavailable, out)
				return
			}
			out["archive"] = "up"
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (h *AdminHandlers) Reports() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.archive == nil {
			WriteHTTPError(w, http.StatusNotFound, "archive_disabled")
			return
		}
		limit := parseLimit(r, 50, 200)
		items, err := h.archive.ListGameReports(r.Context(), limit)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "limit": limit})
	}
}
