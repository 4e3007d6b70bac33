package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"providence/internal/session"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

var ssePingInterval = 15 * time.Second

// EventsSSEHandler streams session events, replaying from Last-Event-ID.
func EventsSSEHandler(buf *session.EventBuffer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteHTTPError(w, http.StatusInternalServerError, "stream_not_supported")
			return
		}

		metricSSEConnectionsTotal.Add(1)
		metricSSEConnectionsActive.Add(1)
		defer metricSSEConnectionsActive.Add(-1)

		// Subscribe before replaying so nothing falls between the two.
		ch := buf.Subscribe()
		defer buf.Unsubscribe(ch)

		SetSSEHeaders(w)
		reqID := chimw.GetReqID(r.Context())
		log.Info().Str("request_id", reqID).Msg("sse stream opened")

		var lastSent int64
		for _, ev := range buf.ReplayAfter(r.Header.Get("Last-Event-ID")) {
			if err := WriteSSE(w, ev); err != nil {
				return
			}
			lastSent = eventSeq(ev)
		}
		flusher.Flush()

		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				log.Info().Str("request_id", reqID).Err(r.Context().Err()).Msg("sse stream closed")
				return
			case ev, ok := <-ch:
				if !ok {
					log.Info().Str("request_id", reqID).Msg("sse stream channel closed")
					return
				}
				if eventSeq(ev) <= lastSent {
					continue
				}
				if err := WriteSSE(w, ev); err != nil {
					return
				}
				lastSent = eventSeq(ev)
				flusher.Flush()
			case <-ticker.C:
				ping := session.StreamEvent{
					Event:    "ping",
					ServerTS: time.Now().UnixMilli(),
					Data:     map[string]any{"ts": time.Now().UnixMilli()},
				}
				if err := WriteSSE(w, ping); err != nil {
					return
				}
				log.Debug().Str("request_id", reqID).Msg("sse ping sent")
				flusher.Flush()
			}
		}
	}
}

func eventSeq(ev session.StreamEvent) int64 {
	n, _ := strconv.ParseInt(ev.EventID, 10, 64)
	return n
}
