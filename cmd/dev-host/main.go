package main

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"providence/internal/config"
	"providence/internal/devhost"
	"providence/internal/hostmsg"
	"providence/internal/logging"
	httptransport "providence/internal/transport/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadDevHost()
	if err != nil {
		log.Fatal().Err(err).Msg("load dev host config failed")
	}

	host := devhost.New(devhost.Options{RejectTypes: cfg.RejectTypes})
	r := newRouter(host)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.Addr).Msg("dev host listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("dev host stopped")
}

func newRouter(host *devhost.Server) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/ws", host.HandleWS)
	r.Route("/dev", func(r chi.Router) {
		r.Use(httptransport.APILogMiddleware())
		// Body is a host message envelope, e.g. {"type":"game_aborted","payload":{"game_id":101}}.
		r.Post("/push", func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
			if err != nil {
				httptransport.WriteHTTPError(w, http.StatusBadRequest, "invalid_body")
				return
			}
			ev, err := hostmsg.Decode(body)
			if err != nil {
				httptransport.WriteHTTPError(w, http.StatusBadRequest, err.Error())
				return
			}
			if err := host.Broadcast(ev); err != nil {
				httptransport.WriteHTTPError(w, http.StatusBadRequest, err.Error())
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
		r.Post("/drop", func(w http.ResponseWriter, _ *http.Request) {
			host.DropAll()
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/received", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"connections": host.Connections(),
				"received":    host.Received(),
			})
		})
	})
	return r
}
