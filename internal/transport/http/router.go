package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"providence/internal/mcpserver"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// NewRouter builds the local control API. archive may be nil.
func NewRouter(ctrl SessionControl, archive ReportArchive) *chi.Mux {
	sessionHandlers := NewSessionHandlers(ctrl)
	adminHandlers := NewAdminHandlers(ctrl, archive)
	mcpSrv := mcpserver.New(ctrl)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", mcpSrv.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/status", sessionHandlers.Status())
		r.Get("/events", EventsSSEHandler(ctrl.Events()))

		r.Post("/lobbies", sessionHandlers.MakeLobby())
		r.Post("/lobbies/search", sessionHandlers.SearchLobbies())
		r.Post("/lobbies/{lobby_id}/join", sessionHandlers.JoinLobby())
		r.Post("/lobbies/{lobby_id}/leave", sessionHandlers.LeaveLobby())
		r.Post("/lobbies/{lobby_id}/launch", sessionHandlers.LaunchLobby())

		r.Post("/ack-request/ack", sessionHandlers.AckRequest())
		r.Post("/ack-request/nack", sessionHandlers.NackRequest())

		r.Post("/games/local", sessionHandlers.StartLocalGame())
		r.Post("/games/end", sessionHandlers.EndGame())

		r.Get("/reports", adminHandlers.Reports())

		r.Route("/debug", func(r chi.Router) {
			r.Use(BodyCaptureMiddleware(4096))
			r.Get("/vars", expvar.Handler().ServeHTTP)
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
