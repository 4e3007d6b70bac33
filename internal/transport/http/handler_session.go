package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"providence/internal/hostmsg"
	"providence/internal/session"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const commandTimeout = 5 * time.Second

// SessionControl is the part of session.Session the control API drives.
type SessionControl interface {
	Submit(ctx context.Context, cmd session.Command) (session.CommandResult, error)
	Snapshot() session.Snapshot
	Events() *session.EventBuffer
}

type SessionHandlers struct {
	ctrl SessionControl
}

func NewSessionHandlers(ctrl SessionControl) *SessionHandlers {
	return &SessionHandlers{ctrl: ctrl}
}

func (h *SessionHandlers) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
	}
}

func (h *SessionHandlers) SearchLobbies() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req hostmsg.LobbySearchRequest
		if !decodeBody(w, r, &req) {
			return
		}
		h.submit(w, r, http.StatusAccepted, session.SearchLobbiesCommand{Request: req})
	}
}

func (h *SessionHandlers) MakeLobby() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cmd session.MakeLobbyCommand
		if !decodeBody(w, r, &cmd) {
			return
		}
		h.submit(w, r, http.StatusAccepted, cmd)
	}
}

func (h *SessionHandlers) JoinLobby() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := lobbyIDParam(w, r)
		if !ok {
			return
		}
		var body struct {
			Password string `json:"password"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		h.submit(w, r, http.StatusAccepted, session.JoinLobbyCommand{LobbyID: id, Password: body.Password})
	}
}

// LeaveLobby and LaunchLobby act on the joined lobby; the path id must name it.
func (h *SessionHandlers) LeaveLobby() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.requireJoined(w, r) {
			h.submit(w, r, http.StatusAccepted, session.LeaveLobbyCommand{})
		}
	}
}

func (h *SessionHandlers) LaunchLobby() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.requireJoined(w, r) {
			h.submit(w, r, http.StatusAccepted, session.LaunchLobbyCommand{})
		}
	}
}

func (h *SessionHandlers) AckRequest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.submit(w, r, http.StatusOK, session.AckLobbyCommand{})
	}
}

func (h *SessionHandlers) NackRequest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.submit(w, r, http.StatusOK, session.NackLobbyCommand{})
	}
}

func (h *SessionHandlers) StartLocalGame() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var pack session.LaunchPack
		if !decodeBody(w, r, &pack) {
			return
		}
		h.submit(w, r, http.StatusOK, session.StartLocalGameCommand{Pack: pack})
	}
}

func (h *SessionHandlers) EndGame() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.submit(w, r, http.StatusOK, session.EndGameCommand{})
	}
}

func (h *SessionHandlers) submit(w http.ResponseWriter, r *http.Request, okStatus int, cmd session.Command) {
	metricCommandsTotal.Add(1)
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	res, err := h.ctrl.Submit(ctx, cmd)
	if err != nil {
		metricCommandsErrors.Add(1)
		if errors.Is(err, context.DeadlineExceeded) {
			WriteHTTPError(w, http.StatusGatewayTimeout, "session_timeout")
			return
		}
		status, code := session.MapError(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("request_id", chimw.GetReqID(r.Context())).Msg("control command failed")
		}
		WriteHTTPError(w, status, code)
		return
	}
	writeJSON(w, okStatus, res)
}

func (h *SessionHandlers) requireJoined(w http.ResponseWriter, r *http.Request) bool {
	id, ok := lobbyIDParam(w, r)
	if !ok {
		return false
	}
	if lobby := h.ctrl.Snapshot().Lobby; lobby == nil || lobby.ID != id {
		WriteHTTPError(w, http.StatusNotFound, "not_in_lobby")
		return false
	}
	return true
}

func lobbyIDParam(w http.ResponseWriter, r *http.Request) (hostmsg.LobbyID, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "lobby_id"), 10, 64)
	if err != nil || id == 0 {
		WriteHTTPError(w, http.StatusBadRequest, "invalid_lobby_id")
		return 0, false
	}
	return hostmsg.LobbyID(id), true
}

// decodeBody accepts an empty body as the zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
	return false
}
