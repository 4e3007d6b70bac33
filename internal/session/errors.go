package session

import (
	"errors"
	"net/http"
)

var (
	ErrRequestPending   = errors.New("request_pending")
	ErrNotConnected     = errors.New("host_not_connected")
	ErrNoAckRequest     = errors.New("no_ack_request")
	ErrAlreadyAcked     = errors.New("ack_request_already_acked")
	ErrAlreadyNacked    = errors.New("ack_request_already_nacked")
	ErrStarterPending   = errors.New("host_game_pending")
	ErrGameRunning      = errors.New("game_running")
	ErrNoGameRunning    = errors.New("no_game_running")
	ErrInvalidRequest   = errors.New("invalid_request")
	ErrNotInLobby       = errors.New("not_in_lobby")
	ErrSessionStopped   = errors.New("session_stopped")
	ErrMailboxOverflow  = errors.New("session_busy")
	ErrUnknownCommand   = errors.New("unknown_command")
	ErrAlreadyInLobby   = errors.New("already_in_lobby")
	ErrAckRequestActive = errors.New("ack_request_active")
)

// MapError converts a session error into an HTTP status and a stable code.
func MapError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrUnknownCommand):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrNoAckRequest), errors.Is(err, ErrNoGameRunning), errors.Is(err, ErrNotInLobby):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, ErrRequestPending),
		errors.Is(err, ErrAlreadyAcked),
		errors.Is(err, ErrAlreadyNacked),
		errors.Is(err, ErrStarterPending),
		errors.Is(err, ErrGameRunning),
		errors.Is(err, ErrAlreadyInLobby),
		errors.Is(err, ErrAckRequestActive):
		return http.StatusConflict, err.Error()
	case errors.Is(err, ErrNotConnected), errors.Is(err, ErrSessionStopped), errors.Is(err, ErrMailboxOverflow):
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
