package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"card-arena/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// respondError maps service errors onto HTTP status codes. Unknown errors
// are reported as a bare 500 so internals do not leak to clients.
func respondError(w http.ResponseWriter, err error) {
	status := statusFromError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	respondJSON(w, status, errorResponse{Error: msg})
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrTournamentNotFound),
		errors.Is(err, service.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidConfig),
		errors.Is(err, service.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrTournamentFull),
		errors.Is(err, service.ErrAlreadyRegistered):
		return http.StatusConflict
	case errors.Is(err, service.ErrInsufficientPlayers):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrGatewayUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
