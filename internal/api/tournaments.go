package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"card-arena/internal/service"
)

func (h *Handler) createTournament(w http.ResponseWriter, r *http.Request) {
	var params service.TournamentParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	t, err := h.tournaments.Create(r.Context(), params)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

func (h *Handler) listTournaments(w http.ResponseWriter, r *http.Request) {
	list, err := h.tournaments.List(r.Context(), queryLimit(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) getTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTournamentID(w, r)
	if !ok {
		return
	}
	t, err := h.tournaments.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTournamentID(w, r)
	if !ok {
		return
	}
	rows, err := h.tournaments.Leaderboard(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) moneyTrail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTournamentID(w, r)
	if !ok {
		return
	}
	entries, err := h.tournaments.MoneyTrail(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

type playerRequest struct {
	UserID int64 `json:"user_id"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := pathTournamentAndUser(w, r)
	if !ok {
		return
	}
	player, err := h.tournaments.Register(r.Context(), id, userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, player)
}

func (h *Handler) unregister(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := pathTournamentAndUser(w, r)
	if !ok {
		return
	}
	if err := h.tournaments.Unregister(r.Context(), id, userID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "unregistered"})
}

func (h *Handler) startTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTournamentID(w, r)
	if !ok {
		return
	}
	t, err := h.tournaments.Start(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handler) eliminate(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := pathTournamentAndUser(w, r)
	if !ok {
		return
	}
	t, err := h.tournaments.Eliminate(r.Context(), id, userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handler) rebuy(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := pathTournamentAndUser(w, r)
	if !ok {
		return
	}
	player, err := h.tournaments.Rebuy(r.Context(), id, userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, player)
}

func (h *Handler) cancelTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTournamentID(w, r)
	if !ok {
		return
	}
	if err := h.tournaments.Cancel(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func pathTournamentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid tournament id"})
		return uuid.Nil, false
	}
	return id, true
}

func pathTournamentAndUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, int64, bool) {
	id, ok := pathTournamentID(w, r)
	if !ok {
		return uuid.Nil, 0, false
	}
	var req playerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id must be a positive integer"})
		return uuid.Nil, 0, false
	}
	return id, req.UserID, true
}
