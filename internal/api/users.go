package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

type ensureUserRequest struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func (h *Handler) ensureUser(w http.ResponseWriter, r *http.Request) {
	var req ensureUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID <= 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "id must be a positive integer"})
		return
	}

	user, created, err := h.accounts.EnsureUser(r.Context(), req.ID, req.Username)
	if err != nil {
		respondError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, user)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}
	user, err := h.accounts.GetUser(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}
	balance, err := h.accounts.GetBalance(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"user_id": id, "balance": balance})
}

func (h *Handler) getLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}
	entries, err := h.accounts.History(r.Context(), id, queryLimit(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) auditLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}
	result, err := h.accounts.VerifyLedger(r.Context(), id)
	if result != nil && !result.Consistent {
		respondJSON(w, http.StatusConflict, result)
		return
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) topBalances(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.TopBalances(r.Context(), queryLimit(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user id"})
		return 0, false
	}
	return id, true
}
