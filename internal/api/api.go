// Package api exposes the tournament engine and ledger over HTTP.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"card-arena/internal/service"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status.",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arena_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// Handler holds the HTTP handlers and their service dependencies.
type Handler struct {
	accounts    *service.AccountService
	tournaments *service.TournamentService
}

// NewHandler creates a new API handler.
func NewHandler(accounts *service.AccountService, tournaments *service.TournamentService) *Handler {
	return &Handler{accounts: accounts, tournaments: tournaments}
}

// Router builds the API route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/users", h.ensureUser).Methods(http.MethodPost)
	v1.HandleFunc("/users/top", h.topBalances).Methods(http.MethodGet)
	v1.HandleFunc("/users/{id:[0-9]+}", h.getUser).Methods(http.MethodGet)
	v1.HandleFunc("/users/{id:[0-9]+}/balance", h.getBalance).Methods(http.MethodGet)
	v1.HandleFunc("/users/{id:[0-9]+}/ledger", h.getLedger).Methods(http.MethodGet)
	v1.HandleFunc("/users/{id:[0-9]+}/audit", h.auditLedger).Methods(http.MethodGet)

	v1.HandleFunc("/tournaments", h.createTournament).Methods(http.MethodPost)
	v1.HandleFunc("/tournaments", h.listTournaments).Methods(http.MethodGet)
	v1.HandleFunc("/tournaments/{id}", h.getTournament).Methods(http.MethodGet)
	v1.HandleFunc("/tournaments/{id}/leaderboard", h.leaderboard).Methods(http.MethodGet)
	v1.HandleFunc("/tournaments/{id}/ledger", h.moneyTrail).Methods(http.MethodGet)
	v1.HandleFunc("/tournaments/{id}/register", h.register).Methods(http.MethodPost)
	v1.HandleFunc("/tournaments/{id}/unregister", h.unregister).Methods(http.MethodPost)
	v1.HandleFunc("/tournaments/{id}/start", h.startTournament).Methods(http.MethodPost)
	v1.HandleFunc("/tournaments/{id}/eliminate", h.eliminate).Methods(http.MethodPost)
	v1.HandleFunc("/tournaments/{id}/rebuy", h.rebuy).Methods(http.MethodPost)
	v1.HandleFunc("/tournaments/{id}/cancel", h.cancelTournament).Methods(http.MethodPost)

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// queryLimit parses an optional ?limit= query parameter.
func queryLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(start)
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		if rec.status >= http.StatusInternalServerError {
			log.Error().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("elapsed", elapsed).
				Msg("request failed")
		}
	})
}
