package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerAppendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_ledger_appends_total",
			Help: "Total number of committed ledger entries by kind.",
		},
		[]string{"kind"},
	)

	tournamentEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_tournament_events_total",
			Help: "Total number of tournament lifecycle events by type.",
		},
		[]string{"event"},
	)
)
