// Package metrics exposes Prometheus instrumentation for the orchestrator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChargesTotal counts individual gateway charges by outcome.
	ChargesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumo_charges_total",
		Help: "Gateway charge attempts by outcome.",
	}, []string{"outcome"})

	// TransactionsTotal counts group transactions by terminal state.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumo_transactions_total",
		Help: "Group transactions by terminal state.",
	}, []string{"outcome"})

	// ChargeDuration observes per-participant gateway charge latency.
	ChargeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lumo_charge_duration_seconds",
		Help:    "Latency of individual gateway charge calls.",
		Buckets: prometheus.DefBuckets,
	})
)

// Charge outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Transaction terminal states.
const (
	OutcomePersisted      = "persisted"
	OutcomeAborted        = "aborted"
	OutcomePartialFailure = "partial_failure"
	OutcomePersistFailure = "persist_failure"
)
