// Package metrics holds the prometheus collectors exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqtag_runs_total",
			Help: "Total number of reconciliation runs",
		},
		[]string{"result"}, // "success", "failed", "skipped"
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reqtag_run_duration_seconds",
			Help:    "Duration of reconciliation runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	RunLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reqtag_run_last_success_timestamp",
			Help: "Unix timestamp of the last successful run",
		},
	)

	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqtag_items_total",
			Help: "Total number of items handled, by outcome",
		},
		[]string{"section", "outcome"}, // "processed", "skipped", "errored"
	)

	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqtag_mutations_total",
			Help: "Total number of applied mutations",
		},
		[]string{"target", "action"},
	)

	PartialPaginations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqtag_partial_paginations_total",
			Help: "Total number of drains that stopped before the reported total",
		},
		[]string{"source"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqtag_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqtag_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// Collaborator request metrics
	ClientRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reqtag_client_request_duration_seconds",
			Help:    "Duration of requests against collaborators in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"client", "status"},
	)

	ClientRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqtag_client_retries_total",
			Help: "Total number of retried requests against collaborators",
		},
		[]string{"client"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reqtag_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqtag_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqtag_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordRun records the outcome of a reconciliation run.
func RecordRun(result string, duration time.Duration) {
	RunsTotal.WithLabelValues(result).Inc()
	if result == "skipped" {
		return
	}
	RunDuration.Observe(duration.Seconds())
	if result == "success" {
		RunLastSuccess.SetToCurrentTime()
	}
}

// RecordItems adds the item outcomes of a section.
func RecordItems(section string, processed, skipped, errored int) {
	ItemsTotal.WithLabelValues(section, "processed").Add(float64(processed))
	ItemsTotal.WithLabelValues(section, "skipped").Add(float64(skipped))
	ItemsTotal.WithLabelValues(section, "errored").Add(float64(errored))
}

// RecordCache records a cache lookup.
func RecordCache(cache string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cache).Inc()
		return
	}
	CacheMisses.WithLabelValues(cache).Inc()
}
