// Package metrics defines the prometheus instruments shared across packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Broadcaster metrics
var (
	// ConnectedSubscribers tracks the number of currently registered
	// websocket subscribers.
	ConnectedSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_connected_subscribers",
			Help: "Number of currently connected websocket subscribers",
		},
	)

	// BroadcastsTotal counts fan-outs by trigger (mutation, tick, priming).
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcaster_broadcasts_total",
			Help: "Total snapshot broadcasts by trigger",
		},
		[]string{"trigger"},
	)

	// SuppressedTicksTotal counts sampler ticks skipped because the snapshot
	// was unchanged since the last broadcast.
	SuppressedTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_suppressed_ticks_total",
			Help: "Total sampler ticks with no observable state change",
		},
	)

	// SubscribersEvicted counts subscribers dropped due to send failure or a
	// full send buffer.
	SubscribersEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_subscribers_evicted_total",
			Help: "Total subscribers evicted after a failed or stalled send",
		},
	)

	// BroadcastDuration tracks fan-out duration in seconds.
	BroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcaster_broadcast_duration_seconds",
			Help:    "Fan-out duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)
)

// Ingestion metrics
var (
	// MutationsTotal counts per-light mutation outcomes.
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_mutations_total",
			Help: "Total per-light mutation results by outcome",
		},
		[]string{"outcome"},
	)

	// PersistenceFailures counts best-effort state writes that failed.
	PersistenceFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_persistence_failures_total",
			Help: "Total failed best-effort writes to the state repository",
		},
	)
)

// Redis metrics
var (
	// RedisOpsTotal tracks redis commands by operation and status.
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks redis command latency in seconds.
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// CircuitBreakerState tracks the redis circuit breaker state
	// (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)

	// CircuitBreakerStateChanges counts circuit breaker transitions.
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)
)
