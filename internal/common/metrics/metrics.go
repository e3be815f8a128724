package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dispatch metrics

	// DispatchRequests tracks outbound webhook HTTP requests
	DispatchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quayer_hooks",
			Subsystem: "dispatch",
			Name:      "http_requests_total",
			Help:      "Outbound webhook HTTP requests by status code",
		},
		[]string{"status_code"},
	)

	// DispatchDuration tracks outbound webhook request duration
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quayer_hooks",
			Subsystem: "dispatch",
			Name:      "http_duration_seconds",
			Help:      "Outbound webhook HTTP request duration",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"event"},
	)

	// DispatchCircuitBreakerState tracks circuit breaker state
	// (0=closed, 1=open, 2=half-open)
	DispatchCircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "quayer_hooks",
			Subsystem: "dispatch",
			Name:      "circuit_breaker_state",
			Help:      "Dispatch circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)

	// DispatchCircuitBreakerTrips tracks circuit breaker trip events
	DispatchCircuitBreakerTrips = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "quayer_hooks",
			Subsystem: "dispatch",
			Name:      "circuit_breaker_trips_total",
			Help:      "Total dispatch circuit breaker trips",
		},
	)

	// Engine metrics

	// EngineDeliveries tracks webhook deliveries by outcome
	EngineDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quayer_hooks",
			Subsystem: "engine",
			Name:      "deliveries_total",
			Help:      "Webhook deliveries by event and outcome",
		},
		[]string{"event", "outcome"}, // outcome: success, failure
	)

	// EngineFilteredEvents tracks events suppressed by subscription filters
	EngineFilteredEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quayer_hooks",
			Subsystem: "engine",
			Name:      "filtered_events_total",
			Help:      "Events suppressed by per-subscription filters",
		},
		[]string{"event"},
	)

	// EngineFanOutSize tracks how many subscriptions each trigger fanned out to
	EngineFanOutSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "quayer_hooks",
			Subsystem: "engine",
			Name:      "fan_out_size",
			Help:      "Subscriptions dispatched to per trigger",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	// EngineRetries tracks manual delivery retries by outcome
	EngineRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quayer_hooks",
			Subsystem: "engine",
			Name:      "retries_total",
			Help:      "Manual delivery retries by outcome",
		},
		[]string{"outcome"}, // outcome: success, failure, noop
	)

	// EngineRateLimitWaits tracks dispatches delayed by the engine rate limiter
	EngineRateLimitWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "quayer_hooks",
			Subsystem: "engine",
			Name:      "rate_limit_waits_total",
			Help:      "Dispatches delayed by the engine rate limiter",
		},
	)
)

// Circuit breaker state constants
const (
	CircuitBreakerClosed   = 0
	CircuitBreakerOpen     = 1
	CircuitBreakerHalfOpen = 2
)
