// Package metrics holds the Prometheus collectors of the ledger processes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "qarzhy"

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeNoop     = "noop"
	OutcomeError    = "error"
)

var LedgerWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "writes_total",
	Help:      "Ledger write operations by operation and outcome.",
}, []string{"operation", "outcome"})

var LedgerViewDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "view_duration_seconds",
	Help:      "Time to load and aggregate a ledger view.",
	Buckets:   prometheus.DefBuckets,
}, []string{"view"})

var EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "events",
	Name:      "published_total",
	Help:      "Ledger events handed to the bus by type and outcome.",
}, []string{"type", "outcome"})

var EventsExported = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "export",
	Name:      "events_total",
	Help:      "Ledger events processed by the export worker by type and outcome.",
}, []string{"type", "outcome"})

var CircuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "amqp",
	Name:      "circuit_breaker_state",
	Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open).",
})

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests by route pattern, method and status code.",
}, []string{"route", "method", "code"})

var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Write requests rejected by the rate limiter.",
})

// ObserveView records how long a view took since start.
func ObserveView(view string, start time.Time) {
	LedgerViewDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
}
