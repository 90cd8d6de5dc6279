// Package telemetry exposes the service's Prometheus instrumentation.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsIngested counts accepted prediction events.
	EventsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mlguard_events_ingested_total",
		Help: "Number of prediction events accepted for storage.",
	})

	// DriftComputations counts completed drift computations by outcome
	// severity.
	DriftComputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlguard_drift_computations_total",
		Help: "Number of completed drift computations by max severity.",
	}, []string{"severity"})

	// AlertsCreated counts alert rows actually inserted, by rule.
	AlertsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlguard_alerts_created_total",
		Help: "Number of alert rows created, by rule.",
	}, []string{"rule"})

	// WorkerIterations counts completed worker loop iterations.
	WorkerIterations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mlguard_worker_iterations_total",
		Help: "Number of completed worker loop iterations.",
	})

	// RequestDuration observes HTTP handler latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mlguard_http_request_duration_seconds",
		Help:    "HTTP request duration by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
