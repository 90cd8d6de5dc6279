// Package api exposes the HTTP surface: event ingestion, discovery,
// metrics, drift, alerts and costs under /api/v1, plus health and
// Prometheus scrape endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mlguard/internal/costs"
	"mlguard/internal/drift"
	"mlguard/internal/model"
	"mlguard/internal/store"
	"mlguard/internal/telemetry"
)

// Store is the persistence surface the handlers read and write.
type Store interface {
	InsertEvents(ctx context.Context, events []model.Event) (int, error)
	KeysForProject(ctx context.Context, projectID string) ([]model.Key, error)
	DaysWithEvents(ctx context.Context, key model.Key) ([]time.Time, error)
	DailyMetric(ctx context.Context, key model.Key, day time.Time) (*model.DailyMetric, error)
	DailyDrift(ctx context.Context, key model.Key, day time.Time) (*model.DailyDrift, error)
	ListAlerts(ctx context.Context, f store.AlertFilter) ([]model.Alert, error)
}

// MetricsEngine computes daily metric snapshots.
type MetricsEngine interface {
	ComputeDaily(ctx context.Context, key model.Key, day time.Time, tz string, overwrite bool) (*model.DailyMetric, error)
}

// DriftEngine captures baselines and computes drift.
type DriftEngine interface {
	CaptureBaseline(ctx context.Context, key model.Key, p drift.CaptureParams) (*model.FeatureBaseline, error)
	ComputeOne(ctx context.Context, key model.Key, day time.Time, feature, tz string, minSamples int) (*model.FeaturePSI, error)
	ComputeAll(ctx context.Context, key model.Key, day time.Time, tz string, minSamples int, overwrite bool) (*drift.AllResult, error)
}

// AlertService raises deduplicated alerts.
type AlertService interface {
	CreateOnce(ctx context.Context, key model.Key, day time.Time, rule, severity string, value, threshold float64, payload model.JSONMap) (bool, *model.Alert, error)
}

// Notifier delivers alert text to a chat webhook.
type Notifier interface {
	Enabled() bool
	Send(ctx context.Context, text string) error
}

// CostService pulls and evaluates daily billing data.
type CostService interface {
	PullAndStore(ctx context.Context, projectID string, day time.Time, overwrite bool) (*costs.PullResult, error)
	List(ctx context.Context, projectID string, day time.Time) ([]model.DailyCost, error)
	CheckSpike(ctx context.Context, projectID string, day time.Time, lookbackDays int, pct, minAbsUSD float64) (*costs.SpikeResult, error)
}

// Options carries the handler-level configuration.
type Options struct {
	EnableAuth   bool
	APIKeyHeader string
	APIKey       string
	SlackEnabled bool
}

// Server holds the wired dependencies behind the HTTP handlers.
type Server struct {
	store   Store
	metrics MetricsEngine
	drift   DriftEngine
	alerts  AlertService
	notify  Notifier
	costs   CostService // nil when no billing client is configured
	opts    Options
}

// NewServer wires the HTTP surface. costSvc may be nil.
func NewServer(st Store, me MetricsEngine, de DriftEngine, as AlertService, n Notifier, costSvc CostService, opts Options) *Server {
	if opts.APIKeyHeader == "" {
		opts.APIKeyHeader = "X-API-Key"
	}
	return &Server{
		store:   st,
		metrics: me,
		drift:   de,
		alerts:  as,
		notify:  n,
		costs:   costSvc,
		opts:    opts,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(instrument)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAPIKey)

			r.Post("/events", s.handleIngestEvents)

			r.Get("/discover/models", s.handleDiscoverModels)
			r.Get("/discover/days", s.handleDiscoverDays)

			r.Post("/metrics/compute", s.handleMetricsCompute)
			r.Get("/metrics/daily", s.handleMetricsDaily)

			r.Post("/drift/baseline/capture", s.handleBaselineCapture)
			r.Post("/drift/compute", s.handleDriftCompute)
			r.Post("/drift/compute_all", s.handleDriftComputeAll)
			r.Get("/drift/daily", s.handleDriftDaily)

			r.Get("/alerts", s.handleListAlerts)
			r.Post("/alerts/slack/test", s.handleSlackTest)

			r.Post("/costs/pull", s.handleCostsPull)
			r.Get("/costs/daily", s.handleCostsDaily)
			r.Post("/costs/check_spike", s.handleCostsCheckSpike)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
