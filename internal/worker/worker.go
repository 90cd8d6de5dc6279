// Package worker runs the daily computation loop: discover keys,
// compute metrics and drift for yesterday (by offset), pull costs per
// project. Per-key failures never stop the loop.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"mlguard/internal/costs"
	"mlguard/internal/drift"
	"mlguard/internal/model"
	"mlguard/internal/telemetry"
)

// Discovery enumerates the keys and projects seen in the event log.
type Discovery interface {
	DistinctKeys(ctx context.Context) ([]model.Key, error)
	DistinctProjects(ctx context.Context) ([]string, error)
	HasBaselines(ctx context.Context, key model.Key) (bool, error)
}

// MetricsEngine computes one key's daily metric snapshot.
type MetricsEngine interface {
	ComputeDaily(ctx context.Context, key model.Key, day time.Time, tz string, overwrite bool) (*model.DailyMetric, error)
}

// DriftEngine computes one key's all-feature drift for a day.
type DriftEngine interface {
	ComputeAll(ctx context.Context, key model.Key, day time.Time, tz string, minSamples int, overwrite bool) (*drift.AllResult, error)
}

// CostPuller fetches and stores one project's costs for a day.
type CostPuller interface {
	PullAndStore(ctx context.Context, projectID string, day time.Time, overwrite bool) (*costs.PullResult, error)
}

// Options configures the loop.
type Options struct {
	TZ          string
	Overwrite   bool
	Sleep       time.Duration
	MinSamples  int
	DayOffset   int
	Parallelism int
}

// Worker drives the daily loop.
type Worker struct {
	discovery Discovery
	metrics   MetricsEngine
	drift     DriftEngine
	costs     CostPuller // optional; nil disables cost pulls
	opts      Options
}

// New creates a worker. costs may be nil when no billing client is
// configured.
func New(discovery Discovery, metrics MetricsEngine, driftEng DriftEngine, costPuller CostPuller, opts Options) *Worker {
	if opts.TZ == "" {
		opts.TZ = "UTC"
	}
	if opts.Sleep < 5*time.Second {
		opts.Sleep = 5 * time.Second
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = drift.DefaultMinSamples
	}
	if opts.DayOffset < 0 {
		opts.DayOffset = 0
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	return &Worker{
		discovery: discovery,
		metrics:   metrics,
		drift:     driftEng,
		costs:     costPuller,
		opts:      opts,
	}
}

// Run loops until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	log.Info().
		Str("tz", w.opts.TZ).
		Dur("sleep", w.opts.Sleep).
		Int("day_offset", w.opts.DayOffset).
		Int("min_samples", w.opts.MinSamples).
		Msg("Worker started")

	for {
		w.RunOnce(ctx)
		telemetry.WorkerIterations.Inc()

		select {
		case <-ctx.Done():
			log.Info().Msg("Worker stopping")
			return ctx.Err()
		case <-time.After(w.opts.Sleep):
		}
	}
}

// RunOnce executes a single iteration for day = today(tz) - DayOffset.
func (w *Worker) RunOnce(ctx context.Context) {
	today, err := model.TodayIn(w.opts.TZ)
	if err != nil {
		log.Error().Err(err).Str("tz", w.opts.TZ).Msg("Invalid worker timezone")
		return
	}
	day := today.AddDate(0, 0, -w.opts.DayOffset)

	keys, err := w.discovery.DistinctKeys(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Key discovery failed")
		return
	}
	if len(keys) == 0 {
		log.Debug().Msg("No keys discovered, nothing to compute")
		return
	}
	log.Info().Int("keys", len(keys)).Str("day", model.FormatDay(day)).Msg("Worker iteration")

	w.computeMetrics(ctx, keys, day)
	w.computeDrift(ctx, keys, day)
	w.pullCosts(ctx, day)
}

// computeMetrics fans out per key with bounded parallelism. Failures
// are logged, never returned.
func (w *Worker) computeMetrics(ctx context.Context, keys []model.Key, day time.Time) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Parallelism)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			row, err := w.metrics.ComputeDaily(gctx, key, day, w.opts.TZ, w.opts.Overwrite)
			if err != nil {
				log.Error().Err(err).Stringer("key", key).Str("day", model.FormatDay(day)).
					Msg("Daily metrics computation failed")
				return nil
			}
			log.Debug().Stringer("key", key).Int("n_events", row.NEvents).Msg("Daily metrics stored")
			return nil
		})
	}
	_ = g.Wait()
}

func (w *Worker) computeDrift(ctx context.Context, keys []model.Key, day time.Time) {
	for _, key := range keys {
		ok, err := w.discovery.HasBaselines(ctx, key)
		if err != nil {
			log.Error().Err(err).Stringer("key", key).Msg("Baseline pre-check failed")
			continue
		}
		if !ok {
			log.Info().Stringer("key", key).Msg("Drift skipped (no baselines)")
			continue
		}

		res, err := w.drift.ComputeAll(ctx, key, day, w.opts.TZ, w.opts.MinSamples, w.opts.Overwrite)
		if err != nil {
			if drift.Expected(err) {
				log.Info().Stringer("key", key).Str("day", model.FormatDay(day)).
					Str("reason", err.Error()).Msg("Drift skipped")
			} else {
				log.Error().Stack().Err(err).Stringer("key", key).Str("day", model.FormatDay(day)).
					Msg("Drift computation failed")
			}
			continue
		}

		telemetry.DriftComputations.WithLabelValues(res.MaxSeverity).Inc()
		log.Info().Stringer("key", key).Str("day", model.FormatDay(day)).
			Int("features", len(res.PSI)).
			Str("max_psi_feature", res.MaxPSIFeature).
			Float64("max_psi", res.MaxPSI).
			Str("max_severity", res.MaxSeverity).
			Msg("Drift computed")
	}
}

// pullCosts is best effort: billing hiccups are warnings, not failures.
func (w *Worker) pullCosts(ctx context.Context, day time.Time) {
	if w.costs == nil {
		return
	}
	projects, err := w.discovery.DistinctProjects(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Project discovery failed")
		return
	}
	for _, project := range projects {
		res, err := w.costs.PullAndStore(ctx, project, day, w.opts.Overwrite)
		if err != nil {
			log.Warn().Err(err).Str("project_id", project).Str("day", model.FormatDay(day)).
				Msg("Cost pull failed")
			continue
		}
		log.Debug().Str("project_id", project).Int("rows", res.Stored).Msg("Costs stored")
	}
}
