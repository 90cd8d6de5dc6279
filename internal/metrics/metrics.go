// Package metrics computes per-day aggregate snapshots from the event
// log: latency percentiles, prediction/probability aggregates, and a
// numeric summary per feature.
package metrics

import (
	"context"
	"fmt"
	"time"

	"mlguard/internal/model"
)

// EventSource supplies the day window's events.
type EventSource interface {
	EventsInRange(ctx context.Context, key model.Key, start, end time.Time) ([]model.Event, error)
}

// Store persists daily metric snapshots.
type Store interface {
	// ReplaceDailyMetric writes the snapshot; with overwrite it deletes
	// any prior row for the same (key, day) first, in the same
	// transaction.
	ReplaceDailyMetric(ctx context.Context, row *model.DailyMetric, overwrite bool) error
}

// Engine computes and stores daily metrics.
type Engine struct {
	events EventSource
	store  Store
}

// NewEngine creates a metrics engine over the given stores.
func NewEngine(events EventSource, store Store) *Engine {
	return &Engine{events: events, store: store}
}

// ComputeDaily aggregates the key's events for the day window and
// persists the snapshot. A day without events stores n_events=0 with
// null aggregates rather than failing.
func (e *Engine) ComputeDaily(ctx context.Context, key model.Key, day time.Time, tz string, overwrite bool) (*model.DailyMetric, error) {
	start, end, err := model.DayWindow(day, tz)
	if err != nil {
		return nil, fmt.Errorf("compute daily metrics: %w", err)
	}

	events, err := e.events.EventsInRange(ctx, key, start, end)
	if err != nil {
		return nil, err
	}

	row := &model.DailyMetric{
		ProjectID:    key.ProjectID,
		ModelID:      key.ModelID,
		Endpoint:     key.Endpoint,
		Day:          day,
		NEvents:      len(events),
		FeatureStats: model.FeatureStats{},
	}

	var latencies, probas []float64
	var preds []int
	perFeature := make(map[string][]float64)

	for _, ev := range events {
		if ev.LatencyMS != nil {
			latencies = append(latencies, *ev.LatencyMS)
		}
		if ev.YPred != nil {
			preds = append(preds, *ev.YPred)
		}
		if ev.YProba != nil {
			probas = append(probas, *ev.YProba)
		}
		for name, v := range ev.Features {
			if f, ok := model.NumericValue(v); ok {
				perFeature[name] = append(perFeature[name], f)
			}
		}
	}

	if p50, ok := Percentile(latencies, 50); ok {
		row.LatencyP50MS = &p50
	}
	if p95, ok := Percentile(latencies, 95); ok {
		row.LatencyP95MS = &p95
	}
	if len(preds) > 0 {
		sum := 0
		for _, p := range preds {
			sum += p
		}
		rate := float64(sum) / float64(len(preds))
		row.YPredRate = &rate
	}
	if len(probas) > 0 {
		sum := 0.0
		for _, p := range probas {
			sum += p
		}
		mean := sum / float64(len(probas))
		row.YProbaMean = &mean
	}
	for name, vals := range perFeature {
		if mean, std, ok := MeanStd(vals); ok {
			row.FeatureStats[name] = model.FeatureSummary{Mean: mean, Std: std}
		}
	}

	if err := e.store.ReplaceDailyMetric(ctx, row, overwrite); err != nil {
		return nil, err
	}
	return row, nil
}
