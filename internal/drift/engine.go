// Package drift implements the drift engine: baseline capture for
// numeric and categorical features, PSI computation against stored
// baselines, severity classification, and the per-day compute paths.
package drift

import (
	"context"
	"time"

	"mlguard/internal/model"
)

// EventSource supplies events for baseline capture and day windows.
type EventSource interface {
	// EventsInRange returns events for the key with timestamp in
	// [start, end), ordered ascending.
	EventsInRange(ctx context.Context, key model.Key, start, end time.Time) ([]model.Event, error)
	// RecentEvents returns the most recent n events for the key.
	RecentEvents(ctx context.Context, key model.Key, n int) ([]model.Event, error)
}

// BaselineStore persists per-feature reference distributions.
type BaselineStore interface {
	// Baseline returns the stored baseline for one feature, or nil when
	// none exists.
	Baseline(ctx context.Context, key model.Key, feature string) (*model.FeatureBaseline, error)
	// Baselines returns all baselines captured for the key.
	Baselines(ctx context.Context, key model.Key) ([]model.FeatureBaseline, error)
	// ReplaceBaseline persists a freshly captured baseline. With
	// overwrite it deletes any prior row for the same (key, feature) in
	// the same transaction.
	ReplaceBaseline(ctx context.Context, b *model.FeatureBaseline, overwrite bool) error
}

// DriftStore persists per-(key, day) drift rows.
type DriftStore interface {
	// DailyDrift returns the stored row for (key, day), or nil.
	DailyDrift(ctx context.Context, key model.Key, day time.Time) (*model.DailyDrift, error)
	// Upsert writes the full recomputed row, inserting or replacing on
	// the (key, day) unique constraint.
	Upsert(ctx context.Context, row *model.DailyDrift) error
}

// Engine wires the drift computations to storage.
type Engine struct {
	events    EventSource
	baselines BaselineStore
	drift     DriftStore
}

// NewEngine creates a drift engine over the given stores.
func NewEngine(events EventSource, baselines BaselineStore, drift DriftStore) *Engine {
	return &Engine{events: events, baselines: baselines, drift: drift}
}

// maxPSIEntry finds the feature with the highest PSI in a result map.
// Ties break toward the lexicographically smaller feature name so the
// stored row is deterministic.
func maxPSIEntry(m model.PSIMap) (feature string, psi float64, ok bool) {
	for f, r := range m {
		if !ok || r.PSI > psi || (r.PSI == psi && f < feature) {
			feature, psi, ok = f, r.PSI, true
		}
	}
	return feature, psi, ok
}

// applyMax recomputes max_psi_feature/max_psi over the row's full map.
func applyMax(row *model.DailyDrift) {
	if f, p, ok := maxPSIEntry(row.PSI); ok {
		row.MaxPSIFeature = &f
		row.MaxPSI = &p
	} else {
		row.MaxPSIFeature = nil
		row.MaxPSI = nil
	}
}
