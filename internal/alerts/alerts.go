// Package alerts raises deduplicated alert records. Creation is
// idempotent per (key, day, rule): the storage unique constraint
// decides the single winner under contention.
package alerts

import (
	"context"
	"time"

	"mlguard/internal/model"
	"mlguard/internal/store"
)

// Alert rule names. The rule partitions the dedup namespace, so one
// drift alert and one cost alert can coexist for the same (key, day).
const (
	RuleDrift     = "drift"
	RuleCostSpike = "cost_spike"
)

// Store is the persistence surface the service needs.
type Store interface {
	CreateAlertOnce(ctx context.Context, a *model.Alert) (bool, *model.Alert, error)
	ListAlerts(ctx context.Context, f store.AlertFilter) ([]model.Alert, error)
}

// Service creates and lists alerts.
type Service struct {
	store Store
}

// NewService creates an alert service over the given store.
func NewService(s Store) *Service {
	return &Service{store: s}
}

// CreateOnce inserts one alert for (key, day, rule). Returns created
// false when a row already exists; no error is surfaced for the lost
// race.
func (s *Service) CreateOnce(ctx context.Context, key model.Key, day time.Time, rule, severity string, value, threshold float64, payload model.JSONMap) (bool, *model.Alert, error) {
	a := &model.Alert{
		ProjectID: key.ProjectID,
		ModelID:   key.ModelID,
		Endpoint:  key.Endpoint,
		Day:       day,
		Rule:      rule,
		Severity:  severity,
		Value:     value,
		Threshold: threshold,
		Payload:   payload,
	}
	return s.store.CreateAlertOnce(ctx, a)
}

// List returns matching alerts, most recent first.
func (s *Service) List(ctx context.Context, f store.AlertFilter) ([]model.Alert, error) {
	return s.store.ListAlerts(ctx, f)
}
