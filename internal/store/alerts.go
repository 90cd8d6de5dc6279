package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"mlguard/internal/model"
)

// uniqueViolation is the Postgres error code for a unique constraint
// violation.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint breach.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// CreateAlertOnce attempts to insert the alert row. The unique
// constraint on (project, model, endpoint, day, rule) is the sole dedup
// boundary: a losing insert rolls back cleanly and returns created
// false with no row. Exactly one concurrent attempt wins.
func (s *Store) CreateAlertOnce(ctx context.Context, a *model.Alert) (bool, *model.Alert, error) {
	const q = `
		INSERT INTO alerts (project_id, model_id, endpoint, day, rule, severity, value, threshold, payload)
		VALUES (:project_id, :model_id, :endpoint, :day, :rule, :severity, :value, :threshold, :payload)
		RETURNING id`
	rows, err := s.db.NamedQueryContext(ctx, q, a)
	if err != nil {
		if IsUniqueViolation(err) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("insert alert: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&a.ID); err != nil {
			return false, nil, err
		}
	}
	return true, a, nil
}

// AlertFilter narrows ListAlerts; zero values match everything.
type AlertFilter struct {
	ProjectID string
	ModelID   string
	Endpoint  string
	Rule      string
	Limit     int
}

// ListAlerts returns matching alerts, most recent first.
func (s *Store) ListAlerts(ctx context.Context, f AlertFilter) ([]model.Alert, error) {
	q := `SELECT * FROM alerts WHERE 1=1`
	var args []any
	add := func(clause, val string) {
		args = append(args, val)
		q += " AND " + clause + " = $" + strconv.Itoa(len(args))
	}
	if f.ProjectID != "" {
		add("project_id", f.ProjectID)
	}
	if f.ModelID != "" {
		add("model_id", f.ModelID)
	}
	if f.Endpoint != "" {
		add("endpoint", f.Endpoint)
	}
	if f.Rule != "" {
		add("rule", f.Rule)
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	args = append(args, f.Limit)
	q += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args))

	var alerts []model.Alert
	if err := s.db.SelectContext(ctx, &alerts, q, args...); err != nil {
		return nil, fmt.Errorf("select alerts: %w", err)
	}
	return alerts, nil
}
