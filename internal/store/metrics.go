package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mlguard/internal/model"
)

// ReplaceDailyMetric stores a daily snapshot. With overwrite any prior
// row for the same (key, day) is deleted in the same transaction.
func (s *Store) ReplaceDailyMetric(ctx context.Context, row *model.DailyMetric, overwrite bool) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if overwrite {
		const del = `
			DELETE FROM daily_metrics
			WHERE project_id = $1 AND model_id = $2 AND endpoint = $3 AND day = $4`
		if _, err := tx.ExecContext(ctx, del, row.ProjectID, row.ModelID, row.Endpoint, row.Day); err != nil {
			return fmt.Errorf("delete daily metric: %w", err)
		}
	}

	const ins = `
		INSERT INTO daily_metrics
			(project_id, model_id, endpoint, day, n_events, latency_p50_ms, latency_p95_ms, y_pred_rate, y_proba_mean, feature_stats)
		VALUES
			(:project_id, :model_id, :endpoint, :day, :n_events, :latency_p50_ms, :latency_p95_ms, :y_pred_rate, :y_proba_mean, :feature_stats)`
	if _, err := tx.NamedExecContext(ctx, ins, row); err != nil {
		return fmt.Errorf("insert daily metric: %w", err)
	}

	return tx.Commit()
}

// DailyMetric returns the stored snapshot for (key, day), or nil.
func (s *Store) DailyMetric(ctx context.Context, key model.Key, day time.Time) (*model.DailyMetric, error) {
	const q = `
		SELECT * FROM daily_metrics
		WHERE project_id = $1 AND model_id = $2 AND endpoint = $3 AND day = $4`
	var row model.DailyMetric
	err := s.db.GetContext(ctx, &row, q, key.ProjectID, key.ModelID, key.Endpoint, day)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select daily metric: %w", err)
	}
	return &row, nil
}
