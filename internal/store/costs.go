package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mlguard/internal/model"
)

// TotalService is the synthetic per-day service row carrying the summed
// cost, convenient for spike checks.
const TotalService = "TOTAL"

// ReplaceDailyCosts stores cost rows for (project, day). With overwrite
// existing rows for that coordinate are deleted first.
func (s *Store) ReplaceDailyCosts(ctx context.Context, projectID string, day time.Time, rows []model.DailyCost, overwrite bool) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if overwrite {
		const del = `DELETE FROM daily_costs WHERE project_id = $1 AND day = $2`
		if _, err := tx.ExecContext(ctx, del, projectID, day); err != nil {
			return 0, fmt.Errorf("delete daily costs: %w", err)
		}
	}

	const ins = `
		INSERT INTO daily_costs (project_id, day, service, amount, unit, payload)
		VALUES (:project_id, :day, :service, :amount, :unit, :payload)`
	for i := range rows {
		rows[i].ProjectID = projectID
		rows[i].Day = day
		if _, err := tx.NamedExecContext(ctx, ins, &rows[i]); err != nil {
			return 0, fmt.Errorf("insert daily cost: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// DailyCosts returns the stored cost rows for (project, day) ordered by
// service.
func (s *Store) DailyCosts(ctx context.Context, projectID string, day time.Time) ([]model.DailyCost, error) {
	const q = `
		SELECT * FROM daily_costs
		WHERE project_id = $1 AND day = $2
		ORDER BY service ASC`
	var rows []model.DailyCost
	if err := s.db.SelectContext(ctx, &rows, q, projectID, day); err != nil {
		return nil, fmt.Errorf("select daily costs: %w", err)
	}
	return rows, nil
}

// TotalCost returns the TOTAL row for (project, day), or nil.
func (s *Store) TotalCost(ctx context.Context, projectID string, day time.Time) (*model.DailyCost, error) {
	const q = `
		SELECT * FROM daily_costs
		WHERE project_id = $1 AND day = $2 AND service = $3`
	var row model.DailyCost
	err := s.db.GetContext(ctx, &row, q, projectID, day, TotalService)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select total cost: %w", err)
	}
	return &row, nil
}

// TrailingAverageTotalCost averages the TOTAL rows over the lookback
// days strictly before day. Returns nil when no history exists.
func (s *Store) TrailingAverageTotalCost(ctx context.Context, projectID string, day time.Time, lookbackDays int) (*float64, error) {
	start := day.AddDate(0, 0, -lookbackDays)
	const q = `
		SELECT AVG(amount) FROM daily_costs
		WHERE project_id = $1 AND service = $2 AND day >= $3 AND day < $4`
	var avg sql.NullFloat64
	if err := s.db.GetContext(ctx, &avg, q, projectID, TotalService, start, day); err != nil {
		return nil, fmt.Errorf("select trailing average cost: %w", err)
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}
