package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mlguard/internal/model"
)

// DailyDrift returns the stored drift row for (key, day), or nil.
func (s *Store) DailyDrift(ctx context.Context, key model.Key, day time.Time) (*model.DailyDrift, error) {
	const q = `
		SELECT * FROM daily_drift
		WHERE project_id = $1 AND model_id = $2 AND endpoint = $3 AND day = $4`
	var row model.DailyDrift
	err := s.db.GetContext(ctx, &row, q, key.ProjectID, key.ModelID, key.Endpoint, day)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select daily drift: %w", err)
	}
	return &row, nil
}

// Upsert writes a drift row with its full recomputed payload. Racing
// writers on the same (key, day) resolve through the unique constraint:
// the later payload wins without a read-modify-write lost update.
func (s *Store) Upsert(ctx context.Context, row *model.DailyDrift) error {
	const q = `
		INSERT INTO daily_drift (project_id, model_id, endpoint, day, psi, max_psi_feature, max_psi)
		VALUES (:project_id, :model_id, :endpoint, :day, :psi, :max_psi_feature, :max_psi)
		ON CONFLICT ON CONSTRAINT uq_daily_drift DO UPDATE SET
			psi = EXCLUDED.psi,
			max_psi_feature = EXCLUDED.max_psi_feature,
			max_psi = EXCLUDED.max_psi`
	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		return fmt.Errorf("upsert daily drift: %w", err)
	}
	return nil
}
