package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mlguard/internal/model"
)

// Baseline returns the stored baseline for (key, feature), or nil when
// none exists.
func (s *Store) Baseline(ctx context.Context, key model.Key, feature string) (*model.FeatureBaseline, error) {
	const q = `
		SELECT * FROM feature_baselines
		WHERE project_id = $1 AND model_id = $2 AND endpoint = $3 AND feature = $4`
	var b model.FeatureBaseline
	err := s.db.GetContext(ctx, &b, q, key.ProjectID, key.ModelID, key.Endpoint, feature)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select baseline: %w", err)
	}
	return &b, nil
}

// Baselines returns all baselines captured for the key.
func (s *Store) Baselines(ctx context.Context, key model.Key) ([]model.FeatureBaseline, error) {
	const q = `
		SELECT * FROM feature_baselines
		WHERE project_id = $1 AND model_id = $2 AND endpoint = $3
		ORDER BY feature`
	var rows []model.FeatureBaseline
	if err := s.db.SelectContext(ctx, &rows, q, key.ProjectID, key.ModelID, key.Endpoint); err != nil {
		return nil, fmt.Errorf("select baselines: %w", err)
	}
	return rows, nil
}

// HasBaselines reports whether any baseline exists for the key. The
// worker uses this as a cheap pre-check before drift compute.
func (s *Store) HasBaselines(ctx context.Context, key model.Key) (bool, error) {
	const q = `
		SELECT COUNT(*) FROM feature_baselines
		WHERE project_id = $1 AND model_id = $2 AND endpoint = $3`
	var n int
	if err := s.db.GetContext(ctx, &n, q, key.ProjectID, key.ModelID, key.Endpoint); err != nil {
		return false, fmt.Errorf("count baselines: %w", err)
	}
	return n > 0, nil
}

// ReplaceBaseline persists a captured baseline. With overwrite any
// existing row for the same (key, feature) is deleted in the same
// transaction, so no prior baseline survives the capture.
func (s *Store) ReplaceBaseline(ctx context.Context, b *model.FeatureBaseline, overwrite bool) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if overwrite {
		const del = `
			DELETE FROM feature_baselines
			WHERE project_id = $1 AND model_id = $2 AND endpoint = $3 AND feature = $4`
		if _, err := tx.ExecContext(ctx, del, b.ProjectID, b.ModelID, b.Endpoint, b.Feature); err != nil {
			return fmt.Errorf("delete baseline: %w", err)
		}
	}

	const ins = `
		INSERT INTO feature_baselines
			(project_id, model_id, endpoint, feature, feature_type, n_baseline, definition, baseline_probs)
		VALUES
			(:project_id, :model_id, :endpoint, :feature, :feature_type, :n_baseline, :definition, :baseline_probs)`
	if _, err := tx.NamedExecContext(ctx, ins, b); err != nil {
		return fmt.Errorf("insert baseline: %w", err)
	}

	return tx.Commit()
}
