package store

import (
	"context"
	"fmt"
	"time"

	"mlguard/internal/model"
)

// InsertEvents appends a batch of events in one transaction. The commit
// is the last step, so a cancelled request leaves nothing persisted.
func (s *Store) InsertEvents(ctx context.Context, events []model.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO events (project_id, model_id, endpoint, timestamp, latency_ms, y_pred, y_proba, features)
		VALUES (:project_id, :model_id, :endpoint, :timestamp, :latency_ms, :y_pred, :y_proba, :features)`
	for i := range events {
		events[i].Timestamp = events[i].Timestamp.UTC()
		if _, err := tx.NamedExecContext(ctx, q, &events[i]); err != nil {
			return 0, fmt.Errorf("insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(events), nil
}

// EventsInRange returns the key's events with timestamp in [start, end),
// ordered ascending.
func (s *Store) EventsInRange(ctx context.Context, key model.Key, start, end time.Time) ([]model.Event, error) {
	const q = `
		SELECT * FROM events
		WHERE project_id = $1 AND model_id = $2 AND endpoint = $3
		  AND timestamp >= $4 AND timestamp < $5
		ORDER BY timestamp ASC`
	var events []model.Event
	if err := s.db.SelectContext(ctx, &events, q, key.ProjectID, key.ModelID, key.Endpoint, start, end); err != nil {
		return nil, fmt.Errorf("select events in range: %w", err)
	}
	return events, nil
}

// RecentEvents returns the most recent n events for the key.
func (s *Store) RecentEvents(ctx context.Context, key model.Key, n int) ([]model.Event, error) {
	const q = `
		SELECT * FROM events
		WHERE project_id = $1 AND model_id = $2 AND endpoint = $3
		ORDER BY timestamp DESC
		LIMIT $4`
	var events []model.Event
	if err := s.db.SelectContext(ctx, &events, q, key.ProjectID, key.ModelID, key.Endpoint, n); err != nil {
		return nil, fmt.Errorf("select recent events: %w", err)
	}
	return events, nil
}

// DistinctKeys returns every (project, model, endpoint) seen in events.
func (s *Store) DistinctKeys(ctx context.Context) ([]model.Key, error) {
	const q = `
		SELECT DISTINCT project_id, model_id, endpoint
		FROM events
		ORDER BY project_id, model_id, endpoint`
	var keys []model.Key
	if err := s.db.SelectContext(ctx, &keys, q); err != nil {
		return nil, fmt.Errorf("select distinct keys: %w", err)
	}
	return keys, nil
}

// KeysForProject returns the distinct keys within one project.
func (s *Store) KeysForProject(ctx context.Context, projectID string) ([]model.Key, error) {
	const q = `
		SELECT DISTINCT project_id, model_id, endpoint
		FROM events
		WHERE project_id = $1
		ORDER BY model_id, endpoint`
	var keys []model.Key
	if err := s.db.SelectContext(ctx, &keys, q, projectID); err != nil {
		return nil, fmt.Errorf("select keys for project: %w", err)
	}
	return keys, nil
}

// DistinctProjects returns every project_id seen in events.
func (s *Store) DistinctProjects(ctx context.Context) ([]string, error) {
	const q = `SELECT DISTINCT project_id FROM events ORDER BY project_id`
	var projects []string
	if err := s.db.SelectContext(ctx, &projects, q); err != nil {
		return nil, fmt.Errorf("select distinct projects: %w", err)
	}
	return projects, nil
}

// DaysWithEvents returns the distinct UTC dates having events for the
// key, ascending.
func (s *Store) DaysWithEvents(ctx context.Context, key model.Key) ([]time.Time, error) {
	const q = `
		SELECT DISTINCT (timestamp AT TIME ZONE 'UTC')::date AS day
		FROM events
		WHERE project_id = $1 AND model_id = $2 AND endpoint = $3
		ORDER BY day`
	var days []time.Time
	if err := s.db.SelectContext(ctx, &days, q, key.ProjectID, key.ModelID, key.Endpoint); err != nil {
		return nil, fmt.Errorf("select event days: %w", err)
	}
	return days, nil
}
