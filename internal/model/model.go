// Package model defines the persisted entities of the service and the
// shared helpers for day windowing and feature value classification.
package model

import "time"

// Key identifies one deployed model surface. All events and derived
// rows (metrics, baselines, drift, alerts) are partitioned by it.
type Key struct {
	ProjectID string `json:"project_id" db:"project_id"`
	ModelID   string `json:"model_id" db:"model_id"`
	Endpoint  string `json:"endpoint" db:"endpoint"`
}

func (k Key) String() string {
	return k.ProjectID + "/" + k.ModelID + "/" + k.Endpoint
}

// Event is one prediction record emitted by a deployed model.
// Timestamp is always stored in UTC; Features is non-empty.
type Event struct {
	ID        int64     `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	ModelID   string    `json:"model_id" db:"model_id"`
	Endpoint  string    `json:"endpoint" db:"endpoint"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	LatencyMS *float64  `json:"latency_ms,omitempty" db:"latency_ms"`
	YPred     *int      `json:"y_pred,omitempty" db:"y_pred"`
	YProba    *float64  `json:"y_proba,omitempty" db:"y_proba"`
	Features  JSONMap   `json:"features" db:"features"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Key returns the partition key of the event.
func (e Event) Key() Key {
	return Key{ProjectID: e.ProjectID, ModelID: e.ModelID, Endpoint: e.Endpoint}
}

// FeatureBaseline is the reference distribution of one feature, captured
// from a historical event window. Never mutated in place; capture with
// overwrite replaces the row atomically.
type FeatureBaseline struct {
	ID          int64       `json:"id" db:"id"`
	ProjectID   string      `json:"project_id" db:"project_id"`
	ModelID     string      `json:"model_id" db:"model_id"`
	Endpoint    string      `json:"endpoint" db:"endpoint"`
	Feature     string      `json:"feature" db:"feature"`
	FeatureType string      `json:"feature_type" db:"feature_type"` // "numeric" | "categorical"
	NBaseline   int         `json:"n_baseline" db:"n_baseline"`
	Definition  Definition  `json:"definition" db:"definition"`
	Probs       FloatVector `json:"baseline_probs" db:"baseline_probs"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// DailyMetric is the per-(key, day) aggregate snapshot.
type DailyMetric struct {
	ID           int64        `json:"id" db:"id"`
	ProjectID    string       `json:"project_id" db:"project_id"`
	ModelID      string       `json:"model_id" db:"model_id"`
	Endpoint     string       `json:"endpoint" db:"endpoint"`
	Day          time.Time    `json:"day" db:"day"`
	NEvents      int          `json:"n_events" db:"n_events"`
	LatencyP50MS *float64     `json:"latency_p50_ms" db:"latency_p50_ms"`
	LatencyP95MS *float64     `json:"latency_p95_ms" db:"latency_p95_ms"`
	YPredRate    *float64     `json:"y_pred_rate" db:"y_pred_rate"`
	YProbaMean   *float64     `json:"y_proba_mean" db:"y_proba_mean"`
	FeatureStats FeatureStats `json:"feature_stats" db:"feature_stats"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// FeatureSummary holds the numeric summary for one feature over a day.
type FeatureSummary struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// FeaturePSI is the stored drift result for one feature on one day.
type FeaturePSI struct {
	PSI        float64  `json:"psi"`
	N          int      `json:"n"`
	Type       string   `json:"type"` // "numeric" | "categorical"
	Severity   string   `json:"severity"`
	Categories []string `json:"categories,omitempty"`
}

// DailyDrift is the per-(key, day) map of feature name to PSI result.
type DailyDrift struct {
	ID            int64     `json:"id" db:"id"`
	ProjectID     string    `json:"project_id" db:"project_id"`
	ModelID       string    `json:"model_id" db:"model_id"`
	Endpoint      string    `json:"endpoint" db:"endpoint"`
	Day           time.Time `json:"day" db:"day"`
	PSI           PSIMap    `json:"psi" db:"psi"`
	MaxPSIFeature *string   `json:"max_psi_feature" db:"max_psi_feature"`
	MaxPSI        *float64  `json:"max_psi" db:"max_psi"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Alert is a deduplicated alert record. At most one row exists per
// (project, model, endpoint, day, rule); the storage unique constraint
// is the sole dedup boundary.
type Alert struct {
	ID        int64     `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	ModelID   string    `json:"model_id" db:"model_id"`
	Endpoint  string    `json:"endpoint" db:"endpoint"`
	Day       time.Time `json:"day" db:"day"`
	Rule      string    `json:"rule" db:"rule"`         // e.g. "drift", "cost_spike"
	Severity  string    `json:"severity" db:"severity"` // OK/WARN/ALERT
	Value     float64   `json:"value" db:"value"`
	Threshold float64   `json:"threshold" db:"threshold"`
	Payload   JSONMap   `json:"payload" db:"payload"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DailyCost is one billing snapshot row per (project, day, service).
// Service is a cloud service name or the synthetic "TOTAL".
type DailyCost struct {
	ID        int64     `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	Day       time.Time `json:"day" db:"day"`
	Service   string    `json:"service" db:"service"`
	Amount    float64   `json:"amount" db:"amount"`
	Unit      string    `json:"unit" db:"unit"`
	Payload   JSONMap   `json:"payload" db:"payload"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DayFormat is the wire format for calendar days.
const DayFormat = "2006-01-02"

// FormatDay renders a day column value as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.Format(DayFormat)
}
