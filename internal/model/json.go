package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// scanJSON decodes a JSON/JSONB column value into dst.
func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("cannot scan %T into JSON value", src)
	}
}

// JSONMap is a free-form JSON object column (features, payloads).
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(src any) error {
	*m = JSONMap{}
	return scanJSON(src, m)
}

// FloatVector is an ordered JSON array of reals (baseline probabilities).
type FloatVector []float64

func (v FloatVector) Value() (driver.Value, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(v)
}

func (v *FloatVector) Scan(src any) error {
	*v = nil
	return scanJSON(src, v)
}

// FeatureStats maps feature name to its daily numeric summary.
type FeatureStats map[string]FeatureSummary

func (s FeatureStats) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s)
}

func (s *FeatureStats) Scan(src any) error {
	*s = FeatureStats{}
	return scanJSON(src, s)
}

// PSIMap maps feature name to its stored drift result.
type PSIMap map[string]FeaturePSI

func (m PSIMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *PSIMap) Scan(src any) error {
	*m = PSIMap{}
	return scanJSON(src, m)
}
