package model

import "encoding/json"

// NumericValue reports whether a decoded JSON feature value is numeric.
// Booleans are never numeric, matching the baseline capture contract.
func NumericValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// CategoricalValue reports whether a decoded JSON feature value is a
// category label. Only strings qualify; all other types are discarded.
func CategoricalValue(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
