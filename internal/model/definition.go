package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Baseline definition kinds.
const (
	DefNumeric     = "numeric"
	DefCategorical = "categorical"
)

// OtherCategory is the sentinel bucket absorbing categorical values
// outside the captured top-k set.
const OtherCategory = "__OTHER__"

// Definition is the tagged baseline definition stored alongside the
// baseline probabilities.
//
// Numeric:     {"type":"numeric","bin_edges":[...]}
// Categorical: {"type":"categorical","categories":[...],"other_bucket":true}
//
// The legacy plain-list form [e0, e1, ..., eN] is accepted on read and
// treated as numeric bin edges.
type Definition struct {
	Type        string    `json:"type"`
	BinEdges    []float64 `json:"bin_edges,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	OtherBucket bool      `json:"other_bucket,omitempty"`
}

// NumericDefinition builds a numeric definition over the given edges.
func NumericDefinition(edges []float64) Definition {
	return Definition{Type: DefNumeric, BinEdges: edges}
}

// CategoricalDefinition builds a categorical definition. The category
// list must already include OtherCategory when otherBucket is true.
func CategoricalDefinition(categories []string, otherBucket bool) Definition {
	return Definition{Type: DefCategorical, Categories: categories, OtherBucket: otherBucket}
}

// Dimension returns the expected length of the probability vector.
func (d Definition) Dimension() int {
	switch d.Type {
	case DefNumeric:
		if n := len(d.BinEdges); n > 0 {
			return n - 1
		}
		return 0
	case DefCategorical:
		return len(d.Categories)
	default:
		return 0
	}
}

func (d *Definition) UnmarshalJSON(data []byte) error {
	// Legacy numeric baselines were stored as a bare edges array.
	var edges []float64
	if err := json.Unmarshal(data, &edges); err == nil {
		*d = Definition{Type: DefNumeric, BinEdges: edges}
		return nil
	}

	type alias Definition
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	switch a.Type {
	case DefNumeric, DefCategorical:
		*d = Definition(a)
		return nil
	default:
		return fmt.Errorf("unknown baseline definition type %q", a.Type)
	}
}

func (d Definition) Value() (driver.Value, error) {
	type alias Definition
	return json.Marshal(alias(d))
}

func (d *Definition) Scan(src any) error {
	*d = Definition{}
	return scanJSON(src, d)
}
