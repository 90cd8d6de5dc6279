package drift

import (
	"fmt"
	"math"
)

// Severity labels derived from the PSI threshold ladder.
const (
	SeverityOK    = "OK"
	SeverityWarn  = "WARN"
	SeverityAlert = "ALERT"
)

// PSI thresholds: < 0.10 OK, [0.10, 0.25) WARN, >= 0.25 ALERT.
const (
	WarnThreshold  = 0.10
	AlertThreshold = 0.25
)

// psiEpsilon floors each probability before the log ratio so empty
// bins cannot produce infinities. With the floor applied to both sides
// the sum is non-negative by construction.
const psiEpsilon = 1e-6

// PSI computes the Population Stability Index between an expected
// (baseline) and actual distribution over the same bins.
//
//	PSI = sum((a' - e') * ln(a'/e')), e' = max(e, eps), a' = max(a, eps)
func PSI(expected, actual []float64) (float64, error) {
	if len(expected) != len(actual) {
		return 0, fmt.Errorf("%w: expected and actual must have the same length (%d vs %d)",
			ErrInvalidInput, len(expected), len(actual))
	}

	total := 0.0
	for i := range expected {
		e := math.Max(expected[i], psiEpsilon)
		a := math.Max(actual[i], psiEpsilon)
		total += (a - e) * math.Log(a/e)
	}
	return total, nil
}

// ClassifySeverity maps a PSI value onto the OK/WARN/ALERT ladder.
func ClassifySeverity(psi float64) string {
	switch {
	case psi < WarnThreshold:
		return SeverityOK
	case psi < AlertThreshold:
		return SeverityWarn
	default:
		return SeverityAlert
	}
}
