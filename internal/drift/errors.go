package drift

import "errors"

// Sentinel errors returned by the drift engine. Callers (HTTP layer,
// worker) classify outcomes with errors.Is instead of matching message
// text.
var (
	// ErrInvalidInput marks malformed parameters: bad bin counts,
	// mismatched vector lengths, inconsistent capture windows.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoEvents means the selected window contains no events at all.
	ErrNoEvents = errors.New("no events found")

	// ErrNoBaselines means the key has no captured baselines.
	ErrNoBaselines = errors.New("no baselines found")

	// ErrBaselineMissing means the requested feature has no baseline.
	ErrBaselineMissing = errors.New("baseline missing")

	// ErrNotEnoughData means the sample is below the required floor
	// (baseline capture minimums or drift min_samples).
	ErrNotEnoughData = errors.New("not enough samples")
)

// Expected reports whether err is a normal operational skip rather than
// a failure: missing baselines, empty windows, thin samples.
func Expected(err error) bool {
	return errors.Is(err, ErrNoBaselines) ||
		errors.Is(err, ErrBaselineMissing) ||
		errors.Is(err, ErrNoEvents) ||
		errors.Is(err, ErrNotEnoughData)
}
