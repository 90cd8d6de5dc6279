package drift

import (
	"fmt"
	"slices"

	"mlguard/internal/model"
)

// MakeBins builds nBins+1 equal-width bin edges over the sample range.
// A degenerate all-equal sample is widened by ±0.5 so every bin has
// positive width. The last edge is set to the exact sample maximum to
// avoid floating-point drift.
func MakeBins(values []float64, nBins int) ([]float64, error) {
	if nBins < 2 {
		return nil, fmt.Errorf("%w: n_bins must be >= 2, got %d", ErrInvalidInput, nBins)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no numeric values provided", ErrInvalidInput)
	}

	lo := slices.Min(values)
	hi := slices.Max(values)
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	width := (hi - lo) / float64(nBins)
	edges := make([]float64, 0, nBins+1)
	for i := 0; i < nBins; i++ {
		edges = append(edges, lo+float64(i)*width)
	}
	edges = append(edges, hi)
	return edges, nil
}

// HistProbs bins the sample over fixed edges and normalizes counts to
// probabilities. Bin i accepts [e[i], e[i+1]); the last bin is closed
// on both sides. Out-of-range values clamp to the nearest edge bin
// rather than being dropped, which keeps PSI stable when a day's data
// shifts entirely outside the baseline range. An empty sample yields a
// zero vector of the correct length.
func HistProbs(values []float64, edges []float64) []float64 {
	nBins := len(edges) - 1
	counts := make([]int, nBins)

	for _, x := range values {
		placed := false
		for i := 0; i < nBins; i++ {
			left, right := edges[i], edges[i+1]
			if i == nBins-1 {
				if left <= x && x <= right {
					counts[i]++
					placed = true
					break
				}
			} else if left <= x && x < right {
				counts[i]++
				placed = true
				break
			}
		}
		if !placed {
			if x < edges[0] {
				counts[0]++
			} else {
				counts[nBins-1]++
			}
		}
	}

	total := 0
	for _, c := range counts {
		total += c
	}

	probs := make([]float64, nBins)
	if total == 0 {
		return probs
	}
	for i, c := range counts {
		probs[i] = float64(c) / float64(total)
	}
	return probs
}

// FreqProbs counts the sample over a fixed category list and normalizes
// to probabilities. Values outside the list fall into OtherCategory
// when otherBucket is set and are dropped otherwise. Returns the
// category list actually used (with OtherCategory appended when
// needed) alongside the probabilities.
func FreqProbs(values []string, categories []string, otherBucket bool) ([]string, []float64) {
	cats := slices.Clone(categories)
	if otherBucket && !slices.Contains(cats, model.OtherCategory) {
		cats = append(cats, model.OtherCategory)
	}

	counts := make(map[string]int, len(cats))
	for _, c := range cats {
		counts[c] = 0
	}
	hasOther := slices.Contains(cats, model.OtherCategory)

	for _, v := range values {
		if _, ok := counts[v]; ok {
			counts[v]++
		} else if hasOther {
			counts[model.OtherCategory]++
		}
	}

	total := 0
	for _, c := range cats {
		total += counts[c]
	}

	probs := make([]float64, len(cats))
	if total == 0 {
		return cats, probs
	}
	for i, c := range cats {
		probs[i] = float64(counts[c]) / float64(total)
	}
	return cats, probs
}
