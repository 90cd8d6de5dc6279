package drift

import (
	"context"
	"fmt"
	"sort"
	"time"

	"mlguard/internal/model"
)

// Baseline capture floors. Numeric capture additionally requires at
// least 2*n_bins samples so every bin can be populated.
const (
	minBaselineSamples = 20
	// DefaultBins is the default numeric histogram resolution.
	DefaultBins = 10
	// DefaultTopK is the default number of kept categories.
	DefaultTopK = 50
	// DefaultRecentN is the fallback sample size when no window is given.
	DefaultRecentN = 500
)

// CaptureParams selects the sample window and shape for one baseline.
// Exactly one of three window modes applies: an explicit UTC timestamp
// range, a [StartDay, EndDay) range in TZ, or (fallback) the most
// recent N events.
type CaptureParams struct {
	Feature string

	StartTS *time.Time
	EndTS   *time.Time

	StartDay *time.Time
	EndDay   *time.Time
	TZ       string

	N              int
	NBins          int
	TopKCategories int
	Overwrite      bool
}

func (p *CaptureParams) setDefaults() {
	if p.TZ == "" {
		p.TZ = "UTC"
	}
	if p.N <= 0 {
		p.N = DefaultRecentN
	}
	if p.NBins <= 0 {
		p.NBins = DefaultBins
	}
	if p.TopKCategories <= 0 {
		p.TopKCategories = DefaultTopK
	}
}

// CaptureBaseline loads the selected event window, classifies the
// feature as numeric or categorical by majority, builds its reference
// distribution and persists it.
func (e *Engine) CaptureBaseline(ctx context.Context, key model.Key, p CaptureParams) (*model.FeatureBaseline, error) {
	p.setDefaults()
	if p.Feature == "" {
		return nil, fmt.Errorf("%w: feature is required", ErrInvalidInput)
	}

	events, err := e.loadCaptureWindow(ctx, key, p)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w for baseline capture window", ErrNoEvents)
	}

	var numericVals []float64
	var catVals []string
	for _, ev := range events {
		v, ok := ev.Features[p.Feature]
		if !ok {
			continue
		}
		if f, isNum := model.NumericValue(v); isNum {
			numericVals = append(numericVals, f)
		} else if s, isCat := model.CategoricalValue(v); isCat {
			catVals = append(catVals, s)
		}
	}

	b := &model.FeatureBaseline{
		ProjectID: key.ProjectID,
		ModelID:   key.ModelID,
		Endpoint:  key.Endpoint,
		Feature:   p.Feature,
	}

	// Majority type dispatch; numeric wins ties.
	if len(numericVals) > 0 && len(numericVals) >= len(catVals) {
		floor := max(minBaselineSamples, 2*p.NBins)
		if len(numericVals) < floor {
			return nil, fmt.Errorf("%w: feature %q needs %d numeric values, got %d",
				ErrNotEnoughData, p.Feature, floor, len(numericVals))
		}
		edges, err := MakeBins(numericVals, p.NBins)
		if err != nil {
			return nil, err
		}
		b.FeatureType = model.DefNumeric
		b.NBaseline = len(numericVals)
		b.Definition = model.NumericDefinition(edges)
		b.Probs = HistProbs(numericVals, edges)
	} else {
		if len(catVals) < minBaselineSamples {
			return nil, fmt.Errorf("%w: feature %q needs %d categorical values, got %d",
				ErrNotEnoughData, p.Feature, minBaselineSamples, len(catVals))
		}
		counts := make(map[string]int)
		for _, v := range catVals {
			counts[v]++
		}
		type cc struct {
			cat string
			n   int
		}
		ranked := make([]cc, 0, len(counts))
		for c, n := range counts {
			ranked = append(ranked, cc{c, n})
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].n != ranked[j].n {
				return ranked[i].n > ranked[j].n
			}
			return ranked[i].cat < ranked[j].cat
		})
		keep := make([]string, 0, min(p.TopKCategories, len(ranked)))
		for i := 0; i < len(ranked) && i < p.TopKCategories; i++ {
			keep = append(keep, ranked[i].cat)
		}

		// The stored category list includes __OTHER__ so the baseline
		// probability vector stays aligned with runtime evaluation.
		catsUsed, probs := FreqProbs(catVals, keep, true)
		b.FeatureType = model.DefCategorical
		b.NBaseline = len(catVals)
		b.Definition = model.CategoricalDefinition(catsUsed, true)
		b.Probs = probs
	}

	if err := e.baselines.ReplaceBaseline(ctx, b, p.Overwrite); err != nil {
		return nil, err
	}
	return b, nil
}

func (e *Engine) loadCaptureWindow(ctx context.Context, key model.Key, p CaptureParams) ([]model.Event, error) {
	switch {
	case p.StartTS != nil || p.EndTS != nil:
		if p.StartTS == nil || p.EndTS == nil {
			return nil, fmt.Errorf("%w: timestamp window needs both start_ts and end_ts", ErrInvalidInput)
		}
		return e.events.EventsInRange(ctx, key, p.StartTS.UTC(), p.EndTS.UTC())
	case p.StartDay != nil && p.EndDay != nil:
		start, _, err := model.DayWindow(*p.StartDay, p.TZ)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		// EndDay is exclusive: the window closes at its local midnight.
		end, _, err := model.DayWindow(*p.EndDay, p.TZ)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return e.events.EventsInRange(ctx, key, start, end)
	default:
		return e.events.RecentEvents(ctx, key, p.N)
	}
}
