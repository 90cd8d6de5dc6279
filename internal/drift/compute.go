package drift

import (
	"context"
	"fmt"
	"sort"
	"time"

	"mlguard/internal/model"
)

// DefaultMinSamples is the minimum day-window sample size for a
// feature's drift to be computed.
const DefaultMinSamples = 10

// AllResult is the outcome of an all-feature drift computation.
type AllResult struct {
	PSI              model.PSIMap   `json:"psi"`
	MissingBaseline  []string       `json:"missing_baseline"`
	SkippedLowSample map[string]int `json:"skipped_low_sample"`
	MinSamples       int            `json:"min_samples"`
	MaxPSIFeature    string         `json:"max_psi_feature"`
	MaxPSI           float64        `json:"max_psi"`
	MaxSeverity      string         `json:"max_severity"`
}

// ComputeOne computes PSI for a single baselined feature over the day
// window and merges the result into the stored DailyDrift row.
func (e *Engine) ComputeOne(ctx context.Context, key model.Key, day time.Time, feature, tz string, minSamples int) (*model.FeaturePSI, error) {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}

	baseline, err := e.baselines.Baseline(ctx, key, feature)
	if err != nil {
		return nil, err
	}
	if baseline == nil {
		return nil, fmt.Errorf("%w for feature %q; capture one first", ErrBaselineMissing, feature)
	}

	start, end, err := model.DayWindow(day, tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	events, err := e.events.EventsInRange(ctx, key, start, end)
	if err != nil {
		return nil, err
	}

	result, err := evaluate(baseline, extractSample(events, feature, baseline.Definition.Type), minSamples, day, tz)
	if err != nil {
		return nil, err
	}

	row, err := e.drift.DailyDrift(ctx, key, day)
	if err != nil {
		return nil, err
	}
	if row == nil {
		row = &model.DailyDrift{
			ProjectID: key.ProjectID,
			ModelID:   key.ModelID,
			Endpoint:  key.Endpoint,
			Day:       day,
			PSI:       model.PSIMap{},
		}
	}
	row.PSI[feature] = *result
	applyMax(row)
	if err := e.drift.Upsert(ctx, row); err != nil {
		return nil, err
	}
	return result, nil
}

// ComputeAll computes PSI for every baselined feature of the key over
// the day window. Features with thin samples are skipped (not fatal);
// observed features without a baseline are reported. With overwrite the
// stored psi map is replaced, otherwise results merge into it.
func (e *Engine) ComputeAll(ctx context.Context, key model.Key, day time.Time, tz string, minSamples int, overwrite bool) (*AllResult, error) {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}

	baselines, err := e.baselines.Baselines(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(baselines) == 0 {
		return nil, fmt.Errorf("%w; capture at least one baseline first", ErrNoBaselines)
	}

	start, end, err := model.DayWindow(day, tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	events, err := e.events.EventsInRange(ctx, key, start, end)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w for %s on %s (%s)", ErrNoEvents, key, model.FormatDay(day), tz)
	}

	// One pass over the day's events, splitting every observed feature
	// value by type.
	numericValues := make(map[string][]float64)
	catValues := make(map[string][]string)
	seen := make(map[string]bool)
	for _, ev := range events {
		for name, v := range ev.Features {
			seen[name] = true
			if f, ok := model.NumericValue(v); ok {
				numericValues[name] = append(numericValues[name], f)
			} else if s, ok := model.CategoricalValue(v); ok {
				catValues[name] = append(catValues[name], s)
			}
		}
	}

	baselined := make(map[string]bool, len(baselines))
	results := model.PSIMap{}
	skipped := make(map[string]int)

	sort.Slice(baselines, func(i, j int) bool { return baselines[i].Feature < baselines[j].Feature })
	for i := range baselines {
		b := &baselines[i]
		baselined[b.Feature] = true

		sample := sampleFor(b.Definition.Type, numericValues[b.Feature], catValues[b.Feature])
		if sample.size() < minSamples {
			skipped[b.Feature] = sample.size()
			continue
		}
		result, err := evaluate(b, sample, minSamples, day, tz)
		if err != nil {
			return nil, err
		}
		results[b.Feature] = *result
	}

	var missing []string
	for name := range seen {
		if !baselined[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)

	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no drift computed (missing_baseline=%v skipped_low_sample=%v)",
			ErrNotEnoughData, missing, skipped)
	}

	row, err := e.drift.DailyDrift(ctx, key, day)
	if err != nil {
		return nil, err
	}
	if row == nil {
		row = &model.DailyDrift{
			ProjectID: key.ProjectID,
			ModelID:   key.ModelID,
			Endpoint:  key.Endpoint,
			Day:       day,
			PSI:       model.PSIMap{},
		}
	}
	if overwrite {
		row.PSI = results
	} else {
		// Merge keeps prior entries for features skipped this run.
		for f, r := range results {
			row.PSI[f] = r
		}
	}
	applyMax(row)
	if err := e.drift.Upsert(ctx, row); err != nil {
		return nil, err
	}

	maxFeat, maxPSI, _ := maxPSIEntry(results)
	return &AllResult{
		PSI:              results,
		MissingBaseline:  missing,
		SkippedLowSample: skipped,
		MinSamples:       minSamples,
		MaxPSIFeature:    maxFeat,
		MaxPSI:           maxPSI,
		MaxSeverity:      ClassifySeverity(maxPSI),
	}, nil
}

// sample holds the day-window values of one feature in the baseline's
// value space.
type sample struct {
	numeric []float64
	cats    []string
	kind    string
}

func (s sample) size() int {
	if s.kind == model.DefNumeric {
		return len(s.numeric)
	}
	return len(s.cats)
}

func sampleFor(kind string, numeric []float64, cats []string) sample {
	if kind == model.DefNumeric {
		return sample{numeric: numeric, kind: model.DefNumeric}
	}
	return sample{cats: cats, kind: model.DefCategorical}
}

func extractSample(events []model.Event, feature, kind string) sample {
	s := sample{kind: kind}
	for _, ev := range events {
		v, ok := ev.Features[feature]
		if !ok {
			continue
		}
		if kind == model.DefNumeric {
			if f, isNum := model.NumericValue(v); isNum {
				s.numeric = append(s.numeric, f)
			}
		} else if str, isCat := model.CategoricalValue(v); isCat {
			s.cats = append(s.cats, str)
		}
	}
	return s
}

// evaluate computes actual probabilities with the baseline's definition
// and scores PSI against the stored baseline probabilities.
func evaluate(b *model.FeatureBaseline, s sample, minSamples int, day time.Time, tz string) (*model.FeaturePSI, error) {
	if s.size() < minSamples {
		return nil, fmt.Errorf("%w: feature %q on %s (%s): got %d, min_samples %d",
			ErrNotEnoughData, b.Feature, model.FormatDay(day), tz, s.size(), minSamples)
	}

	switch b.Definition.Type {
	case model.DefNumeric:
		actual := HistProbs(s.numeric, b.Definition.BinEdges)
		score, err := PSI(b.Probs, actual)
		if err != nil {
			return nil, err
		}
		return &model.FeaturePSI{
			PSI:      score,
			N:        len(s.numeric),
			Type:     model.DefNumeric,
			Severity: ClassifySeverity(score),
		}, nil
	case model.DefCategorical:
		catsUsed, actual := FreqProbs(s.cats, b.Definition.Categories, b.Definition.OtherBucket)
		score, err := PSI(b.Probs, actual)
		if err != nil {
			return nil, err
		}
		return &model.FeaturePSI{
			PSI:        score,
			N:          len(s.cats),
			Type:       model.DefCategorical,
			Severity:   ClassifySeverity(score),
			Categories: catsUsed,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown baseline definition type %q", ErrInvalidInput, b.Definition.Type)
	}
}
