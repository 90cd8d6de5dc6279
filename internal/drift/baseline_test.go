package drift

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sort"
	"testing"
	"time"

	"mlguard/internal/model"
)

// fakeStore is an in-memory EventSource + BaselineStore + DriftStore.
type fakeStore struct {
	events    []model.Event
	baselines map[string]*model.FeatureBaseline
	drift     map[string]*model.DailyDrift

	replaceCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		baselines: make(map[string]*model.FeatureBaseline),
		drift:     make(map[string]*model.DailyDrift),
	}
}

func (f *fakeStore) EventsInRange(_ context.Context, key model.Key, start, end time.Time) ([]model.Event, error) {
	var out []model.Event
	for _, ev := range f.events {
		if ev.Key() == key && !ev.Timestamp.Before(start) && ev.Timestamp.Before(end) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeStore) RecentEvents(_ context.Context, key model.Key, n int) ([]model.Event, error) {
	var out []model.Event
	for _, ev := range f.events {
		if ev.Key() == key {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *fakeStore) Baseline(_ context.Context, key model.Key, feature string) (*model.FeatureBaseline, error) {
	return f.baselines[key.String()+"/"+feature], nil
}

func (f *fakeStore) Baselines(_ context.Context, key model.Key) ([]model.FeatureBaseline, error) {
	var out []model.FeatureBaseline
	for _, b := range f.baselines {
		if (model.Key{ProjectID: b.ProjectID, ModelID: b.ModelID, Endpoint: b.Endpoint}) == key {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) ReplaceBaseline(_ context.Context, b *model.FeatureBaseline, _ bool) error {
	key := model.Key{ProjectID: b.ProjectID, ModelID: b.ModelID, Endpoint: b.Endpoint}
	f.baselines[key.String()+"/"+b.Feature] = b
	f.replaceCalls++
	return nil
}

func (f *fakeStore) DailyDrift(_ context.Context, key model.Key, day time.Time) (*model.DailyDrift, error) {
	return f.drift[key.String()+"/"+model.FormatDay(day)], nil
}

func (f *fakeStore) Upsert(_ context.Context, row *model.DailyDrift) error {
	key := model.Key{ProjectID: row.ProjectID, ModelID: row.ModelID, Endpoint: row.Endpoint}
	f.drift[key.String()+"/"+model.FormatDay(row.Day)] = row
	return nil
}

var testKey = model.Key{ProjectID: "proj", ModelID: "churn", Endpoint: "predict"}

func numericEvent(key model.Key, ts time.Time, feature string, v float64) model.Event {
	return model.Event{
		ProjectID: key.ProjectID, ModelID: key.ModelID, Endpoint: key.Endpoint,
		Timestamp: ts,
		Features:  model.JSONMap{feature: v},
	}
}

func catEvent(key model.Key, ts time.Time, feature, v string) model.Event {
	return model.Event{
		ProjectID: key.ProjectID, ModelID: key.ModelID, Endpoint: key.Endpoint,
		Timestamp: ts,
		Features:  model.JSONMap{feature: v},
	}
}

func TestCaptureBaselineNumeric(t *testing.T) {
	fs := newFakeStore()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		fs.events = append(fs.events, numericEvent(testKey, base.Add(time.Duration(i)*time.Minute), "age", float64(i)))
	}
	e := NewEngine(fs, fs, fs)

	b, err := e.CaptureBaseline(context.Background(), testKey, CaptureParams{Feature: "age"})
	if err != nil {
		t.Fatalf("CaptureBaseline() error = %v", err)
	}
	if b.FeatureType != model.DefNumeric {
		t.Errorf("FeatureType = %v, want numeric", b.FeatureType)
	}
	if b.NBaseline != 40 {
		t.Errorf("NBaseline = %v, want 40", b.NBaseline)
	}
	if len(b.Definition.BinEdges) != DefaultBins+1 {
		t.Errorf("len(BinEdges) = %v, want %v", len(b.Definition.BinEdges), DefaultBins+1)
	}
	if len(b.Probs) != DefaultBins {
		t.Errorf("len(Probs) = %v, want %v", len(b.Probs), DefaultBins)
	}
	sum := 0.0
	for _, p := range b.Probs {
		sum += p
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("probs sum = %v, want 1.0", sum)
	}
	if fs.replaceCalls != 1 {
		t.Errorf("replaceCalls = %v, want 1", fs.replaceCalls)
	}
}

func TestCaptureBaselineNumericTooFew(t *testing.T) {
	fs := newFakeStore()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		fs.events = append(fs.events, numericEvent(testKey, base.Add(time.Duration(i)*time.Minute), "age", float64(i)))
	}
	e := NewEngine(fs, fs, fs)

	_, err := e.CaptureBaseline(context.Background(), testKey, CaptureParams{Feature: "age"})
	if !errors.Is(err, ErrNotEnoughData) {
		t.Errorf("CaptureBaseline() error = %v, want ErrNotEnoughData", err)
	}
}

func TestCaptureBaselineCategorical(t *testing.T) {
	fs := newFakeStore()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	// 12x US, 9x CA, 3x FR
	vals := append(append(
		repeat("US", 12), repeat("CA", 9)...), repeat("FR", 3)...)
	for i, v := range vals {
		fs.events = append(fs.events, catEvent(testKey, base.Add(time.Duration(i)*time.Minute), "country", v))
	}
	e := NewEngine(fs, fs, fs)

	b, err := e.CaptureBaseline(context.Background(), testKey, CaptureParams{
		Feature:        "country",
		TopKCategories: 2,
	})
	if err != nil {
		t.Fatalf("CaptureBaseline() error = %v", err)
	}
	if b.FeatureType != model.DefCategorical {
		t.Errorf("FeatureType = %v, want categorical", b.FeatureType)
	}
	wantCats := []string{"US", "CA", model.OtherCategory}
	if !reflect.DeepEqual(b.Definition.Categories, wantCats) {
		t.Errorf("Categories = %v, want %v", b.Definition.Categories, wantCats)
	}
	if !b.Definition.OtherBucket {
		t.Error("OtherBucket = false, want true")
	}
	wantProbs := []float64{12.0 / 24, 9.0 / 24, 3.0 / 24}
	if !floatsEqual(b.Probs, wantProbs, 1e-9) {
		t.Errorf("Probs = %v, want %v", b.Probs, wantProbs)
	}
}

func TestCaptureBaselineValidation(t *testing.T) {
	fs := newFakeStore()
	e := NewEngine(fs, fs, fs)
	now := time.Now()

	tests := []struct {
		name    string
		params  CaptureParams
		wantErr error
	}{
		{"MissingFeature", CaptureParams{}, ErrInvalidInput},
		{"HalfTimestampWindow", CaptureParams{Feature: "age", StartTS: &now}, ErrInvalidInput},
		{"EmptyWindow", CaptureParams{Feature: "age"}, ErrNoEvents},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.CaptureBaseline(context.Background(), testKey, tt.params); !errors.Is(err, tt.wantErr) {
				t.Errorf("CaptureBaseline() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCaptureBaselineDayWindow(t *testing.T) {
	fs := newFakeStore()
	// 2024-03-09 in America/Vancouver (PST, UTC-8) covers
	// [2024-03-09T08:00Z, 2024-03-10T08:00Z).
	inWindow := time.Date(2024, 3, 10, 7, 30, 0, 0, time.UTC)
	outWindow := time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		fs.events = append(fs.events, numericEvent(testKey, inWindow, "age", float64(i)))
	}
	for i := 0; i < 25; i++ {
		fs.events = append(fs.events, numericEvent(testKey, outWindow, "age", 1000))
	}
	e := NewEngine(fs, fs, fs)

	start := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	b, err := e.CaptureBaseline(context.Background(), testKey, CaptureParams{
		Feature:  "age",
		StartDay: &start,
		EndDay:   &end,
		TZ:       "America/Vancouver",
	})
	if err != nil {
		t.Fatalf("CaptureBaseline() error = %v", err)
	}
	if b.NBaseline != 25 {
		t.Errorf("NBaseline = %v, want 25 (events outside the local day must be excluded)", b.NBaseline)
	}
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
