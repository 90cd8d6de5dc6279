package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mlguard/internal/drift"
	"mlguard/internal/model"
	"mlguard/internal/store"
)

type fakeAPIStore struct {
	inserted []model.Event
	metric   *model.DailyMetric
	driftRow *model.DailyDrift
	alerts   []model.Alert
}

func (f *fakeAPIStore) InsertEvents(_ context.Context, events []model.Event) (int, error) {
	f.inserted = append(f.inserted, events...)
	return len(events), nil
}

func (f *fakeAPIStore) KeysForProject(_ context.Context, projectID string) ([]model.Key, error) {
	return []model.Key{{ProjectID: projectID, ModelID: "churn", Endpoint: "predict"}}, nil
}

func (f *fakeAPIStore) DaysWithEvents(context.Context, model.Key) ([]time.Time, error) {
	return []time.Time{time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)}, nil
}

func (f *fakeAPIStore) DailyMetric(context.Context, model.Key, time.Time) (*model.DailyMetric, error) {
	return f.metric, nil
}

func (f *fakeAPIStore) DailyDrift(context.Context, model.Key, time.Time) (*model.DailyDrift, error) {
	return f.driftRow, nil
}

func (f *fakeAPIStore) ListAlerts(context.Context, store.AlertFilter) ([]model.Alert, error) {
	return f.alerts, nil
}

type fakeMetricsEngine struct{}

func (fakeMetricsEngine) ComputeDaily(_ context.Context, key model.Key, day time.Time, _ string, _ bool) (*model.DailyMetric, error) {
	return &model.DailyMetric{
		ProjectID: key.ProjectID, ModelID: key.ModelID, Endpoint: key.Endpoint,
		Day: day, NEvents: 10, FeatureStats: model.FeatureStats{},
	}, nil
}

type fakeDriftEngine struct {
	all    *drift.AllResult
	allErr error
}

func (f *fakeDriftEngine) CaptureBaseline(_ context.Context, key model.Key, p drift.CaptureParams) (*model.FeatureBaseline, error) {
	return &model.FeatureBaseline{
		ProjectID: key.ProjectID, ModelID: key.ModelID, Endpoint: key.Endpoint,
		Feature: p.Feature, FeatureType: model.DefNumeric, NBaseline: 100,
	}, nil
}

func (f *fakeDriftEngine) ComputeOne(context.Context, model.Key, time.Time, string, string, int) (*model.FeaturePSI, error) {
	return &model.FeaturePSI{PSI: 0.05, N: 100, Type: model.DefNumeric, Severity: drift.SeverityOK}, nil
}

func (f *fakeDriftEngine) ComputeAll(context.Context, model.Key, time.Time, string, int, bool) (*drift.AllResult, error) {
	return f.all, f.allErr
}

type fakeAlerts struct {
	created []model.Alert
}

func (f *fakeAlerts) CreateOnce(_ context.Context, key model.Key, day time.Time, rule, severity string, value, threshold float64, payload model.JSONMap) (bool, *model.Alert, error) {
	a := model.Alert{
		ID:        int64(len(f.created) + 1),
		ProjectID: key.ProjectID, ModelID: key.ModelID, Endpoint: key.Endpoint,
		Day: day, Rule: rule, Severity: severity, Value: value, Threshold: threshold,
		Payload: payload,
	}
	f.created = append(f.created, a)
	return true, &a, nil
}

type fakeNotifier struct {
	enabled bool
	sent    []string
	err     error
}

func (f *fakeNotifier) Enabled() bool { return f.enabled }
func (f *fakeNotifier) Send(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

func newTestServer(t *testing.T, st *fakeAPIStore, de *fakeDriftEngine, fa *fakeAlerts, fn *fakeNotifier, cs CostService) http.Handler {
	t.Helper()
	if st == nil {
		st = &fakeAPIStore{}
	}
	if de == nil {
		de = &fakeDriftEngine{}
	}
	if fa == nil {
		fa = &fakeAlerts{}
	}
	if fn == nil {
		fn = &fakeNotifier{}
	}
	srv := NewServer(st, fakeMetricsEngine{}, de, fa, fn, cs, Options{
		EnableAuth:   true,
		APIKeyHeader: "X-API-Key",
		APIKey:       "secret",
	})
	return srv.Routes()
}

func doJSON(t *testing.T, h http.Handler, method, target, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if auth {
		req.Header.Set("X-API-Key", "secret")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuth(t *testing.T) {
	h := newTestServer(t, nil, nil, nil, nil, nil)

	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"MissingKey", "/api/v1/alerts", "", http.StatusUnauthorized},
		{"WrongKey", "/api/v1/alerts", "nope", http.StatusUnauthorized},
		{"CorrectKey", "/api/v1/alerts", "secret", http.StatusOK},
		{"HealthIsOpen", "/api/v1/health", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAuthDisabled(t *testing.T) {
	srv := NewServer(&fakeAPIStore{}, fakeMetricsEngine{}, &fakeDriftEngine{}, &fakeAlerts{}, &fakeNotifier{}, nil, Options{
		EnableAuth: false,
	})
	rec := doJSON(t, srv.Routes(), http.MethodGet, "/api/v1/alerts", "", false)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", rec.Code)
	}
}

func TestIngestEvents(t *testing.T) {
	st := &fakeAPIStore{}
	h := newTestServer(t, st, nil, nil, nil, nil)

	t.Run("Single", func(t *testing.T) {
		body := `{"project_id":"proj","model_id":"churn","features":{"age":42},"y_proba":0.7}`
		rec := doJSON(t, h, http.MethodPost, "/api/v1/events", body, true)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var resp ingestResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Inserted != 1 {
			t.Errorf("inserted = %d, want 1", resp.Inserted)
		}
		last := st.inserted[len(st.inserted)-1]
		if last.Endpoint != "predict" {
			t.Errorf("endpoint = %q, want default predict", last.Endpoint)
		}
	})

	t.Run("Batch", func(t *testing.T) {
		body := `[
			{"project_id":"proj","model_id":"churn","features":{"age":42}},
			{"project_id":"proj","model_id":"churn","features":{"age":43}}
		]`
		rec := doJSON(t, h, http.MethodPost, "/api/v1/events", body, true)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("NaiveTimestampIsUTC", func(t *testing.T) {
		body := `{"project_id":"proj","model_id":"churn","features":{"age":1},"timestamp":"2024-03-09T12:00:00"}`
		rec := doJSON(t, h, http.MethodPost, "/api/v1/events", body, true)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		last := st.inserted[len(st.inserted)-1]
		want := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
		if !last.Timestamp.Equal(want) {
			t.Errorf("timestamp = %v, want %v", last.Timestamp, want)
		}
	})

	bad := []struct {
		name string
		body string
	}{
		{"EmptyFeatures", `{"project_id":"proj","model_id":"churn","features":{}}`},
		{"MissingProject", `{"model_id":"churn","features":{"age":1}}`},
		{"ProbaOutOfRange", `{"project_id":"proj","model_id":"churn","features":{"age":1},"y_proba":1.5}`},
		{"EmptyBody", ``},
		{"MalformedJSON", `{"project_id":`},
		{"EmptyBatch", `[]`},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/v1/events", tt.body, true)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestMetricsDailyNull(t *testing.T) {
	h := newTestServer(t, &fakeAPIStore{}, nil, nil, nil, nil)
	rec := doJSON(t, h, http.MethodGet, "/api/v1/metrics/daily?project_id=proj&model_id=churn&day=2024-03-09", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "null" {
		t.Errorf("body = %q, want null", rec.Body.String())
	}
}

func TestComputeAllWithAlert(t *testing.T) {
	de := &fakeDriftEngine{all: &drift.AllResult{
		PSI:           model.PSIMap{"age": {PSI: 0.42, N: 100, Type: model.DefNumeric, Severity: drift.SeverityAlert}},
		MinSamples:    10,
		MaxPSIFeature: "age",
		MaxPSI:        0.42,
		MaxSeverity:   drift.SeverityAlert,
	}}
	fa := &fakeAlerts{}
	fn := &fakeNotifier{enabled: true}
	h := newTestServer(t, nil, de, fa, fn, nil)

	rec := doJSON(t, h, http.MethodPost,
		"/api/v1/drift/compute_all?project_id=proj&model_id=churn&day=2024-03-09&alert=true&threshold=0.25", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp computeAllResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.AlertCreated == nil || !*resp.AlertCreated {
		t.Error("alert_created = false, want true")
	}
	if resp.AlertID == nil {
		t.Error("alert_id missing")
	}
	if resp.SlackAlertSent == nil || !*resp.SlackAlertSent {
		t.Error("slack_alert_sent = false, want true")
	}
	if len(fa.created) != 1 || fa.created[0].Rule != "drift" {
		t.Errorf("alerts created = %+v, want one drift alert", fa.created)
	}
	if len(fn.sent) != 1 {
		t.Errorf("slack messages = %d, want 1", len(fn.sent))
	}
}

func TestComputeAllBelowThreshold(t *testing.T) {
	de := &fakeDriftEngine{all: &drift.AllResult{
		PSI:           model.PSIMap{"age": {PSI: 0.05, Severity: drift.SeverityOK}},
		MaxPSIFeature: "age",
		MaxPSI:        0.05,
		MaxSeverity:   drift.SeverityOK,
	}}
	fa := &fakeAlerts{}
	h := newTestServer(t, nil, de, fa, &fakeNotifier{enabled: true}, nil)

	rec := doJSON(t, h, http.MethodPost,
		"/api/v1/drift/compute_all?project_id=proj&model_id=churn&day=2024-03-09&alert=true&threshold=0.25", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp computeAllResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.AlertCreated == nil || *resp.AlertCreated {
		t.Error("alert_created should be false below threshold")
	}
	if len(fa.created) != 0 {
		t.Errorf("alerts created = %d, want 0", len(fa.created))
	}
}

func TestComputeAllExpectedErrorsAre400(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"NoBaselines", drift.ErrNoBaselines, http.StatusBadRequest},
		{"NoEvents", drift.ErrNoEvents, http.StatusBadRequest},
		{"NotEnoughData", drift.ErrNotEnoughData, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, nil, &fakeDriftEngine{allErr: tt.err}, nil, nil, nil)
			rec := doJSON(t, h, http.MethodPost,
				"/api/v1/drift/compute_all?project_id=proj&model_id=churn&day=2024-03-09", "", true)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSlackTestFailureIs400(t *testing.T) {
	fn := &fakeNotifier{enabled: true, err: errors.New("webhook returned 410")}
	h := newTestServer(t, nil, nil, nil, fn, nil)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/alerts/slack/test", "", true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCostsUnconfigured(t *testing.T) {
	h := newTestServer(t, nil, nil, nil, nil, nil)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/costs/pull?project_id=proj&day=2024-03-09", "", true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without a billing client", rec.Code)
	}
}

func TestDayValidation(t *testing.T) {
	h := newTestServer(t, nil, nil, nil, nil, nil)
	rec := doJSON(t, h, http.MethodPost,
		"/api/v1/metrics/compute?project_id=proj&model_id=churn&day=not-a-day", "", true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a malformed day", rec.Code)
	}
}
