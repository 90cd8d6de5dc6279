package costs

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"mlguard/internal/model"
	"mlguard/internal/store"
)

type fakeCE struct {
	out *costexplorer.GetCostAndUsageOutput
	err error
	in  *costexplorer.GetCostAndUsageInput
}

func (f *fakeCE) GetCostAndUsage(_ context.Context, in *costexplorer.GetCostAndUsageInput, _ ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
	f.in = in
	return f.out, f.err
}

type fakeCostStore struct {
	rows  []model.DailyCost
	total *model.DailyCost
	avg   *float64
}

func (f *fakeCostStore) ReplaceDailyCosts(_ context.Context, projectID string, day time.Time, rows []model.DailyCost, _ bool) (int, error) {
	f.rows = rows
	return len(rows), nil
}

func (f *fakeCostStore) DailyCosts(context.Context, string, time.Time) ([]model.DailyCost, error) {
	return f.rows, nil
}

func (f *fakeCostStore) TotalCost(context.Context, string, time.Time) (*model.DailyCost, error) {
	return f.total, nil
}

func (f *fakeCostStore) TrailingAverageTotalCost(context.Context, string, time.Time, int) (*float64, error) {
	return f.avg, nil
}

func metricValue(amount string) cetypes.MetricValue {
	return cetypes.MetricValue{Amount: aws.String(amount), Unit: aws.String("USD")}
}

func TestPullAndStore(t *testing.T) {
	day := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	ce := &fakeCE{out: &costexplorer.GetCostAndUsageOutput{
		ResultsByTime: []cetypes.ResultByTime{{
			Groups: []cetypes.Group{
				{Keys: []string{"Amazon EC2"}, Metrics: map[string]cetypes.MetricValue{DefaultMetric: metricValue("10.50")}},
				{Keys: []string{"Amazon S3"}, Metrics: map[string]cetypes.MetricValue{DefaultMetric: metricValue("2.25")}},
			},
		}},
	}}
	fs := &fakeCostStore{}
	svc := NewService(fs, ce, "")

	res, err := svc.PullAndStore(context.Background(), "proj", day, true)
	if err != nil {
		t.Fatalf("PullAndStore() error = %v", err)
	}

	// Two services plus the computed TOTAL.
	if res.Rows != 3 {
		t.Errorf("Rows = %d, want 3", res.Rows)
	}
	if res.Total == nil || math.Abs(*res.Total-12.75) > 1e-9 {
		t.Errorf("Total = %v, want 12.75", res.Total)
	}
	last := fs.rows[len(fs.rows)-1]
	if last.Service != store.TotalService {
		t.Errorf("last row service = %q, want %q", last.Service, store.TotalService)
	}

	// The requested window is [day, day+1) as date strings.
	if got := aws.ToString(ce.in.TimePeriod.Start); got != "2024-03-09" {
		t.Errorf("Start = %q", got)
	}
	if got := aws.ToString(ce.in.TimePeriod.End); got != "2024-03-10" {
		t.Errorf("End = %q", got)
	}
}

func TestCheckSpike(t *testing.T) {
	day := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		total     float64
		avg       float64
		pct       float64
		minAbs    float64
		wantSpike bool
		wantSev   string
	}{
		{"NoSpike", 10, 10, 0.5, 5, false, "OK"},
		{"SpikeAlert", 30, 10, 0.5, 5, true, "ALERT"},
		{"SpikeWarnSmallPct", 12, 10, 0.1, 1, true, "WARN"},
		{"BelowAbsoluteFloor", 11, 10, 0.05, 5, false, "OK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			avg := tt.avg
			fs := &fakeCostStore{
				total: &model.DailyCost{Service: store.TotalService, Amount: tt.total, Unit: "USD"},
				avg:   &avg,
			}
			svc := NewService(fs, &fakeCE{}, "")

			res, err := svc.CheckSpike(context.Background(), "proj", day, 7, tt.pct, tt.minAbs)
			if err != nil {
				t.Fatalf("CheckSpike() error = %v", err)
			}
			if res.IsSpike != tt.wantSpike {
				t.Errorf("IsSpike = %v, want %v", res.IsSpike, tt.wantSpike)
			}
			if res.Severity != tt.wantSev {
				t.Errorf("Severity = %v, want %v", res.Severity, tt.wantSev)
			}
		})
	}
}

func TestCheckSpikeMissingData(t *testing.T) {
	day := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)

	t.Run("NoTotal", func(t *testing.T) {
		svc := NewService(&fakeCostStore{}, &fakeCE{}, "")
		_, err := svc.CheckSpike(context.Background(), "proj", day, 7, 0.5, 5)
		if !errors.Is(err, ErrNoTotalCost) {
			t.Errorf("error = %v, want ErrNoTotalCost", err)
		}
	})

	t.Run("NoHistory", func(t *testing.T) {
		fs := &fakeCostStore{total: &model.DailyCost{Service: store.TotalService, Amount: 10}}
		svc := NewService(fs, &fakeCE{}, "")
		_, err := svc.CheckSpike(context.Background(), "proj", day, 7, 0.5, 5)
		if !errors.Is(err, ErrNoHistory) {
			t.Errorf("error = %v, want ErrNoHistory", err)
		}
	})
}
