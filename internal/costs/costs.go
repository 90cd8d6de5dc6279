// Package costs pulls daily spend from AWS Cost Explorer and stores it
// per (project, day, service), with a trailing-average spike check used
// by the cost_spike alert rule.
package costs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"mlguard/internal/model"
	"mlguard/internal/store"
)

var (
	// ErrNoTotalCost means no stored TOTAL row exists for the day.
	ErrNoTotalCost = errors.New("no stored total cost")
	// ErrNoHistory means there are no prior TOTAL rows to average.
	ErrNoHistory = errors.New("not enough cost history for trailing average")
)

// DefaultMetric is the Cost Explorer metric pulled when none is
// configured.
const DefaultMetric = "UnblendedCost"

// CostExplorerAPI is the slice of the Cost Explorer client we use.
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, in *costexplorer.GetCostAndUsageInput, opts ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// CostStore is the persistence surface the service needs.
type CostStore interface {
	ReplaceDailyCosts(ctx context.Context, projectID string, day time.Time, rows []model.DailyCost, overwrite bool) (int, error)
	DailyCosts(ctx context.Context, projectID string, day time.Time) ([]model.DailyCost, error)
	TotalCost(ctx context.Context, projectID string, day time.Time) (*model.DailyCost, error)
	TrailingAverageTotalCost(ctx context.Context, projectID string, day time.Time, lookbackDays int) (*float64, error)
}

// Service pulls and evaluates daily costs.
type Service struct {
	store  CostStore
	client CostExplorerAPI
	metric string
}

// NewService creates a cost service. metric may be empty to use
// DefaultMetric.
func NewService(s CostStore, client CostExplorerAPI, metric string) *Service {
	if metric == "" {
		metric = DefaultMetric
	}
	return &Service{store: s, client: client, metric: metric}
}

// NewCostExplorerClient builds a Cost Explorer client from the ambient
// AWS configuration. Cost Explorer is a global service served from
// us-east-1.
func NewCostExplorerClient(ctx context.Context, profile, region string) (*costexplorer.Client, error) {
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return costexplorer.NewFromConfig(cfg), nil
}

// PullResult summarizes one pull-and-store run.
type PullResult struct {
	ProjectID string   `json:"project_id"`
	Day       string   `json:"day"`
	Metric    string   `json:"metric"`
	Rows      int      `json:"rows"`
	Total     *float64 `json:"total"`
	Unit      string   `json:"unit"`
	Stored    int      `json:"stored"`
}

// PullAndStore fetches one UTC day of costs grouped by service, appends
// a computed TOTAL row, and stores everything for the project.
func (s *Service) PullAndStore(ctx context.Context, projectID string, day time.Time, overwrite bool) (*PullResult, error) {
	rows, err := s.fetchDay(ctx, day)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.ReplaceDailyCosts(ctx, projectID, day, rows, overwrite)
	if err != nil {
		return nil, err
	}

	res := &PullResult{
		ProjectID: projectID,
		Day:       model.FormatDay(day),
		Metric:    s.metric,
		Rows:      len(rows),
		Unit:      "USD",
		Stored:    stored,
	}
	for _, r := range rows {
		if r.Service == store.TotalService {
			total := r.Amount
			res.Total = &total
			res.Unit = r.Unit
		}
	}
	return res, nil
}

func (s *Service) fetchDay(ctx context.Context, day time.Time) ([]model.DailyCost, error) {
	// Cost Explorer TimePeriod is Start inclusive / End exclusive.
	in := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(model.FormatDay(day)),
			End:   aws.String(model.FormatDay(day.AddDate(0, 0, 1))),
		},
		Granularity: cetypes.GranularityDaily,
		Metrics:     []string{s.metric},
		GroupBy: []cetypes.GroupDefinition{
			{Type: cetypes.GroupDefinitionTypeDimension, Key: aws.String("SERVICE")},
		},
	}

	out, err := s.client.GetCostAndUsage(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("cost explorer query failed: %w", err)
	}

	var rows []model.DailyCost
	for _, rt := range out.ResultsByTime {
		if len(rt.Groups) == 0 {
			amount, unit := parseAmount(rt.Total[s.metric])
			rows = append(rows, model.DailyCost{
				Service: store.TotalService,
				Amount:  amount,
				Unit:    unit,
				Payload: model.JSONMap{},
			})
			continue
		}
		for _, g := range rt.Groups {
			service := "UNKNOWN"
			if len(g.Keys) > 0 {
				service = g.Keys[0]
			}
			amount, unit := parseAmount(g.Metrics[s.metric])
			rows = append(rows, model.DailyCost{
				Service: service,
				Amount:  amount,
				Unit:    unit,
				Payload: model.JSONMap{},
			})
		}
	}

	// A computed TOTAL over the grouped services keeps spike checks to
	// a single-row read.
	if len(rows) > 0 && rows[len(rows)-1].Service != store.TotalService {
		total := 0.0
		for _, r := range rows {
			total += r.Amount
		}
		rows = append(rows, model.DailyCost{
			Service: store.TotalService,
			Amount:  total,
			Unit:    rows[0].Unit,
			Payload: model.JSONMap{"computed_total_from_services": true},
		})
	}
	return rows, nil
}

func parseAmount(mv cetypes.MetricValue) (float64, string) {
	unit := "USD"
	if mv.Unit != nil && *mv.Unit != "" {
		unit = *mv.Unit
	}
	if mv.Amount == nil {
		return 0, unit
	}
	amount, err := strconv.ParseFloat(*mv.Amount, 64)
	if err != nil {
		return 0, unit
	}
	return amount, unit
}

// List returns the stored rows for (project, day).
func (s *Service) List(ctx context.Context, projectID string, day time.Time) ([]model.DailyCost, error) {
	return s.store.DailyCosts(ctx, projectID, day)
}

// SpikeResult is the outcome of a trailing-average spike check.
type SpikeResult struct {
	Value        float64 `json:"value"`
	TrailingAvg  float64 `json:"trailing_avg"`
	Threshold    float64 `json:"threshold"`
	LookbackDays int     `json:"lookback_days"`
	Pct          float64 `json:"pct"`
	MinAbsUSD    float64 `json:"min_abs_usd"`
	IsSpike      bool    `json:"is_spike"`
	Severity     string  `json:"severity"`
}

// CheckSpike compares the stored TOTAL for day against the trailing
// average of the prior lookback days. A spike requires both the
// fractional increase (pct) and an absolute floor (minAbsUSD).
func (s *Service) CheckSpike(ctx context.Context, projectID string, day time.Time, lookbackDays int, pct, minAbsUSD float64) (*SpikeResult, error) {
	totalRow, err := s.store.TotalCost(ctx, projectID, day)
	if err != nil {
		return nil, err
	}
	if totalRow == nil {
		return nil, fmt.Errorf("%w for %s on %s; run a costs pull first",
			ErrNoTotalCost, projectID, model.FormatDay(day))
	}

	avg, err := s.store.TrailingAverageTotalCost(ctx, projectID, day, lookbackDays)
	if err != nil {
		return nil, err
	}
	if avg == nil {
		return nil, fmt.Errorf("%w (need prior TOTAL rows before %s)", ErrNoHistory, model.FormatDay(day))
	}

	value := totalRow.Amount
	threshold := *avg * (1.0 + pct)
	isSpike := value >= threshold && (value-*avg) >= minAbsUSD

	severity := "OK"
	if isSpike {
		if pct >= 0.25 {
			severity = "ALERT"
		} else {
			severity = "WARN"
		}
	}

	return &SpikeResult{
		Value:        value,
		TrailingAvg:  *avg,
		Threshold:    threshold,
		LookbackDays: lookbackDays,
		Pct:          pct,
		MinAbsUSD:    minAbsUSD,
		IsSpike:      isSpike,
		Severity:     severity,
	}, nil
}
