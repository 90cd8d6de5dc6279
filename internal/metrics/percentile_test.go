package metrics

import (
	"math"
	"testing"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
		wantOK bool
	}{
		{"Empty", nil, 50, 0, false},
		{"Single", []float64{7}, 95, 7, true},
		{"MedianOdd", []float64{3, 1, 2}, 50, 2, true},
		{"MedianEven", []float64{1, 2, 3, 4}, 50, 2.5, true},
		{"P95OfFive", []float64{10, 20, 30, 40, 50}, 95, 48, true},
		{"P0", []float64{5, 1, 9}, 0, 1, true},
		{"P100", []float64{5, 1, 9}, 100, 9, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Percentile(tt.values, tt.p)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Percentile(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestMeanStd(t *testing.T) {
	mean, std, ok := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if !ok {
		t.Fatal("ok = false")
	}
	if math.Abs(mean-5) > 1e-9 {
		t.Errorf("mean = %v, want 5", mean)
	}
	if math.Abs(std-2) > 1e-9 {
		t.Errorf("std = %v, want 2 (population)", std)
	}

	if _, _, ok := MeanStd(nil); ok {
		t.Error("MeanStd(nil) ok = true")
	}
}
