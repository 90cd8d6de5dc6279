package metrics

import (
	"math"
	"slices"
)

// Percentile computes the p-th percentile (0-100) of values using
// linear interpolation between closest ranks. The second return is
// false for an empty sample.
func Percentile(values []float64, p float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}

	temp := make([]float64, len(values))
	copy(temp, values)
	slices.Sort(temp)

	if len(temp) == 1 {
		return temp[0], true
	}

	k := float64(len(temp)-1) * (p / 100.0)
	f := int(k)
	c := min(f+1, len(temp)-1)
	if f == c {
		return temp[f], true
	}
	d0 := temp[f] * (float64(c) - k)
	d1 := temp[c] * (k - float64(f))
	return d0 + d1, true
}

// MeanStd computes the mean and population standard deviation.
func MeanStd(values []float64) (mean, std float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance), true
}
