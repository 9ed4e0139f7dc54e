// Package stats provides the descriptive statistics the profiling and drift
// engines are built on. All functions treat an empty input as zero rather
// than erroring; callers decide when a statistic is meaningful.
package stats

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Mean calculates the arithmetic mean of a slice of float64 values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median calculates the median; the input slice is left untouched.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Min returns the smallest value.
func Min(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Max returns the largest value.
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Variance calculates the sample variance (n−1 divisor).
func Variance(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	mean := Mean(values)
	sumSquaredDiff := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}
	return sumSquaredDiff / float64(len(values)-1)
}

// StandardDeviation calculates the sample standard deviation.
func StandardDeviation(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// PopulationVariance calculates the variance with an n divisor. Z-scores use
// this; the profile's reported std uses the sample form.
func PopulationVariance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	sumSquaredDiff := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}
	return sumSquaredDiff / float64(len(values))
}

// PopulationStdDev calculates the population standard deviation.
func PopulationStdDev(values []float64) float64 {
	return math.Sqrt(PopulationVariance(values))
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

// FormatDecimal renders a float in its shortest decimal form while keeping at
// least one fractional digit, so 12.50 prints as "12.5" and 20 as "20.0".
// Report messages use this so rates read as rates, not counts.
func FormatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
