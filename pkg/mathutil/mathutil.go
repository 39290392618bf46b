// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/budget-optimizer/pkg/constants"
)

// Round rounds a value to two decimals, the presentation precision of forecasts.
func Round(val float64) float64 {
	return math.Round(val*constants.DecimalPrecision) / constants.DecimalPrecision
}

// RoundWhole rounds a currency value to whole units.
func RoundWhole(val float64) int64 {
	return int64(math.Round(val))
}

// Clamp forces value into [lo, hi]. NaN is treated as below the band.
func Clamp(value, lo, hi float64) float64 {
	if math.IsNaN(value) || value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// WithinRelativeTolerance checks if val is within tolerance*|reference| of reference.
func WithinRelativeTolerance(val, reference, tolerance float64) bool {
	return math.Abs(val-reference) <= tolerance*math.Abs(reference)
}

// CalculatePercentage calculates what percentage value is of total
func CalculatePercentage(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return (value / total) * 100
}

// ApplyPercentage applies a percentage to a value
func ApplyPercentage(value, percentage float64) float64 {
	return value * (percentage / constants.PercentageMultiplier)
}

// Sum adds the values.
func Sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// ArgMax returns the index of the largest value (first on ties), or -1 for an empty slice.
func ArgMax(values []float64) int {
	best := -1
	for i, v := range values {
		if best == -1 || v > values[best] {
			best = i
		}
	}
	return best
}
