// Package forecast holds the per-channel return forecast and the band that
// keeps raw model output inside a plausible range.
package forecast

import (
	"fmt"
	"math"

	"github.com/iwvelando/budget-optimizer/pkg/constants"
	"github.com/iwvelando/budget-optimizer/pkg/mathutil"
)

// ChannelForecast is one predicted ROAS per channel, in percentage units
// (250 means a 2.5x return). Position identifies the channel.
type ChannelForecast []float64

// Band is the closed range forecasts are clamped into.
type Band struct {
	Min float64 `mapstructure:"min" yaml:"min" json:"min"`
	Max float64 `mapstructure:"max" yaml:"max" json:"max"`
}

// DefaultBand returns the 50-800 band.
func DefaultBand() Band {
	return Band{Min: constants.DefaultMinROAS, Max: constants.DefaultMaxROAS}
}

// Validate rejects inverted, negative or non-finite bands.
func (b Band) Validate() error {
	if math.IsNaN(b.Min) || math.IsNaN(b.Max) || math.IsInf(b.Min, 0) || math.IsInf(b.Max, 0) {
		return fmt.Errorf("forecast band must be finite, got [%v, %v]", b.Min, b.Max)
	}
	if b.Min < 0 {
		return fmt.Errorf("forecast band minimum must be non-negative, got %v", b.Min)
	}
	if b.Min > b.Max {
		return fmt.Errorf("forecast band minimum %v exceeds maximum %v", b.Min, b.Max)
	}
	return nil
}

// Contains reports whether v lies inside the band.
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Sanitize returns a copy of raw with every value clamped into band.
// NaN maps to band.Min.
func Sanitize(raw []float64, band Band) ChannelForecast {
	out := make(ChannelForecast, len(raw))
	for i, v := range raw {
		out[i] = mathutil.Clamp(v, band.Min, band.Max)
	}
	return out
}

// Clamped lists the indices Sanitize would change.
func Clamped(raw []float64, band Band) []int {
	var idx []int
	for i, v := range raw {
		if !band.Contains(v) {
			idx = append(idx, i)
		}
	}
	return idx
}

// Best returns the index of the highest forecast, first on ties.
func (fc ChannelForecast) Best() int {
	return mathutil.ArgMax(fc)
}
