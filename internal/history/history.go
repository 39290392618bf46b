// Package history synthesizes a trailing, display-only ROAS series that ends
// at the current forecast.
package history

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/goccy/go-json"
	"github.com/iwvelando/budget-optimizer/internal/forecast"
	"github.com/iwvelando/budget-optimizer/pkg/constants"
	"github.com/iwvelando/budget-optimizer/pkg/mathutil"
)

// TodayLabel marks the final point, which equals the forecast.
const TodayLabel = "today (predicted)"

// ErrInvalidDuration is returned when fewer than one point is requested.
var ErrInvalidDuration = errors.New("duration must be at least 1")

// Options shapes the synthetic series.
type Options struct {
	// Jitter is the half-width of the uniform multiplier applied per channel per day.
	Jitter float64 `mapstructure:"jitter" yaml:"jitter"`
	// Decay is the per-day reduction of the trend factor going back in time.
	Decay float64 `mapstructure:"decay" yaml:"decay"`
	// Floor is the lowest trend factor and the lower hold of every value.
	Floor float64 `mapstructure:"floor" yaml:"floor"`
}

// DefaultOptions returns 10% jitter, 1.5%/day decay and a 0.6 floor.
func DefaultOptions() Options {
	return Options{
		Jitter: constants.DefaultJitter,
		Decay:  constants.TrendDecayPerDay,
		Floor:  constants.TrendFloor,
	}
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if math.IsNaN(o.Jitter) || o.Jitter < 0 || o.Jitter >= 1 {
		return fmt.Errorf("history jitter must be in [0, 1), got %v", o.Jitter)
	}
	if math.IsNaN(o.Decay) || o.Decay < 0 {
		return fmt.Errorf("history decay must be non-negative, got %v", o.Decay)
	}
	if math.IsNaN(o.Floor) || o.Floor <= 0 || o.Floor > 1 {
		return fmt.Errorf("history floor must be in (0, 1], got %v", o.Floor)
	}
	return nil
}

// Point is one labelled day of the series, one value per channel.
type Point struct {
	Label  string
	Values []float64
}

// Label returns the display label for i days before today.
func Label(daysAgo int) string {
	switch daysAgo {
	case 0:
		return TodayLabel
	case 1:
		return "1 day ago"
	default:
		return strings.TrimSpace(fmt.Sprintf("%d days ago", daysAgo))
	}
}

// Synthesize returns duration points, oldest first. The last point equals fc.
// Earlier points follow a decaying trend with independent jitter and stay within
// [Floor*f, (1+Jitter)*f] for each channel forecast f.
func Synthesize(fc forecast.ChannelForecast, duration int, opts Options, rng *rand.Rand) ([]Point, error) {
	if duration < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidDuration, duration)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("history requires a random source")
	}

	points := make([]Point, 0, duration)
	for daysAgo := duration - 1; daysAgo >= 1; daysAgo-- {
		trend := math.Max(opts.Floor, 1-opts.Decay*float64(daysAgo))
		values := make([]float64, len(fc))
		for c, f := range fc {
			jitter := 1 + opts.Jitter*(2*rng.Float64()-1)
			values[c] = mathutil.Clamp(f*trend*jitter, opts.Floor*f, (1+opts.Jitter)*f)
		}
		points = append(points, Point{Label: Label(daysAgo), Values: values})
	}
	points = append(points, Point{Label: TodayLabel, Values: append([]float64(nil), fc...)})
	return points, nil
}

// Series pairs points with channel names for serialization.
type Series struct {
	Channels []string
	Points   []Point
}

// Rounded returns a copy with every value rounded to two decimals.
func (s Series) Rounded() Series {
	out := Series{Channels: s.Channels, Points: make([]Point, len(s.Points))}
	for i, p := range s.Points {
		values := make([]float64, len(p.Values))
		for j, v := range p.Values {
			values[j] = mathutil.Round(v)
		}
		out.Points[i] = Point{Label: p.Label, Values: values}
	}
	return out
}

// MarshalJSON renders each point as {"label": ..., "<channel>": value, ...}
// with channel keys in channel order.
func (s Series) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, p := range s.Points {
		if len(p.Values) != len(s.Channels) {
			return nil, fmt.Errorf("history point %q has %d values for %d channels", p.Label, len(p.Values), len(s.Channels))
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"label":`)
		label, err := json.Marshal(p.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(label)
		for j, name := range s.Channels {
			key, err := json.Marshal(name)
			if err != nil {
				return nil, err
			}
			value, err := json.Marshal(p.Values[j])
			if err != nil {
				return nil, fmt.Errorf("history point %q channel %s: %w", p.Label, name, err)
			}
			buf.WriteByte(',')
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(value)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
