package features

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/iwvelando/budget-optimizer/pkg/constants"
	"github.com/iwvelando/budget-optimizer/pkg/datetime"
)

var (
	// ErrNoChannels is returned when a request carries no channel rows.
	ErrNoChannels = errors.New("no channel rows to analyze")
	// ErrUnknownChannel is returned for a channel the catalog or schema does not know.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrDuplicateChannel is returned when a channel appears twice in one request.
	ErrDuplicateChannel = errors.New("duplicate channel")
)

// ChannelInput is one per-channel feature row as supplied by a caller.
// Optional fields fall back to the documented defaults.
type ChannelInput struct {
	Channel    string   `json:"channel" validate:"required"`
	Cost       *float64 `json:"cost,omitempty" validate:"omitempty,gte=0"`
	ROAS       *float64 `json:"roas,omitempty" validate:"omitempty,gte=0"`
	TrendScore *float64 `json:"trend_score,omitempty" validate:"omitempty,gte=0,lte=100"`
	CPC        *float64 `json:"cpc,omitempty" validate:"omitempty,gte=0"`
	CTR        *float64 `json:"ctr,omitempty" validate:"omitempty,gte=0"`
}

// Row is a resolved channel row with defaults applied and auxiliary signals derived.
type Row struct {
	Channel    Channel
	Cost       float64
	ROAS       float64
	TrendScore float64
	CPC        float64
	CTR        float64
	ROASTrend  float64
}

// Resolve maps inputs onto catalog channels, preserving order.
func Resolve(catalog *Catalog, inputs []ChannelInput) ([]Row, error) {
	if len(inputs) == 0 {
		return nil, ErrNoChannels
	}

	seen := make(map[string]struct{}, len(inputs))
	rows := make([]Row, 0, len(inputs))
	for i, in := range inputs {
		ch, ok := catalog.Lookup(in.Channel)
		if !ok {
			return nil, fmt.Errorf("row %d: %w %q (known: %s)", i, ErrUnknownChannel, in.Channel, strings.Join(catalog.Names(), ", "))
		}
		if _, dup := seen[ch.Name]; dup {
			return nil, fmt.Errorf("row %d: %w %q", i, ErrDuplicateChannel, ch.Name)
		}
		seen[ch.Name] = struct{}{}

		roas := valueOr(in.ROAS, constants.DefaultROAS)
		row := Row{
			Channel:    ch,
			Cost:       valueOr(in.Cost, constants.DefaultCost),
			ROAS:       roas,
			TrendScore: valueOr(in.TrendScore, constants.DefaultTrendScore),
			CPC:        valueOr(in.CPC, constants.DefaultCPC),
			CTR:        valueOr(in.CTR, constants.BaseCTR+roas/1000),
			ROASTrend:  roas * constants.TrendMomentum,
		}
		if err := row.check(); err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i, ch.Name, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r Row) check() error {
	for name, v := range map[string]float64{"cost": r.Cost, "roas": r.ROAS, "cpc": r.CPC, "ctr": r.CTR} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%s must be a finite non-negative number, got %v", name, v)
		}
	}
	if math.IsNaN(r.TrendScore) || r.TrendScore < 0 || r.TrendScore > 100 {
		return fmt.Errorf("trend_score must lie in [0, 100], got %v", r.TrendScore)
	}
	return nil
}

// Encode builds the feature matrix for rows in schema column order. now supplies
// the day-of-week and weekend columns.
func Encode(schema Schema, rows []Row, now time.Time) ([][]float64, error) {
	if len(rows) == 0 {
		return nil, ErrNoChannels
	}

	known := make(map[string]struct{})
	for _, name := range schema.Channels() {
		known[name] = struct{}{}
	}

	weekday := float64(datetime.WeekdayIndex(now))
	weekend := 0.0
	if datetime.IsWeekend(now) {
		weekend = 1
	}

	matrix := make([][]float64, len(rows))
	for i, row := range rows {
		if _, ok := known[row.Channel.Name]; !ok {
			return nil, fmt.Errorf("%w %q for schema %s (model channels: %s)",
				ErrUnknownChannel, row.Channel.Name, schema.Version, strings.Join(schema.Channels(), ", "))
		}
		vec := make([]float64, len(schema.Columns))
		for j, col := range schema.Columns {
			switch col.Feature {
			case FeatureCost:
				vec[j] = row.Cost
			case FeatureCPC:
				vec[j] = row.CPC
			case FeatureCTR:
				vec[j] = row.CTR
			case FeatureROASTrend:
				vec[j] = row.ROASTrend
			case FeatureDayOfWeek:
				vec[j] = weekday
			case FeatureIsWeekend:
				vec[j] = weekend
			case FeatureTrendScore:
				vec[j] = row.TrendScore
			case FeatureChannel:
				if col.Channel == row.Channel.Name {
					vec[j] = 1
				}
			}
		}
		matrix[i] = vec
	}
	return matrix, nil
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
