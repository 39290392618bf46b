package optimizer

import (
	"errors"
	"fmt"
	"math"

	"github.com/iwvelando/budget-optimizer/pkg/constants"
)

// BoundsPolicy controls how per-channel bounds scale with the total budget.
type BoundsPolicy struct {
	// MinDefault is the floor each channel receives when the budget can fund all floors.
	MinDefault float64 `mapstructure:"minPerChannel" yaml:"minPerChannel"`
	// MaxRatio caps a single channel at this share of the total budget.
	MaxRatio float64 `mapstructure:"maxRatio" yaml:"maxRatio"`
}

// DefaultBoundsPolicy returns the 30000 floor / 60% cap policy.
func DefaultBoundsPolicy() BoundsPolicy {
	return BoundsPolicy{MinDefault: constants.DefaultMinPerChannel, MaxRatio: constants.DefaultMaxRatio}
}

// Validate checks the policy values.
func (p BoundsPolicy) Validate() error {
	if math.IsNaN(p.MinDefault) || math.IsInf(p.MinDefault, 0) || p.MinDefault < 0 {
		return fmt.Errorf("minimum per channel must be a non-negative number, got %v", p.MinDefault)
	}
	if math.IsNaN(p.MaxRatio) || math.IsInf(p.MaxRatio, 0) || p.MaxRatio <= 0 {
		return fmt.Errorf("maximum ratio must be positive, got %v", p.MaxRatio)
	}
	return nil
}

// Bound is the permissible budget range of one channel.
type Bound struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Bounds holds one Bound per channel, in channel order.
type Bounds []Bound

// ErrInvalidBudget is returned for non-positive or non-finite budgets.
var ErrInvalidBudget = errors.New("total budget must be a positive finite number")

// BuildBounds derives bounds that always admit an allocation summing to totalBudget.
// Floors are all-or-nothing: if the budget cannot fund every channel's floor,
// every floor drops to zero.
func BuildBounds(n int, totalBudget float64, policy BoundsPolicy) (Bounds, error) {
	if n < 1 {
		return nil, fmt.Errorf("at least one channel is required, got %d", n)
	}
	if math.IsNaN(totalBudget) || math.IsInf(totalBudget, 0) || totalBudget <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidBudget, totalBudget)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	count := float64(n)
	minPer := policy.MinDefault
	if count*minPer > totalBudget {
		minPer = 0
	}

	maxPer := totalBudget * policy.MaxRatio
	if maxPer < minPer {
		maxPer = minPer
	}

	if count*minPer > totalBudget-constants.FeasibilityEpsilon {
		minPer = 0
		if maxPer < minPer {
			maxPer = minPer
		}
	}

	// Caps must cover the budget, which a single channel or a small ratio would not.
	if count*maxPer < totalBudget {
		maxPer = totalBudget / count
	}

	bounds := make(Bounds, n)
	for i := range bounds {
		bounds[i] = Bound{Min: minPer, Max: maxPer}
	}
	return bounds, nil
}

// Floor returns the largest per-channel minimum in use.
func (b Bounds) Floor() float64 {
	var floor float64
	for _, bound := range b {
		floor = math.Max(floor, bound.Min)
	}
	return floor
}

// Cap returns the largest per-channel maximum in use.
func (b Bounds) Cap() float64 {
	var ceiling float64
	for _, bound := range b {
		ceiling = math.Max(ceiling, bound.Max)
	}
	return ceiling
}

// Feasible reports whether the bounds admit an allocation summing to total.
func (b Bounds) Feasible(total float64) bool {
	var lo, hi float64
	for _, bound := range b {
		if bound.Min < 0 || bound.Min > bound.Max {
			return false
		}
		lo += bound.Min
		hi += bound.Max
	}
	tol := constants.ConservationTolerance * math.Max(1, math.Abs(total))
	return lo <= total+tol && total <= hi+tol
}
