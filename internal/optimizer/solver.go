package optimizer

import (
	"fmt"
	"math"

	"github.com/iwvelando/budget-optimizer/internal/forecast"
	"github.com/iwvelando/budget-optimizer/pkg/constants"
	"github.com/iwvelando/budget-optimizer/pkg/mathutil"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Status is the outcome of a solve.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Allocation is the budget assigned to each channel, in channel order.
type Allocation []float64

// Result is the outcome of Solve. Allocation and ExpectedRevenue are only set on success.
type Result struct {
	Status          Status
	Allocation      Allocation
	Forecast        forecast.ChannelForecast
	ExpectedRevenue float64
	Reason          string
}

// Succeeded reports whether the solve produced an allocation.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

func failed(fc forecast.ChannelForecast, format string, args ...any) Result {
	return Result{Status: StatusFailed, Forecast: fc, Reason: fmt.Sprintf(format, args...)}
}

// Solve maximizes sum(x_i * f_i) subject to sum(x_i) = totalBudget and
// bounds[i].Min <= x_i <= bounds[i].Max. Failures are reported in the Result.
func Solve(fc forecast.ChannelForecast, totalBudget float64, bounds Bounds) Result {
	n := len(fc)
	if n == 0 {
		return failed(fc, "empty forecast")
	}
	if len(bounds) != n {
		return failed(fc, "forecast has %d channels but bounds have %d", n, len(bounds))
	}
	if math.IsNaN(totalBudget) || math.IsInf(totalBudget, 0) || totalBudget <= 0 {
		return failed(fc, "invalid total budget %v", totalBudget)
	}
	if !bounds.Feasible(totalBudget) {
		return failed(fc, "bounds do not admit an allocation of %v", totalBudget)
	}

	var alloc Allocation
	if n == 1 {
		alloc = Allocation{totalBudget}
	} else {
		y, err := simplex(fc, totalBudget, bounds)
		if err != nil {
			return failed(fc, "%v", err)
		}
		alloc = make(Allocation, n)
		for i := range alloc {
			alloc[i] = bounds[i].Min + totalBudget*y[i]
		}
	}

	if err := checkAllocation(alloc, totalBudget, bounds); err != nil {
		return failed(fc, "%v", err)
	}

	return Result{
		Status:          StatusSuccess,
		Allocation:      alloc,
		Forecast:        fc,
		ExpectedRevenue: ExpectedRevenue(alloc, fc),
	}
}

// simplex solves the problem shifted to the floors and scaled by the budget:
// y_i = (x_i - min_i) / B with a slack s_i per box row, so
//
//	minimize   -sum(f_i/fmax * y_i)
//	subject to sum(y_i) = (B - sum(min_i)) / B
//	           y_i + s_i = (max_i - min_i) / B
//	           y, s >= 0
func simplex(fc forecast.ChannelForecast, totalBudget float64, bounds Bounds) ([]float64, error) {
	n := len(fc)
	scale := floats.Max(fc)
	if scale <= 0 {
		scale = 1
	}

	c := make([]float64, 2*n)
	for i, f := range fc {
		c[i] = -f / scale
	}

	A := mat.NewDense(n+1, 2*n, nil)
	b := make([]float64, n+1)
	var floorSum float64
	for i, bound := range bounds {
		A.Set(0, i, 1)
		A.Set(i+1, i, 1)
		A.Set(i+1, n+i, 1)
		b[i+1] = math.Max(0, (bound.Max-bound.Min)/totalBudget)
		floorSum += bound.Min
	}
	b[0] = math.Max(0, (totalBudget-floorSum)/totalBudget)

	_, x, err := lp.Simplex(c, A, b, constants.SolverTolerance, nil)
	if err != nil {
		return nil, fmt.Errorf("linear program: %w", err)
	}
	return x[:n], nil
}

// checkAllocation snaps solver noise onto the bounds and verifies conservation.
func checkAllocation(alloc Allocation, totalBudget float64, bounds Bounds) error {
	tol := constants.ConservationTolerance * totalBudget
	for i, x := range alloc {
		if math.IsNaN(x) {
			return fmt.Errorf("channel %d allocation is not a number", i)
		}
		if x < bounds[i].Min-tol || x > bounds[i].Max+tol {
			return fmt.Errorf("channel %d allocation %.2f outside [%.2f, %.2f]", i, x, bounds[i].Min, bounds[i].Max)
		}
		alloc[i] = mathutil.Clamp(x, bounds[i].Min, bounds[i].Max)
	}
	if sum := mathutil.Sum(alloc); !mathutil.WithinRelativeTolerance(sum, totalBudget, constants.ConservationTolerance) {
		return fmt.Errorf("allocation sums to %.2f, expected %.2f", sum, totalBudget)
	}
	return nil
}

// ExpectedRevenue is sum(x_i * f_i) / 100, forecasts being percentages.
func ExpectedRevenue(alloc Allocation, fc forecast.ChannelForecast) float64 {
	var revenue float64
	for i := 0; i < len(alloc) && i < len(fc); i++ {
		revenue += mathutil.ApplyPercentage(alloc[i], fc[i])
	}
	return revenue
}
