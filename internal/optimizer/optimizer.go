// Package optimizer derives per-channel budget bounds and solves the
// allocation linear program.
package optimizer

import (
	"fmt"

	"github.com/iwvelando/budget-optimizer/internal/forecast"
	"github.com/iwvelando/budget-optimizer/pkg/mathutil"
	"github.com/iwvelando/budget-optimizer/pkg/optimization"
	"go.uber.org/zap"
)

// Runner couples bounds construction and the solver for one policy.
type Runner struct {
	logger *zap.Logger
	policy BoundsPolicy
}

// Outcome is the result of a Runner invocation.
type Outcome struct {
	Bounds  Bounds
	Result  Result
	Summary optimization.Summary
}

// NewRunner constructs a Runner for the provided policy.
func NewRunner(logger *zap.Logger, policy BoundsPolicy) (*Runner, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bounds policy: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger, policy: policy}, nil
}

// Policy returns the bounds policy in use.
func (r *Runner) Policy() BoundsPolicy {
	return r.policy
}

// Run allocates totalBudget across the forecast's channels. Bounds and solver
// failures are reported as a failed Result, never as an error.
func (r *Runner) Run(fc forecast.ChannelForecast, totalBudget float64, names []string) Outcome {
	bounds, err := BuildBounds(len(fc), totalBudget, r.policy)
	if err != nil {
		r.logger.Error("failed to build budget bounds",
			zap.String("op", "optimizer.Run"),
			zap.Int("channels", len(fc)),
			zap.Float64("totalBudget", totalBudget),
			zap.Error(err),
		)
		res := failed(fc, "bounds: %v", err)
		return Outcome{Result: res, Summary: optimization.Summary{
			Status: string(res.Status), Channels: len(fc), TotalBudget: totalBudget, Notes: []string{res.Reason},
		}}
	}

	r.logger.Debug("built budget bounds",
		zap.String("op", "optimizer.Run"),
		zap.Float64("floor", bounds.Floor()),
		zap.Float64("cap", bounds.Cap()),
		zap.Float64("totalBudget", totalBudget),
	)

	res := Solve(fc, totalBudget, bounds)
	summary := summarize(res, bounds, totalBudget, r.policy, names)

	if !res.Succeeded() {
		r.logger.Error("allocation solve failed",
			zap.String("op", "optimizer.Run"),
			zap.String("reason", res.Reason),
			zap.Float64s("forecast", fc),
		)
		return Outcome{Bounds: bounds, Result: res, Summary: summary}
	}

	r.logger.Info("allocated budget",
		zap.String("op", "optimizer.Run"),
		zap.Float64("totalBudget", totalBudget),
		zap.Float64s("allocation", res.Allocation),
		zap.Float64("expectedRevenue", res.ExpectedRevenue),
		zap.Int("bindingChannels", summary.Binding()),
	)
	return Outcome{Bounds: bounds, Result: res, Summary: summary}
}

func summarize(res Result, bounds Bounds, totalBudget float64, policy BoundsPolicy, names []string) optimization.Summary {
	s := optimization.Summary{
		Status:          string(res.Status),
		Channels:        len(bounds),
		TotalBudget:     totalBudget,
		Floor:           bounds.Floor(),
		Cap:             bounds.Cap(),
		FloorsDropped:   policy.MinDefault > 0 && bounds.Floor() == 0,
		ExpectedRevenue: res.ExpectedRevenue,
	}
	if s.FloorsDropped {
		s.Notes = append(s.Notes, fmt.Sprintf("budget cannot fund a %.0f floor on every channel; floors dropped", policy.MinDefault))
	}
	if !res.Succeeded() {
		s.Notes = append(s.Notes, res.Reason)
		return s
	}

	tol := 0.5
	for i, x := range res.Allocation {
		name := fmt.Sprintf("channel %d", i)
		if i < len(names) {
			name = names[i]
		}
		switch {
		case mathutil.WithinTolerance(x, bounds[i].Max, tol) && bounds[i].Max > bounds[i].Min:
			s.AtCap = append(s.AtCap, name)
		case mathutil.WithinTolerance(x, bounds[i].Min, tol):
			s.AtFloor = append(s.AtFloor, name)
		}
	}
	return s
}
