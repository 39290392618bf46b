package pipeline

import (
	"github.com/iwvelando/budget-optimizer/internal/features"
	"github.com/iwvelando/budget-optimizer/internal/history"
	"github.com/iwvelando/budget-optimizer/internal/optimizer"
	"github.com/iwvelando/budget-optimizer/internal/report"
	"github.com/iwvelando/budget-optimizer/pkg/optimization"
)

// Request is the recommendation payload.
type Request struct {
	TotalBudget *float64                `json:"total_budget,omitempty" validate:"omitempty,gt=0"`
	Duration    *int                    `json:"duration,omitempty" validate:"omitempty,gte=1"`
	Channels    []features.ChannelInput `json:"channels" validate:"required,min=1,dive"`
}

// BoundsInfo reports the per-channel floor and cap the solver used.
type BoundsInfo struct {
	Floor int64 `json:"floor"`
	Cap   int64 `json:"cap"`
}

// Response is the recommendation result. A failed optimization carries only
// Status, RunID and Reason.
type Response struct {
	Status            optimizer.Status `json:"status"`
	RunID             string           `json:"run_id"`
	TotalBudget       float64          `json:"total_budget,omitempty"`
	Channels          []string         `json:"channels,omitempty"`
	AllocatedBudget   []int64          `json:"allocated_budget,omitempty"`
	PredictedForecast []float64        `json:"predicted_forecast,omitempty"`
	ExpectedRevenue   *int64           `json:"expected_revenue,omitempty"`
	History           *history.Series  `json:"history,omitempty"`
	Report            string           `json:"report,omitempty"`
	Bounds            *BoundsInfo      `json:"bounds,omitempty"`
	Reason            string           `json:"reason,omitempty"`

	// Detail keeps unrounded values for the pretty and CSV renderers.
	Detail *Detail `json:"-"`
}

// Detail is the structured, unrounded form of a successful run.
type Detail struct {
	Channels   []features.Channel
	Allocation optimizer.Allocation
	Bounds     optimizer.Bounds
	Report     report.Report
	Summary    optimization.Summary
}

// Succeeded reports whether the run produced an allocation.
func (r *Response) Succeeded() bool {
	return r.Status == optimizer.StatusSuccess
}
