// Package report composes the narrative that accompanies an allocation.
// It only formats numbers that were already computed.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/iwvelando/budget-optimizer/internal/features"
	"github.com/iwvelando/budget-optimizer/internal/forecast"
	"github.com/iwvelando/budget-optimizer/pkg/format"
	"github.com/iwvelando/budget-optimizer/pkg/mathutil"
)

// Input carries the computed results a report describes.
type Input struct {
	Channels        []features.Channel
	TotalBudget     float64
	Allocation      []float64
	Forecast        forecast.ChannelForecast
	ExpectedRevenue float64
	Duration        int
	Floor           float64
	Cap             float64
	Band            forecast.Band
}

// Summary is the headline section.
type Summary struct {
	BestChannel     string  `json:"bestChannel"`
	BestForecast    float64 `json:"bestForecast"`
	RunnerUp        string  `json:"runnerUp,omitempty"`
	Gap             float64 `json:"gap,omitempty"`
	ExpectedRevenue float64 `json:"expectedRevenue"`
}

// Diagnosis describes one channel.
type Diagnosis struct {
	Channel      string  `json:"channel"`
	Forecast     float64 `json:"forecast"`
	Allocation   float64 `json:"allocation"`
	Ratio        int     `json:"ratio"`
	Contribution float64 `json:"contribution"`
	Deviation    float64 `json:"deviation"`
	Tier         Tier    `json:"tier"`
	Action       string  `json:"action"`
}

// Report is the structured narrative.
type Report struct {
	Summary      Summary     `json:"summary"`
	Diagnoses    []Diagnosis `json:"diagnoses"`
	ActionGuide  []string    `json:"actionGuide"`
	Transparency []string    `json:"transparency"`
}

// Compose builds the report. Inputs are assumed consistent in length.
func Compose(in Input) Report {
	n := len(in.Forecast)
	names := make([]string, n)
	for i := range names {
		if i < len(in.Channels) {
			names[i] = in.Channels[i].DisplayName
		} else {
			names[i] = fmt.Sprintf("Channel %d", i+1)
		}
	}

	var r Report
	best := in.Forecast.Best()
	if best < 0 {
		return r
	}

	r.Summary = Summary{
		BestChannel:     names[best],
		BestForecast:    in.Forecast[best],
		ExpectedRevenue: in.ExpectedRevenue,
	}
	if second := runnerUp(in.Forecast, best); second >= 0 {
		r.Summary.RunnerUp = names[second]
		r.Summary.Gap = in.Forecast[best] - in.Forecast[second]
	}

	mean := mathutil.Mean(in.Forecast)
	capText := format.Currency(in.Cap)
	for i, f := range in.Forecast {
		var alloc float64
		if i < len(in.Allocation) {
			alloc = in.Allocation[i]
		}
		ratio := Ratio(alloc, in.TotalBudget)
		tier := Classify(i == best, ratio)
		r.Diagnoses = append(r.Diagnoses, Diagnosis{
			Channel:      names[i],
			Forecast:     f,
			Allocation:   alloc,
			Ratio:        ratio,
			Contribution: mathutil.ApplyPercentage(alloc, f),
			Deviation:    f - mean,
			Tier:         tier,
			Action:       tier.Action(capText),
		})
	}

	bestRatio := r.Diagnoses[best].Ratio
	r.ActionGuide = []string{
		fmt.Sprintf("Budget focus: put %d%% of the total budget into %s, where customers are responding best right now.", bestRatio, names[best]),
		fmt.Sprintf("Efficiency: %s is expected to reach a ROAS of %s.", names[best], format.Percent(in.Forecast[best])),
		"Risk control: weaker channels were held at reduced budgets to limit waste.",
	}

	r.Transparency = []string{
		fmt.Sprintf("Per-channel floor used: %s; per-channel cap used: %s.", format.Currency(in.Floor), capText),
		fmt.Sprintf("Forecasts are clamped to %s-%s.", format.Percent(in.Band.Min), format.Percent(in.Band.Max)),
		fmt.Sprintf("The %d-day history is simulated for display and is not measured performance.", in.Duration),
	}
	return r
}

// Ratio is alloc/total as a rounded whole percent, 0 when total is 0.
func Ratio(alloc, total float64) int {
	return int(math.Round(mathutil.CalculatePercentage(alloc, total)))
}

func runnerUp(fc forecast.ChannelForecast, best int) int {
	second := -1
	for i, v := range fc {
		if i == best {
			continue
		}
		if second == -1 || v > fc[second] {
			second = i
		}
	}
	return second
}

// String renders the report as plain text.
func (r Report) String() string {
	if len(r.Diagnoses) == 0 {
		return ""
	}
	var b strings.Builder

	b.WriteString("Today's marketing summary\n")
	fmt.Fprintf(&b, "The best fit right now is %s with a predicted ROAS of %s", r.Summary.BestChannel, format.Percent(r.Summary.BestForecast))
	if r.Summary.RunnerUp != "" {
		fmt.Fprintf(&b, ", %s ahead of %s", format.SignedPercentPoints(r.Summary.Gap), r.Summary.RunnerUp)
	}
	b.WriteString(".\n")
	fmt.Fprintf(&b, "Expected revenue: %s\n\n", format.Currency(r.Summary.ExpectedRevenue))

	b.WriteString("Channel diagnosis\n")
	for _, d := range r.Diagnoses {
		fmt.Fprintf(&b, "- %s: predicted ROAS %s (%s vs average), %d%% of budget (%s), contributes %s. %s\n",
			d.Channel,
			format.Percent(d.Forecast),
			format.SignedPercentPoints(d.Deviation),
			d.Ratio,
			format.Currency(d.Allocation),
			format.Currency(d.Contribution),
			d.Action,
		)
	}

	b.WriteString("\nAction guide\n")
	for _, line := range r.ActionGuide {
		fmt.Fprintf(&b, "- %s\n", line)
	}

	b.WriteString("\nTransparency\n")
	for i, line := range r.Transparency {
		b.WriteString("- ")
		b.WriteString(line)
		if i < len(r.Transparency)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
