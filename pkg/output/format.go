// Package output renders recommendation results for the command line.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/iwvelando/budget-optimizer/internal/pipeline"
	"github.com/iwvelando/budget-optimizer/internal/report"
	"github.com/iwvelando/budget-optimizer/pkg/constants"
	"github.com/iwvelando/budget-optimizer/pkg/format"
)

// Write renders resp to w in the named output format.
func Write(w io.Writer, outputFormat string, resp *pipeline.Response) error {
	switch outputFormat {
	case constants.OutputFormatJSON, "":
		return JSONFormat(w, resp)
	case constants.OutputFormatPretty:
		return PrettyFormat(w, resp)
	case constants.OutputFormatCSV:
		return CsvFormat(w, resp)
	default:
		return fmt.Errorf("unsupported output format %q", outputFormat)
	}
}

// JSONFormat outputs the response as indented JSON.
func JSONFormat(w io.Writer, resp *pipeline.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// PrettyFormat outputs a human-readable allocation table followed by the report.
func PrettyFormat(w io.Writer, resp *pipeline.Response) error {
	ew := &errWriter{w: w}
	if !resp.Succeeded() {
		ew.printf("--- Recommendation %s failed ---\n", resp.RunID)
		ew.printf("Reason: %s\n", resp.Reason)
		return ew.err
	}

	ew.printf("--- Recommendation %s ---\n", resp.RunID)
	ew.printf("Total budget: %s\n", format.Currency(resp.TotalBudget))
	if resp.Bounds != nil {
		ew.printf("Per-channel bounds: %s to %s\n", format.Currency(float64(resp.Bounds.Floor)), format.Currency(float64(resp.Bounds.Cap)))
	}
	ew.printf("\n")

	width := len("Channel")
	for _, name := range resp.Channels {
		width = max(width, len(name))
	}
	ew.printf("%-*s | ROAS  | Allocation    | Share\n", width, "Channel")
	ew.printf("%s | _____ | _____________ | _____\n", strings.Repeat("_", width))
	for i, name := range resp.Channels {
		alloc := float64(resp.AllocatedBudget[i])
		ew.printf("%-*s | %5s | %13s | %4d%%\n",
			width, name,
			format.Percent(resp.PredictedForecast[i]),
			format.Currency(alloc),
			report.Ratio(alloc, resp.TotalBudget),
		)
	}
	if resp.ExpectedRevenue != nil {
		ew.printf("\nExpected revenue: %s\n", format.Currency(float64(*resp.ExpectedRevenue)))
	}

	if d := resp.Detail; d != nil {
		if len(d.Summary.AtCap) > 0 {
			ew.printf("At cap: %s\n", strings.Join(d.Summary.AtCap, ", "))
		}
		if len(d.Summary.AtFloor) > 0 {
			ew.printf("At floor: %s\n", strings.Join(d.Summary.AtFloor, ", "))
		}
		for _, note := range d.Summary.Notes {
			ew.printf("Note: %s\n", note)
		}
	}

	if resp.Report != "" {
		ew.printf("\n%s", resp.Report)
		if !strings.HasSuffix(resp.Report, "\n") {
			ew.printf("\n")
		}
	}
	return ew.err
}

// CsvFormat outputs the allocation table, a blank line, then the simulated history.
func CsvFormat(w io.Writer, resp *pipeline.Response) error {
	ew := &errWriter{w: w}
	if !resp.Succeeded() {
		ew.printf(`"status","reason"` + "\n")
		ew.printf("%s,%s\n", quote(string(resp.Status)), quote(resp.Reason))
		return ew.err
	}

	ew.printf(`"channel","predicted_roas","allocated_budget","share_percent"` + "\n")
	for i, name := range resp.Channels {
		ew.printf(`%s,"%.2f","%d","%d"`+"\n",
			quote(name),
			resp.PredictedForecast[i],
			resp.AllocatedBudget[i],
			report.Ratio(float64(resp.AllocatedBudget[i]), resp.TotalBudget),
		)
	}

	if resp.History == nil || len(resp.History.Points) == 0 {
		return ew.err
	}
	ew.printf("\n")
	ew.printf(`"label"`)
	for _, name := range resp.History.Channels {
		ew.printf(",%s", quote(name))
	}
	ew.printf("\n")
	for _, p := range resp.History.Points {
		ew.printf("%s", quote(p.Label))
		for _, v := range p.Values {
			ew.printf(`,"%.2f"`, v)
		}
		ew.printf("\n")
	}
	return ew.err
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// errWriter keeps the first write error so renderers can check once at the end.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(layout string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, layout, args...)
}
