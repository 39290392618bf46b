// Package configprocessor provides shared configuration processing utilities.
package configprocessor

import (
	"fmt"
	"strings"
)

// Info is the subset of configuration the processor inspects.
type Info struct {
	Channels      int
	DefaultBudget float64
	MinPerChannel float64
	MaxRatio      float64
	MinROAS       float64
	MaxROAS       float64
	Jitter        float64
	ModelPath     string
	StoreDriver   string
	StoreDSN      string
}

// Processor handles configuration processing and validation
type Processor struct{}

// NewProcessor creates a new configuration processor
func NewProcessor() *Processor {
	return &Processor{}
}

// KnownStoreDrivers lists the database/sql drivers the metrics store registers.
var KnownStoreDrivers = []string{"pgx", "sqlite"}

// ValidateConfiguration validates the configuration and returns warnings.
// Settings that make the engine fail outright are reported by the engine itself.
func (p *Processor) ValidateConfiguration(info Info) []string {
	var warnings []string

	if info.ModelPath == "" {
		warnings = append(warnings, "No model path configured; recommendations will fail until one is set")
	}

	if info.Channels > 0 && info.DefaultBudget > 0 {
		floors := float64(info.Channels) * info.MinPerChannel
		if floors > info.DefaultBudget {
			warnings = append(warnings, fmt.Sprintf(
				"Default budget %.0f cannot fund a %.0f floor on %d channels; floors will be dropped at the default budget",
				info.DefaultBudget, info.MinPerChannel, info.Channels))
		}
		if float64(info.Channels)*info.MaxRatio < 1 {
			warnings = append(warnings, fmt.Sprintf(
				"Max ratio %.2f across %d channels cannot cover the budget; caps will be widened to an equal share",
				info.MaxRatio, info.Channels))
		}
	}

	if info.MaxRatio > 1 {
		warnings = append(warnings, fmt.Sprintf("Max ratio %.2f exceeds 1 and never binds", info.MaxRatio))
	}

	if info.MaxROAS > 0 && info.MinROAS == info.MaxROAS {
		warnings = append(warnings, "Forecast band is a single value; every channel will share the same forecast")
	}

	if info.Jitter > 0.3 {
		warnings = append(warnings, fmt.Sprintf("History jitter %.2f is large; simulated history may look erratic", info.Jitter))
	}

	if info.StoreDSN != "" && !contains(KnownStoreDrivers, info.StoreDriver) {
		warnings = append(warnings, fmt.Sprintf("Store driver %q is not one of %s", info.StoreDriver, strings.Join(KnownStoreDrivers, ", ")))
	}

	return warnings
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
