// Package constants provides shared constants for the budget-optimizer application.
package constants

// DateLayout is the calendar date format accepted for metric windows.
const DateLayout = "2006-01-02"

// Forecast constants
const (
	// DefaultMinROAS is the lower end of the forecast clamp band (percentage units)
	DefaultMinROAS = 50.0

	// DefaultMaxROAS is the upper end of the forecast clamp band (percentage units)
	DefaultMaxROAS = 800.0

	// PercentageMultiplier converts percentage-return units into multipliers
	PercentageMultiplier = 100.0

	// DecimalPrecision is the precision for forecast rounding (2 decimal places)
	DecimalPrecision = 100
)

// Budget constants
const (
	// DefaultTotalBudget is applied when a request omits total_budget
	DefaultTotalBudget = 500000.0

	// DefaultMinPerChannel is the per-channel budget floor before feasibility overrides
	DefaultMinPerChannel = 30000.0

	// DefaultMaxRatio is the share of the total budget a single channel may receive
	DefaultMaxRatio = 0.6

	// FeasibilityEpsilon is the slack used when re-checking floor feasibility
	FeasibilityEpsilon = 1e-6

	// SolverTolerance is the zero tolerance passed to the simplex solver on the normalized problem
	SolverTolerance = 1e-10

	// ConservationTolerance is the allowed relative drift of the allocation sum
	ConservationTolerance = 1e-6
)

// History constants
const (
	// DefaultDuration is the number of history days when a request omits duration
	DefaultDuration = 7

	// MaxDuration is the longest history window accepted
	MaxDuration = 365

	// TrendDecayPerDay is the per-day decay applied to synthesized history
	TrendDecayPerDay = 0.015

	// TrendFloor is the lowest trend factor applied to synthesized history
	TrendFloor = 0.6

	// DefaultJitter is the half-width of the display jitter multiplier
	DefaultJitter = 0.10
)

// Feature defaults
const (
	// DefaultCost is the channel spend assumed when a row omits cost
	DefaultCost = 100000.0

	// DefaultROAS is the recent ROAS assumed when a row omits roas
	DefaultROAS = 200.0

	// DefaultTrendScore is the search trend score assumed when a row omits trend_score
	DefaultTrendScore = 50.0

	// DefaultCPC is the cost per click assumed when a row omits cpc
	DefaultCPC = 500.0

	// BaseCTR is the click-through rate baseline used to derive ctr from roas
	BaseCTR = 1.5

	// TrendMomentum is the multiplier deriving the 3-day ROAS trend from the current ROAS
	TrendMomentum = 1.02
)

// Output format constants
const (
	// OutputFormatJSON is the machine-readable output format
	OutputFormatJSON = "json"

	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format (allocation table and history)
	OutputFormatCSV = "csv"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix is the prefix for environment overrides of the application config
	EnvPrefix = "BUDGETOPT"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum request body size (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024

	// DefaultRateLimitRequests is the default number of requests per window per client IP
	DefaultRateLimitRequests = 60

	// DefaultRequestTimeoutSeconds bounds a single HTTP request
	DefaultRequestTimeoutSeconds = 30
)
