// Package pipeline runs a recommendation end to end: feature encoding,
// inference, clamping, allocation, history and report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/budget-optimizer/internal/features"
	"github.com/iwvelando/budget-optimizer/internal/forecast"
	"github.com/iwvelando/budget-optimizer/internal/history"
	"github.com/iwvelando/budget-optimizer/internal/model"
	"github.com/iwvelando/budget-optimizer/internal/optimizer"
	"github.com/iwvelando/budget-optimizer/internal/report"
	"github.com/iwvelando/budget-optimizer/pkg/constants"
	"github.com/iwvelando/budget-optimizer/pkg/mathutil"
	"github.com/iwvelando/budget-optimizer/pkg/validation"
	"go.uber.org/zap"
)

// Settings are the engine's tunables.
type Settings struct {
	Schema          features.Schema
	Channels        []features.Channel
	Band            forecast.Band
	Policy          optimizer.BoundsPolicy
	History         history.Options
	DefaultBudget   float64
	DefaultDuration int
	MaxDuration     int
}

// DefaultSettings returns the v1 schema, default channels and default policies.
func DefaultSettings() Settings {
	schema, _ := features.LookupSchema(features.SchemaV1)
	return Settings{
		Schema:          schema,
		Channels:        features.DefaultChannels,
		Band:            forecast.DefaultBand(),
		Policy:          optimizer.DefaultBoundsPolicy(),
		History:         history.DefaultOptions(),
		DefaultBudget:   constants.DefaultTotalBudget,
		DefaultDuration: constants.DefaultDuration,
		MaxDuration:     constants.MaxDuration,
	}
}

// Engine is immutable after construction and safe for concurrent Run calls.
type Engine struct {
	logger   *zap.Logger
	model    model.Model
	settings Settings
	catalog  *features.Catalog
	runner   *optimizer.Runner
	clock    func() time.Time
	seed     func() uint64
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock sets the clock used for the day-of-week features.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithSeedSource sets the seed source for history jitter.
func WithSeedSource(seed func() uint64) Option {
	return func(e *Engine) { e.seed = seed }
}

// NewEngine validates settings against the model and builds an Engine.
func NewEngine(logger *zap.Logger, m model.Model, settings Settings, opts ...Option) (*Engine, error) {
	const op = "pipeline.NewEngine"
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		return nil, newError(KindInference, op, errors.New("model is not loaded"))
	}

	if err := settings.Schema.CheckColumns(m.FeatureNames()); err != nil {
		return nil, schemaError(op, err)
	}
	if len(settings.Channels) == 0 {
		return nil, newError(KindSchema, op, errors.New("no channels configured"))
	}
	modelChannels := make(map[string]struct{})
	for _, name := range settings.Schema.Channels() {
		modelChannels[name] = struct{}{}
	}
	for _, ch := range settings.Channels {
		if _, ok := modelChannels[ch.Name]; !ok {
			return nil, newError(KindSchema, op, fmt.Errorf("%w %q for schema %s", features.ErrUnknownChannel, ch.Name, settings.Schema.Version))
		}
	}

	if err := settings.Band.Validate(); err != nil {
		return nil, newError(KindInput, op, err)
	}
	if err := settings.History.Validate(); err != nil {
		return nil, newError(KindInput, op, err)
	}
	if settings.DefaultBudget <= 0 || math.IsInf(settings.DefaultBudget, 0) || math.IsNaN(settings.DefaultBudget) {
		return nil, newError(KindInput, op, fmt.Errorf("default budget must be positive, got %v", settings.DefaultBudget))
	}
	if settings.MaxDuration < 1 || settings.DefaultDuration < 1 || settings.DefaultDuration > settings.MaxDuration {
		return nil, newError(KindInput, op, fmt.Errorf("durations must satisfy 1 <= default (%d) <= max (%d)", settings.DefaultDuration, settings.MaxDuration))
	}

	runner, err := optimizer.NewRunner(logger, settings.Policy)
	if err != nil {
		return nil, newError(KindOptimization, op, err)
	}

	e := &Engine{
		logger:   logger,
		model:    m,
		settings: settings,
		catalog:  features.NewCatalog(settings.Channels),
		runner:   runner,
		clock:    time.Now,
		seed:     rand.Uint64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Settings returns the engine settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Catalog returns the channel catalog.
func (e *Engine) Catalog() *features.Catalog {
	return e.catalog
}

// Run executes one recommendation. Input, schema and inference failures are
// returned as *Error; an optimization failure is a Response with status failed.
func (e *Engine) Run(ctx context.Context, req Request) (*Response, error) {
	const op = "pipeline.Run"
	runID := uuid.NewString()
	logger := e.logger.With(zap.String("runID", runID))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := validation.ValidateStruct(req); err != nil {
		return nil, newError(KindInput, op, err)
	}
	budget := e.settings.DefaultBudget
	if req.TotalBudget != nil {
		budget = *req.TotalBudget
	}
	if math.IsNaN(budget) || math.IsInf(budget, 0) || budget <= 0 {
		return nil, newError(KindInput, op, fmt.Errorf("%w: got %v", optimizer.ErrInvalidBudget, budget))
	}
	duration := e.settings.DefaultDuration
	if req.Duration != nil {
		duration = *req.Duration
	}
	if duration < 1 || duration > e.settings.MaxDuration {
		return nil, newError(KindInput, op, fmt.Errorf("duration must be between 1 and %d, got %d", e.settings.MaxDuration, duration))
	}

	rows, err := features.Resolve(e.catalog, req.Channels)
	if err != nil {
		return nil, newError(KindInput, op, err)
	}
	matrix, err := features.Encode(e.settings.Schema, rows, e.clock())
	if err != nil {
		return nil, schemaError(op, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := e.model.Predict(matrix)
	if err != nil {
		return nil, newError(KindInference, op, fmt.Errorf("predict failed: %w", err))
	}
	if len(raw) != len(rows) {
		return nil, newError(KindInference, op, fmt.Errorf("model returned %d predictions for %d rows", len(raw), len(rows)))
	}
	fc := forecast.Sanitize(raw, e.settings.Band)
	if clamped := forecast.Clamped(raw, e.settings.Band); len(clamped) > 0 {
		logger.Warn("clamped raw forecasts into band",
			zap.String("op", op),
			zap.Ints("channels", clamped),
			zap.Float64s("raw", raw),
		)
	}

	channels := make([]features.Channel, len(rows))
	names := make([]string, len(rows))
	for i, row := range rows {
		channels[i] = row.Channel
		names[i] = row.Channel.Name
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcome := e.runner.Run(fc, budget, names)
	if !outcome.Result.Succeeded() {
		logger.Error("optimization failed",
			zap.String("op", op),
			zap.String("kind", string(KindOptimization)),
			zap.String("reason", outcome.Result.Reason),
		)
		return &Response{Status: optimizer.StatusFailed, RunID: runID, Reason: outcome.Result.Reason}, nil
	}
	res := outcome.Result

	rng := rand.New(rand.NewPCG(e.seed(), e.seed()))
	points, err := history.Synthesize(fc, duration, e.settings.History, rng)
	if err != nil {
		return nil, newError(KindInput, op, err)
	}
	series := history.Series{Channels: names, Points: points}.Rounded()

	rep := report.Compose(report.Input{
		Channels:        channels,
		TotalBudget:     budget,
		Allocation:      res.Allocation,
		Forecast:        fc,
		ExpectedRevenue: res.ExpectedRevenue,
		Duration:        duration,
		Floor:           outcome.Bounds.Floor(),
		Cap:             outcome.Bounds.Cap(),
		Band:            e.settings.Band,
	})

	allocated := make([]int64, len(res.Allocation))
	for i, x := range res.Allocation {
		allocated[i] = mathutil.RoundWhole(x)
	}
	predicted := make([]float64, len(fc))
	for i, f := range fc {
		predicted[i] = mathutil.Round(f)
	}
	revenue := mathutil.RoundWhole(res.ExpectedRevenue)

	logger.Info("recommendation complete",
		zap.String("op", op),
		zap.Int("channels", len(rows)),
		zap.Float64("totalBudget", budget),
		zap.Int64("expectedRevenue", revenue),
	)

	return &Response{
		Status:            optimizer.StatusSuccess,
		RunID:             runID,
		TotalBudget:       budget,
		Channels:          names,
		AllocatedBudget:   allocated,
		PredictedForecast: predicted,
		ExpectedRevenue:   &revenue,
		History:           &series,
		Report:            rep.String(),
		Bounds: &BoundsInfo{
			Floor: mathutil.RoundWhole(outcome.Bounds.Floor()),
			Cap:   mathutil.RoundWhole(outcome.Bounds.Cap()),
		},
		Detail: &Detail{
			Channels:   channels,
			Allocation: res.Allocation,
			Bounds:     outcome.Bounds,
			Report:     rep,
			Summary:    outcome.Summary,
		},
	}, nil
}

func schemaError(op string, err error) *Error {
	pe := newError(KindSchema, op, err)
	var mismatch *features.MismatchError
	if errors.As(err, &mismatch) {
		pe.Expected = mismatch.Expected
		pe.Received = mismatch.Received
	}
	return pe
}
