package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/iwvelando/budget-optimizer/internal/config"
	"github.com/iwvelando/budget-optimizer/internal/features"
	"github.com/iwvelando/budget-optimizer/internal/logging"
	"github.com/iwvelando/budget-optimizer/internal/model"
	"github.com/iwvelando/budget-optimizer/internal/pipeline"
	"github.com/iwvelando/budget-optimizer/internal/store"
	"github.com/iwvelando/budget-optimizer/pkg/constants"
	"github.com/iwvelando/budget-optimizer/pkg/datetime"
	"github.com/iwvelando/budget-optimizer/pkg/output"
	"github.com/iwvelando/budget-optimizer/pkg/validation"
	"go.uber.org/zap"
)

type options struct {
	configLocation string
	configSet      bool
	outputFormat   string
	logLevel       string
	input          string
	payload        string
	fromDB         bool
	start          string
	end            string
	userID         int64
	budget         float64
	duration       int
	seed           uint64
	asOf           string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fset := flag.NewFlagSet("budget-optimizer", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.StringVar(&opts.configLocation, "config", constants.DefaultConfigFile, "path to configuration file")
	fset.StringVar(&opts.outputFormat, "output-format", "", "type of output override: json, pretty, csv")
	fset.StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	fset.StringVar(&opts.input, "input", "", "read the request payload from a file, or - for stdin")
	fset.BoolVar(&opts.fromDB, "from-db", false, "build channel rows from the campaign metrics store")
	fset.StringVar(&opts.start, "start", "", "first metric date (YYYY-MM-DD) for -from-db")
	fset.StringVar(&opts.end, "end", "", "last metric date (YYYY-MM-DD) for -from-db")
	fset.Int64Var(&opts.userID, "user-id", 0, "restrict -from-db metrics to one user")
	fset.Float64Var(&opts.budget, "budget", 0, "total budget override")
	fset.IntVar(&opts.duration, "duration", 0, "history duration override in days")
	fset.Uint64Var(&opts.seed, "seed", 0, "fixed seed for the simulated history (0 draws a random seed)")
	fset.StringVar(&opts.asOf, "as-of", "", "evaluate day-of-week features for this date (YYYY-MM-DD) instead of today")
	if err := fset.Parse(args); err != nil {
		return opts, err
	}
	fset.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			opts.configSet = true
		}
	})
	if fset.NArg() > 0 {
		opts.payload = fset.Arg(0)
	}
	if opts.payload != "" && opts.input != "" {
		return opts, errors.New("pass the payload either as an argument or with -input, not both")
	}
	if opts.fromDB && (opts.payload != "" || opts.input != "") {
		return opts, errors.New("-from-db cannot be combined with a payload")
	}
	return opts, nil
}

// run executes one recommendation and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"invalid arguments\", \"error\": %q}\n", err.Error())
		return 2
	}

	// The default config file is optional; an explicit one is not.
	configPath := opts.configLocation
	if !opts.configSet {
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			configPath = ""
		}
	}
	conf, err := config.LoadConfiguration(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": %q}\n", opts.configLocation, err.Error())
		return 1
	}

	logger, err := logging.New(conf.Logging, opts.logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": %q}\n", err.Error())
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	outputFormat := conf.Output.Format
	if opts.outputFormat != "" {
		outputFormat = opts.outputFormat
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatJSON
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		logger.Error(err.Error(), zap.String("op", "main"))
		return 1
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	settings, err := conf.Settings()
	if err != nil {
		logger.Error("invalid engine settings", zap.String("op", "main"), zap.Error(err))
		return 1
	}

	m, err := model.Load(conf.Model.Path, conf.Model.Kind)
	if err != nil {
		logger.Error("failed to load model",
			zap.String("op", "main"),
			zap.String("kind", string(pipeline.KindInference)),
			zap.String("path", conf.Model.Path),
			zap.Error(err),
		)
		return 1
	}

	engineOpts, err := engineOptions(opts)
	if err != nil {
		logger.Error("invalid engine options", zap.String("op", "main"), zap.Error(err))
		return 1
	}
	engine, err := pipeline.NewEngine(logger, m, settings, engineOpts...)
	if err != nil {
		logPipelineError(logger, "failed to build engine", err)
		return 1
	}

	req, err := buildRequest(ctx, logger, conf, engine, opts, stdin)
	if err != nil {
		logPipelineError(logger, "failed to build request", err)
		return 1
	}

	resp, err := engine.Run(ctx, req)
	if err != nil {
		logPipelineError(logger, "recommendation failed", err)
		return 1
	}

	if err := output.Write(stdout, outputFormat, resp); err != nil {
		logger.Error("failed to write output", zap.String("op", "main"), zap.Error(err))
		return 1
	}
	return 0
}

func engineOptions(opts options) ([]pipeline.Option, error) {
	var out []pipeline.Option
	if opts.seed != 0 {
		seed := opts.seed
		out = append(out, pipeline.WithSeedSource(func() uint64 { return seed }))
	}
	if opts.asOf != "" {
		day, err := datetime.ParseOptionalDate(opts.asOf)
		if err != nil {
			return nil, err
		}
		out = append(out, pipeline.WithClock(func() time.Time { return day }))
	}
	return out, nil
}

func buildRequest(ctx context.Context, logger *zap.Logger, conf *config.Configuration, engine *pipeline.Engine, opts options, stdin io.Reader) (pipeline.Request, error) {
	var req pipeline.Request
	if opts.fromDB {
		inputs, err := storeInputs(ctx, logger, conf, engine, opts)
		if err != nil {
			return req, err
		}
		req.Channels = inputs
	} else {
		data, err := readPayload(opts, stdin)
		if err != nil {
			return req, err
		}
		req, err = pipeline.ParseRequest(data)
		if err != nil {
			return req, err
		}
	}

	if opts.budget != 0 {
		budget := opts.budget
		req.TotalBudget = &budget
	}
	if opts.duration != 0 {
		duration := opts.duration
		req.Duration = &duration
	}
	return req, nil
}

func readPayload(opts options, stdin io.Reader) ([]byte, error) {
	switch {
	case opts.payload != "":
		return []byte(opts.payload), nil
	case opts.input == "-":
		return io.ReadAll(stdin)
	case opts.input != "":
		return os.ReadFile(opts.input)
	default:
		return nil, errors.New("no payload: pass JSON as an argument, use -input <file|->, or -from-db")
	}
}

func storeInputs(ctx context.Context, logger *zap.Logger, conf *config.Configuration, engine *pipeline.Engine, opts options) ([]features.ChannelInput, error) {
	if !conf.Store.Enabled() {
		return nil, errors.New("-from-db requires store.dsn in the configuration")
	}
	from, to, err := datetime.ParseWindow(opts.start, opts.end)
	if err != nil {
		return nil, err
	}

	s, err := store.Open(ctx, conf.Store.Driver, conf.Store.DSN, logger)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	metrics, err := s.ChannelFeatures(ctx, store.Query{UserID: opts.userID, From: from, To: to})
	if err != nil {
		return nil, err
	}
	inputs, skipped := store.ChannelInputs(engine.Catalog(), metrics)
	if len(skipped) > 0 {
		logger.Warn("skipping channels unknown to the catalog",
			zap.String("op", "main.storeInputs"),
			zap.Strings("channels", skipped),
		)
	}
	if len(inputs) == 0 {
		return nil, errors.New("no campaign metrics found for the requested window")
	}
	return inputs, nil
}

func logPipelineError(logger *zap.Logger, msg string, err error) {
	fields := []zap.Field{zap.String("op", "main"), zap.Error(err)}
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		fields = append(fields, zap.String("kind", string(pe.Kind)))
		if len(pe.Expected) > 0 || len(pe.Received) > 0 {
			fields = append(fields,
				zap.String("expected", strings.Join(pe.Expected, ",")),
				zap.String("received", strings.Join(pe.Received, ",")),
			)
		}
	}
	logger.Error(msg, fields...)
}
