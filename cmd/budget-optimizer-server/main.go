package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwvelando/budget-optimizer/internal/config"
	"github.com/iwvelando/budget-optimizer/internal/logging"
	"github.com/iwvelando/budget-optimizer/internal/model"
	"github.com/iwvelando/budget-optimizer/internal/pipeline"
	"github.com/iwvelando/budget-optimizer/internal/server"
	"github.com/iwvelando/budget-optimizer/internal/store"
	"github.com/iwvelando/budget-optimizer/pkg/constants"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

type options struct {
	serverConfigPath string
	address          string
	logLevel         string
}

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fset := flag.NewFlagSet("budget-optimizer-server", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.StringVar(&opts.serverConfigPath, "server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	fset.StringVar(&opts.address, "address", "", "listen address override")
	fset.StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	if err := fset.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

// run serves until ctx is cancelled or the listener fails and returns the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"invalid arguments\", \"error\": %q}\n", err.Error())
		return 2
	}

	serverConf, err := server.LoadConfig(opts.serverConfigPath)
	if err != nil {
		fmt.Fprintf(stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load server configuration at %s\", \"error\": %q}\n", opts.serverConfigPath, err.Error())
		return 1
	}
	if opts.address != "" {
		serverConf.Address = opts.address
	}

	conf, err := config.LoadConfiguration(serverConf.AppConfig)
	if err != nil {
		fmt.Fprintf(stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": %q}\n", serverConf.AppConfig, err.Error())
		return 1
	}

	loggingConf := conf.Logging
	if serverConf.Logging.Level != "" {
		loggingConf.Level = serverConf.Logging.Level
	}
	if serverConf.Logging.Format != "" {
		loggingConf.Format = serverConf.Logging.Format
	}
	if serverConf.Logging.OutputFile != "" {
		loggingConf.OutputFile = serverConf.Logging.OutputFile
	}
	logger, err := logging.New(loggingConf, opts.logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": %q}\n", err.Error())
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

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
			zap.String("path", conf.Model.Path),
			zap.Error(err),
		)
		return 1
	}

	engine, err := pipeline.NewEngine(logger, m, settings)
	if err != nil {
		logger.Error("failed to build recommendation engine", zap.String("op", "main"), zap.Error(err))
		return 1
	}

	handlerOpts := server.OptionsFromConfig(serverConf)
	handlerOpts.Engine = engine
	handlerOpts.Version = version

	if conf.Store.Enabled() {
		s, err := store.Open(ctx, conf.Store.Driver, conf.Store.DSN, logger)
		if err != nil {
			logger.Error("failed to open campaign metrics store",
				zap.String("op", "main"),
				zap.String("driver", conf.Store.Driver),
				zap.Error(err),
			)
			return 1
		}
		defer s.Close()
		handlerOpts.Store = s
	}

	ln, err := net.Listen("tcp", serverConf.Address)
	if err != nil {
		logger.Error("failed to listen",
			zap.String("op", "main"),
			zap.String("address", serverConf.Address),
			zap.Error(err),
		)
		return 1
	}

	timeout := serverConf.RequestTimeoutDuration()
	srv := &http.Server{
		Handler:           server.NewHandler(logger, handlerOpts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("op", "main"),
			zap.String("address", ln.Addr().String()),
			zap.String("schema", settings.Schema.Version),
			zap.Strings("channels", engine.Catalog().Names()),
			zap.Bool("store", handlerOpts.Store != nil),
			zap.String("version", version),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	code := 0
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", zap.String("op", "main"), zap.Error(err))
			code = 1
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server", zap.String("op", "main"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.String("op", "main"), zap.Error(err))
		code = 1
	}
	return code
}
