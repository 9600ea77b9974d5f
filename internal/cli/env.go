package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/knotter/internal/config"
	"github.com/roach88/knotter/internal/engine"
	"github.com/roach88/knotter/internal/store"
	"github.com/roach88/knotter/internal/telemetry"
)

// tracerName names the tracer handed to the engine.
const tracerName = "github.com/roach88/knotter/internal/engine"

// traceFlushTimeout bounds the span flush on Close.
const traceFlushTimeout = 5 * time.Second

// runtime bundles what every command opens from the configuration.
type runtime struct {
	cfg    *config.Config
	log    store.Log
	engine *engine.Engine
	logger *slog.Logger
	traces *telemetry.Provider
}

func (r *runtime) Close() error {
	var errs []error
	if r.traces != nil {
		ctx, cancel := context.WithTimeout(context.Background(), traceFlushTimeout)
		defer cancel()
		if err := r.traces.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush traces: %w", err))
		}
	}
	errs = append(errs, r.log.Close())
	return errors.Join(errs...)
}

type runtimeOptions struct {
	tracing    bool
	traceSetup []telemetry.Option
}

// runtimeOption configures openRuntime.
type runtimeOption func(*runtimeOptions)

// withTracing installs the tracer provider described by tracing.* and hands
// its tracer to the engine.
func withTracing(opts ...telemetry.Option) runtimeOption {
	return func(o *runtimeOptions) {
		o.tracing = true
		o.traceSetup = append(o.traceSetup, opts...)
	}
}

// loadConfig applies the storage flag overrides on top of config.Load.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Driver != "" {
		cfg.Storage.Driver = opts.Driver
	}
	if opts.DB != "" {
		cfg.Storage.Path = opts.DB
	}
	if opts.Driver != "" || opts.DB != "" {
		if err := cfg.Validate(); err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid storage flags", err)
		}
	}
	return cfg, nil
}

// newLogger builds the slog logger described by cfg. Verbose forces debug.
func newLogger(cfg config.LogConfig, w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// openRuntime loads the configuration and opens the log and engine.
func openRuntime(opts *RootOptions, logOut io.Writer, ropts ...runtimeOption) (*runtime, error) {
	var ro runtimeOptions
	for _, opt := range ropts {
		opt(&ro)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Log, logOut, opts.Verbose)

	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithPageSize(cfg.Server.PageSize),
		engine.WithProjectionCache(cfg.Projection.Cache),
	}

	var traces *telemetry.Provider
	if ro.tracing {
		traces, err = telemetry.Setup(context.Background(), cfg.Tracing, ro.traceSetup...)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to set up tracing", err)
		}
		engOpts = append(engOpts, engine.WithTracer(traces.Tracer(tracerName)))
		if cfg.Tracing.Enabled {
			logger.Info("tracing enabled",
				"endpoint", cfg.Tracing.Endpoint,
				"sample_ratio", cfg.Tracing.SampleRatio)
		}
	}

	log, err := store.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		if traces != nil {
			_ = traces.Shutdown(context.Background())
		}
		return nil, WrapExitError(ExitCommandError,
			fmt.Sprintf("failed to open %s log", cfg.Storage.Driver), err)
	}

	eng := engine.New(log, cfg.Rules(), engOpts...)

	return &runtime{cfg: cfg, log: log, engine: eng, logger: logger, traces: traces}, nil
}
