package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/knotter/internal/api"
	"github.com/roach88/knotter/internal/globeid"
	"github.com/roach88/knotter/internal/telemetry"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	traceSetup []telemetry.Option
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Open the event log and serve the globe API until interrupted.

SIGINT and SIGTERM trigger a graceful shutdown bounded by
server.shutdown_timeout. With tracing.enabled set, engine spans are
exported to the OTLP/HTTP collector at tracing.endpoint.

Examples:
  knotter serve
  knotter serve --addr 127.0.0.1:9000 --db ./knotter.db
  KNOTTER_STORAGE_DRIVER=bolt knotter serve --db ./knotter.bolt
  KNOTTER_TRACING_ENABLED=true KNOTTER_TRACING_ENDPOINT=http://localhost:4318 knotter serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	rt, err := openRuntime(opts.RootOptions, cmd.ErrOrStderr(), withTracing(opts.traceSetup...))
	if err != nil {
		return err
	}
	defer rt.Close()

	addr := rt.cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	handler := api.New(rt.engine, globeid.NewAllocator(rt.log),
		api.WithLogger(rt.logger),
		api.WithMetrics(newServerMetrics()),
		api.WithRateLimit(rt.cfg.Server.RateLimit, rt.cfg.Server.RateBurst))

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	rt.logger.Info("server listening",
		"addr", ln.Addr().String(),
		"driver", rt.cfg.Storage.Driver,
		"page_size", rt.cfg.Server.PageSize)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return WrapExitError(ExitFailure, "server failed", err)
	case <-ctx.Done():
	}

	rt.logger.Info("shutting down", "timeout", rt.cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown failed", err)
	}
	rt.logger.Info("server stopped")
	return nil
}

// newServerMetrics adds the Go runtime and process collectors to the API
// collectors so a single /metrics scrape covers the whole process.
func newServerMetrics() *api.Metrics {
	m := api.NewMetrics()
	m.Registry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
