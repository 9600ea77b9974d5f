package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/roach88/knotter/internal/config"
)

// Provider owns a tracer provider and its shutdown.
type Provider struct {
	tp       trace.TracerProvider
	shutdown func(context.Context) error
}

// Option configures Setup.
type Option func(*setupOptions)

type setupOptions struct {
	exporter sdktrace.SpanExporter
	global   bool
}

// WithExporter replaces the OTLP exporter. Spans are exported synchronously,
// which tests use with tracetest.NewInMemoryExporter.
func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(o *setupOptions) {
		o.exporter = exp
	}
}

// WithoutGlobal leaves the global otel provider and propagator untouched.
func WithoutGlobal() Option {
	return func(o *setupOptions) {
		o.global = false
	}
}

// Setup builds the provider described by cfg. A disabled config yields a
// no-op provider whose Shutdown does nothing.
func Setup(ctx context.Context, cfg config.TracingConfig, opts ...Option) (*Provider, error) {
	o := setupOptions{global: true}
	for _, opt := range opts {
		opt(&o)
	}

	if !cfg.Enabled {
		return &Provider{
			tp:       noop.NewTracerProvider(),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}
	if o.exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithSyncer(o.exporter))
	} else {
		exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	if o.global {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.TraceContext{})
	}
	return &Provider{tp: tp, shutdown: tp.Shutdown}, nil
}

// Tracer returns a named tracer from the provider.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// Shutdown flushes pending spans and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}
