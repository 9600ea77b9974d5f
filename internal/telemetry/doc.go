// Package telemetry builds the OpenTelemetry tracer provider that the
// engine's spans are recorded with.
//
// Tracing is opt-in. With tracing.enabled false the provider is a no-op and
// nothing is exported; otherwise spans are batched to an OTLP/HTTP
// collector at tracing.endpoint.
package telemetry
