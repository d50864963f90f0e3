// Package tracing integrates OpenTelemetry with the kernel so that every run
// and tick can be inspected as a span. Spans are no-ops until Init or
// InitWithExporter installs a provider.
package tracing
