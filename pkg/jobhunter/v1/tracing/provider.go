package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// TracerProvider hands out tracers for pipeline runs and stages.
type TracerProvider interface {
	// GetTracer returns a named tracer.
	GetTracer(name string, opts ...trace.TracerOption) trace.Tracer

	// Shutdown flushes buffered spans. ctx should carry a deadline.
	Shutdown(ctx context.Context) error
}
