package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// TracerProvider defines the interface for accessing the runtime's tracer
// provider, so that go-rex spans (dispatch cycles, effect runs) integrate
// with an application's existing OpenTelemetry setup.
type TracerProvider interface {
	// GetTracer returns a Tracer instance with the specified name and options.
	GetTracer(name string, opts ...trace.TracerOption) trace.Tracer

	// Shutdown gracefully shuts down the tracer provider, flushing any
	// buffered spans. Implementations for which shutdown is not applicable
	// (e.g. a NoOp provider) should return nil.
	Shutdown(ctx context.Context) error
}
