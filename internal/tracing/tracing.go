package tracing

import (
	"go.opentelemetry.io/otel"
	codes "go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// tracerName is the default name used when acquiring a tracer instance.
const tracerName = "go-rex"

// GetTracer returns a named tracer from the globally configured
// OpenTelemetry provider, falling back to a NoOp tracer when none is set.
// Injecting the TracerProvider into components is preferred; this exists
// for tests and simple applications.
func GetTracer() oteltrace.Tracer {
	return otel.Tracer(tracerName)
}

// RecordError records an error event on a span and sets its status to
// Error. Does nothing if the error is nil or the span is not recording.
func RecordError(span oteltrace.Span, err error) {
	if err == nil || span == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err, oteltrace.WithStackTrace(true))
	span.SetStatus(codes.Error, err.Error())
}
