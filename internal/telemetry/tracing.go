package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns the tracer used for organization actions.
func Tracer() trace.Tracer {
	return otel.Tracer(meterName)
}
