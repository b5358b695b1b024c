package telemetry

import (
	"context"
	"strings"
	"time"

	"github.com/wolfeidau/orgscope/internal/apperrors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// StartAction opens a span for an organization action and returns a function
// that records the outcome. Call it exactly once with the action's error.
func StartAction(ctx context.Context, action string) (context.Context, func(err error)) {
	started := time.Now()
	ctx, span := Tracer().Start(ctx, action)

	return ctx, func(err error) {
		defer span.End()

		outcome := Outcome(err)
		span.SetAttributes(attribute.String("orgscope.outcome", outcome))
		RecordAction(ctx, action, outcome, started)

		switch {
		case err == nil:
		case apperrors.IsBusinessRule(err):
			GetMetrics().GuardRejectionsTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("action", action),
				attribute.String("kind", outcome),
			))
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
}

// Outcome returns "ok" for nil, otherwise the lower-cased error kind.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(string(apperrors.KindOf(err)))
}
