package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/orgscope"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Action metrics
	ActionsTotal         metric.Int64Counter
	ActionDuration       metric.Float64Histogram
	GuardRejectionsTotal metric.Int64Counter

	// Event metrics
	EventPublishTotal       metric.Int64Counter
	EventPublishErrorsTotal metric.Int64Counter
	EventPublishDuration    metric.Float64Histogram
	EventsDroppedTotal      metric.Int64Counter

	// Store metrics
	SlugRetriesTotal metric.Int64Counter
	TxRetriesTotal   metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.ActionsTotal, _ = meter.Int64Counter(
		"orgscope.actions.total",
		metric.WithDescription("Total number of organization actions by outcome"),
		metric.WithUnit("{action}"),
	)

	m.ActionDuration, _ = meter.Float64Histogram(
		"orgscope.actions.duration",
		metric.WithDescription("Duration of organization actions"),
		metric.WithUnit("ms"),
	)

	m.GuardRejectionsTotal, _ = meter.Int64Counter(
		"orgscope.actions.rejections.total",
		metric.WithDescription("Total number of actions rejected by a business rule"),
		metric.WithUnit("{rejection}"),
	)

	m.EventPublishTotal, _ = meter.Int64Counter(
		"orgscope.events.publish.total",
		metric.WithDescription("Total number of domain event publish attempts"),
		metric.WithUnit("{event}"),
	)

	m.EventPublishErrorsTotal, _ = meter.Int64Counter(
		"orgscope.events.publish.errors.total",
		metric.WithDescription("Total number of domain event publish errors"),
		metric.WithUnit("{error}"),
	)

	m.EventPublishDuration, _ = meter.Float64Histogram(
		"orgscope.events.publish.duration",
		metric.WithDescription("Duration of domain event publish operations"),
		metric.WithUnit("ms"),
	)

	m.EventsDroppedTotal, _ = meter.Int64Counter(
		"orgscope.events.dropped.total",
		metric.WithDescription("Total number of domain events dropped due to overflow"),
		metric.WithUnit("{event}"),
	)

	m.SlugRetriesTotal, _ = meter.Int64Counter(
		"orgscope.store.slug_retries.total",
		metric.WithDescription("Total number of slug regenerations after a collision"),
		metric.WithUnit("{retry}"),
	)

	m.TxRetriesTotal, _ = meter.Int64Counter(
		"orgscope.store.tx_retries.total",
		metric.WithDescription("Total number of transactions retried after a serialization failure"),
		metric.WithUnit("{retry}"),
	)

	return m
}

// RecordAction records the outcome and duration of an action. outcome is "ok"
// on success, otherwise a short error kind.
func RecordAction(ctx context.Context, action, outcome string, started time.Time) {
	m := GetMetrics()
	attrs := metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	)
	m.ActionsTotal.Add(ctx, 1, attrs)
	m.ActionDuration.Record(ctx, float64(time.Since(started).Microseconds())/1000, attrs)
}
