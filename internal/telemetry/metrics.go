package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// RunMetricsMeterName is the name used for the store test run meter
	RunMetricsMeterName = "github.com/nonebot/store-test/storetest"
)

// RunMetrics holds the instruments recorded by a store test run
type RunMetrics struct {
	candidatesTotal    metric.Int64Counter
	validationDuration metric.Float64Histogram
	listingEntries     metric.Int64Gauge
}

// NewRunMetrics creates the run instruments on the given meter provider.
// If provider is nil, it returns nil and every Record method is a no-op.
func NewRunMetrics(provider metric.MeterProvider) (*RunMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RunMetricsMeterName)

	candidatesTotal, err := meter.Int64Counter(
		"store_test_candidates_total",
		metric.WithDescription("Number of plugin candidates processed, by outcome"),
		metric.WithUnit("{candidate}"),
	)
	if err != nil {
		return nil, err
	}

	validationDuration, err := meter.Float64Histogram(
		"store_test_validation_duration_seconds",
		metric.WithDescription("Duration of plugin validations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 900),
	)
	if err != nil {
		return nil, err
	}

	listingEntries, err := meter.Int64Gauge(
		"store_test_listing_entries",
		metric.WithDescription("Number of entries in each store listing"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &RunMetrics{
		candidatesTotal:    candidatesTotal,
		validationDuration: validationDuration,
		listingEntries:     listingEntries,
	}, nil
}

// RecordCandidate counts one processed candidate
func (m *RunMetrics) RecordCandidate(ctx context.Context, status, reason string) {
	if m == nil || m.candidatesTotal == nil {
		return
	}

	m.candidatesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("reason", reason),
	))
}

// RecordValidationDuration records how long one validation took
func (m *RunMetrics) RecordValidationDuration(ctx context.Context, duration time.Duration, passed bool) {
	if m == nil || m.validationDuration == nil {
		return
	}

	m.validationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.Bool("passed", passed),
	))
}

// RecordListingEntries records the size of a store listing
func (m *RunMetrics) RecordListingEntries(ctx context.Context, kind string, count int) {
	if m == nil || m.listingEntries == nil {
		return
	}

	m.listingEntries.Record(ctx, int64(count), metric.WithAttributes(
		attribute.String("kind", kind),
	))
}
