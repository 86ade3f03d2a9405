package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EnrollmentOutcomesMetric counts enrollment attempts by outcome.
const EnrollmentOutcomesMetric = "enrollment.outcomes"

// EnrollmentMetrics records enrollment outcomes on an otel counter.
type EnrollmentMetrics struct {
	outcomes metric.Int64Counter
}

// NewEnrollmentMetrics registers the enrollment instruments on mp.
func NewEnrollmentMetrics(mp metric.MeterProvider) (*EnrollmentMetrics, error) {
	meter := mp.Meter(instrumentationName)
	c, err := meter.Int64Counter(EnrollmentOutcomesMetric,
		metric.WithDescription("Enrollment attempts by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}
	return &EnrollmentMetrics{outcomes: c}, nil
}

// RecordOutcome adds one to the counter for outcome.
func (m *EnrollmentMetrics) RecordOutcome(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
