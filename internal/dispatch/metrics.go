package dispatch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/pushrelay/pushrelay/internal/dispatch"

// Metrics holds the delivery instruments.
type Metrics struct {
	deliveryTotal    metric.Int64Counter
	deliveryDuration metric.Float64Histogram
}

// NewMetrics creates delivery instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	deliveryTotal, err := meter.Int64Counter(
		"push.delivery.total",
		metric.WithDescription("Total number of push delivery attempts"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, err
	}

	deliveryDuration, err := meter.Float64Histogram(
		"push.delivery.duration",
		metric.WithDescription("Duration of push delivery attempts in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		deliveryTotal:    deliveryTotal,
		deliveryDuration: deliveryDuration,
	}, nil
}

// RecordDelivery records one delivery attempt.
func (m *Metrics) RecordDelivery(channel, source string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("push.channel", channel),
		attribute.String("push.source", source),
		attribute.String("push.outcome", outcome),
	)

	// Detached from the request so a cancelled caller still gets counted.
	ctx := context.TODO()
	m.deliveryTotal.Add(ctx, 1, attrs)
	m.deliveryDuration.Record(ctx, duration.Seconds(), attrs)
}
