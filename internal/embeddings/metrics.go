package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the OpenTelemetry instruments shared by every Provider
// implementation, mirroring the teacher's otel-metric instrumentation for
// the embeddings component.
type Metrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	texts    metric.Int64Counter
}

// NewMetrics creates the embeddings instrument set against meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	requests, err := meter.Int64Counter("vectorcore.embeddings.requests",
		metric.WithDescription("Count of embedding provider calls by provider and outcome."))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("vectorcore.embeddings.latency",
		metric.WithDescription("Embedding call latency in seconds."), metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	texts, err := meter.Int64Counter("vectorcore.embeddings.texts",
		metric.WithDescription("Count of individual texts embedded, by provider."))
	if err != nil {
		return nil, err
	}
	return &Metrics{requests: requests, latency: latency, texts: texts}, nil
}

func (m *Metrics) observe(ctx context.Context, provider string, start time.Time, textCount int, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	)
	m.requests.Add(ctx, 1, attrs)
	m.latency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("provider", provider)))
	if err == nil {
		m.texts.Add(ctx, int64(textCount), metric.WithAttributes(attribute.String("provider", provider)))
	}
}
