package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce           sync.Once
	metricsInitErr        error
	queryCounter          metric.Int64Counter
	queryLatencyHistogram metric.Float64Histogram
)

// QueryMetrics captures the fields needed to record query pipeline telemetry.
type QueryMetrics struct {
	Outcome  string
	Provider string
	Model    string
	Duration time.Duration
}

// RecordQueryMetrics emits the counter and histogram that describe query
// pipeline behaviour.
func RecordQueryMetrics(ctx context.Context, metrics QueryMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("query.outcome", metrics.Outcome),
	}
	if metrics.Provider != "" {
		attrs = append(attrs, attribute.String("llm.provider", metrics.Provider))
	}
	if metrics.Model != "" {
		attrs = append(attrs, attribute.String("llm.model", metrics.Model))
	}

	queryCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if metrics.Duration > 0 {
		queryLatencyHistogram.Record(ctx, float64(metrics.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("answerd.query")

		queryCounter, metricsInitErr = meter.Int64Counter(
			"answerd.query.requests_total",
			metric.WithDescription("Query pipeline requests partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		queryLatencyHistogram, metricsInitErr = meter.Float64Histogram(
			"answerd.query.duration_ms",
			metric.WithDescription("Observed query pipeline latency"),
			metric.WithUnit("ms"),
		)
	})

	return metricsInitErr
}
