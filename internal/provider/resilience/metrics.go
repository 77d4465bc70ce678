package resilience

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ambientwx/ambientwx/internal/provider/resilience"

// ProviderMetrics holds metrics for external provider calls.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	attemptTotal    metric.Int64Counter
}

// NewProviderMetrics creates metrics for monitoring external provider calls.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider fetches in seconds, retries included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider fetches"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	attemptTotal, err := meter.Int64Counter(
		"provider.request.attempts",
		metric.WithDescription("Total number of HTTP attempts made by provider fetches"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		attemptTotal:    attemptTotal,
	}, nil
}

// RecordFetch records metrics for one provider fetch.
func (m *ProviderMetrics) RecordFetch(ctx context.Context, provider string, duration time.Duration, attempts int, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("provider.name", provider),
	}

	if err != nil {
		kind := "unknown"
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			kind = fetchErr.Kind.String()
		}
		attrs = append(attrs, attribute.Bool("error", true), attribute.String("error.type", kind))
	}

	// Detached so a canceled request still gets counted
	ctx = context.WithoutCancel(ctx)
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.attemptTotal.Add(ctx, int64(attempts), metric.WithAttributes(attrs...))
}
