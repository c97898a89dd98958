package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records round-trip timings for calls to the backend.
type Observability struct {
	meterProvider *metric.MeterProvider
	calls         otelmetric.Int64Counter
	duration      otelmetric.Float64Histogram
}

// New registers an OpenTelemetry meter exported through the Prometheus
// default registry. On exporter failure it returns a recorder that drops
// everything.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	calls, err := meter.Int64Counter(
		"backend.calls",
		otelmetric.WithDescription("Number of calls made to the valuation backend"),
	)
	if err != nil {
		return &Observability{meterProvider: provider}, err
	}

	duration, err := meter.Float64Histogram(
		"backend.duration",
		otelmetric.WithDescription("Backend call round-trip duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return &Observability{meterProvider: provider}, err
	}

	return &Observability{
		meterProvider: provider,
		calls:         calls,
		duration:      duration,
	}, nil
}

// NewNoop returns a recorder that drops everything.
func NewNoop() *Observability {
	return &Observability{}
}

// RecordCall counts one backend call and its duration.
func (o *Observability) RecordCall(ctx context.Context, operation, status string, elapsed time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	if o.calls != nil {
		o.calls.Add(ctx, 1, attrs)
	}
	if o.duration != nil {
		o.duration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
