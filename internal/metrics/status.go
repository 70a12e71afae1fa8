package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// StatusCounter returns the number of records per status.
type StatusCounter func(ctx context.Context) (map[string]int64, error)

// RegisterStatusGauge exposes counter as an observable gauge named
// "<namespace>_<name>_by_status" with one series per status label. The counter runs
// on every collection, so it should be a single aggregate query.
func RegisterStatusGauge(
	meterProvider metric.MeterProvider,
	namespace, name, description string,
	counter StatusCounter,
) (metric.Registration, error) {
	meter := meterProvider.Meter(namespace)

	gauge, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_%s_by_status", namespace, name),
		metric.WithDescription(description),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s gauge: %w", name, err)
	}

	registration, err := meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		counts, err := counter(ctx)
		if err != nil {
			// Skip this collection.
			return nil
		}
		for status, count := range counts {
			o.ObserveInt64(gauge, count, metric.WithAttributes(attribute.String("status", status)))
		}
		return nil
	}, gauge)
	if err != nil {
		return nil, fmt.Errorf("failed to register %s gauge callback: %w", name, err)
	}
	return registration, nil
}
