package cache

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type cacheMetricsCollection struct {
	eventCount metric.Int64Counter
}

var metrics cacheMetricsCollection

func init() {
	const name = "gqlcache/cache"
	meter := otel.Meter(name)

	eventCount, err := meter.Int64Counter(
		"cache/event_count",
		metric.WithDescription("Total number of cache entry events emitted"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create event count metric: %w", err))
	}

	metrics = cacheMetricsCollection{
		eventCount: eventCount,
	}
}
