package expiry

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type expiryMetricsCollection struct {
	expiredCount metric.Int64Counter
}

var metrics expiryMetricsCollection

func init() {
	meter := otel.Meter("gqlcache/expiry")

	expiredCount, err := meter.Int64Counter(
		"expiry/expired_count",
		metric.WithDescription("Number of cache entries acted on after expiring"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create expired count metric: %w", err))
	}

	metrics = expiryMetricsCollection{
		expiredCount: expiredCount,
	}
}
