package loading

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type loadingMetricsCollection struct {
	inFlight metric.Int64UpDownCounter
	duration metric.Float64Histogram
}

var metrics loadingMetricsCollection

func init() {
	const name = "gqlcache/loading"
	meter := otel.Meter(name)

	inFlight, err := meter.Int64UpDownCounter(
		"loading/in_flight",
		metric.WithDescription("Number of loads currently in flight"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create in flight metric: %w", err))
	}

	duration, err := meter.Float64Histogram(
		"loading/duration_seconds",
		metric.WithDescription("Time from a load starting until it settles"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create duration metric: %w", err))
	}

	metrics = loadingMetricsCollection{
		inFlight: inFlight,
		duration: duration,
	}
}
