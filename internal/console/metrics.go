package console

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metric instruments. They are no-ops until InitMetrics runs.
var (
	actionsCounter   metric.Int64Counter     = noop.Int64Counter{}
	backendHistogram metric.Float64Histogram = noop.Float64Histogram{}
	errorCounter     metric.Int64Counter     = noop.Int64Counter{}
	staleCounter     metric.Int64Counter     = noop.Int64Counter{}
	resultGauge      metric.Float64Gauge     = noop.Float64Gauge{}
)

// InitMetrics registers the console's OTel instruments. Call this once at
// startup, after observability.InitMetrics.
func InitMetrics() error {
	meter := otel.Meter("console")

	var err error

	actionsCounter, err = meter.Int64Counter("console.actions.total",
		metric.WithDescription("Console actions by control and outcome"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return fmt.Errorf("creating actions counter: %w", err)
	}

	backendHistogram, err = meter.Float64Histogram("console.backend.duration",
		metric.WithDescription("Duration of calls to the calculadora backend in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000),
	)
	if err != nil {
		return fmt.Errorf("creating backend histogram: %w", err)
	}

	errorCounter, err = meter.Int64Counter("console.errors.total",
		metric.WithDescription("Console errors by operation and kind"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("creating error counter: %w", err)
	}

	staleCounter, err = meter.Int64Counter("console.stale_responses.total",
		metric.WithDescription("Backend responses discarded because a newer request was issued"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return fmt.Errorf("creating stale counter: %w", err)
	}

	resultGauge, err = meter.Float64Gauge("console.last_result",
		metric.WithDescription("The result of the last simple operation"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("creating result gauge: %w", err)
	}

	return nil
}
