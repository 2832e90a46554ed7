package console

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"calculadora-console/internal/calculator"
	"calculadora-console/internal/observability"
)

// begin moves ctl to loading and returns the sequence number of the request
// about to be issued. Only the newest sequence may settle the control.
func (c *Console) begin(ctl Control) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.controls[ctl]
	st.issued++
	st.phase = PhaseLoading
	st.since = c.clock.Now()

	return st.issued
}

// settle applies fn and returns ctl to idle if seq is still the newest
// request for ctl. Stale responses are dropped and counted.
func (c *Console) settle(ctx context.Context, ctl Control, seq uint64, fn func(st *control)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.controls[ctl]
	if seq != st.issued {
		staleCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("control", string(ctl))))
		observability.LoggerWithTrace(ctx).Info("discarding stale response",
			zap.String("control", string(ctl)),
			zap.Uint64("sequence", seq),
			zap.Uint64("latest", st.issued),
		)
		return false
	}

	st.phase = PhaseIdle
	st.since = time.Time{}
	fn(st)

	return true
}

// reject records an input error on ctl. No request was issued, so the
// lifecycle is left alone.
func (c *Console) reject(ctl Control, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls[ctl].lastErr = asConsoleError(err)
}

// fail reports err on span, metrics and log. Input errors log at warn.
func (c *Console) fail(ctx context.Context, span trace.Span, ctl Control, msg string, err error) {
	cerr := asConsoleError(err)
	kind := attribute.String("kind", string(cerr.Kind))

	outcome := "error"
	if cerr.Kind == calculator.KindValidation {
		outcome = "rejected"
	}
	actionsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("control", string(ctl)),
		attribute.String("outcome", outcome),
	))

	logger := observability.LoggerWithTrace(ctx)
	if cerr.Kind == calculator.KindValidation {
		span.AddEvent("input.rejected", trace.WithAttributes(attribute.String("reason", cerr.Message)))
		errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", string(ctl)), kind))
		logger.Warn(msg,
			zap.String("operation", string(ctl)),
			zap.String("reason", cerr.Message),
			zap.String("request_id", observability.RequestIDFromContext(ctx)),
		)
		return
	}

	observability.RecordFailure(ctx, span, logger, errorCounter, string(ctl), msg, err, kind)
}

func (c *Console) succeed(ctx context.Context, ctl Control) {
	actionsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("control", string(ctl)),
		attribute.String("outcome", "success"),
	))
}

func (c *Console) observeBackend(ctx context.Context, endpoint string, start time.Time) float64 {
	elapsed := float64(c.clock.Since(start).Microseconds()) / 1000.0
	backendHistogram.Record(ctx, elapsed, metric.WithAttributes(attribute.String("endpoint", endpoint)))
	return elapsed
}

// asConsoleError normalizes any error into the console's tagged error.
// Foreign errors come from the transport layer and count as network errors.
func asConsoleError(err error) *calculator.Error {
	if cerr, ok := calculator.AsError(err); ok {
		return cerr
	}
	return calculator.NetworkError(err)
}
