package console

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"calculadora-console/internal/calculator"
	"calculadora-console/internal/observability"
)

// ---------------------------------------------------------------------------
// Simple operations
// ---------------------------------------------------------------------------

// RunSimple parses the operand text, asks the backend for the result and, on
// success, refreshes the history once. Invalid input never reaches the
// backend and leaves the displayed result untouched.
func (c *Console) RunSimple(ctx context.Context, in SimpleInput) (calculator.Computation, error) {
	requestID := observability.RequestIDFromContext(ctx)

	ctx, span := tracer.Start(ctx, "console.simple",
		trace.WithAttributes(
			attribute.String("console.operation", in.Operation),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	c.mu.Lock()
	c.simpleInput = in
	c.mu.Unlock()

	op, err := calculator.ParseOperation(in.Operation)
	var nums []float64
	if err == nil {
		nums, err = calculator.ParseOperandsMin(in.Operands, calculator.SimpleMinOperands)
	}
	if err != nil {
		c.reject(ControlSimple, err)
		c.fail(ctx, span, ControlSimple, "simple operation rejected", err)
		return calculator.Computation{}, err
	}

	span.SetAttributes(attribute.Int("console.operands.count", len(nums)))

	seq := c.begin(ControlSimple)
	start := c.clock.Now()
	result, err := c.compute(ctx, op, nums)
	elapsed := c.observeBackend(ctx, "compute", start)

	if err != nil {
		cerr := asConsoleError(err)
		c.settle(ctx, ControlSimple, seq, func(st *control) {
			st.lastErr = cerr
			if c.opts.ClearResultOnError {
				c.computation = nil
			}
		})
		c.fail(ctx, span, ControlSimple, "simple operation failed", cerr)
		return calculator.Computation{}, cerr
	}

	comp := calculator.Computation{Operation: op, Operands: nums, Result: result}
	applied := c.settle(ctx, ControlSimple, seq, func(st *control) {
		st.lastErr = nil
		stored := comp
		c.computation = &stored
	})

	c.succeed(ctx, ControlSimple)
	resultGauge.Record(ctx, result, metric.WithAttributes(attribute.String("operation", string(op))))

	span.AddEvent("computation.complete", trace.WithAttributes(
		attribute.Float64("result", result),
		attribute.Float64("duration_ms", elapsed),
	))
	span.SetAttributes(attribute.Float64("console.result", result))
	span.SetStatus(codes.Ok, "")

	observability.LoggerWithTrace(ctx).Info("simple operation completed",
		zap.String("operation", string(op)),
		zap.Float64s("operands", nums),
		zap.Float64("result", result),
		zap.String("request_id", requestID),
		zap.Float64("duration_ms", elapsed),
	)

	// A newer request for this control is in flight and will refresh.
	if applied {
		_, _ = c.RefreshHistory(ctx)
	}

	return comp, nil
}

func (c *Console) compute(ctx context.Context, op calculator.Operation, nums []float64) (float64, error) {
	if c.opts.LegacyPairMode && op == calculator.OpSum && len(nums) == 2 {
		return c.backend.SumPair(ctx, nums[0], nums[1])
	}
	return c.backend.Compute(ctx, op, nums)
}

// ---------------------------------------------------------------------------
// Batch builder
// ---------------------------------------------------------------------------

// AppendBatch validates one entry and queues it. It never calls the backend.
// On success the operand text of the draft is cleared.
func (c *Console) AppendBatch(ctx context.Context, in BatchInput) (calculator.BatchEntry, error) {
	span := trace.SpanFromContext(ctx)

	c.mu.Lock()
	c.batchDraft = in
	c.mu.Unlock()

	entry, err := parseBatchEntry(in)
	if err != nil {
		c.reject(ControlBatch, err)
		c.fail(ctx, span, ControlBatch, "batch entry rejected", err)
		return calculator.BatchEntry{}, err
	}

	c.mu.Lock()
	c.nextEntryID++
	c.batch = append(c.batch, queuedEntry{id: c.nextEntryID, entry: entry})
	c.batchDraft = BatchInput{Operation: in.Operation}
	c.controls[ControlBatch].lastErr = nil
	size := len(c.batch)
	c.mu.Unlock()

	observability.LoggerWithTrace(ctx).Info("batch entry queued",
		zap.String("operation", string(entry.Operation)),
		zap.Float64s("operands", entry.Operands),
		zap.Int("batch_size", size),
		zap.String("request_id", observability.RequestIDFromContext(ctx)),
	)

	return entry, nil
}

func parseBatchEntry(in BatchInput) (calculator.BatchEntry, error) {
	op, err := calculator.ParseOperation(in.Operation)
	if err != nil {
		return calculator.BatchEntry{}, err
	}

	nums, err := calculator.ParseOperandsMin(in.Operands, calculator.BatchMinOperands)
	if err != nil {
		return calculator.BatchEntry{}, err
	}

	entry := calculator.BatchEntry{Operation: op, Operands: nums}
	if err := entry.Validate(); err != nil {
		return calculator.BatchEntry{}, err
	}

	return entry, nil
}

// RemoveBatchEntry drops the entry at index from the pending batch.
func (c *Console) RemoveBatchEntry(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.batch) {
		return calculator.ValidationError("no batch entry at index %d", index)
	}

	c.batch = slices.Delete(c.batch, index, index+1)
	return nil
}

// ClearBatch empties the pending batch.
func (c *Console) ClearBatch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batch = nil
}

// SubmitBatch sends the whole pending batch in one request. An empty batch
// is rejected without a network call. On success the submitted entries leave
// the batch (see dropSubmitted). On failure the batch is kept so it can be
// corrected and resubmitted.
func (c *Console) SubmitBatch(ctx context.Context) (calculator.BatchOutcome, error) {
	requestID := observability.RequestIDFromContext(ctx)

	ctx, span := tracer.Start(ctx, "console.batch.submit",
		trace.WithAttributes(attribute.String("request.id", requestID)),
	)
	defer span.End()

	c.mu.Lock()
	entries := cloneBatch(c.batch)
	submitted := entryIDs(c.batch)
	c.mu.Unlock()

	if len(entries) == 0 {
		err := calculator.ValidationError("batch is empty, add at least one operation first")
		c.reject(ControlBatch, err)
		c.fail(ctx, span, ControlBatch, "batch submit rejected", err)
		return calculator.BatchOutcome{}, err
	}

	span.SetAttributes(attribute.Int("batch.size", len(entries)))

	seq := c.begin(ControlBatch)
	start := c.clock.Now()
	outcome, err := c.backend.SubmitBatch(ctx, entries)
	elapsed := c.observeBackend(ctx, "batch", start)

	if err != nil {
		cerr := asConsoleError(err)
		c.settle(ctx, ControlBatch, seq, func(st *control) {
			st.lastErr = cerr
		})

		msg := "batch submit failed"
		if cerr.Details != nil && cerr.Details.FailedOperation != "" {
			msg = fmt.Sprintf("batch submit failed at %s", cerr.Details.FailedOperation)
		}
		c.fail(ctx, span, ControlBatch, msg, cerr)
		return calculator.BatchOutcome{}, cerr
	}

	applied := c.settle(ctx, ControlBatch, seq, func(st *control) {
		st.lastErr = nil
		stored := outcome
		c.batchOutcome = &stored
		c.batch = dropSubmitted(c.batch, submitted)
	})

	c.succeed(ctx, ControlBatch)
	span.AddEvent("batch.complete", trace.WithAttributes(
		attribute.Int("results", len(outcome.Results)),
		attribute.Float64("duration_ms", elapsed),
	))
	span.SetStatus(codes.Ok, "")

	observability.LoggerWithTrace(ctx).Info("batch submitted",
		zap.Int("entries", len(entries)),
		zap.Int("results", len(outcome.Results)),
		zap.String("request_id", requestID),
		zap.Float64("duration_ms", elapsed),
	)

	if applied {
		_, _ = c.RefreshHistory(ctx)
	}

	return outcome, nil
}

// dropSubmitted removes the entries a successful request carried. Entries
// queued while it was in flight stay, whatever else was edited meanwhile.
func dropSubmitted(batch []queuedEntry, submitted []uint64) []queuedEntry {
	return slices.DeleteFunc(slices.Clone(batch), func(q queuedEntry) bool {
		return slices.Contains(submitted, q.id)
	})
}

// ---------------------------------------------------------------------------
// History and filters
// ---------------------------------------------------------------------------

// RefreshHistory fetches history for the active filter and replaces the
// displayed list. On failure the previous list stays displayed.
func (c *Console) RefreshHistory(ctx context.Context) (HistoryView, error) {
	requestID := observability.RequestIDFromContext(ctx)

	c.mu.Lock()
	q := calculator.HistoryQuery{
		Operation: c.filter.Operation,
		Date:      c.filter.Date,
		Limit:     c.opts.HistoryLimit,
	}
	c.mu.Unlock()

	ctx, span := tracer.Start(ctx, "console.history",
		trace.WithAttributes(
			attribute.String("history.kind", string(q.Kind())),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	seq := c.begin(ControlHistory)
	start := c.clock.Now()
	records, err := c.backend.History(ctx, q)
	elapsed := c.observeBackend(ctx, "history", start)

	if err != nil {
		cerr := asConsoleError(err)
		c.settle(ctx, ControlHistory, seq, func(st *control) {
			st.lastErr = cerr
		})
		c.fail(ctx, span, ControlHistory, "history fetch failed", cerr)
		return c.HistoryView(), cerr
	}

	ordered := c.opts.HistoryOrder.Apply(records)
	c.settle(ctx, ControlHistory, seq, func(st *control) {
		st.lastErr = nil
		c.history = ordered
		c.historyLoaded = true
		c.historyQuery = q
	})

	c.succeed(ctx, ControlHistory)
	span.SetAttributes(attribute.Int("history.records", len(records)))
	span.SetStatus(codes.Ok, "")

	observability.LoggerWithTrace(ctx).Debug("history refreshed",
		zap.String("kind", string(q.Kind())),
		zap.Int("records", len(records)),
		zap.String("request_id", requestID),
		zap.Float64("duration_ms", elapsed),
	)

	return c.HistoryView(), nil
}

// SetOperationFilter filters history by operation and clears any date filter.
func (c *Console) SetOperationFilter(raw string) error {
	op, err := calculator.ParseOperation(raw)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.filter = Filter{Operation: op}
	c.mu.Unlock()

	return nil
}

// SetDateFilter filters history by day (yyyy-mm-dd) and clears any
// operation filter.
func (c *Console) SetDateFilter(date string) error {
	if err := (calculator.HistoryQuery{Date: date}).Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.filter = Filter{Date: date}
	c.mu.Unlock()

	return nil
}

func (c *Console) ClearFilters() {
	c.mu.Lock()
	c.filter = Filter{}
	c.mu.Unlock()
}

// ApplyFilter selects the filter described by in.
func (c *Console) ApplyFilter(in FilterInput) error {
	switch {
	case in.Operation != "" && in.Date != "":
		return calculator.ValidationError("choose either an operation or a date filter, not both")
	case in.Operation != "":
		return c.SetOperationFilter(in.Operation)
	case in.Date != "":
		return c.SetDateFilter(in.Date)
	default:
		c.ClearFilters()
		return nil
	}
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// SetBaseURL points the console at another backend and persists the choice.
// If the choice cannot be saved the previous backend stays in use.
func (c *Console) SetBaseURL(raw string) error {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()

	previous := c.backend.BaseURL()
	if err := c.backend.SetBaseURL(raw); err != nil {
		return err
	}

	if c.opts.Settings == nil {
		return nil
	}

	if err := c.opts.Settings.SaveBaseURL(c.backend.BaseURL()); err != nil {
		if rerr := c.backend.SetBaseURL(previous); rerr != nil {
			return errors.Join(
				calculator.SettingsError(fmt.Errorf("save api base url: %w", err)),
				fmt.Errorf("restore api base url: %w", rerr),
			)
		}
		return calculator.SettingsError(fmt.Errorf("save api base url: %w", err))
	}

	return nil
}
