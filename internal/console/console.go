// Package console is the operation console: it owns the simple-operation
// inputs, the batch under construction, the history list and its filter,
// and mediates every call to the calculadora backend.
package console

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"

	"calculadora-console/internal/calculator"
)

var tracer = otel.Tracer("console")

// Backend is the subset of the calculadora API the console needs.
type Backend interface {
	Compute(ctx context.Context, op calculator.Operation, nums []float64) (float64, error)
	SumPair(ctx context.Context, a, b float64) (float64, error)
	History(ctx context.Context, q calculator.HistoryQuery) ([]calculator.Record, error)
	SubmitBatch(ctx context.Context, entries []calculator.BatchEntry) (calculator.BatchOutcome, error)
	BaseURL() string
	SetBaseURL(raw string) error
}

// SettingsSaver persists the chosen API base URL.
type SettingsSaver interface {
	SaveBaseURL(baseURL string) error
}

type Options struct {
	// HistoryLimit is sent as ?limit= on unfiltered fetches; 0 omits it.
	HistoryLimit int
	// HistoryDisplayLimit caps the displayed records; 0 shows all.
	HistoryDisplayLimit int
	HistoryOrder        calculator.HistoryOrder
	// LegacyPairMode sends two-operand sums as ?a=&b=.
	LegacyPairMode bool
	// ClearResultOnError drops the displayed result when a simple
	// operation fails at the backend.
	ClearResultOnError bool

	Settings SettingsSaver
	Clock    clockwork.Clock
}

type control struct {
	phase   Phase
	since   time.Time
	issued  uint64
	lastErr *calculator.Error
}

// Console is safe for concurrent use. All mutation goes through its action
// methods.
type Console struct {
	backend Backend
	opts    Options
	clock   clockwork.Clock

	mu            sync.Mutex
	simpleInput   SimpleInput
	computation   *calculator.Computation
	batchDraft    BatchInput
	batch         []queuedEntry
	nextEntryID   uint64
	batchOutcome  *calculator.BatchOutcome
	history       []calculator.Record
	historyLoaded bool
	historyQuery  calculator.HistoryQuery
	filter        Filter
	controls      map[Control]*control

	settingsMu sync.Mutex
}

func New(backend Backend, opts Options) *Console {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.HistoryOrder == "" {
		opts.HistoryOrder = calculator.OrderServer
	}

	c := &Console{
		backend:  backend,
		opts:     opts,
		clock:    opts.Clock,
		controls: make(map[Control]*control),
	}
	for _, ctl := range []Control{ControlSimple, ControlBatch, ControlHistory} {
		c.controls[ctl] = &control{phase: PhaseIdle}
	}

	return c
}

// Load performs the initial history fetch.
func (c *Console) Load(ctx context.Context) error {
	_, err := c.RefreshHistory(ctx)
	return err
}

func (c *Console) BaseURL() string {
	return c.backend.BaseURL()
}

// Snapshot returns a copy of the current console state.
func (c *Console) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		APIBaseURL:  c.backend.BaseURL(),
		SimpleInput: c.simpleInput,
		BatchDraft:  c.batchDraft,
		Batch:       cloneBatch(c.batch),
		History:     c.historyViewLocked(),
		Filter:      c.filter,
		Controls:    make(map[Control]ControlState, len(c.controls)),
	}

	if c.computation != nil {
		comp := *c.computation
		comp.Operands = slices.Clone(comp.Operands)
		s.Computation = &comp
	}
	if c.batchOutcome != nil {
		outcome := *c.batchOutcome
		s.BatchOutcome = &outcome
	}
	for ctl, st := range c.controls {
		s.Controls[ctl] = ControlState{Phase: st.phase, Since: st.since, LastError: st.lastErr}
	}

	return s
}

// HistoryView returns the displayed history.
func (c *Console) HistoryView() HistoryView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.historyViewLocked()
}

func (c *Console) historyViewLocked() HistoryView {
	shown := c.history
	if limit := c.opts.HistoryDisplayLimit; limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	view := HistoryView{
		Records: slices.Clone(shown),
		Lines:   make([]string, len(shown)),
		Total:   len(c.history),
		Loaded:  c.historyLoaded,
		Empty:   c.historyLoaded && len(c.history) == 0,
		Query:   c.historyQuery,
	}
	if view.Records == nil {
		view.Records = []calculator.Record{}
	}
	for i, r := range shown {
		view.Lines[i] = r.Expression()
	}

	return view
}

// queuedEntry is a pending batch entry and the id it was queued under. Ids
// tell a submitted entry apart from an equal one queued later.
type queuedEntry struct {
	id    uint64
	entry calculator.BatchEntry
}

func cloneBatch(batch []queuedEntry) []calculator.BatchEntry {
	out := make([]calculator.BatchEntry, len(batch))
	for i, q := range batch {
		out[i] = calculator.BatchEntry{Operation: q.entry.Operation, Operands: slices.Clone(q.entry.Operands)}
	}
	return out
}

func entryIDs(batch []queuedEntry) []uint64 {
	ids := make([]uint64, len(batch))
	for i, q := range batch {
		ids[i] = q.id
	}
	return ids
}
