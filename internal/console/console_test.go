package console

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calculadora-console/internal/calcapi"
	"calculadora-console/internal/calculator"
	"calculadora-console/internal/testutil"
)

const (
	historyPath = "/calculadora/historial"
	batchPath   = "/calculadora/lote"
)

func newTestConsole(t *testing.T, opts Options) (*Console, *testutil.FakeBackend) {
	t.Helper()

	backend := testutil.NewFakeBackend(t)
	client, err := calcapi.New(backend.URL(), calcapi.WithTimeout(2*time.Second))
	require.NoError(t, err)

	return New(client, opts), backend
}

func TestRunSimpleIssuesRepeatedNumsAndRefreshesHistoryOnce(t *testing.T) {
	c, backend := newTestConsole(t, Options{})

	comp, err := c.RunSimple(context.Background(), SimpleInput{Operation: "sum", Operands: "10 5 2"})
	require.NoError(t, err)
	assert.Equal(t, 17.0, comp.Result)

	reqs := backend.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "/calculadora/sum", reqs[0].Path)
	assert.Equal(t, []string{"10", "5", "2"}, reqs[0].Query["nums"])
	assert.Equal(t, 1, backend.CountPrefix(historyPath))

	state := c.Snapshot()
	require.NotNil(t, state.Computation)
	assert.Equal(t, 17.0, state.Computation.Result)
	assert.Equal(t, []string{"10 + 5 + 2 = 17"}, state.History.Lines)
	assert.Equal(t, PhaseIdle, state.Controls[ControlSimple].Phase)
}

func TestRunSimpleInvalidInputSendsNothingAndKeepsResult(t *testing.T) {
	c, backend := newTestConsole(t, Options{ClearResultOnError: true})
	ctx := context.Background()

	_, err := c.RunSimple(ctx, SimpleInput{Operation: "mul", Operands: "3 4"})
	require.NoError(t, err)
	before := len(backend.Requests())

	for _, in := range []SimpleInput{
		{Operation: "sum", Operands: "10 abc"},
		{Operation: "sum", Operands: "10"},
		{Operation: "pow", Operands: "2 3"},
	} {
		_, err := c.RunSimple(ctx, in)
		require.Error(t, err, in)
		assert.Equal(t, calculator.KindValidation, calculator.KindOf(err), in)
	}

	assert.Len(t, backend.Requests(), before)

	state := c.Snapshot()
	require.NotNil(t, state.Computation)
	assert.Equal(t, 12.0, state.Computation.Result)
	require.NotNil(t, state.Controls[ControlSimple].LastError)
	assert.Equal(t, calculator.KindValidation, state.Controls[ControlSimple].LastError.Kind)
}

func TestRunSimpleBackendFailure(t *testing.T) {
	tests := []struct {
		name        string
		clear       bool
		wantCleared bool
	}{
		{name: "clears result", clear: true, wantCleared: true},
		{name: "keeps result", clear: false, wantCleared: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, backend := newTestConsole(t, Options{ClearResultOnError: tc.clear})
			ctx := context.Background()

			_, err := c.RunSimple(ctx, SimpleInput{Operation: "sum", Operands: "1 2"})
			require.NoError(t, err)
			historyCalls := backend.CountPrefix(historyPath)

			_, err = c.RunSimple(ctx, SimpleInput{Operation: "div", Operands: "100 0"})
			require.Error(t, err)

			cerr, ok := calculator.AsError(err)
			require.True(t, ok)
			assert.Equal(t, calculator.KindBackend, cerr.Kind)
			assert.Equal(t, "No se puede dividir por cero.", cerr.Message)

			assert.Equal(t, historyCalls, backend.CountPrefix(historyPath), "history must not refresh after a failure")

			state := c.Snapshot()
			assert.Equal(t, tc.wantCleared, state.Computation == nil)
			assert.Equal(t, cerr, state.Controls[ControlSimple].LastError)
		})
	}
}

func TestRunSimpleLegacyPairMode(t *testing.T) {
	c, backend := newTestConsole(t, Options{LegacyPairMode: true})
	ctx := context.Background()

	_, err := c.RunSimple(ctx, SimpleInput{Operation: "sum", Operands: "2, 3"})
	require.NoError(t, err)

	first := backend.Requests()[0]
	assert.Equal(t, "2", first.Query.Get("a"))
	assert.Equal(t, "3", first.Query.Get("b"))
	assert.Empty(t, first.Query["nums"])

	_, err = c.RunSimple(ctx, SimpleInput{Operation: "sum", Operands: "2 3 4"})
	require.NoError(t, err)

	third := backend.Requests()[2]
	assert.Equal(t, []string{"2", "3", "4"}, third.Query["nums"])
}

func TestRunSimpleUnreachableBackend(t *testing.T) {
	c, backend := newTestConsole(t, Options{})
	backend.Close()

	_, err := c.RunSimple(context.Background(), SimpleInput{Operation: "sum", Operands: "1 1"})
	require.Error(t, err)

	cerr, ok := calculator.AsError(err)
	require.True(t, ok)
	assert.Equal(t, calculator.KindNetwork, cerr.Kind)
	assert.Equal(t, calculator.NetworkMessage, cerr.Message)
}

func TestAppendBatchNeverCallsBackend(t *testing.T) {
	c, backend := newTestConsole(t, Options{})
	ctx := context.Background()

	entry, err := c.AppendBatch(ctx, BatchInput{Operation: "sum", Operands: "5 5"})
	require.NoError(t, err)
	assert.Equal(t, calculator.BatchEntry{Operation: calculator.OpSum, Operands: []float64{5, 5}}, entry)

	_, err = c.AppendBatch(ctx, BatchInput{Operation: "mul", Operands: "7"})
	require.NoError(t, err)

	assert.Empty(t, backend.Requests())

	state := c.Snapshot()
	require.Len(t, state.Batch, 2)
	assert.Equal(t, calculator.OpMul, state.Batch[1].Operation)
	assert.Equal(t, BatchInput{Operation: "mul"}, state.BatchDraft, "operand text is cleared after append")
}

func TestAppendBatchRejectsInvalidEntries(t *testing.T) {
	c, backend := newTestConsole(t, Options{})
	ctx := context.Background()

	for _, in := range []BatchInput{
		{Operation: "sum", Operands: ""},
		{Operation: "sum", Operands: "1 x"},
		{Operation: "pow", Operands: "1 2"},
	} {
		_, err := c.AppendBatch(ctx, in)
		require.Error(t, err, in)
		assert.Equal(t, calculator.KindValidation, calculator.KindOf(err), in)
	}

	state := c.Snapshot()
	assert.Empty(t, state.Batch)
	assert.Equal(t, BatchInput{Operation: "pow", Operands: "1 2"}, state.BatchDraft, "draft survives a rejected append")
	assert.Empty(t, backend.Requests())
}

func TestSubmitEmptyBatchNeverCallsBackend(t *testing.T) {
	c, backend := newTestConsole(t, Options{})

	_, err := c.SubmitBatch(context.Background())
	require.Error(t, err)
	assert.Equal(t, calculator.KindValidation, calculator.KindOf(err))
	assert.Empty(t, backend.Requests())
}

func TestSubmitBatchSuccessEmptiesBatchAndShowsResult(t *testing.T) {
	c, backend := newTestConsole(t, Options{})
	ctx := context.Background()

	_, err := c.AppendBatch(ctx, BatchInput{Operation: "sum", Operands: "5 5"})
	require.NoError(t, err)

	outcome, err := c.SubmitBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, []calculator.BatchResult{{Operation: "sum", Result: 10}}, outcome.Results)

	state := c.Snapshot()
	assert.Empty(t, state.Batch)
	require.NotNil(t, state.BatchOutcome)
	assert.Equal(t, outcome.Results, state.BatchOutcome.Results)

	assert.Equal(t, 1, backend.Count(batchPath))
	assert.Equal(t, 1, backend.CountPrefix(historyPath))
}

func TestSubmitBatchFailureKeepsBatchAndSurfacesDetail(t *testing.T) {
	c, backend := newTestConsole(t, Options{})
	ctx := context.Background()

	_, err := c.AppendBatch(ctx, BatchInput{Operation: "sum", Operands: "10 5"})
	require.NoError(t, err)
	_, err = c.AppendBatch(ctx, BatchInput{Operation: "mul", Operands: "5"})
	require.NoError(t, err)

	_, err = c.SubmitBatch(ctx)
	require.Error(t, err)

	cerr, ok := calculator.AsError(err)
	require.True(t, ok)
	assert.Equal(t, calculator.KindBackend, cerr.Kind)
	require.NotNil(t, cerr.Details)
	assert.Equal(t, "mul", cerr.Details.FailedOperation)
	assert.Equal(t, []float64{5}, cerr.Details.Operands)

	state := c.Snapshot()
	assert.Len(t, state.Batch, 2)
	assert.Nil(t, state.BatchOutcome)
	assert.Equal(t, 0, backend.CountPrefix(historyPath))

	// Fix the failing entry and resubmit.
	require.NoError(t, c.RemoveBatchEntry(1))
	_, err = c.AppendBatch(ctx, BatchInput{Operation: "mul", Operands: "5 2"})
	require.NoError(t, err)

	_, err = c.SubmitBatch(ctx)
	require.NoError(t, err)
	assert.Empty(t, c.Snapshot().Batch)
}

func TestRemoveAndClearBatch(t *testing.T) {
	c, _ := newTestConsole(t, Options{})
	ctx := context.Background()

	for _, text := range []string{"1", "2", "3"} {
		_, err := c.AppendBatch(ctx, BatchInput{Operation: "sum", Operands: text})
		require.NoError(t, err)
	}

	require.NoError(t, c.RemoveBatchEntry(1))
	batch := c.Snapshot().Batch
	require.Len(t, batch, 2)
	assert.Equal(t, []float64{3}, batch[1].Operands)

	err := c.RemoveBatchEntry(5)
	require.Error(t, err)
	assert.Equal(t, calculator.KindValidation, calculator.KindOf(err))

	c.ClearBatch()
	assert.Empty(t, c.Snapshot().Batch)
}

func TestFiltersAreMutuallyExclusive(t *testing.T) {
	c, _ := newTestConsole(t, Options{})

	require.NoError(t, c.SetOperationFilter("sum"))
	assert.Equal(t, Filter{Operation: calculator.OpSum}, c.Snapshot().Filter)

	require.NoError(t, c.SetDateFilter("2025-09-25"))
	assert.Equal(t, Filter{Date: "2025-09-25"}, c.Snapshot().Filter)

	require.NoError(t, c.SetOperationFilter("div"))
	assert.Equal(t, Filter{Operation: calculator.OpDiv}, c.Snapshot().Filter)

	require.Error(t, c.SetDateFilter("25-09-2025"))
	assert.Equal(t, Filter{Operation: calculator.OpDiv}, c.Snapshot().Filter, "invalid date leaves filter unchanged")

	require.Error(t, c.ApplyFilter(FilterInput{Operation: "sum", Date: "2025-09-25"}))

	require.NoError(t, c.ApplyFilter(FilterInput{}))
	assert.Equal(t, Filter{}, c.Snapshot().Filter)
}

func TestRefreshHistoryUsesActiveFilter(t *testing.T) {
	c, backend := newTestConsole(t, Options{HistoryLimit: 20})
	ctx := context.Background()

	_, err := c.RefreshHistory(ctx)
	require.NoError(t, err)

	require.NoError(t, c.SetOperationFilter("res"))
	_, err = c.RefreshHistory(ctx)
	require.NoError(t, err)

	require.NoError(t, c.SetDateFilter("2025-09-25"))
	view, err := c.RefreshHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, calculator.HistoryByDate, view.Query.Kind())

	reqs := backend.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, historyPath, reqs[0].Path)
	assert.Equal(t, "20", reqs[0].Query.Get("limit"))
	assert.Equal(t, historyPath+"/operacion/resta", reqs[1].Path)
	assert.Equal(t, historyPath+"/fecha/2025-09-25", reqs[2].Path)
}

func TestRefreshHistoryEmptyIsNotAnError(t *testing.T) {
	c, _ := newTestConsole(t, Options{})

	view, err := c.RefreshHistory(context.Background())
	require.NoError(t, err)

	assert.True(t, view.Loaded)
	assert.True(t, view.Empty)
	assert.Empty(t, view.Records)
	assert.Nil(t, c.Snapshot().Controls[ControlHistory].LastError)
}

func TestRefreshHistoryFailureKeepsPreviousList(t *testing.T) {
	c, backend := newTestConsole(t, Options{})
	ctx := context.Background()

	_, err := c.RunSimple(ctx, SimpleInput{Operation: "sum", Operands: "1 2"})
	require.NoError(t, err)
	require.Len(t, c.HistoryView().Records, 1)

	backend.OverrideHistory(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not json</html>"))
	})

	_, err = c.RefreshHistory(ctx)
	require.Error(t, err)
	assert.Equal(t, calculator.KindNetwork, calculator.KindOf(err))

	state := c.Snapshot()
	assert.Len(t, state.History.Records, 1)
	require.NotNil(t, state.Controls[ControlHistory].LastError)
}

func TestRefreshHistoryWithoutHistorialKeyIsNotEmptyState(t *testing.T) {
	c, backend := newTestConsole(t, Options{})
	ctx := context.Background()

	_, err := c.RunSimple(ctx, SimpleInput{Operation: "sum", Operands: "1 2"})
	require.NoError(t, err)

	backend.OverrideHistory(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	})

	_, err = c.RefreshHistory(ctx)
	require.Error(t, err)
	assert.Equal(t, calculator.KindNetwork, calculator.KindOf(err))

	view := c.HistoryView()
	assert.False(t, view.Empty)
	assert.Len(t, view.Records, 1)
}

func TestHistoryDisplayLimitAndOrder(t *testing.T) {
	c, backend := newTestConsole(t, Options{HistoryDisplayLimit: 2, HistoryOrder: calculator.OrderReverse})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		backend.SeedHistory(map[string]any{"a": float64(i), "b": float64(i), "resultado": float64(2 * i)})
	}

	view, err := c.RefreshHistory(ctx)
	require.NoError(t, err)

	// The fake returns newest first (3, 2, 1); reversing shows 1 then 2.
	assert.Equal(t, 3, view.Total)
	assert.Equal(t, []string{"1 + 1 = 2", "2 + 2 = 4"}, view.Lines)
}

func TestLoadFetchesHistory(t *testing.T) {
	c, backend := newTestConsole(t, Options{})

	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, 1, backend.Count(historyPath))
	assert.True(t, c.HistoryView().Loaded)
}

type savedURLs struct {
	urls []string
}

func (s *savedURLs) SaveBaseURL(u string) error {
	s.urls = append(s.urls, u)
	return nil
}

func TestSetBaseURLPersists(t *testing.T) {
	saver := &savedURLs{}
	c, _ := newTestConsole(t, Options{Settings: saver})

	require.NoError(t, c.SetBaseURL("http://10.0.0.7:8089/"))
	assert.Equal(t, "http://10.0.0.7:8089", c.BaseURL())
	assert.Equal(t, []string{"http://10.0.0.7:8089"}, saver.urls)

	err := c.SetBaseURL("nope")
	require.Error(t, err)
	assert.Equal(t, calculator.KindValidation, calculator.KindOf(err))
	assert.Len(t, saver.urls, 1)
}

type failingSaver struct{}

func (failingSaver) SaveBaseURL(string) error {
	return errors.New("disk full")
}

func TestSetBaseURLKeepsPreviousBackendWhenSaveFails(t *testing.T) {
	c, backend := newTestConsole(t, Options{Settings: failingSaver{}})

	err := c.SetBaseURL("http://10.0.0.7:8089")
	require.Error(t, err)

	cerr, ok := calculator.AsError(err)
	require.True(t, ok)
	assert.Equal(t, calculator.KindSettings, cerr.Kind)
	assert.Equal(t, "cannot save settings", cerr.Message)
	assert.ErrorContains(t, err, "disk full")

	assert.Equal(t, backend.URL(), c.BaseURL())

	_, err = c.RunSimple(context.Background(), SimpleInput{Operation: "sum", Operands: "1 2"})
	require.NoError(t, err, "console must keep talking to the previous backend")
	assert.Equal(t, 1, backend.Count("/calculadora/sum"))
}

func TestLoadingPhaseUsesClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	c, _ := newTestConsole(t, Options{Clock: clock})

	seq := c.begin(ControlHistory)
	st := c.Snapshot().Controls[ControlHistory]
	assert.Equal(t, PhaseLoading, st.Phase)
	assert.Equal(t, clock.Now(), st.Since)

	require.True(t, c.settle(context.Background(), ControlHistory, seq, func(*control) {}))
	st = c.Snapshot().Controls[ControlHistory]
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.True(t, st.Since.IsZero())
}
