package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"calculadora-console/internal/calcapi"
	"calculadora-console/internal/console"
	"calculadora-console/internal/observability"
	"calculadora-console/internal/testutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (http.Handler, *testutil.FakeBackend) {
	t.Helper()

	observability.Logger = zap.NewNop()
	if err := console.InitMetrics(); err != nil {
		t.Fatalf("initializing console metrics: %v", err)
	}

	backend := testutil.NewFakeBackend(t)
	client, err := calcapi.New(backend.URL())
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	c := console.New(client, console.Options{HistoryDisplayLimit: 5})
	return NewRouter(console.NewHandler(c)), backend
}

func TestNewRouterHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	if body := w.Body.String(); body != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", body)
	}
}

func TestNewRouterConsoleSimpleSetsHeaderAndForwardsRequestID(t *testing.T) {
	router, backend := newTestRouter(t)

	body := []byte(`{"operation":"sum","operands":"2 3"}`)
	req := httptest.NewRequest(http.MethodPost, "/console/simple", bytes.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	requestID := w.Result().Header.Get("X-Request-ID")
	if requestID == "" {
		t.Fatal("expected X-Request-ID header to be set")
	}
	if _, err := uuid.Parse(requestID); err != nil {
		t.Fatalf("expected valid UUID in X-Request-ID, got %q: %v", requestID, err)
	}

	for _, r := range backend.Requests() {
		if got := r.Header.Get("X-Request-ID"); got != requestID {
			t.Fatalf("expected backend call %s to carry request id %q, got %q", r.Path, requestID, got)
		}
	}

	var state console.State
	if err := json.NewDecoder(w.Result().Body).Decode(&state); err != nil {
		t.Fatalf("decoding JSON response: %v", err)
	}

	if state.Computation == nil || state.Computation.Result != 5 {
		t.Fatalf("expected result 5, got %#v", state.Computation)
	}
}

func TestNewRouterServesMetrics(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}
