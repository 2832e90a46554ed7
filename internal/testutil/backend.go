package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// RecordedRequest is one call the fake backend received.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// FakeBackend is an in-process calculadora backend. It computes results,
// keeps a history newest-first and mimics the backend's error bodies.
// The Override methods replace the default handling for a route group.
type FakeBackend struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []RecordedRequest
	history  []map[string]any
	nextID   int
	base     time.Time

	historyOverride http.HandlerFunc
	computeOverride http.HandlerFunc
	batchOverride   http.HandlerFunc
}

var historyNames = map[string]string{
	"sum": "suma",
	"res": "resta",
	"mul": "multiplicacion",
	"div": "division",
}

func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()

	f := &FakeBackend{
		base: time.Date(2025, 9, 25, 10, 0, 0, 0, time.UTC),
	}

	r := chi.NewRouter()
	r.Use(f.record)
	r.Route("/calculadora", func(r chi.Router) {
		r.Get("/historial", f.withOverride(&f.historyOverride, f.handleHistory))
		r.Get("/historial/operacion/{nombre}", f.withOverride(&f.historyOverride, f.handleHistory))
		r.Get("/historial/fecha/{fecha}", f.withOverride(&f.historyOverride, f.handleHistory))
		r.Post("/lote", f.withOverride(&f.batchOverride, f.handleBatch))
		r.Get("/{op}", f.withOverride(&f.computeOverride, f.handleCompute))
	})

	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)

	return f
}

func (f *FakeBackend) URL() string {
	return f.server.URL
}

// Close stops the server early, e.g. to simulate an unreachable backend.
func (f *FakeBackend) Close() {
	f.server.Close()
}

func (f *FakeBackend) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// Count returns how many requests hit path exactly.
func (f *FakeBackend) Count(path string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// CountPrefix returns how many requests hit a path under prefix.
func (f *FakeBackend) CountPrefix(prefix string) int {
	n := 0
	for _, r := range f.Requests() {
		if strings.HasPrefix(r.Path, prefix) {
			n++
		}
	}
	return n
}

// OverrideHistory makes h answer every history request.
func (f *FakeBackend) OverrideHistory(h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyOverride = h
}

// OverrideCompute makes h answer every single-operation request.
func (f *FakeBackend) OverrideCompute(h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.computeOverride = h
}

// OverrideBatch makes h answer POST /calculadora/lote.
func (f *FakeBackend) OverrideBatch(h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchOverride = h
}

// SeedHistory appends a raw record as the backend would return it.
func (f *FakeBackend) SeedHistory(doc map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append([]map[string]any{doc}, f.history...)
}

func (f *FakeBackend) withOverride(override *http.HandlerFunc, fallback http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		h := *override
		f.mu.Unlock()

		if h != nil {
			h(w, r)
			return
		}
		fallback(w, r)
	}
}

func (f *FakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		f.mu.Lock()
		f.requests = append(f.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		f.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (f *FakeBackend) handleCompute(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, "op")
	if _, ok := historyNames[op]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not Found"})
		return
	}

	nums, status, detail := parseNums(r.URL.Query())
	if detail != "" {
		writeJSON(w, status, map[string]any{"detail": detail})
		return
	}

	result, status, detail := compute(op, nums)
	if detail != "" {
		writeJSON(w, status, map[string]any{"detail": detail})
		return
	}

	f.appendHistory(op, nums, result)
	writeJSON(w, http.StatusOK, map[string]any{"numeros": nums, "resultado": result})
}

func (f *FakeBackend) handleBatch(w http.ResponseWriter, r *http.Request) {
	var entries []struct {
		Op   string    `json:"op"`
		Nums []float64 `json:"nums"`
	}
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"loc": []any{"body"}, "msg": "invalid body", "type": "json_invalid"}},
		})
		return
	}

	results := make([]map[string]any, 0, len(entries))
	for i, e := range entries {
		if _, ok := historyNames[e.Op]; !ok {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"detail": []map[string]any{{
					"loc":  []any{"body", i, "op"},
					"msg":  "Input should be 'sum', 'res', 'mul' or 'div'",
					"type": "enum",
				}},
			})
			return
		}

		if len(e.Nums) < 2 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": map[string]any{
				"message":           "Se requieren al menos dos números para una operación.",
				"operacion_fallida": e.Op,
				"numeros_enviados":  e.Nums,
			}})
			return
		}

		result, _, detail := compute(e.Op, e.Nums)
		if detail != "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": map[string]any{
				"message":           detail,
				"operacion_fallida": e.Op,
				"numeros_enviados":  e.Nums,
			}})
			return
		}

		results = append(results, map[string]any{"op": e.Op, "result": result})
	}

	for i, e := range entries {
		f.appendHistory(e.Op, e.Nums, results[i]["result"].(float64))
	}

	writeJSON(w, http.StatusOK, results)
}

func (f *FakeBackend) handleHistory(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	all := append([]map[string]any(nil), f.history...)
	f.mu.Unlock()

	selected := all
	if name := chi.URLParam(r, "nombre"); name != "" {
		selected = nil
		for _, doc := range all {
			if doc["operacion"] == name {
				selected = append(selected, doc)
			}
		}
	}

	if day := chi.URLParam(r, "fecha"); day != "" {
		if _, err := time.Parse("2006-01-02", day); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Formato de fecha inválido. Use YYYY-MM-DD."})
			return
		}
		selected = nil
		for _, doc := range all {
			if date, _ := doc["date"].(string); strings.HasPrefix(date, day) {
				selected = append(selected, doc)
			}
		}
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit < len(selected) {
			selected = selected[:limit]
		}
	}

	if selected == nil {
		selected = []map[string]any{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"historial": selected})
}

func (f *FakeBackend) appendHistory(op string, nums []float64, result float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	doc := map[string]any{
		"_id":       fmt.Sprintf("id-%d", f.nextID),
		"operacion": historyNames[op],
		"numeros":   nums,
		"resultado": result,
		"date":      f.base.Add(time.Duration(f.nextID) * time.Minute).Format("2006-01-02T15:04:05"),
	}
	f.history = append([]map[string]any{doc}, f.history...)
}

func parseNums(q url.Values) ([]float64, int, string) {
	raw := q["nums"]
	if len(raw) == 0 {
		if q.Get("a") != "" && q.Get("b") != "" {
			raw = []string{q.Get("a"), q.Get("b")}
		} else {
			return nil, http.StatusUnprocessableEntity, "nums is required"
		}
	}

	nums := make([]float64, 0, len(raw))
	for _, s := range raw {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, http.StatusUnprocessableEntity, fmt.Sprintf("invalid number %q", s)
		}
		nums = append(nums, n)
	}

	return nums, 0, ""
}

func compute(op string, nums []float64) (float64, int, string) {
	for _, n := range nums {
		if n < 0 {
			return 0, http.StatusForbidden, "No se permiten números negativos."
		}
	}

	result := nums[0]
	for _, n := range nums[1:] {
		switch op {
		case "sum":
			result += n
		case "res":
			result -= n
		case "mul":
			result *= n
		case "div":
			if n == 0 {
				return 0, http.StatusForbidden, "No se puede dividir por cero."
			}
			result /= n
		}
	}

	return result, 0, ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
