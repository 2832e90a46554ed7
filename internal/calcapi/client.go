// Package calcapi is a typed client for the calculadora backend.
package calcapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"calculadora-console/internal/calculator"
	"calculadora-console/internal/observability"
)

const maxBodyBytes = 1 << 20

// Client calls the calculadora REST endpoints. It is safe for concurrent use.
type Client struct {
	mu      sync.RWMutex
	baseURL *url.URL

	http    *http.Client
	timeout time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds every backend call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{baseURL: u}
	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		c.http = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}

	return c, nil
}

// ParseBaseURL validates an API base URL and strips any trailing slash.
func ParseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, calculator.ValidationError("api base url is required")
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, calculator.ValidationError("invalid api base url %q", raw)
	}

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	return u, nil
}

func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL.String()
}

// SetBaseURL points the client at a different backend.
func (c *Client) SetBaseURL(raw string) error {
	u, err := ParseBaseURL(raw)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.baseURL = u
	c.mu.Unlock()

	return nil
}

type computeResponse struct {
	Resultado *float64 `json:"resultado"`
}

// Compute issues GET /calculadora/{op}?nums=...
func (c *Client) Compute(ctx context.Context, op calculator.Operation, nums []float64) (float64, error) {
	query := url.Values{}
	for _, n := range nums {
		query.Add("nums", calculator.FormatNumber(n))
	}

	return c.compute(ctx, "/calculadora/"+op.Path(), query)
}

// SumPair issues the two-operand GET /calculadora/sum?a=&b=
func (c *Client) SumPair(ctx context.Context, a, b float64) (float64, error) {
	query := url.Values{}
	query.Set("a", calculator.FormatNumber(a))
	query.Set("b", calculator.FormatNumber(b))

	return c.compute(ctx, "/calculadora/sum", query)
}

func (c *Client) compute(ctx context.Context, path string, query url.Values) (float64, error) {
	var resp computeResponse
	if err := c.do(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
		return 0, err
	}

	if resp.Resultado == nil {
		return 0, calculator.MalformedResponseError(fmt.Errorf("response has no resultado field"))
	}

	return *resp.Resultado, nil
}

// Historial is a pointer so a body without the key is told apart from an
// empty history.
type historyResponse struct {
	Historial *[]wireRecord `json:"historial"`
}

// History fetches all, per-operation or per-date history depending on q.
func (c *Client) History(ctx context.Context, q calculator.HistoryQuery) ([]calculator.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var (
		path  string
		query url.Values
	)
	switch q.Kind() {
	case calculator.HistoryByOperation:
		path = "/calculadora/historial/operacion/" + q.Operation.HistoryName()
	case calculator.HistoryByDate:
		path = "/calculadora/historial/fecha/" + q.Date
	default:
		path = "/calculadora/historial"
		if q.Limit > 0 {
			query = url.Values{"limit": {strconv.Itoa(q.Limit)}}
		}
	}

	var resp historyResponse
	if err := c.do(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
		return nil, err
	}

	if resp.Historial == nil {
		return nil, calculator.MalformedResponseError(fmt.Errorf("response has no historial field"))
	}

	records := make([]calculator.Record, 0, len(*resp.Historial))
	for _, wr := range *resp.Historial {
		records = append(records, wr.record())
	}

	return records, nil
}

type wireBatchEntry struct {
	Op   string    `json:"op"`
	Nums []float64 `json:"nums"`
}

// SubmitBatch sends the ordered batch as one POST /calculadora/lote.
func (c *Client) SubmitBatch(ctx context.Context, entries []calculator.BatchEntry) (calculator.BatchOutcome, error) {
	body := make([]wireBatchEntry, len(entries))
	for i, e := range entries {
		body[i] = wireBatchEntry{Op: e.Operation.Path(), Nums: e.Operands}
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/calculadora/lote", nil, body, &raw); err != nil {
		return calculator.BatchOutcome{}, err
	}

	outcome := calculator.BatchOutcome{Raw: raw}

	var results []calculator.BatchResult
	if err := json.Unmarshal(raw, &results); err == nil {
		outcome.Results = results
	}

	return outcome, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	c.mu.RLock()
	u := *c.baseURL
	c.mu.RUnlock()

	u.Path += path
	u.RawQuery = query.Encode()

	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := observability.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(observability.RequestIDHeader, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return calculator.NetworkError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return calculator.NetworkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeBackendError(resp.StatusCode, payload)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return calculator.MalformedResponseError(err)
	}

	return nil
}
