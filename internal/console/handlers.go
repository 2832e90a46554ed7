package console

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/trace"

	"calculadora-console/internal/calculator"
	"calculadora-console/internal/observability"
)

// Handler exposes the console actions over HTTP.
type Handler struct {
	console *Console
}

func NewHandler(c *Console) *Handler {
	return &Handler{console: c}
}

// errorResponse is the body of every failed console action.
type errorResponse struct {
	Error          string                   `json:"error"`
	Kind           calculator.ErrorKind     `json:"kind"`
	UpstreamStatus int                      `json:"upstream_status,omitempty"`
	Details        *calculator.ErrorDetails `json:"details,omitempty"`
}

type settingsResponse struct {
	APIBaseURL string `json:"api_base_url"`
}

// State handles GET /console
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.console.Snapshot())
}

// Simple handles POST /console/simple
func (h *Handler) Simple(w http.ResponseWriter, r *http.Request) {
	var in SimpleInput
	if !h.decode(w, r, "simple", &in) {
		return
	}

	if _, err := h.console.RunSimple(r.Context(), in); err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, h.console.Snapshot())
}

// AppendBatch handles POST /console/batch/entries
func (h *Handler) AppendBatch(w http.ResponseWriter, r *http.Request) {
	var in BatchInput
	if !h.decode(w, r, "batch", &in) {
		return
	}

	if _, err := h.console.AppendBatch(r.Context(), in); err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.console.Snapshot())
}

// RemoveBatchEntry handles DELETE /console/batch/entries/{index}
func (h *Handler) RemoveBatchEntry(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, r, calculator.ValidationError("batch entry index must be a number"))
		return
	}

	if err := h.console.RemoveBatchEntry(index); err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, h.console.Snapshot())
}

// ClearBatch handles DELETE /console/batch
func (h *Handler) ClearBatch(w http.ResponseWriter, r *http.Request) {
	h.console.ClearBatch()
	render.JSON(w, r, h.console.Snapshot())
}

// SubmitBatch handles POST /console/batch/submit
func (h *Handler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	if _, err := h.console.SubmitBatch(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, h.console.Snapshot())
}

// History handles GET /console/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	view, err := h.console.RefreshHistory(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, view)
}

// SetFilter handles PUT /console/history/filter and refreshes the history
// with the new filter.
func (h *Handler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var in FilterInput
	if !h.decode(w, r, "filter", &in) {
		return
	}

	if err := h.console.ApplyFilter(in); err != nil {
		writeError(w, r, err)
		return
	}

	h.History(w, r)
}

// Settings handles GET /console/settings
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, settingsResponse{APIBaseURL: h.console.BaseURL()})
}

// UpdateSettings handles PUT /console/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in SettingsInput
	if !h.decode(w, r, "settings", &in) {
		return
	}

	if err := h.console.SetBaseURL(in.APIBaseURL); err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, settingsResponse{APIBaseURL: h.console.BaseURL()})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, opName string, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		ctx := r.Context()
		observability.RecordError(ctx, trace.SpanFromContext(ctx), observability.LoggerWithTrace(ctx),
			errorCounter, opName, "invalid request body", err, http.StatusBadRequest, w)
		return false
	}
	return true
}

// writeError maps a console error to a status: input errors are 400,
// backend rejections of user input 422, local settings failures 500,
// everything upstream else 502.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var cerr *calculator.Error
	if !errors.As(err, &cerr) {
		cerr = &calculator.Error{Kind: "internal", Message: "internal error"}
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: cerr.Message, Kind: cerr.Kind})
		return
	}

	status := http.StatusBadGateway
	switch {
	case cerr.Kind == calculator.KindValidation:
		status = http.StatusBadRequest
	case cerr.Kind == calculator.KindBackend && cerr.Status >= 400 && cerr.Status < 500:
		status = http.StatusUnprocessableEntity
	case cerr.Kind == calculator.KindSettings:
		status = http.StatusInternalServerError
	}

	render.Status(r, status)
	render.JSON(w, r, errorResponse{
		Error:          cerr.Message,
		Kind:           cerr.Kind,
		UpstreamStatus: cerr.Status,
		Details:        cerr.Details,
	})
}
