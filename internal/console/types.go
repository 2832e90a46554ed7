package console

import (
	"time"

	"calculadora-console/internal/calculator"
)

// SimpleInput is the raw simple-operation form: an operation name and the
// free-text operand list.
type SimpleInput struct {
	Operation string `json:"operation"`
	Operands  string `json:"operands"`
}

// BatchInput is the raw batch-entry form.
type BatchInput struct {
	Operation string `json:"operation"`
	Operands  string `json:"operands"`
}

// FilterInput selects at most one history filter; both empty clears.
type FilterInput struct {
	Operation string `json:"operation,omitempty"`
	Date      string `json:"date,omitempty"`
}

// SettingsInput changes the backend the console talks to.
type SettingsInput struct {
	APIBaseURL string `json:"api_base_url"`
}

// Filter is the active history filter. At most one field is set.
type Filter struct {
	Operation calculator.Operation `json:"operation,omitempty"`
	Date      string               `json:"date,omitempty"`
}

// Control names one request-issuing part of the console.
type Control string

const (
	ControlSimple  Control = "simple"
	ControlBatch   Control = "batch"
	ControlHistory Control = "history"
)

// Phase is the request lifecycle of a control.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
)

// ControlState is the visible lifecycle of a control.
type ControlState struct {
	Phase     Phase             `json:"phase"`
	Since     time.Time         `json:"since,omitzero"`
	LastError *calculator.Error `json:"last_error,omitempty"`
}

// HistoryView is the displayed history list.
type HistoryView struct {
	Records []calculator.Record `json:"records"`
	Lines   []string            `json:"lines"`
	Total   int                 `json:"total"`
	Loaded  bool                `json:"loaded"`
	// Empty is the explicit "no operations" state: loaded, zero records.
	Empty bool                    `json:"empty"`
	Query calculator.HistoryQuery `json:"query"`
}

// State is a point-in-time copy of everything the console displays.
type State struct {
	APIBaseURL   string                   `json:"api_base_url"`
	SimpleInput  SimpleInput              `json:"simple_input"`
	Computation  *calculator.Computation  `json:"computation,omitempty"`
	BatchDraft   BatchInput               `json:"batch_draft"`
	Batch        []calculator.BatchEntry  `json:"batch"`
	BatchOutcome *calculator.BatchOutcome `json:"batch_outcome,omitempty"`
	History      HistoryView              `json:"history"`
	Filter       Filter                   `json:"filter"`
	Controls     map[Control]ControlState `json:"controls"`
}
