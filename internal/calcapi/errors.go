package calcapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"calculadora-console/internal/calculator"
)

// errorBody covers the error shapes the backend has produced over time:
// {"detail": "..."}, {"detail": {...}}, {"detail": [{loc,msg,type}]} and
// plain {"error": "..."}.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

type batchFailureDetail struct {
	Message         string    `json:"message"`
	FailedOperation string    `json:"operacion_fallida"`
	Operands        []float64 `json:"numeros_enviados"`
}

type validationItem struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

func decodeBackendError(status int, payload []byte) error {
	fallback := http.StatusText(status)
	if fallback == "" {
		fallback = fmt.Sprintf("backend returned status %d", status)
	}

	var body errorBody
	if err := json.Unmarshal(payload, &body); err != nil {
		if text := strings.TrimSpace(string(payload)); text != "" && len(text) < 512 {
			return calculator.BackendError(status, text, nil)
		}
		return calculator.BackendError(status, fallback, nil)
	}

	if len(body.Detail) > 0 {
		if cerr := decodeDetail(status, body.Detail); cerr != nil {
			return cerr
		}
	}

	switch {
	case body.Error != "":
		return calculator.BackendError(status, body.Error, nil)
	case body.Message != "":
		return calculator.BackendError(status, body.Message, nil)
	default:
		return calculator.BackendError(status, fallback, nil)
	}
}

func decodeDetail(status int, raw json.RawMessage) *calculator.Error {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil && text != "" {
		return calculator.BackendError(status, text, nil)
	}

	var failure batchFailureDetail
	if err := json.Unmarshal(raw, &failure); err == nil && failure.Message != "" {
		var details *calculator.ErrorDetails
		if failure.FailedOperation != "" || len(failure.Operands) > 0 {
			details = &calculator.ErrorDetails{
				FailedOperation: failure.FailedOperation,
				Operands:        failure.Operands,
			}
		}
		return calculator.BackendError(status, failure.Message, details)
	}

	var items []validationItem
	if err := json.Unmarshal(raw, &items); err == nil && len(items) > 0 {
		issues := make([]calculator.FieldIssue, 0, len(items))
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			issues = append(issues, calculator.FieldIssue{Location: joinLoc(it.Loc), Message: it.Msg})
			msgs = append(msgs, it.Msg)
		}
		return calculator.BackendError(status, strings.Join(msgs, "; "), &calculator.ErrorDetails{Fields: issues})
	}

	return nil
}

func joinLoc(loc []any) string {
	parts := make([]string, len(loc))
	for i, p := range loc {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ".")
}
