package calculator

import (
	"errors"
	"fmt"
)

// ErrorKind classifies console errors for display and status mapping.
type ErrorKind string

const (
	// KindValidation is bad user input caught before any request is sent.
	KindValidation ErrorKind = "validation"
	// KindNetwork covers transport failures and unreadable responses.
	KindNetwork ErrorKind = "network"
	// KindBackend is an application error reported by the backend.
	KindBackend ErrorKind = "backend"
	// KindSettings is a failure to persist console settings locally.
	KindSettings ErrorKind = "settings"
)

// NetworkMessage is shown for every connectivity failure.
const NetworkMessage = "cannot reach backend"

// ErrorDetails carries the structured fields a backend error may embed.
type ErrorDetails struct {
	FailedOperation string       `json:"failed_operation,omitempty"`
	Operands        []float64    `json:"operands,omitempty"`
	Fields          []FieldIssue `json:"fields,omitempty"`
}

// FieldIssue is one field-level complaint, from the backend or the validator.
type FieldIssue struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

// Error is the single error shape console logic deals with.
type Error struct {
	Kind    ErrorKind     `json:"kind"`
	Message string        `json:"message"`
	Status  int           `json:"status,omitempty"`
	Details *ErrorDetails `json:"details,omitempty"`
	Cause   error         `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ValidationError builds a validation-kind error.
func ValidationError(format string, args ...any) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// NetworkError wraps a transport failure.
func NetworkError(cause error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Message: NetworkMessage,
		Cause:   cause,
	}
}

// MalformedResponseError reports a 2xx response the client could not decode.
func MalformedResponseError(cause error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Message: "unexpected response from backend",
		Cause:   cause,
	}
}

// BackendError builds a backend-kind error with the upstream status.
func BackendError(status int, message string, details *ErrorDetails) *Error {
	return &Error{
		Kind:    KindBackend,
		Message: message,
		Status:  status,
		Details: details,
	}
}

// SettingsError reports that the settings file could not be written.
func SettingsError(cause error) *Error {
	return &Error{
		Kind:    KindSettings,
		Message: "cannot save settings",
		Cause:   cause,
	}
}

// AsError extracts a console error from err, if any.
func AsError(err error) (*Error, bool) {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	if cerr, ok := AsError(err); ok {
		return cerr.Kind
	}
	return ""
}
