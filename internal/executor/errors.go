package executor

import (
	"errors"
	"fmt"
)

// Code classifies why an action failed.
type Code string

const (
	CodeInvalidPayload    Code = "invalid_payload"
	CodePermissionDenied  Code = "permission_denied"
	CodeElementNotFound   Code = "element_not_found"
	CodeInteractionFailed Code = "interaction_failed"
	CodeEventCreation     Code = "event_creation_failed"
	CodeScriptFailed      Code = "script_failed"
	CodeCanceled          Code = "canceled"
)

// RecoverySuggestion is attached to every failed execution.
const RecoverySuggestion = "Retry command"

// Error is an action failure with its taxonomy code.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the taxonomy code carried by err, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
