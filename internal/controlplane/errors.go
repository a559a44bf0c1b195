package controlplane

import (
	"errors"
	"net/http"

	"github.com/fentz26/orange/internal/session"
	"github.com/fentz26/orange/internal/speech"
)

// Sentinel errors for control plane operations.
var (
	ErrNotFound    = errors.New("resource not found")
	ErrInvalidBody = errors.New("invalid json")
	ErrNoDictation = errors.New("dictation relay not configured")
)

// Machine-readable codes returned in error bodies.
const (
	CodeConflict           = "conflict"
	CodeCredentialRequired = "credential_required"
	CodeEmptyTranscript    = "empty_transcript"
	CodeNotAuthorized      = "not_authorized"
	CodeDeviceUnavailable  = "device_unavailable"
	CodeBadRequest         = "bad_request"
	CodeNotFound           = "not_found"
	CodeInternal           = "internal"
)

// classify maps a service error to an HTTP status and code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNotListening),
		errors.Is(err, session.ErrNoPendingPlan),
		errors.Is(err, session.ErrBusy),
		errors.Is(err, speech.ErrNotRecording):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, session.ErrCredentialRequired):
		return http.StatusPreconditionRequired, CodeCredentialRequired
	case errors.Is(err, speech.ErrEmptyTranscript):
		return http.StatusUnprocessableEntity, CodeEmptyTranscript
	case errors.Is(err, speech.ErrNotAuthorized):
		return http.StatusForbidden, CodeNotAuthorized
	case errors.Is(err, speech.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable, CodeDeviceUnavailable
	case errors.Is(err, ErrInvalidBody), errors.Is(err, ErrNoDictation):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
