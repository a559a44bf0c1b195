package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes the planner uses for credential problems.
const (
	CodeMissingAPIKey = "missing_api_key"
	CodeInvalidAPIKey = "invalid_api_key"
)

// ServiceError is a non-2xx planner response.
type ServiceError struct {
	Status  int
	Message string
	Code    string
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// IsCredentialError reports whether err means the planner has no usable
// provider credential.
func IsCredentialError(err error) bool {
	var se *ServiceError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == CodeMissingAPIKey || se.Code == CodeInvalidAPIKey || se.Status == http.StatusUnauthorized
}

// parseDetail reads {"detail": {"message", "error_code"}} or {"detail": "..."}.
func parseDetail(status int, body []byte, fallback string) *ServiceError {
	se := &ServiceError{Status: status, Message: fallback}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return se
	}

	var obj struct {
		Message   string `json:"message"`
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(payload.Detail, &obj); err == nil && obj.Message != "" {
		se.Message, se.Code = obj.Message, obj.ErrorCode
		return se
	}

	var msg string
	if err := json.Unmarshal(payload.Detail, &msg); err == nil && msg != "" {
		se.Message = msg
	}
	return se
}
