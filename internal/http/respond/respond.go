// Package respond writes JSON responses and maps backend failures onto
// gateway status codes.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/clinic-gateway/internal/backend"
)

// ErrorBody is the JSON shape of every gateway error response.
type ErrorBody struct {
	Error      string `json:"error"`
	Detail     string `json:"detail,omitempty"`
	Escalation string `json:"escalation,omitempty"`
}

// JSON writes payload with the given status.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Error writes an ErrorBody with only a message.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: message})
}

// BackendError maps a classified backend error to a response. It returns the
// status written so callers can log it.
func BackendError(w http.ResponseWriter, err error) int {
	var be *backend.Error
	if !errors.As(err, &be) {
		Error(w, http.StatusInternalServerError, "internal server error")
		return http.StatusInternalServerError
	}

	status := http.StatusBadGateway
	body := ErrorBody{Error: be.UserMessage()}
	if body.Error == "" {
		body.Error = string(be.Kind)
	}
	switch be.Kind {
	case backend.KindForbidden:
		status = http.StatusForbidden
		body.Escalation = "request_change"
	case backend.KindConflict:
		status = http.StatusConflict
		body.Detail = be.Detail
	case backend.KindNotFound:
		status = http.StatusNotFound
	case backend.KindUnauthorized:
		status = http.StatusUnauthorized
	case backend.KindRoutingMismatch:
		status = http.StatusNotImplemented
	}
	JSON(w, status, body)
	return status
}
