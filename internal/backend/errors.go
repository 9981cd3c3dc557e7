package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed backend call. KindRoutingMismatch means the
// endpoint/verb combination does not exist; KindNotFound means the route
// exists but the backend marked the resource itself as missing.
type Kind string

const (
	KindRoutingMismatch Kind = "routing_mismatch"
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindConflict        Kind = "conflict"
	KindUnauthorized    Kind = "unauthorized"
	KindTransport       Kind = "transport"
)

// NotFoundReasonHeader lets the backend tell a missing resource apart from a
// missing route. Without it, every 404 is a routing mismatch.
const NotFoundReasonHeader = "X-Not-Found-Reason"

const resourceNotFoundCode = "RESOURCE_NOT_FOUND"

// Error is a classified backend failure.
type Error struct {
	Kind    Kind
	Status  int
	Method  string
	Path    string
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("backend: ")
	if e.Method != "" {
		fmt.Fprintf(&b, "%s %s: ", e.Method, e.Path)
	}
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Detail != "":
		b.WriteString(e.Detail)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(string(e.Kind))
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status=%d)", e.Status)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage is the most human-readable text the backend supplied.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Detail
}

type errorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
	Code    string          `json:"code"`
	Detail  string          `json:"detail"`
}

// classifyStatus maps a non-2xx response to an Error.
func classifyStatus(method, path string, status int, header http.Header, body []byte) *Error {
	e := &Error{
		Kind:   kindForStatus(status),
		Status: status,
		Method: method,
		Path:   path,
	}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		e.Message = strings.TrimSpace(parsed.Message)
		e.Detail = strings.TrimSpace(parsed.Detail)
		if e.Detail == "" {
			e.Detail = errorText(parsed.Error)
		}
	} else if text := strings.TrimSpace(string(body)); text != "" {
		if len(text) > 300 {
			text = text[:300]
		}
		e.Detail = text
	}

	if e.Kind == KindRoutingMismatch {
		if strings.EqualFold(strings.TrimSpace(header.Get(NotFoundReasonHeader)), "resource") ||
			strings.EqualFold(parsed.Code, resourceNotFoundCode) {
			e.Kind = KindNotFound
		}
	}
	return e
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusNotFound:
		return KindRoutingMismatch
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusConflict:
		return KindConflict
	case http.StatusUnauthorized:
		return KindUnauthorized
	default:
		return KindTransport
	}
}

// errorText accepts "error" as either a string or an object with a message.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Message)
	}
	return ""
}

// KindOf reports the classification of err, or "" when err is not a backend error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsRoutingMismatch(err error) bool { return KindOf(err) == KindRoutingMismatch }
func IsForbidden(err error) bool       { return KindOf(err) == KindForbidden }
func IsConflict(err error) bool        { return KindOf(err) == KindConflict }
