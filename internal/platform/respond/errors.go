// Package respond defines the API error taxonomy and the JSON response
// envelopes. All success and failure payloads leave the server through this
// package so the wire shapes stay uniform.
package respond

import (
	"errors"
	"fmt"
	"net/http"
)

// Issue describes a single field-level validation failure.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the canonical API error. Type is a stable machine-readable
// identifier, Title a short human-readable category, Detail the actionable
// message returned to the client.
type Error struct {
	Type   string  `json:"type"`
	Title  string  `json:"title"`
	Status int     `json:"status"`
	Detail string  `json:"detail,omitempty"`
	Issues []Issue `json:"issues,omitempty"`
	cause  error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return e.Title
}

func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches an underlying error for server-side logging. The cause
// is never serialized to the client.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

func Unauthorized(detail string) *Error {
	return &Error{Type: "unauthorized", Title: "Unauthorized", Status: http.StatusUnauthorized, Detail: detail}
}

func Forbidden(detail string) *Error {
	return &Error{Type: "forbidden", Title: "Forbidden", Status: http.StatusForbidden, Detail: detail}
}

// AccessDenied is the relationship-scoped variant of Forbidden: the role is
// capable, but no approved provider-patient link covers the target record.
func AccessDenied(detail string) *Error {
	return &Error{Type: "access-denied", Title: "Access Denied", Status: http.StatusForbidden, Detail: detail}
}

func NotFound(detail string) *Error {
	return &Error{Type: "not-found", Title: "Not Found", Status: http.StatusNotFound, Detail: detail}
}

func Conflict(detail string) *Error {
	return &Error{Type: "conflict", Title: "Conflict", Status: http.StatusConflict, Detail: detail}
}

func Validation(detail string, issues ...Issue) *Error {
	return &Error{Type: "validation", Title: "Validation Failed", Status: http.StatusBadRequest, Detail: detail, Issues: issues}
}

func Internal(err error) *Error {
	return &Error{Type: "internal", Title: "Internal Server Error", Status: http.StatusInternalServerError, cause: err}
}

// AsError extracts a *Error from err's chain, or nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, status int) bool {
	e := AsError(err)
	return e != nil && e.Status == status
}
