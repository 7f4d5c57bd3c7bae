// Package apperror provides structured error handling following RFC 7807 Problem Details.
// Every failure that leaves the engine is an AppError so callers can branch on Code.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal   = "INTERNAL_ERROR"
	CodeUnexpected = "UNEXPECTED_ERROR"

	// Caller input is wrong: fix and resubmit, never retried.
	CodeValidation = "VALIDATION_ERROR"

	// Upstream throttling exhausted the retry budget. Safe to retry later.
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"

	// Credentials invalid or expired. Refresh out-of-band.
	CodeAuth = "AUTH_ERROR"

	// Structurally valid but refused by the ledger's business rules.
	CodeUpstreamRejected = "UPSTREAM_REJECTED"

	// Not found (404). Catalog misses are absorbed internally.
	CodeNotFound = "NOT_FOUND"
)

// AppError is the standard error type for the engine.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (validation messages, suggestions, upstream body)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// Detail returns a detail value or nil.
func (e *AppError) Detail(key string) any {
	if e == nil || e.Details == nil {
		return nil
	}
	return e.Details[key]
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewValidationList creates a validation error carrying every problem found,
// so the caller can fix all of them in one round trip.
func NewValidationList(problems []string) *AppError {
	msg := "validation failed"
	if len(problems) > 0 {
		msg = "validation failed: " + strings.Join(problems, "; ")
	}
	list := make([]string, len(problems))
	copy(list, problems)
	return NewValidation(msg).WithDetail("errors", list)
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewRateLimitExceeded creates an error for an exhausted retry budget (429)
func NewRateLimitExceeded(op string, attempts int) *AppError {
	return &AppError{
		Code:       CodeRateLimitExceeded,
		Message:    fmt.Sprintf("%s: rate limit persisted after %d attempts", op, attempts),
		HTTPStatus: http.StatusTooManyRequests,
		Details:    map[string]any{"operation": op, "attempts": attempts},
	}
}

// NewAuth creates an authentication error (401)
func NewAuth(message string) *AppError {
	return &AppError{
		Code:       CodeAuth,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewUpstreamRejected creates an error for a request the ledger refused (422)
func NewUpstreamRejected(message string) *AppError {
	return &AppError{
		Code:       CodeUpstreamRejected,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewUnexpected creates an error for upstream failures with no known remedy (502)
func NewUnexpected(message string) *AppError {
	return &AppError{
		Code:       CodeUnexpected,
		Message:    message,
		HTTPStatus: http.StatusBadGateway,
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether the outermost AppError in the chain carries code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsValidation checks if error is CodeValidation
func IsValidation(err error) bool {
	return HasCode(err, CodeValidation)
}

// IsRateLimitExceeded checks if error is CodeRateLimitExceeded
func IsRateLimitExceeded(err error) bool {
	return HasCode(err, CodeRateLimitExceeded)
}
