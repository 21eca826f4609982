// Package apperror holds the error taxonomy shared by the relay, the pin
// store and the upload client. Callers classify failures with errors.Is
// against the sentinels and errors.As against the typed errors.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrForbidden        = errors.New("origin not allowed")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrConfiguration    = errors.New("server configuration error")
	ErrTimeout          = errors.New("upload timed out")
	ErrNotFound         = errors.New("not found")
)

// AppError is a classified failure with a machine-readable code.
type AppError struct {
	Err     error
	Code    string
	Message string
	Field   string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Validation reports a caller mistake in the named field.
func Validation(field, message string) *AppError {
	return &AppError{Err: ErrValidation, Code: "VALIDATION_ERROR", Message: message, Field: field}
}

// Configuration reports an operator mistake; it is never the caller's fault.
func Configuration(message string) *AppError {
	return &AppError{Err: ErrConfiguration, Code: "CONFIG_ERROR", Message: message}
}

// Forbidden reports a request from an origin outside the allow-list.
func Forbidden() *AppError {
	return &AppError{Err: ErrForbidden, Code: "FORBIDDEN", Message: "Forbidden", Field: "origin"}
}

// MethodNotAllowed reports a request method the endpoint does not serve.
func MethodNotAllowed() *AppError {
	return &AppError{Err: ErrMethodNotAllowed, Code: "METHOD_NOT_ALLOWED", Message: "Method not allowed"}
}

// NotFound reports a missing record.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// UpstreamError carries a content host rejection as-is.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream returned status %d", e.Status)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Message)
}

// IsClientFault reports whether err is the caller's fault and must not be
// logged as a server failure.
func IsClientFault(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrForbidden) || errors.Is(err, ErrMethodNotAllowed)
}
