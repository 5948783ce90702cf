// Package apperror defines the error values handlers and services return to
// the HTTP layer. Each carries a status code and a message that is safe to
// show an admin; the underlying cause stays in Internal and only reaches logs.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AppError is a client-presentable error with an HTTP status.
type AppError struct {
	// Code is the HTTP status code.
	Code int `json:"-"`

	// Type is a machine-readable classifier such as "not_found".
	Type string `json:"type"`

	// Message is safe to render to the client.
	Message string `json:"message"`

	// Fields maps field names to problems for validation failures.
	Fields map[string]string `json:"fields,omitempty"`

	// Internal is the wrapped cause. Never serialized.
	Internal error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes Internal to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Internal
}

func newError(code int, typ, message string) *AppError {
	return &AppError{Code: code, Type: typ, Message: message}
}

// NewNotFound returns a 404.
func NewNotFound(message string) *AppError {
	return newError(http.StatusNotFound, "not_found", message)
}

// NewBadRequest returns a 400.
func NewBadRequest(message string) *AppError {
	return newError(http.StatusBadRequest, "bad_request", message)
}

// NewUnauthorized returns a 401.
func NewUnauthorized(message string) *AppError {
	return newError(http.StatusUnauthorized, "unauthorized", message)
}

// NewForbidden returns a 403.
func NewForbidden(message string) *AppError {
	return newError(http.StatusForbidden, "forbidden", message)
}

// NewConflict returns a 409.
func NewConflict(message string) *AppError {
	return newError(http.StatusConflict, "conflict", message)
}

// NewValidation returns a 422 for input that parsed but failed a rule.
func NewValidation(message string) *AppError {
	return newError(http.StatusUnprocessableEntity, "validation_error", message)
}

// NewTooLarge returns a 413 for oversized uploads.
func NewTooLarge(message string) *AppError {
	return newError(http.StatusRequestEntityTooLarge, "too_large", message)
}

// NewInternal hides err behind a generic message. err is kept for logging.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     "internal_error",
		Message:  "An unexpected error occurred. Please try again.",
		Internal: err,
	}
}

// FromValidator converts go-playground/validator errors into a 422 with a
// per-field message. Any other error is returned unchanged.
func FromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := fieldName(fe)
		msg := describeRule(fe)
		fields[name] = msg
		msgs = append(msgs, name+" "+msg)
	}
	appErr := NewValidation(strings.Join(msgs, "; "))
	appErr.Fields = fields
	return appErr
}

func fieldName(fe validator.FieldError) string {
	if name := fe.Field(); name != "" {
		return name
	}
	return fe.StructField()
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without", "required_with":
		return "is required"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "url", "http_url":
		return "must be a valid URL"
	case "email":
		return "must be a valid email"
	case "latitude", "longitude":
		return "must be a valid " + fe.Tag()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// SafeMessage returns the client-safe message for err.
func SafeMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// SafeCode returns the HTTP status for err, defaulting to 500.
func SafeCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
