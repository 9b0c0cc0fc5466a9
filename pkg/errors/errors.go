// Package errors defines the application error taxonomy shared by the
// repositories, services and HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies an application error.
type ErrorType string

const (
	// ErrorTypeValidation covers business-rule rejections, including node
	// request rejections. The message is a stable, display-ready reason.
	ErrorTypeValidation ErrorType = "VALIDATION"
	// ErrorTypeNotFound marks a missing resource on a non-point-lookup path.
	// Point lookups return an absent indicator instead of this error.
	ErrorTypeNotFound ErrorType = "NOT_FOUND"
	// ErrorTypeConflict marks a duplicate-key create, surfaced from the
	// store's uniqueness constraint.
	ErrorTypeConflict ErrorType = "CONFLICT"
	// ErrorTypeUnauthorized marks a missing or invalid requestor identity.
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	// ErrorTypeUnavailable marks a degraded external collaborator
	// (rate-limited or unreachable). Distinct from a validation failure.
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
	// ErrorTypeDatabase marks a store-level failure other than a constraint
	// violation.
	ErrorTypeDatabase ErrorType = "DATABASE"
	// ErrorTypeInternal is the fallback for unexpected failures.
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// AppError is the application-level error carried across layers.
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Cause      error     `json:"-"`
	HTTPStatus int       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause attaches an underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// NewValidationError creates a business-rule rejection.
func NewValidationError(message string) *AppError {
	return &AppError{Type: ErrorTypeValidation, Message: message, HTTPStatus: http.StatusBadRequest}
}

// NewNotFoundError creates a missing-resource error.
func NewNotFoundError(message string) *AppError {
	return &AppError{Type: ErrorTypeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

// NewConflictError creates a duplicate-key error.
func NewConflictError(message string) *AppError {
	return &AppError{Type: ErrorTypeConflict, Message: message, HTTPStatus: http.StatusConflict}
}

// NewUnauthorizedError creates an authentication error.
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{Type: ErrorTypeUnauthorized, Message: message, HTTPStatus: http.StatusUnauthorized}
}

// NewUnavailableError marks a degraded external service.
func NewUnavailableError(message string) *AppError {
	return &AppError{Type: ErrorTypeUnavailable, Message: message, HTTPStatus: http.StatusServiceUnavailable}
}

// NewDatabaseError wraps a store-level failure.
func NewDatabaseError(operation string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeDatabase,
		Message:    fmt.Sprintf("database operation %q failed", operation),
		Cause:      err,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewInternalError creates an unexpected-failure error.
func NewInternalError(message string) *AppError {
	return &AppError{Type: ErrorTypeInternal, Message: message, HTTPStatus: http.StatusInternalServerError}
}

// GetAppError extracts an AppError from an error chain, or nil.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return IsType(err, ErrorTypeNotFound) }

// IsConflict reports whether err is a duplicate-key error.
func IsConflict(err error) bool { return IsType(err, ErrorTypeConflict) }

// IsValidation reports whether err is a business-rule rejection.
func IsValidation(err error) bool { return IsType(err, ErrorTypeValidation) }

// IsUnauthorized reports whether err is an authentication error.
func IsUnauthorized(err error) bool { return IsType(err, ErrorTypeUnauthorized) }

// IsUnavailable reports whether err marks a degraded external service.
func IsUnavailable(err error) bool { return IsType(err, ErrorTypeUnavailable) }

// Wrap adds context to an error, preserving its AppError type when present.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}
	return NewInternalError(message).WithCause(err)
}
