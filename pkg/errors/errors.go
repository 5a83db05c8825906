package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies an error for callers deciding whether to skip, retry or stop.
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"
	// ErrorTypeBadRequest indicates invalid input from an operator or caller
	ErrorTypeBadRequest ErrorType = "BAD_REQUEST"
	// ErrorTypeConflict indicates a unique constraint collision
	ErrorTypeConflict ErrorType = "CONFLICT"
	// ErrorTypeSkip indicates a raw record failed a precondition and must be dropped
	ErrorTypeSkip ErrorType = "SKIP"
	// ErrorTypeTransient indicates a network or rate-limit failure worth retrying
	ErrorTypeTransient ErrorType = "TRANSIENT"
	// ErrorTypeConfiguration indicates missing or corrupt operator configuration
	ErrorTypeConfiguration ErrorType = "CONFIGURATION"
	// ErrorTypeInternal indicates an internal error
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// ErrNotEligible is returned by platform wrappers for records that are not simulcasts,
// blacklisted or otherwise out of scope.
var ErrNotEligible = &AppError{Type: ErrorTypeSkip, Message: "episode not eligible"}

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new application error
func New(errorType ErrorType, message string) error {
	return &AppError{
		Type:    errorType,
		Message: message,
	}
}

// Wrap wraps an error with an application error
func Wrap(errorType ErrorType, message string, err error) error {
	return &AppError{
		Type:    errorType,
		Message: message,
		Err:     err,
	}
}

// NotFound creates a not found error
func NotFound(message string) error {
	return New(ErrorTypeNotFound, message)
}

// BadRequest creates a bad request error
func BadRequest(message string) error {
	return New(ErrorTypeBadRequest, message)
}

// Conflict creates a conflict error
func Conflict(message string) error {
	return New(ErrorTypeConflict, message)
}

// Skip creates a skip-worthy error, formatted like fmt.Sprintf.
func Skip(format string, args ...interface{}) error {
	return New(ErrorTypeSkip, fmt.Sprintf(format, args...))
}

// Transient wraps a retryable failure.
func Transient(message string, err error) error {
	return Wrap(ErrorTypeTransient, message, err)
}

// Configuration creates a configuration error, formatted like fmt.Sprintf.
func Configuration(format string, args ...interface{}) error {
	return New(ErrorTypeConfiguration, fmt.Sprintf(format, args...))
}

// Internal creates an internal error
func Internal(message string) error {
	return New(ErrorTypeInternal, message)
}

// TypeOf returns the type of the outermost AppError in the chain, or an empty type.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// IsBadRequest checks if an error is a bad request error
func IsBadRequest(err error) bool {
	return TypeOf(err) == ErrorTypeBadRequest
}

// IsConflict checks if an error is a conflict error, including raw driver duplicates.
func IsConflict(err error) bool {
	return TypeOf(err) == ErrorTypeConflict || IsDuplicateError(err)
}

// IsSkip checks if an error means the record should be dropped
func IsSkip(err error) bool {
	return TypeOf(err) == ErrorTypeSkip
}

// IsTransient checks if an error is retryable
func IsTransient(err error) bool {
	return TypeOf(err) == ErrorTypeTransient
}

// IsConfiguration checks if an error must be surfaced to an operator
func IsConfiguration(err error) bool {
	return TypeOf(err) == ErrorTypeConfiguration
}

// IsInternal checks if an error is an internal error
func IsInternal(err error) bool {
	return TypeOf(err) == ErrorTypeInternal
}

// IsDuplicateError checks if an error is a duplicate key error
func IsDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "UNIQUE constraint") ||
		strings.Contains(errStr, "duplicate entry")
}
