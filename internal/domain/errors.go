package domain

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error category.
type Code string

const (
	// ErrCodeValidation: a nonexistent section/component id, or a duplicate id.
	ErrCodeValidation Code = "VALIDATION"
	// ErrCodeDependencyUnavailable: a collaborator did not become ready in time.
	ErrCodeDependencyUnavailable Code = "DEPENDENCY_UNAVAILABLE"
	// ErrCodePersistence: the save request failed (network or backend-reported).
	ErrCodePersistence Code = "PERSISTENCE"
	// ErrCodeConsistency: duplicate rendered element or duplicate listing.
	ErrCodeConsistency Code = "CONSISTENCY"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error with the given code and formatted message.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error wrapping cause.
func WrapError(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Validationf is shorthand for a ValidationError.
func Validationf(format string, args ...any) *Error {
	return NewError(ErrCodeValidation, format, args...)
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the error code, or "" for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns the message without the code prefix, suitable for a
// toast or status indicator.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}
