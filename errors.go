package pdfquiz

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeValidation marks a missing session key, a missing payload field or
	// an answers/questions length mismatch.
	CodeValidation Code = "VALIDATION"
	// CodeInternal marks a backend that could not be read or written.
	CodeInternal Code = "INTERNAL"
)

// Error is the domain error type returned by the cache layer.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Wrapped underlying error
}

// Sentinels for errors.Is comparisons by code.
var (
	ErrValidation = &Error{Code: CodeValidation}
	ErrInternal   = &Error{Code: CodeInternal}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// IsValidation reports whether err carries CodeValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsInternal reports whether err carries CodeInternal.
func IsInternal(err error) bool { return errors.Is(err, ErrInternal) }

func validationError(format string, args ...interface{}) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func internalError(message string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: message, Cause: cause}
}
