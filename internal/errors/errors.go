package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig    = "CONFIG"
	ErrEvent     = "EVENT"
	ErrSample    = "SAMPLE"
	ErrBus       = "BUS"
	ErrSampler   = "SAMPLER"
	ErrResponder = "RESPONDER"
	ErrLock      = "LOCK"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Newf creates a structured error without a suggestion, formatting the message.
func Newf(code, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rwErr *Error
	if errors.As(err, &rwErr) {
		return rwErr.Code == code
	}
	return false
}

// Is reports whether any error in err's chain matches target.
// Re-exported so callers don't need to import both packages.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As, re-exported for the same reason as Is.
func As(err error, target any) bool {
	return errors.As(err, target)
}
