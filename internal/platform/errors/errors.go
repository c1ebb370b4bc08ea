package errors

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Error is the transport error type with a code and an internal message.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Internal message (for logs/telemetry)
	Cause   error  // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
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

// New creates a simple error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates an error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// UserMessage returns the localized user-facing message for one code.
// Unknown codes fall back to the internal message when present.
func UserMessage(tag language.Tag, code Code, fallback string) string {
	key := "errors." + string(code)
	value := message.NewPrinter(tag).Sprintf(key)
	if value == key {
		if fallback != "" {
			return fallback
		}
		return string(code)
	}
	return value
}
