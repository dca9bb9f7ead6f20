// Package errors provides structured error types for dagview.
//
// Every failure a user can observe carries a machine-readable [Code] so the
// CLI, the HTTP API and the terminal editor can react to the same condition
// in the same way:
//   - Upload failures (unsupported extension, malformed JSON, unknown schema)
//   - Per-line parse problems that are logged and skipped
//   - Style command rejections (invalid color, empty selection)
//   - Commands issued before a rendering engine exists
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUnsupportedFormat, "unsupported file format: %s", ext)
//	if errors.Is(err, errors.ErrCodeUnsupportedFormat) {
//	    // Tell the user which formats are accepted
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidJSON, decodeErr, "invalid JSON in %s", name)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Upload and parse errors
	ErrCodeUnsupportedFormat      Code = "UNSUPPORTED_FORMAT"
	ErrCodeInvalidJSON            Code = "INVALID_JSON"
	ErrCodeUnrecognizedJSONSchema Code = "UNRECOGNIZED_JSON_SCHEMA"
	ErrCodeMalformedLine          Code = "MALFORMED_LINE"

	// Style command errors
	ErrCodeInvalidColor   Code = "INVALID_COLOR"
	ErrCodeEmptySelection Code = "EMPTY_SELECTION"

	// Engine errors
	ErrCodeEngineUnavailable Code = "ENGINE_UNAVAILABLE"
	ErrCodeLayoutFailed      Code = "LAYOUT_FAILED"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidLayout Code = "INVALID_LAYOUT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodeSessionNotFound Code = "SESSION_NOT_FOUND"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsUserError reports whether err was caused by user input rather than by
// the application. HTTP handlers map these to 400 responses.
func IsUserError(err error) bool {
	switch GetCode(err) {
	case ErrCodeUnsupportedFormat, ErrCodeInvalidJSON, ErrCodeUnrecognizedJSONSchema,
		ErrCodeMalformedLine, ErrCodeInvalidColor, ErrCodeEmptySelection,
		ErrCodeInvalidInput, ErrCodeInvalidFormat, ErrCodeInvalidLayout, ErrCodeInvalidPath:
		return true
	}
	return false
}
