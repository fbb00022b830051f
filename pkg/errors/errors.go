// Package errors provides structured error types for framepen.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the library packages
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Reporting how far through the frame stream a failed run got
//
// # Error Codes
//
// The encoder distinguishes three failure kinds:
//   - INVALID_CONFIG: options rejected before any frame is read
//   - SOURCE_EXHAUSTED: the frame source ended early or yielded no frames
//   - ENCODING_INVARIANT: an internal contract was violated (never retried)
//
// The remaining codes cover the surfaces around the encoder (opening sources,
// output formats, imported documents).
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidConfig, "columns must be >= 1, got %d", n)
//	if errors.Is(err, errors.ErrCodeInvalidConfig) {
//	    // Handle validation error
//	}
//
//	// Attach the stream position when a run aborts
//	err = errors.AtFrame(err, frameIndex, elapsedMs)
//	if pos, ok := errors.Position(err); ok {
//	    fmt.Printf("stopped at frame %d (%d ms)\n", pos.FrameIndex, pos.ElapsedMs)
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Configuration errors
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidStyle  Code = "INVALID_STYLE"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Source errors
	ErrCodeSourceUnavailable Code = "SOURCE_UNAVAILABLE"
	ErrCodeSourceExhausted   Code = "SOURCE_EXHAUSTED"

	// Encoder errors
	ErrCodeEncodingInvariant Code = "ENCODING_INVARIANT"

	// Document errors
	ErrCodeInvalidDocument Code = "INVALID_DOCUMENT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
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

// Invariant reports an internal contract violation. These indicate a bug,
// not bad input, and are never retried.
func Invariant(format string, args ...any) *Error {
	return New(ErrCodeEncodingInvariant, format, args...)
}

// StreamError records how far through the frame stream a run got before it
// failed. FrameIndex counts decoded frames (sampled or not).
type StreamError struct {
	Err        error
	FrameIndex int
	ElapsedMs  int64
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	return fmt.Sprintf("%v (at frame %d, %d ms)", e.Err, e.FrameIndex, e.ElapsedMs)
}

// Unwrap returns the wrapped error.
func (e *StreamError) Unwrap() error { return e.Err }

// AtFrame annotates err with a stream position. A nil err stays nil, and an
// error that already carries a position keeps the original one.
func AtFrame(err error, frameIndex int, elapsedMs int64) error {
	if err == nil {
		return nil
	}
	var se *StreamError
	if errors.As(err, &se) {
		return err
	}
	return &StreamError{Err: err, FrameIndex: frameIndex, ElapsedMs: elapsedMs}
}

// Position extracts the stream position attached by AtFrame.
func Position(err error) (StreamError, bool) {
	var se *StreamError
	if errors.As(err, &se) {
		return *se, true
	}
	return StreamError{}, false
}
