// Package domainerrors provides coded errors for the verification domain.
//
// Services return these so transport layers can map failures onto standard
// HTTP categories without string matching. Stores return sentinel errors
// (pkg/platform/sentinel) and services translate them here.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error into one of the standard API categories.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	// CodeUnprocessable covers permanently rejected input: unreadable
	// documents and scorer-rejected features. Retrying will not help.
	CodeUnprocessable Code = "unprocessable"
	// CodeUnavailable covers transient upstream failures that the caller
	// may retry later.
	CodeUnavailable Code = "unavailable"
	// CodeRetryLimit is returned when a verification has exhausted its
	// configured retry budget.
	CodeRetryLimit Code = "retry_limit_exceeded"
	CodeTimeout    Code = "timeout"
	CodeInternal   Code = "internal_error"
)

// Error is a coded domain error. Message is safe to show to API callers
// except for CodeInternal, where transport layers omit it.
type Error struct {
	ErrCode Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.ErrCode, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.ErrCode, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with a human-readable message.
func New(code Code, message string) *Error {
	return &Error{ErrCode: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{ErrCode: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As chains.
func Wrap(err error, code Code, message string) *Error {
	return &Error{ErrCode: code, Message: message, cause: err}
}

// CodeOf extracts the Code from an error chain, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.ErrCode
	}
	return CodeInternal
}

// HasCode reports whether the error chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.ErrCode == code
	}
	return false
}

// MessageOf extracts the human-readable message from an error chain.
// Falls back to the raw error string for uncoded errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
