// Package domainerrors provides coded errors for service boundaries.
//
// Stores return sentinel errors (pkg/platform/sentinel) describing
// infrastructure facts; services translate those into coded domain errors
// that handlers can map to HTTP statuses without string matching.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of domain error with a stable wire representation.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_failed"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
)

// Error is a coded domain error, optionally wrapping a cause.
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

// Is makes errors.Is match coded errors by code and message rather than
// pointer identity, so tests can compare against freshly constructed errors.
func (e *Error) Is(target error) bool {
	var te *Error
	if !errors.As(target, &te) {
		return false
	}
	return e.Code == te.Code && e.Message == te.Message
}

// New constructs a coded error with a human-readable message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause remains
// reachable through errors.Is/errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// HasCode reports whether any error in err's chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Cause
		if err == nil {
			return false
		}
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in err's chain, or CodeInternal when the
// error is uncoded.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Message returns the outermost coded message, or an empty string for
// uncoded errors so internals never leak to clients.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvariantViolation:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
