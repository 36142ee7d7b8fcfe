// Package dErrors provides coded domain errors shared across modules.
//
// Services translate infrastructure sentinels (pkg/platform/sentinel) and
// internal failures into these coded errors so transport layers can map them
// to responses without inspecting error strings.
package dErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for programmatic handling.
type Code string

const (
	// CodeInvalidInput marks caller bugs: malformed IDs, bad vector shapes,
	// unparseable field elements. Always surfaced.
	CodeInvalidInput Code = "invalid_input"

	// CodeNotFound marks a missing entity (registration, enrollment).
	CodeNotFound Code = "not_found"

	// CodeConflict marks an expected business collision, such as a duplicate
	// biometric registration. Not a system fault.
	CodeConflict Code = "conflict"

	// CodeRejected marks a business rejection of an otherwise well-formed
	// request, such as a failed location or anti-spoofing gate.
	CodeRejected Code = "rejected"

	// CodeIntegrity marks configuration or integrity faults: undecryptable
	// salts, missing circuit artifacts. Fatal; never silently degraded.
	CodeIntegrity Code = "integrity"

	// CodeInvariantViolation marks an illegal state transition on a model.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeUnavailable marks a temporarily unavailable dependency.
	CodeUnavailable Code = "unavailable"

	// CodeInternal marks unexpected system faults.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. It optionally wraps a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause remains
// reachable through errors.Is / errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			return false
		}
	}
	return false
}

// Is is shorthand for HasCode, matching the call sites that read better as a
// predicate.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the outermost code, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to an HTTP status for the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRejected:
		return http.StatusForbidden
	case CodeInvariantViolation:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeIntegrity, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
