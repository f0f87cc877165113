// Package domainerrors provides coded errors shared by all modules.
//
// Services and models return these so transport layers can translate them
// into HTTP statuses without string matching. Stores return sentinel errors
// (pkg/platform/sentinel) instead; services wrap those into coded errors at
// the boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for transport mapping and policy decisions.
type Code string

const (
	// CodeBadRequest marks malformed caller input (missing fields, bad JSON).
	CodeBadRequest Code = "bad_request"
	// CodeValidation marks input that parsed but violates a domain rule.
	CodeValidation Code = "validation"
	// CodeInvalidInput marks a value rejected at a trust boundary.
	CodeInvalidInput Code = "invalid_input"
	// CodeNotFound marks a missing entity surfaced to the caller.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a state conflict (duplicate create, wrong lifecycle).
	CodeConflict Code = "conflict"
	// CodeUnauthorized marks failed authentication. On the webhook path this
	// is the only code allowed to produce a provider-retriable response.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks an authenticated but disallowed caller.
	CodeForbidden Code = "forbidden"
	// CodeUpstream marks a failed call to an external collaborator.
	CodeUpstream Code = "upstream"
	// CodeInternal marks unexpected infrastructure failure.
	CodeInternal Code = "internal"
	// CodeInvariantViolation marks a broken domain invariant; these indicate
	// bugs rather than bad input.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeUnavailable marks a temporarily unavailable dependency.
	CodeUnavailable Code = "unavailable"
)

// Error is a coded domain error with an optional wrapped cause.
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

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err yields
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			break
		}
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability in tests.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status the transport layer writes.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUpstream:
		return http.StatusBadGateway
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
