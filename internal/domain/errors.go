package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType categorizes a guardrail error.
type ErrorType string

const (
	// ErrorTypeAccessDenied indicates a capability or ownership violation.
	ErrorTypeAccessDenied ErrorType = "access_denied"

	// ErrorTypeEvaluator indicates a transport, timeout, or malformed-output
	// failure from a pluggable evaluator.
	ErrorTypeEvaluator ErrorType = "evaluator"

	// ErrorTypeMalformedDecision indicates deep-evaluator output outside the
	// known action set.
	ErrorTypeMalformedDecision ErrorType = "malformed_decision"

	// ErrorTypeNotFound indicates a resource (ticket, grant) was not found.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeAlreadyResolved indicates a second resolve attempt on a
	// ticket that has already transitioned to RESOLVED.
	ErrorTypeAlreadyResolved ErrorType = "already_resolved"

	// ErrorTypeInvalidRequest indicates a malformed inbound request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeServer indicates an internal failure, including a failed
	// audit append (the request cannot be accounted for).
	ErrorTypeServer ErrorType = "server"
)

// Error is the canonical error for the guardrail core. Handlers translate
// it to an HTTP response; internal callers match on Type.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`

	// Capability and Target are populated on access_denied errors so the
	// refusal can name what was denied.
	Capability string `json:"capability,omitempty"`
	Target     string `json:"target,omitempty"`

	// StatusCode overrides the default HTTP mapping when non-zero.
	StatusCode int `json:"-"`
}

func (e *Error) Error() string {
	if e.Capability != "" {
		return fmt.Sprintf("%s: %s (capability=%s target=%s)", e.Type, e.Message, e.Capability, e.Target)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode returns the HTTP status for this error.
func (e *Error) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeAccessDenied:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeAlreadyResolved:
		return http.StatusConflict
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeEvaluator, ErrorTypeMalformedDecision, ErrorTypeServer:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a guardrail error.
func NewError(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// ErrAccessDenied creates an access-denied error naming the capability and
// optional target that were refused.
func ErrAccessDenied(capability, target, message string) *Error {
	return &Error{
		Type:       ErrorTypeAccessDenied,
		Message:    message,
		Capability: capability,
		Target:     target,
	}
}

// ErrEvaluator wraps an evaluator transport/timeout failure.
func ErrEvaluator(message string) *Error {
	return NewError(ErrorTypeEvaluator, message)
}

// ErrMalformedDecision flags deep-evaluator output the engine cannot accept.
func ErrMalformedDecision(message string) *Error {
	return NewError(ErrorTypeMalformedDecision, message)
}

// ErrNotFound creates a not-found error.
func ErrNotFound(message string) *Error {
	return NewError(ErrorTypeNotFound, message)
}

// ErrAlreadyResolved creates an already-resolved error.
func ErrAlreadyResolved(message string) *Error {
	return NewError(ErrorTypeAlreadyResolved, message)
}

// ErrInvalidRequest creates an invalid-request error.
func ErrInvalidRequest(message string) *Error {
	return NewError(ErrorTypeInvalidRequest, message)
}

// ErrServer creates an internal error.
func ErrServer(message string) *Error {
	return NewError(ErrorTypeServer, message)
}

// IsType reports whether err is (or wraps) a guardrail Error of type t.
func IsType(err error, t ErrorType) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Type == t
	}
	return false
}
