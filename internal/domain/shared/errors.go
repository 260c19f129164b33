package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError for callers that need to decide
// whether to retry, abort, or surface the failure to the operator.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindState          ErrorKind = "state"
	KindNetwork        ErrorKind = "network"
	KindConflict       ErrorKind = "conflict"
	KindNotFound       ErrorKind = "not_found"
	KindPartialFailure ErrorKind = "partial_failure"
	KindInternal       ErrorKind = "internal"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Kind      ErrorKind      `json:"kind"`
	Retryable bool           `json:"retryable,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	cause     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code.
// This lets callers compare against the sentinel errors below with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetail returns a copy of the error with an extra detail entry
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// WithCause returns a copy of the error wrapping cause
func (e *DomainError) WithCause(cause error) *DomainError {
	cp := *e
	cp.cause = cause
	return &cp
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    KindInternal,
	}
}

// NewValidationError creates an error for input that fails business validation
func NewValidationError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindValidation}
}

// NewStateError creates an error for an operation not allowed in the current state
func NewStateError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindState}
}

// NewNetworkError creates a retryable error for a failed or timed out remote call
func NewNetworkError(message string, cause error) *DomainError {
	return &DomainError{
		Code:      "NETWORK_ERROR",
		Message:   message,
		Kind:      KindNetwork,
		Retryable: true,
		cause:     cause,
	}
}

// NewConflictError creates an error for a duplicate or concurrent modification
func NewConflictError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindConflict}
}

// NewNotFoundError creates an error for a missing resource
func NewNotFoundError(resource string, id any) *DomainError {
	return &DomainError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s %v not found", resource, id),
		Kind:    KindNotFound,
		Details: map[string]any{"resource": resource, "id": id},
	}
}

// KindOf returns the kind of the first DomainError in err's chain,
// or KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsRetryable reports whether err carries a retryable DomainError
func IsRetryable(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// Common domain errors
var (
	ErrNotFound            = &DomainError{Code: "NOT_FOUND", Message: "Resource not found", Kind: KindNotFound}
	ErrInvalidInput        = NewValidationError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewConflictError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewStateError("INVALID_STATE", "Operation not allowed in current state")
	ErrInsufficientStock   = NewValidationError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrAlreadyApplied      = NewConflictError("ALREADY_APPLIED", "Transition has already been applied")
	ErrNetwork             = NewNetworkError("Remote service unavailable", nil)
)
