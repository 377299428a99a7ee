package shared

import (
	"errors"
	"fmt"
)

// Error codes shared across the domain
const (
	CodeNotFound         = "NOT_FOUND"
	CodeAlreadyExists    = "ALREADY_EXISTS"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeInvalidPeriodKey = "INVALID_PERIOD_KEY"
	CodeConflict         = "CONFLICT"
	CodeOptimisticLock   = "OPTIMISTIC_LOCK_ERROR"
	CodeInvalidState     = "INVALID_STATE"
	CodeLedgerApproved   = "LEDGER_APPROVED"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Field names the offending input field, if any
	Field string `json:"field,omitempty"`
	Err   error  `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError with the same code, so sentinel comparisons
// survive re-wrapping with a more specific message.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithField returns a copy of the error bound to a field
func (e *DomainError) WithField(field string) *DomainError {
	cp := *e
	cp.Field = field
	return &cp
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewInvalidPeriodKeyError reports a malformed period key field
func NewInvalidPeriodKeyError(field, message string) *DomainError {
	return &DomainError{
		Code:    CodeInvalidPeriodKey,
		Message: message,
		Field:   field,
	}
}

// NewNotFoundError reports a missing resource of the given kind
func NewNotFoundError(resource, id string) *DomainError {
	return &DomainError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s not found", resource, id),
	}
}

// NewConflictError reports a stale version token
func NewConflictError(resource string, expected, actual int) *DomainError {
	return &DomainError{
		Code:    CodeConflict,
		Message: fmt.Sprintf("%s was modified concurrently (expected version %d, current %d)", resource, expected, actual),
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrInvalidPeriodKey    = NewDomainError(CodeInvalidPeriodKey, "Invalid period key")
	ErrConflict            = NewDomainError(CodeConflict, "Resource was modified by another request")
	ErrConcurrencyConflict = NewDomainError(CodeOptimisticLock, "Resource was modified by another process")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrLedgerApproved      = NewDomainError(CodeLedgerApproved, "Ledger is approved and locked for edits")
)
