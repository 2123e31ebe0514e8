package errors

import (
	"errors"
	"fmt"
)

var (
	// Operation errors
	ErrUnknownOperation = errors.New("unknown operation kind")
	ErrInvalidPayload   = errors.New("invalid operation payload")
	ErrRetriesExhausted = errors.New("retry budget exhausted")

	// Backend errors
	ErrBackendUnavailable = errors.New("commerce backend unavailable")
	ErrBackendRejected    = errors.New("request rejected by commerce backend")
	ErrBackendTimeout     = errors.New("commerce backend request timeout")
	ErrCircuitOpen        = errors.New("commerce backend circuit open")

	// Storage errors
	ErrPersistFailed  = errors.New("failed to persist queue")
	ErrLoadFailed     = errors.New("failed to load queue")
	ErrQueueOwned     = errors.New("queue is owned by another agent")
	ErrLeaseLost      = errors.New("queue lease lost")
	ErrStoreNotReady  = errors.New("queue store not ready")
	ErrDeadLetterFail = errors.New("failed to publish dead letter")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
