package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

const (
	// ErrEmbeddingUnavailable signals a failure of the external embedding
	// provider. Retryable by the caller; never retried internally.
	ErrEmbeddingUnavailable ErrorCode = "EMBEDDING_UNAVAILABLE"

	// ErrInvalidInput rejects empty queries and empty memory content
	// before any processing happens.
	ErrInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrPersistenceConflict is a concurrent-write conflict on a unique
	// edge or record. The store retries once with a fresh read before
	// surfacing it.
	ErrPersistenceConflict ErrorCode = "PERSISTENCE_CONFLICT"

	// ErrReinforcementFailure is the non-fatal failure to persist a
	// salience boost after a search. It never alters the ranked response.
	ErrReinforcementFailure ErrorCode = "REINFORCEMENT_FAILURE"

	// ErrNotFound indicates a memory lookup by ID found nothing in scope.
	ErrNotFound ErrorCode = "NOT_FOUND"

	// ErrStoreUnavailable indicates the candidate store itself failed.
	ErrStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
)

// Error is a structured error with code, message, and cause.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// GetErrorCode extracts the error code from an error, unwrapping as needed.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
