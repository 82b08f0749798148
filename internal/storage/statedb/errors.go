package statedb

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that a requested key was not found
	ErrNotFound = errors.New("key not found")

	// ErrClosed indicates that the store is closed
	ErrClosed = errors.New("statedb is closed")

	// ErrInvalidConfig indicates that the backend configuration is invalid
	ErrInvalidConfig = errors.New("invalid statedb configuration")

	// ErrUnsupportedBackend indicates that a backend is not supported
	ErrUnsupportedBackend = errors.New("unsupported statedb backend")
)

// StoreError wraps an error with the operation and backend that produced it.
type StoreError struct {
	Operation string
	Backend   string
	Key       []byte
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if len(e.Key) == 0 {
		return fmt.Sprintf("statedb %s error on backend %s: %v",
			e.Operation, e.Backend, e.Cause)
	}
	return fmt.Sprintf("statedb %s error on backend %s for key %q: %v",
		e.Operation, e.Backend, e.Key, e.Cause)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

// WrapError wraps an error with operation context. Nil in, nil out.
func WrapError(err error, operation, backend string, key []byte) error {
	if err == nil {
		return nil
	}
	return &StoreError{Operation: operation, Backend: backend, Key: key, Cause: err}
}

// IsNotFound checks if an error indicates a missing key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
