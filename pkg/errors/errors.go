package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEntry = errors.New("invalid entry")
	ErrDocNotFound  = errors.New("document not found")
	ErrUnavailable  = errors.New("store unavailable")
	ErrTimeout      = errors.New("operation timed out")
	ErrInternal     = errors.New("internal error")
)

// StoreError wraps a backend failure with the backend kind, the operation
// that failed, and the key it was operating on.
type StoreError struct {
	Backend string
	Op      string
	Key     string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s store: %s: %s", e.Backend, e.Op, e.Err.Error())
	}
	return fmt.Sprintf("%s store: %s %q: %s", e.Backend, e.Op, e.Key, e.Err.Error())
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrUnavailable) match any StoreError: stores only
// produce StoreError when a backend call fails, which is a connectivity or
// service-side failure by the error taxonomy.
func (e *StoreError) Is(target error) bool {
	return target == ErrUnavailable
}

func NewStoreError(backend, op, key string, err error) *StoreError {
	return &StoreError{
		Backend: backend,
		Op:      op,
		Key:     key,
		Err:     err,
	}
}

// IsUnavailable reports whether err is a connectivity failure, including
// context deadline expiry surfaced by a network client.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout)
}
