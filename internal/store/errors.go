package store

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable indicates the backing database cannot be reached or was never configured.
	ErrStoreUnavailable = errors.New("event store unavailable")
	// ErrInvalidEvent is returned by the per-row write path for rows missing required columns.
	ErrInvalidEvent = errors.New("invalid event")
)

// StoreError wraps any failure raised by a store operation with the operation that was attempted.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
