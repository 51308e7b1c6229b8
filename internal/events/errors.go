package events

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingPayload means the request carried no event list at all.
	ErrMissingPayload = errors.New("no events provided")
	// ErrInvalidShape means the event list was not a JSON array.
	ErrInvalidShape = errors.New("invalid events format: an array is expected")
	// ErrInvalidElement is matched by every *ValidationError.
	ErrInvalidElement = errors.New("invalid event")
	// ErrWriteFailed is matched by every *WriteError.
	ErrWriteFailed = errors.New("failed to save events")
)

// ValidationError reports the first element of a submitted list that failed validation.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s for event at index %d: %s", e.Field, e.Index, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidElement }

// WriteError is a storage failure on the write path. It is never masked.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrWriteFailed, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWriteFailed }

// IsValidation reports whether err rejects the client's input (a 400).
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingPayload) ||
		errors.Is(err, ErrInvalidShape) ||
		errors.Is(err, ErrInvalidElement)
}
