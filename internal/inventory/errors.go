package inventory

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidIndex = errors.New("invalid index")
)

// NotFoundError reports a root path that is missing or is not a directory.
type NotFoundError struct {
	Op   string // Operation that failed (e.g., "scan sources")
	Path string
	Err  error // Underlying error, wraps ErrNotFound
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s': %v", e.Op, e.Path, e.Err)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// InvalidIndexError reports an item id outside the scanned range.
type InvalidIndexError struct {
	Kind string // "source" or "target"
	ID   string
	Max  int // Number of addressable items
}

func (e *InvalidIndexError) Error() string {
	return fmt.Sprintf("%s id '%s' out of range (%d addressable)", e.Kind, e.ID, e.Max)
}

func (e *InvalidIndexError) Unwrap() error {
	return ErrInvalidIndex
}

func notFound(op, path, reason string) error {
	return &NotFoundError{
		Op:   op,
		Path: path,
		Err:  fmt.Errorf("%w: %s", ErrNotFound, reason),
	}
}
