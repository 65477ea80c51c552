package executor

import (
	"errors"
	"fmt"
)

// Sentinel errors for batch failures.
var (
	ErrExtraction = errors.New("extraction failed")
	ErrDeletion   = errors.New("deletion failed")
)

// ExtractionError records an archive that could not be extracted.
type ExtractionError struct {
	Archive string
	Target  string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract '%s' into '%s': %v", e.Archive, e.Target, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtraction, e.Err}
}

// DeletionError records an archive that could not be removed.
type DeletionError struct {
	Archive string
	Err     error
}

func (e *DeletionError) Error() string {
	return fmt.Sprintf("delete '%s': %v", e.Archive, e.Err)
}

func (e *DeletionError) Unwrap() []error {
	return []error{ErrDeletion, e.Err}
}
