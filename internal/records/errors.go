package records

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotDurable reports that a write was applied in memory but could not be persisted.
	ErrNotDurable = errors.New("change applied but not persisted")
	// ErrProtected rejects removing the seed administrator or the last administrator.
	ErrProtected = errors.New("protected record")
)

// PersistError carries the collection key whose save failed.
type PersistError struct {
	Key string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Key, e.Err)
}

func (e *PersistError) Unwrap() []error { return []error{ErrNotDurable, e.Err} }
