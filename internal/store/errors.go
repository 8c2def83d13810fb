package store

import (
	"errors"
	"fmt"
)

// ErrPersist marks a mutation that was applied in memory but could not be
// written to the backing repository.
var ErrPersist = errors.New("store not persisted")

// PersistError reports a failed full-replace write. The in-memory state
// already reflects the mutation named by Op.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrPersist, e.Err)
}

func (e *PersistError) Unwrap() []error { return []error{ErrPersist, e.Err} }
