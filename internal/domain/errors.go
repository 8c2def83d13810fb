package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreadableFile marks a spreadsheet that could not be opened or has no
	// header row at the configured offset.
	ErrUnreadableFile = errors.New("unreadable file")

	// ErrMissingColumn marks a sheet lacking a header for a mandatory field.
	ErrMissingColumn = errors.New("missing mandatory column")
)

// MissingColumnError names the mandatory field that could not be resolved.
type MissingColumnError struct {
	File  string
	Field Field
}

func (e *MissingColumnError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("no column found for %q", e.Field)
	}
	return fmt.Sprintf("file %s: no column found for %q", e.File, e.Field)
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }
