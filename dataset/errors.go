package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned for a dataset path whose extension has
	// no reader.
	ErrUnsupportedFormat = errors.New("unsupported dataset format")

	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("missing required column")

	// ErrEmptyTable is returned when a source has no header row.
	ErrEmptyTable = errors.New("table has no header row")
)

// MissingColumnError names the absent header.
type MissingColumnError struct {
	Column string
	Source string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: missing required column %q", e.Source, e.Column)
}

func (e *MissingColumnError) Unwrap() error {
	return ErrMissingColumn
}
