// Package pipeline runs the join and emission stages over batches of files.
// Each file is processed in isolation and produces a Report; a file-level
// failure is recorded in its report and never stops the batch.
package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks failures caused by inputs or settings: a missing or
	// unreadable file, a required column that is absent, a reference without
	// usable geometry.
	ErrConfig = errors.New("configuration error")
	// ErrWrite marks an output that could not be written.
	ErrWrite = errors.New("write error")
)

// FileError attaches the file and stage to a file-level failure.
type FileError struct {
	Path  string
	Stage string
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

func configError(err error) error {
	return fmt.Errorf("%w: %w", ErrConfig, err)
}

func writeError(err error) error {
	return fmt.Errorf("%w: %w", ErrWrite, err)
}
