// Package file implements the local filesystem inputs and outputs of the
// pipeline: opening source files, resolving batch patterns, and writing
// results atomically.
package file

import (
	"context"
	"fmt"
	"io"
	"os"

	"geosql/internal/datasource"
)

var _ datasource.Source = (*Local)(nil)

// Local reads one file from disk. It is immutable and safe for concurrent
// use.
type Local struct{ path string }

// NewLocal binds a Local to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open returns the file, hinting the kernel at a sequential read. A
// canceled ctx fails before the filesystem is touched; open errors carry
// the path and still match os.ErrNotExist.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)
	return f, nil
}
