// Package datasource defines where input tables are read from.
package datasource

import (
	"context"
	"io"
)

// Source opens a byte stream for one input. Implementations must honor an
// already canceled context.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
