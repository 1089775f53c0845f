package file

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/xxh3"
)

// Written describes a completed atomic write.
type Written struct {
	Path   string
	Bytes  int64
	Digest uint64 // xxh3-64 of the written bytes
}

// WriteAtomic creates dir (if needed), streams fn's output into a temporary
// file next to path, and renames it into place once fn and the final sync
// succeed. An interrupted run therefore never leaves a file under the final
// name; stale temporaries are named ".<base>.tmp-*".
func WriteAtomic(path string, fn func(w io.Writer) error) (Written, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Written{}, fmt.Errorf("file: create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return Written{}, fmt.Errorf("file: create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	h := xxh3.New()
	cw := &countingWriter{w: io.MultiWriter(tmp, h)}
	if err := fn(cw); err != nil {
		return Written{}, err
	}
	if err := tmp.Sync(); err != nil {
		return Written{}, fmt.Errorf("file: sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return Written{}, fmt.Errorf("file: close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return Written{}, fmt.Errorf("file: chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return Written{}, fmt.Errorf("file: rename to %s: %w", path, err)
	}
	committed = true

	return Written{Path: path, Bytes: cw.n, Digest: h.Sum64()}, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
