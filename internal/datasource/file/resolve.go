package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Resolve expands pattern inside dir into a sorted list of regular files.
// The list is computed once so a batch works on a fixed set of inputs even
// if the directory changes while it runs. A pattern without matches yields
// an empty list, not an error.
func Resolve(dir, pattern string) ([]string, error) {
	if pattern == "" {
		return nil, fmt.Errorf("file: empty pattern")
	}
	if dir == "" {
		dir = "."
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("file: pattern %q: %w", pattern, err)
	}

	out := matches[:0]
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}
