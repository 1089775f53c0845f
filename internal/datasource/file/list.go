package file

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadList reads a batch list: one input path per line. Blank lines and
// lines starting with '#' are skipped, a leading UTF-8 BOM is ignored and
// relative entries are taken relative to the list's own directory. A path
// listed twice is kept once, at its first position.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("file: open list: %w", err)
	}
	defer f.Close()

	base := filepath.Dir(path)
	seen := map[string]bool{}
	var out []string
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if n == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		line = filepath.Clean(line)
		if seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("file: read list %s: %w", path, err)
	}
	return out, nil
}
