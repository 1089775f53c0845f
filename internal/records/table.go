// Package records holds the in-memory tabular model shared by the join and
// emission stages. A Table is loaded whole; there is no streaming.
package records

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Table is an ordered set of named columns and string rows. An empty cell is
// treated as null by every consumer.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool { return t.Index(name) >= 0 }

// Column returns every value of the named column in row order.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("records: column %q not found", name)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, nil
}

// Drop returns a copy of t without the named columns. Unknown names are
// ignored. Rows are copied so the original is left untouched.
func (t *Table) Drop(names ...string) Table {
	skip := make(map[int]bool, len(names))
	for _, n := range names {
		if i := t.Index(n); i >= 0 {
			skip[i] = true
		}
	}
	if len(skip) == 0 {
		return *t
	}

	keep := make([]int, 0, len(t.Columns))
	cols := make([]string, 0, len(t.Columns))
	for i, c := range t.Columns {
		if !skip[i] {
			keep = append(keep, i)
			cols = append(cols, c)
		}
	}
	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		nr := make([]string, len(keep))
		for j, i := range keep {
			if i < len(row) {
				nr[j] = row[i]
			}
		}
		rows[r] = nr
	}
	return Table{Columns: cols, Rows: rows}
}

// Round returns a copy of t with the numeric values of the named columns
// rounded half away from zero to the given number of decimal places.
// Empty and non-numeric cells are kept as they are.
func (t *Table) Round(digits int, names ...string) Table {
	idx := make([]int, 0, len(names))
	for _, n := range names {
		if i := t.Index(n); i >= 0 {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return *t
	}

	scale := math.Pow10(digits)
	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		nr := append([]string(nil), row...)
		for _, i := range idx {
			if i >= len(nr) {
				continue
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(nr[i]), 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				continue
			}
			nr[i] = strconv.FormatFloat(math.Round(f*scale)/scale, 'f', -1, 64)
		}
		rows[r] = nr
	}
	return Table{Columns: append([]string(nil), t.Columns...), Rows: rows}
}
