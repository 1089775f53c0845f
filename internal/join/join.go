package join

import (
	"errors"
	"fmt"
	"strings"

	"github.com/twpayne/go-geom"

	"geosql/internal/code"
	"geosql/internal/geometry"
	"geosql/internal/records"
)

// ErrMissingColumn reports an input table without the code column.
var ErrMissingColumn = errors.New("join: input column not found")

// MissingPolicy decides what happens to input rows without a reference
// match.
type MissingPolicy int

const (
	// Drop leaves unmatched rows out of the result.
	Drop MissingPolicy = iota
	// Keep emits unmatched rows with null reference attributes and a null
	// geometry.
	Keep
)

// ParseMissing accepts "drop" (or empty) and "keep".
func ParseMissing(s string) (MissingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop":
		return Drop, nil
	case "keep":
		return Keep, nil
	default:
		return Drop, fmt.Errorf("join: unknown missing policy %q (want drop or keep)", s)
	}
}

func (p MissingPolicy) String() string {
	if p == Keep {
		return "keep"
	}
	return "drop"
}

// Options configures Join.
type Options struct {
	CodeColumn string
	Missing    MissingPolicy
}

// Miss is an input row without a reference match.
type Miss struct {
	Row     int
	Code    string
	Invalid bool
}

// Result is the augmented table. Table holds the input columns followed by
// the merged reference attributes; Geoms is aligned with Table.Rows.
type Result struct {
	Table records.Table
	Geoms []geom.T

	Read      int
	Matched   int
	Dropped   int
	Unmatched []Miss
	// Collisions lists reference targets not merged because the input
	// already has a column of that name.
	Collisions []string
}

// Join augments every row of in with the reference entry matching its
// code. Input columns and values are carried verbatim, in input order.
func Join(in records.Table, idx *Index, opt Options) (Result, error) {
	ci := in.Index(opt.CodeColumn)
	if ci < 0 {
		return Result{}, fmt.Errorf("%w: %q (have %v)", ErrMissingColumn, opt.CodeColumn, in.Columns)
	}

	res := Result{Read: len(in.Rows)}
	cols := append([]string(nil), in.Columns...)
	var merged []int
	for i, a := range idx.Attributes {
		if in.Has(a.Target) {
			res.Collisions = append(res.Collisions, a.Target)
			continue
		}
		merged = append(merged, i)
		cols = append(cols, a.Target)
	}
	res.Table.Columns = cols

	for r, row := range in.Rows {
		var raw string
		if ci < len(row) {
			raw = row[ci]
		}
		var entry *Entry
		c, err := code.Normalize(raw, idx.Width)
		if err == nil {
			entry, _ = idx.Lookup(c)
		}
		if entry == nil {
			res.Unmatched = append(res.Unmatched, Miss{Row: r, Code: strings.TrimSpace(raw), Invalid: err != nil})
			if opt.Missing == Drop {
				res.Dropped++
				continue
			}
		} else {
			res.Matched++
		}

		out := make([]string, len(cols))
		copy(out[:len(in.Columns)], row)
		var g geom.T
		if entry != nil {
			for j, ai := range merged {
				out[len(in.Columns)+j] = entry.Values[ai]
			}
			g = entry.Geom
		}
		res.Table.Rows = append(res.Table.Rows, out)
		res.Geoms = append(res.Geoms, g)
	}
	return res, nil
}

// Records renders the result as a plain table with the geometry appended as
// a hex WKB column. Null geometries become empty cells.
func (r Result) Records(geometryColumn string) (records.Table, error) {
	if r.Table.Has(geometryColumn) {
		return records.Table{}, fmt.Errorf("join: geometry column %q already present in input", geometryColumn)
	}
	t := records.Table{
		Columns: append(append([]string(nil), r.Table.Columns...), geometryColumn),
		Rows:    make([][]string, len(r.Table.Rows)),
	}
	for i, row := range r.Table.Rows {
		var hex string
		if g := r.Geoms[i]; g != nil {
			var err error
			if hex, err = geometry.EncodeHex(g); err != nil {
				return records.Table{}, fmt.Errorf("join: row %d: %w", i, err)
			}
		}
		t.Rows[i] = append(append(make([]string, 0, len(row)+1), row...), hex)
	}
	return t, nil
}
