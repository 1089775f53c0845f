// Package join attaches reference geometry and administrative attributes to
// tabular records by normalized administrative code.
package join

import (
	"errors"
	"fmt"

	"github.com/twpayne/go-geom"

	"geosql/internal/code"
	"geosql/internal/geometry"
	"geosql/internal/gpkg"
)

// ErrNoGeometry reports a reference source without a single usable
// polygonal geometry.
var ErrNoGeometry = errors.New("join: reference has no usable geometry")

// Attribute maps a reference column to its name in the augmented table.
type Attribute struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Entry is one reference row. Values is aligned with Index.Attributes.
type Entry struct {
	Code   string
	Values []string
	Geom   geom.T
}

// Rejected is a reference feature left out of the index.
type Rejected struct {
	FID  int64
	Code string
	Err  error
}

// Index maps normalized codes to reference entries. It is read-only once
// built and safe for concurrent use.
type Index struct {
	Width      int
	Attributes []Attribute

	entries map[string]*Entry

	// Duplicates lists codes seen again after their first usable feature,
	// once per extra occurrence, in read order.
	Duplicates []string
	// Invalid lists features whose code does not normalize.
	Invalid []Rejected
	// Unusable lists features without a usable polygonal geometry.
	Unusable []Rejected
}

// BuildIndex indexes features by the code in codeColumn, normalized to
// width (0 infers the most common code length). The first usable feature
// per code wins.
func BuildIndex(features []gpkg.Feature, codeColumn string, attrs []Attribute, width int) (*Index, error) {
	if width <= 0 {
		raw := make([]string, len(features))
		for i, f := range features {
			raw[i] = f.Attrs[codeColumn]
		}
		width = code.InferWidth(raw)
	}

	idx := &Index{
		Width:      width,
		Attributes: attrs,
		entries:    make(map[string]*Entry, len(features)),
	}
	for _, f := range features {
		raw, ok := f.Attrs[codeColumn]
		if !ok {
			return nil, fmt.Errorf("join: reference column %q not read", codeColumn)
		}
		c, err := code.Normalize(raw, width)
		if err != nil {
			idx.Invalid = append(idx.Invalid, Rejected{FID: f.FID, Code: raw, Err: err})
			continue
		}
		switch {
		case f.Err != nil:
			idx.Unusable = append(idx.Unusable, Rejected{FID: f.FID, Code: c, Err: f.Err})
			continue
		case f.Geom == nil:
			idx.Unusable = append(idx.Unusable, Rejected{FID: f.FID, Code: c, Err: errors.New("join: empty geometry")})
			continue
		case !geometry.Polygonal(f.Geom):
			idx.Unusable = append(idx.Unusable, Rejected{FID: f.FID, Code: c, Err: fmt.Errorf("%w: %T", geometry.ErrUnsupported, f.Geom)})
			continue
		}
		if _, dup := idx.entries[c]; dup {
			idx.Duplicates = append(idx.Duplicates, c)
			continue
		}
		vals := make([]string, len(attrs))
		for i, a := range attrs {
			vals[i] = f.Attrs[a.Source]
		}
		idx.entries[c] = &Entry{Code: c, Values: vals, Geom: f.Geom}
	}
	if len(idx.entries) == 0 {
		return nil, fmt.Errorf("%w (%d features, %d invalid codes, %d unusable)",
			ErrNoGeometry, len(features), len(idx.Invalid), len(idx.Unusable))
	}
	return idx, nil
}

// Len returns the number of indexed codes.
func (x *Index) Len() int { return len(x.entries) }

// Lookup returns the entry for an already normalized code.
func (x *Index) Lookup(c string) (*Entry, bool) {
	e, ok := x.entries[c]
	return e, ok
}
