// Package geometry wraps the go-geom types used for administrative
// boundaries. Only polygonal geometries are supported; they travel between
// stages as hex-encoded little-endian WKB, which is lossless.
package geometry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geom/encoding/wkbhex"
)

// Type is a target PostGIS geometry type name.
type Type string

const (
	Polygon      Type = "POLYGON"
	MultiPolygon Type = "MULTIPOLYGON"
)

// ErrUnsupported reports a geometry that is not polygonal or cannot be
// represented as the requested target type.
var ErrUnsupported = errors.New("geometry: unsupported geometry")

// ParseType accepts a case-insensitive polygonal type name.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToUpper(strings.TrimSpace(s))); t {
	case Polygon, MultiPolygon:
		return t, nil
	default:
		return "", fmt.Errorf("geometry: unsupported target type %q (want POLYGON or MULTIPOLYGON)", s)
	}
}

// Multi reports whether t is a collection type.
func (t Type) Multi() bool { return t == MultiPolygon }

// Polygonal reports whether g is a non-nil Polygon or MultiPolygon.
func Polygonal(g geom.T) bool {
	switch g := g.(type) {
	case *geom.Polygon:
		return g != nil
	case *geom.MultiPolygon:
		return g != nil
	default:
		return false
	}
}

// Coerce converts g to the target type without touching coordinates: a
// Polygon is wrapped for MULTIPOLYGON targets, and a single-member
// MultiPolygon is unwrapped for POLYGON targets.
func Coerce(g geom.T, target Type) (geom.T, error) {
	switch g := g.(type) {
	case *geom.Polygon:
		if !target.Multi() {
			return g, nil
		}
		mp := geom.NewMultiPolygon(g.Layout())
		if err := mp.Push(g); err != nil {
			return nil, fmt.Errorf("geometry: wrap polygon: %w", err)
		}
		mp.SetSRID(g.SRID())
		return mp, nil
	case *geom.MultiPolygon:
		if target.Multi() {
			return g, nil
		}
		if g.NumPolygons() != 1 {
			return nil, fmt.Errorf("%w: multipolygon with %d members cannot become %s", ErrUnsupported, g.NumPolygons(), target)
		}
		p := g.Polygon(0)
		p.SetSRID(g.SRID())
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, g)
	}
}

// EncodeHex returns the little-endian WKB of g as lowercase hex.
func EncodeHex(g geom.T) (string, error) {
	if g == nil {
		return "", fmt.Errorf("%w: nil geometry", ErrUnsupported)
	}
	s, err := wkbhex.Encode(g, wkb.NDR)
	if err != nil {
		return "", fmt.Errorf("geometry: encode wkb: %w", err)
	}
	return s, nil
}

// DecodeHex parses hex WKB in either case, with an optional "\x" or "0x"
// prefix as written by psql and some exporters.
func DecodeHex(s string) (geom.T, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, `\x`)
	s = strings.TrimPrefix(s, "0x")
	g, err := wkbhex.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("geometry: decode wkb: %w", err)
	}
	return g, nil
}

// DecodeWKB parses raw WKB bytes.
func DecodeWKB(b []byte) (geom.T, error) {
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("geometry: decode wkb: %w", err)
	}
	return g, nil
}
