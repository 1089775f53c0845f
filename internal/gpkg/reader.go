// Package gpkg reads feature layers from GeoPackage files.
//
// A GeoPackage is a SQLite database; it is opened through database/sql with
// the pure-Go modernc.org/sqlite driver in query-only mode, so reading a
// reference file never modifies it.
package gpkg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/twpayne/go-geom"

	_ "modernc.org/sqlite"
)

// ErrNoLayer reports that the requested feature layer does not exist, or
// that no layer was named and the file does not contain exactly one.
var ErrNoLayer = errors.New("gpkg: layer not found")

// ErrColumn reports a requested attribute column absent from the layer.
var ErrColumn = errors.New("gpkg: column not found")

// Layer is one row of gpkg_geometry_columns.
type Layer struct {
	Table          string
	GeometryColumn string
	GeometryType   string
	SRID           int
}

// Feature is one row of a feature layer. Attrs holds the requested
// attribute columns rendered as text, keyed by the name the caller asked
// for. Geom is nil when the blob is NULL or empty; Err is set when the
// blob could not be decoded.
type Feature struct {
	FID   int64
	Attrs map[string]string
	Geom  geom.T
	Err   error
}

// Reader is an open GeoPackage.
type Reader struct {
	db   *sql.DB
	path string
}

// Open opens the GeoPackage at path for reading.
func Open(ctx context.Context, path string) (*Reader, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("gpkg: open %s: %w", path, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("gpkg: open %s: is a directory", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("gpkg: open %s: %w", path, err)
	}
	// A single connection keeps the query_only pragma in effect for every
	// statement issued through the pool.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("gpkg: ping %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("gpkg: set query_only: %w", err)
	}
	return &Reader{db: db, path: path}, nil
}

// Path returns the file the reader was opened on.
func (r *Reader) Path() string { return r.path }

// Close releases the underlying database handle.
func (r *Reader) Close() error { return r.db.Close() }

// Layers lists the feature layers registered in gpkg_geometry_columns,
// ordered by table name.
func (r *Reader) Layers(ctx context.Context) ([]Layer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT table_name, column_name, geometry_type_name, srs_id
		FROM gpkg_geometry_columns
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("gpkg: list layers in %s: %w", r.path, err)
	}
	defer rows.Close()

	var out []Layer
	for rows.Next() {
		var l Layer
		if err := rows.Scan(&l.Table, &l.GeometryColumn, &l.GeometryType, &l.SRID); err != nil {
			return nil, fmt.Errorf("gpkg: scan layer: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gpkg: list layers in %s: %w", r.path, err)
	}
	return out, nil
}

// Layer returns the named layer. With an empty name it returns the only
// layer of the file.
func (r *Reader) Layer(ctx context.Context, name string) (Layer, error) {
	layers, err := r.Layers(ctx)
	if err != nil {
		return Layer{}, err
	}
	if name == "" {
		if len(layers) == 1 {
			return layers[0], nil
		}
		names := make([]string, len(layers))
		for i, l := range layers {
			names[i] = l.Table
		}
		return Layer{}, fmt.Errorf("%w: %s has %d layers %v, name one", ErrNoLayer, r.path, len(layers), names)
	}
	for _, l := range layers {
		if strings.EqualFold(l.Table, name) {
			return l, nil
		}
	}
	return Layer{}, fmt.Errorf("%w: %q in %s", ErrNoLayer, name, r.path)
}

// Columns returns the column names of table in declaration order.
func (r *Reader) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("gpkg: columns of %s: %w", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("gpkg: scan column: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gpkg: columns of %s: %w", table, err)
	}
	return out, nil
}

// ReadLayer reads the given attribute columns and the geometry of every
// feature of layer, in rowid order. Column names match case-insensitively,
// as SQLite identifiers do.
func (r *Reader) ReadLayer(ctx context.Context, layer Layer, columns []string) ([]Feature, error) {
	actual, err := r.Columns(ctx, layer.Table)
	if err != nil {
		return nil, err
	}
	byFold := make(map[string]string, len(actual))
	for _, c := range actual {
		byFold[strings.ToLower(c)] = c
	}
	geomCol, ok := byFold[strings.ToLower(layer.GeometryColumn)]
	if !ok {
		return nil, fmt.Errorf("%w: geometry column %q in %s", ErrColumn, layer.GeometryColumn, layer.Table)
	}

	selected := make([]string, 0, len(columns)+2)
	selected = append(selected, "rowid")
	for _, c := range columns {
		name, ok := byFold[strings.ToLower(c)]
		if !ok {
			return nil, fmt.Errorf("%w: %q in %s (have %v)", ErrColumn, c, layer.Table, actual)
		}
		selected = append(selected, pgx.Identifier{name}.Sanitize())
	}
	selected = append(selected, pgx.Identifier{geomCol}.Sanitize())

	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid",
		strings.Join(selected, ", "), pgx.Identifier{layer.Table}.Sanitize())
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("gpkg: read %s: %w", layer.Table, err)
	}
	defer rows.Close()

	var out []Feature
	vals := make([]any, len(selected))
	ptrs := make([]any, len(selected))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("gpkg: scan %s: %w", layer.Table, err)
		}
		f := Feature{Attrs: make(map[string]string, len(columns))}
		if fid, ok := vals[0].(int64); ok {
			f.FID = fid
		}
		for i, c := range columns {
			f.Attrs[c] = render(vals[i+1])
		}
		switch blob := vals[len(vals)-1].(type) {
		case nil:
		case []byte:
			f.Geom, f.Err = DecodeBlob(blob)
		default:
			f.Err = fmt.Errorf("gpkg: geometry of fid %d is %T, not a blob", f.FID, blob)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gpkg: read %s: %w", layer.Table, err)
	}
	return out, nil
}

// render formats a scanned SQLite value as text. Integral REAL values lose
// their fractional part so that codes stored as REAL compare equal to codes
// stored as INTEGER or TEXT.
func render(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
