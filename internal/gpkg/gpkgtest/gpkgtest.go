// Package gpkgtest builds small GeoPackage files for tests.
package gpkgtest

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/twpayne/go-geom"

	"geosql/internal/gpkg"

	_ "modernc.org/sqlite"
)

// Layer describes the feature table to create.
type Layer struct {
	Table          string
	GeometryColumn string
	GeometryType   string
	SRID           int32
	Columns        []string
}

// Row is one feature. Blob, when non-nil, is stored verbatim instead of the
// encoded Geom.
type Row struct {
	Values []any
	Geom   geom.T
	Blob   []byte
}

// Fixture is a layer and its features.
type Fixture struct {
	Layer Layer
	Rows  []Row
}

// Write creates a GeoPackage at path holding the given layers.
func Write(t testing.TB, path string, fixtures ...Fixture) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer db.Close()

	mustExec(t, db, `CREATE TABLE gpkg_contents (
		table_name TEXT PRIMARY KEY, data_type TEXT NOT NULL, identifier TEXT, srs_id INTEGER)`)
	mustExec(t, db, `CREATE TABLE gpkg_geometry_columns (
		table_name TEXT NOT NULL, column_name TEXT NOT NULL, geometry_type_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL, z TINYINT NOT NULL, m TINYINT NOT NULL)`)

	for _, f := range fixtures {
		addLayer(t, db, f.Layer, f.Rows)
	}
}

// WriteLayer is Write for a single layer.
func WriteLayer(t testing.TB, path string, l Layer, rows []Row) {
	t.Helper()
	Write(t, path, Fixture{Layer: l, Rows: rows})
}

func addLayer(t testing.TB, db *sql.DB, l Layer, rows []Row) {
	t.Helper()

	cols := l.Columns
	defs := []string{"fid INTEGER PRIMARY KEY AUTOINCREMENT"}
	names := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		q := pgx.Identifier{c}.Sanitize()
		defs = append(defs, q)
		names = append(names, q)
	}
	gq := pgx.Identifier{l.GeometryColumn}.Sanitize()
	defs = append(defs, gq+" BLOB")
	names = append(names, gq)
	tq := pgx.Identifier{l.Table}.Sanitize()

	mustExec(t, db, fmt.Sprintf("CREATE TABLE %s (%s)", tq, strings.Join(defs, ", ")))
	mustExec(t, db, "INSERT INTO gpkg_contents VALUES (?, 'features', ?, ?)", l.Table, l.Table, l.SRID)
	mustExec(t, db, "INSERT INTO gpkg_geometry_columns VALUES (?, ?, ?, ?, 0, 0)",
		l.Table, l.GeometryColumn, l.GeometryType, l.SRID)

	ph := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tq, strings.Join(names, ", "), ph)
	for i, r := range rows {
		if len(r.Values) != len(cols) {
			t.Fatalf("row %d: %d values for %d columns", i, len(r.Values), len(cols))
		}
		blob := r.Blob
		if blob == nil {
			var err error
			blob, err = gpkg.EncodeBlob(r.Geom, l.SRID)
			if err != nil {
				t.Fatalf("row %d: %v", i, err)
			}
		}
		args := append(append([]any{}, r.Values...), blob)
		mustExec(t, db, insert, args...)
	}
}

func mustExec(t testing.TB, db *sql.DB, q string, args ...any) {
	t.Helper()
	if _, err := db.Exec(q, args...); err != nil {
		t.Fatalf("exec %q: %v", q, err)
	}
}

// Square returns a closed square ring polygon with lower-left corner (x, y).
func Square(x, y, size float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y},
	}})
}
