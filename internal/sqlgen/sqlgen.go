// Package sqlgen renders an augmented table as a PostGIS load script: a
// header comment, CREATE TABLE, AddGeometryColumn and one INSERT per row.
package sqlgen

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"

	"geosql/internal/ddl"
	"geosql/internal/geometry"
)

// Spatial describes the geometry column registered with AddGeometryColumn.
type Spatial struct {
	Column string
	SRID   int
	Type   geometry.Type
	Dims   int
}

// Table is the input of Write. Rows hold the non-geometry values aligned
// with Columns; Geoms is aligned with Rows and may hold nil geometries,
// which are written as NULL.
type Table struct {
	Schema  string
	Name    string
	Source  string
	Columns []ddl.ColumnDef
	Rows    [][]string
	Geoms   []geom.T
	Serial  bool
}

// Skip records a row left out of the script.
type Skip struct {
	Row int
	Err error
}

// Stats summarizes a rendered script.
type Stats struct {
	Inserted int
	Skipped  []Skip
}

// FQN returns the schema-qualified table name.
func (t Table) FQN() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// Write renders the script for t to w. Rows whose geometry cannot be
// coerced to sp.Type or encoded are skipped and reported in Stats; any
// write error is returned as is.
func Write(w io.Writer, t Table, sp Spatial) (Stats, error) {
	if t.Name == "" {
		return Stats{}, fmt.Errorf("sqlgen: table name must not be empty")
	}
	if sp.Column == "" {
		return Stats{}, fmt.Errorf("sqlgen: geometry column must not be empty")
	}
	if len(t.Geoms) != len(t.Rows) {
		return Stats{}, fmt.Errorf("sqlgen: %d geometries for %d rows", len(t.Geoms), len(t.Rows))
	}
	if sp.Dims == 0 {
		sp.Dims = 2
	}

	def := ddl.TableDef{FQN: t.FQN(), Columns: t.Columns}
	if t.Serial {
		id := ddl.ColumnDef{Name: "id", SQLType: ddl.TypeSerial, PrimaryKey: true}
		def.Columns = append([]ddl.ColumnDef{id}, t.Columns...)
	}
	create, err := ddl.BuildCreateTableSQL(def)
	if err != nil {
		return Stats{}, fmt.Errorf("sqlgen: %w", err)
	}

	bw := bufio.NewWriter(w)
	writeHeader(bw, t, sp)
	bw.WriteString(create)
	bw.WriteString("\n\n")
	fmt.Fprintf(bw, "SELECT AddGeometryColumn(%s,%s,%s,%d,%s,%d);\n\n",
		Quote(schemaOrPublic(t.Schema)), Quote(t.Name), Quote(sp.Column), sp.SRID, Quote(string(sp.Type)), sp.Dims)

	names := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		names = append(names, ddl.QuoteIdent(c.Name))
	}
	names = append(names, ddl.QuoteIdent(sp.Column))
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES (", ddl.QuoteFQN(t.FQN()), strings.Join(names, ", "))

	var st Stats
	for i, row := range t.Rows {
		g, err := GeometryLiteral(t.Geoms[i], sp)
		if err != nil {
			st.Skipped = append(st.Skipped, Skip{Row: i, Err: err})
			continue
		}
		bw.WriteString(prefix)
		for j, c := range t.Columns {
			var v string
			if j < len(row) {
				v = row[j]
			}
			bw.WriteString(Literal(v, c))
			bw.WriteString(", ")
		}
		bw.WriteString(g)
		bw.WriteString(");\n")
		st.Inserted++
	}
	if err := bw.Flush(); err != nil {
		return st, err
	}
	return st, nil
}

func writeHeader(w *bufio.Writer, t Table, sp Spatial) {
	const rule = "-- ============================================="
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "-- Table: %s\n", oneLine(t.FQN()))
	if t.Source != "" {
		fmt.Fprintf(w, "-- Source: %s\n", oneLine(t.Source))
	}
	fmt.Fprintf(w, "-- Rows: %d\n", len(t.Rows))
	fmt.Fprintf(w, "-- SRID: %d\n", sp.SRID)
	fmt.Fprintf(w, "-- Geometry: %s (WKB)\n", sp.Type)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

// Literal renders one value for column c. Empty values are NULL; numeric
// columns are written unquoted; everything else is a quoted string.
func Literal(v string, c ddl.ColumnDef) string {
	if c.Numeric() {
		s := strings.TrimSpace(v)
		if s == "" {
			return "NULL"
		}
		return s
	}
	if v == "" {
		return "NULL"
	}
	return Quote(v)
}

// Quote returns s as a standard-conforming SQL string literal. Embedded
// quotes are doubled and NUL bytes, which PostgreSQL text cannot hold, are
// dropped.
func Quote(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// GeometryLiteral renders g as a PostGIS expression in sp.SRID, coerced to
// sp.Type. A nil geometry renders as NULL.
func GeometryLiteral(g geom.T, sp Spatial) (string, error) {
	if g == nil {
		return "NULL", nil
	}
	c, err := geometry.Coerce(g, sp.Type)
	if err != nil {
		return "", err
	}
	hex, err := geometry.EncodeHex(c)
	if err != nil {
		return "", err
	}
	expr := "ST_GeomFromWKB('\\x" + hex + "'::bytea, " + strconv.Itoa(sp.SRID) + ")"
	if sp.Type.Multi() {
		expr = "ST_Multi(" + expr + ")"
	}
	return expr, nil
}

func schemaOrPublic(s string) string {
	if s == "" {
		return "public"
	}
	return s
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
