package sqlgen

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/twpayne/go-geom"

	"geosql/internal/ddl"
	"geosql/internal/geometry"
)

func square(x float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{x, 0}, {x + 1, 0}, {x + 1, 1}, {x, 1}, {x, 0},
	}})
}

func render(t *testing.T, tbl Table, sp Spatial) (string, Stats) {
	t.Helper()
	var buf bytes.Buffer
	st, err := Write(&buf, tbl, sp)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	return buf.String(), st
}

func lines(s, prefix string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if strings.HasPrefix(l, prefix) {
			out = append(out, l)
		}
	}
	return out
}

var defaultSpatial = Spatial{Column: "wkb_geometry", SRID: 31983, Type: geometry.MultiPolygon, Dims: 2}

// One integer and one text column, three rows.
func TestWrite_IntegerAndTextColumns(t *testing.T) {
	t.Parallel()

	rows := [][]string{{"1", "a"}, {"2", "b"}, {"3", "c"}}
	cols := ddl.Infer([]string{"n", "nome"}, rows, ddl.Overrides{})
	out, st := render(t, Table{
		Schema: "public", Name: "amostra", Source: "amostra_com_geometria.csv",
		Columns: cols, Rows: rows, Geoms: []geom.T{square(0), square(1), square(2)},
	}, defaultSpatial)

	if !strings.Contains(out, "CREATE TABLE public.amostra (\n  n INTEGER,\n  nome VARCHAR\n);") {
		t.Fatalf("missing CREATE TABLE:\n%s", out)
	}
	if !strings.Contains(out, "SELECT AddGeometryColumn('public','amostra','wkb_geometry',31983,'MULTIPOLYGON',2);") {
		t.Fatalf("missing AddGeometryColumn:\n%s", out)
	}
	ins := lines(out, "INSERT INTO")
	if len(ins) != 3 || st.Inserted != 3 || len(st.Skipped) != 0 {
		t.Fatalf("got %d inserts, stats %+v", len(ins), st)
	}
	for i, want := range []string{"(1, 'a', ", "(2, 'b', ", "(3, 'c', "} {
		if !strings.HasPrefix(ins[i], "INSERT INTO public.amostra (n, nome, wkb_geometry) VALUES "+want+"ST_Multi(ST_GeomFromWKB('\\x") {
			t.Errorf("insert %d = %s", i, ins[i])
		}
		if !strings.HasSuffix(ins[i], "'::bytea, 31983)));") {
			t.Errorf("insert %d suffix = %s", i, ins[i])
		}
	}
	for _, h := range []string{"-- Table: public.amostra", "-- Source: amostra_com_geometria.csv", "-- Rows: 3", "-- SRID: 31983"} {
		if !strings.Contains(out, h) {
			t.Errorf("header missing %q", h)
		}
	}
	if strings.Index(out, "CREATE TABLE") > strings.Index(out, "AddGeometryColumn") ||
		strings.Index(out, "AddGeometryColumn") > strings.Index(out, "INSERT INTO") {
		t.Fatalf("statements out of order")
	}
}

func TestWrite_EscapesApostrophes(t *testing.T) {
	t.Parallel()

	rows := [][]string{{"Santa Bárbara d'Oeste"}, {"Olho-d'Água das Flores"}}
	out, _ := render(t, Table{
		Schema: "public", Name: "t",
		Columns: ddl.Infer([]string{"nm_mun"}, rows, ddl.Overrides{}),
		Rows:    rows, Geoms: []geom.T{square(0), square(1)},
	}, defaultSpatial)

	for _, want := range []string{"'Santa Bárbara d''Oeste'", "'Olho-d''Água das Flores'"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in\n%s", want, out)
		}
	}
	for _, l := range lines(out, "INSERT") {
		before, _, _ := strings.Cut(l, "ST_")
		if strings.Count(before, "'")%2 != 0 {
			t.Errorf("unbalanced quotes: %s", l)
		}
	}
}

func TestWrite_SRIDAndTypeOverride(t *testing.T) {
	t.Parallel()

	sp := Spatial{Column: "wkb_geometry", SRID: 4326, Type: geometry.Polygon}
	mp := geom.NewMultiPolygon(geom.XY)
	if err := mp.Push(square(5)); err != nil {
		t.Fatalf("Push: %v", err)
	}
	rows := [][]string{{"1"}, {"2"}}
	out, st := render(t, Table{
		Schema: "public", Name: "t",
		Columns: ddl.Infer([]string{"n"}, rows, ddl.Overrides{}),
		Rows:    rows, Geoms: []geom.T{square(0), mp},
	}, sp)

	if !strings.Contains(out, "SELECT AddGeometryColumn('public','t','wkb_geometry',4326,'POLYGON',2);") {
		t.Fatalf("AddGeometryColumn not overridden:\n%s", out)
	}
	if st.Inserted != 2 {
		t.Fatalf("stats = %+v", st)
	}
	for _, l := range lines(out, "INSERT") {
		if strings.Contains(l, "ST_Multi") || !strings.HasSuffix(l, "'::bytea, 4326));") {
			t.Errorf("insert not tagged with override: %s", l)
		}
	}
	if strings.Contains(out, "MULTIPOLYGON") || !strings.Contains(out, "-- SRID: 4326\n") {
		t.Fatalf("defaults leaked into script:\n%s", out)
	}
}

func TestWrite_SkipsUnfitGeometry(t *testing.T) {
	t.Parallel()

	two := geom.NewMultiPolygon(geom.XY)
	_ = two.Push(square(0))
	_ = two.Push(square(3))
	line := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{0, 0}, {1, 1}})

	rows := [][]string{{"1"}, {"2"}, {"3"}, {""}}
	out, st := render(t, Table{
		Schema: "public", Name: "t",
		Columns: ddl.Infer([]string{"n"}, rows, ddl.Overrides{}),
		Rows:    rows, Geoms: []geom.T{two, line, square(0), nil},
	}, Spatial{Column: "g", SRID: 4326, Type: geometry.Polygon})

	if st.Inserted != 2 || len(st.Skipped) != 2 {
		t.Fatalf("stats = %+v", st)
	}
	if st.Skipped[0].Row != 0 || st.Skipped[1].Row != 1 || !errors.Is(st.Skipped[1].Err, geometry.ErrUnsupported) {
		t.Fatalf("skips = %+v", st.Skipped)
	}
	ins := lines(out, "INSERT")
	if len(ins) != 2 || !strings.HasSuffix(ins[1], "VALUES (NULL, NULL);") {
		t.Fatalf("inserts = %q", ins)
	}
}

func TestWrite_SerialAndQuotedColumns(t *testing.T) {
	t.Parallel()

	rows := [][]string{{"x", "1.5"}}
	out, _ := render(t, Table{
		Schema: "public", Name: "t", Serial: true,
		Columns: ddl.Infer([]string{"Nome Município", "order"}, rows, ddl.Overrides{}),
		Rows:    rows, Geoms: []geom.T{square(0)},
	}, defaultSpatial)

	if !strings.Contains(out, "  id SERIAL PRIMARY KEY,\n  \"Nome Município\" VARCHAR,\n  \"order\" DOUBLE PRECISION\n") {
		t.Fatalf("CREATE TABLE:\n%s", out)
	}
	if !strings.Contains(out, `INSERT INTO public.t ("Nome Município", "order", wkb_geometry) VALUES ('x', 1.5, `) {
		t.Fatalf("INSERT:\n%s", out)
	}
}

func TestWrite_Errors(t *testing.T) {
	t.Parallel()

	cols := []ddl.ColumnDef{{Name: "n", SQLType: ddl.TypeText, Nullable: true}}
	var buf bytes.Buffer
	if _, err := Write(&buf, Table{Columns: cols}, defaultSpatial); err == nil {
		t.Fatalf("expected error for empty table name")
	}
	if _, err := Write(&buf, Table{Name: "t", Columns: cols, Rows: [][]string{{"a"}}}, defaultSpatial); err == nil {
		t.Fatalf("expected error for misaligned geometries")
	}
	if _, err := Write(&buf, Table{Name: "t", Columns: cols}, Spatial{SRID: 1}); err == nil {
		t.Fatalf("expected error for empty geometry column")
	}
}

func TestLiteral(t *testing.T) {
	t.Parallel()

	num := ddl.ColumnDef{SQLType: ddl.TypeDouble}
	txt := ddl.ColumnDef{SQLType: ddl.TypeText}
	tests := []struct {
		v    string
		c    ddl.ColumnDef
		want string
	}{
		{"", num, "NULL"},
		{" 2.5 ", num, "2.5"},
		{"", txt, "NULL"},
		{" ", txt, "' '"},
		{"it's", txt, "'it''s'"},
		{"a\x00b", txt, "'ab'"},
		{`C:\dados`, txt, `'C:\dados'`},
	}
	for _, tt := range tests {
		if got := Literal(tt.v, tt.c); got != tt.want {
			t.Errorf("Literal(%q, %s) = %s, want %s", tt.v, tt.c.SQLType, got, tt.want)
		}
	}
}
