package records

import (
	"reflect"
	"testing"
)

func sample() Table {
	return Table{
		Columns: []string{"cd_mun", "geom", "pop"},
		Rows: [][]string{
			{"3550308", "x", "12"},
			{"3304557", "y", ""},
		},
	}
}

func TestTable_Index(t *testing.T) {
	t.Parallel()

	tbl := sample()
	if got := tbl.Index("pop"); got != 2 {
		t.Fatalf("Index(pop) = %d, want 2", got)
	}
	if got := tbl.Index("missing"); got != -1 {
		t.Fatalf("Index(missing) = %d, want -1", got)
	}
	if !tbl.Has("geom") || tbl.Has("geojson") {
		t.Fatalf("Has mismatch")
	}
}

func TestTable_Column(t *testing.T) {
	t.Parallel()

	tbl := sample()
	got, err := tbl.Column("pop")
	if err != nil {
		t.Fatalf("Column error: %v", err)
	}
	if want := []string{"12", ""}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Column(pop) = %#v, want %#v", got, want)
	}
	if _, err := tbl.Column("nope"); err == nil {
		t.Fatalf("expected error for unknown column")
	}
}

func TestTable_DropLeavesOriginal(t *testing.T) {
	t.Parallel()

	tbl := sample()
	out := tbl.Drop("geom", "geojson")

	if want := []string{"cd_mun", "pop"}; !reflect.DeepEqual(out.Columns, want) {
		t.Fatalf("columns = %#v, want %#v", out.Columns, want)
	}
	if want := []string{"3304557", ""}; !reflect.DeepEqual(out.Rows[1], want) {
		t.Fatalf("row = %#v, want %#v", out.Rows[1], want)
	}
	if len(tbl.Columns) != 3 || tbl.Rows[0][1] != "x" {
		t.Fatalf("original mutated: %#v", tbl)
	}
}

func TestTable_Round(t *testing.T) {
	t.Parallel()

	tbl := Table{
		Columns: []string{"cd_setor", "pcv", "nota"},
		Rows: [][]string{
			{"355030801000001", "12.3456", "x"},
			{"355030801000002", "", "7.125"},
			{"355030801000003", "n/a", ""},
			{"355030801000004", "-0.005"},
		},
	}
	out := tbl.Round(2, "pcv", "missing")

	want := [][]string{
		{"355030801000001", "12.35", "x"},
		{"355030801000002", "", "7.125"},
		{"355030801000003", "n/a", ""},
		{"355030801000004", "-0.01"},
	}
	if !reflect.DeepEqual(out.Rows, want) {
		t.Fatalf("rows = %#v, want %#v", out.Rows, want)
	}
	if tbl.Rows[0][1] != "12.3456" {
		t.Fatalf("original mutated")
	}
}
