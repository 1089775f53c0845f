package file

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestResolve_SortedRegularFilesOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{
		"geodata_por_municipio_2024.csv",
		"geodata_por_municipio_2016.csv",
		"geodata_por_setor_2024.csv",
		"notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	// A directory that matches the pattern must be skipped.
	if err := os.Mkdir(filepath.Join(dir, "geodata_por_municipio_old.csv"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	got, err := Resolve(dir, "geodata_por_municipio_*.csv")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	want := []string{
		filepath.Join(dir, "geodata_por_municipio_2016.csv"),
		filepath.Join(dir, "geodata_por_municipio_2024.csv"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Resolve = %#v, want %#v", got, want)
	}
}

func TestResolve_NoMatchIsEmpty(t *testing.T) {
	t.Parallel()

	got, err := Resolve(t.TempDir(), "*.csv")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %#v", got)
	}
}

func TestResolve_BadPattern(t *testing.T) {
	t.Parallel()

	if _, err := Resolve(t.TempDir(), "[.csv"); err == nil {
		t.Fatalf("expected error for malformed pattern")
	}
	if _, err := Resolve(t.TempDir(), ""); err == nil {
		t.Fatalf("expected error for empty pattern")
	}
}
