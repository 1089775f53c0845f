package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocal_Open(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "icv_2024.csv")
	if err := os.WriteFile(path, []byte("cd_mun,pcv\n3550308,1.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	src := NewLocal(path)
	if src.Path() != path {
		t.Fatalf("Path = %s", src.Path())
	}

	rc, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil || string(b) != "cd_mun,pcv\n3550308,1.5\n" {
		t.Fatalf("read %q, %v", b, err)
	}
}

func TestLocal_OpenErrors(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope.csv")
	rc, err := NewLocal(missing).Open(context.Background())
	if rc != nil || !errors.Is(err, os.ErrNotExist) || !strings.Contains(err.Error(), missing) {
		t.Fatalf("missing file: rc=%v err=%v", rc, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLocal(missing).Open(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled: err = %v", err)
	}
}
