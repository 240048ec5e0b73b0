package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	logx "salonbot/pkg/logx"
)

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	var missing doc
	if err := st.Load(ctx, KeyServices, &missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load missing key: err = %v, want ErrNotFound", err)
	}

	in := doc{Name: "haircut", Count: 3}
	if err := st.Save(ctx, KeyServices, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var out doc
	if err := st.Load(ctx, KeyServices, &out); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}

	// No stray temp file should survive a completed save.
	if _, err := os.Stat(filepath.Join(dir, KeyServices+".json.tmp")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestFileStoreRejectsBadKeys(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	for _, key := range []string{"", "../escape", "UPPER", "has space"} {
		if err := st.Save(context.Background(), key, 1); err == nil {
			t.Fatalf("Save(%q) accepted invalid key", key)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "bolt", Path: t.TempDir()}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
