package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestClearRemovesDirectoryTree checks recursive deletion.
func TestClearRemovesDirectoryTree(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "hub")
	if err := os.MkdirAll(filepath.Join(dir, "models--align", "snapshots"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "models--align", "weights.bin"), []byte("w"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := Clear(dir); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("cache still present, stat err = %v", err)
	}
}

// TestClearMissingDirectoryReturnsNotFound checks the already-empty case.
func TestClearMissingDirectoryReturnsNotFound(t *testing.T) {
	err := Clear(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
