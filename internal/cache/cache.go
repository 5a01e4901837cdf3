// Package cache manages the downloaded model weight directory.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when the cache directory does not exist; callers
// report it as already-empty rather than a failure.
var ErrNotFound = errors.New("cache directory not found")

// DefaultDir returns the Hugging Face hub cache location.
func DefaultDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".cache", "huggingface", "hub")
}

// Clear recursively deletes the cache directory. Destructive: callers must
// obtain explicit user confirmation first, and the application needs a
// restart afterwards so no stale handle points into the removed tree.
func Clear(dir string) error {
	if dir == "" {
		return fmt.Errorf("cache directory is required")
	}

	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("check cache directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove cache directory: %w", err)
	}
	return nil
}
