// Package export persists finished transcriptions. It applies no
// transformation to the text.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFileName builds the suggested export name from the audio file,
// e.g. /music/sample.wav -> transcription_sample.txt.
func DefaultFileName(audioPath string) string {
	base := filepath.Base(audioPath)
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "transcript"
	}
	return "transcription_" + name + ".txt"
}

// WriteTranscript writes UTF-8 text to path. Empty text is a no-op: there is
// nothing to export and no file should appear.
func WriteTranscript(path, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("export path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	return os.WriteFile(path, []byte(text), 0o644)
}
