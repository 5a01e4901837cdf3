package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultFileName checks the suggested export naming scheme.
func TestDefaultFileName(t *testing.T) {
	cases := []struct {
		audio string
		want  string
	}{
		{"/music/sample.wav", "transcription_sample.txt"},
		{"interview.m4a", "transcription_interview.txt"},
		{"no-extension", "transcription_no-extension.txt"},
		{".", "transcription_transcript.txt"},
	}

	for _, tc := range cases {
		if got := DefaultFileName(tc.audio); got != tc.want {
			t.Fatalf("DefaultFileName(%q) = %q, want %q", tc.audio, got, tc.want)
		}
	}
}

// TestWriteTranscriptPersistsText checks the happy path.
func TestWriteTranscriptPersistsText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "transcription_sample.txt")

	if err := WriteTranscript(path, "hello world"); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("content = %q", data)
	}
}

// TestWriteTranscriptEmptyIsNoOp checks no file appears for empty text.
func TestWriteTranscriptEmptyIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcription_sample.txt")

	if err := WriteTranscript(path, "   \n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file should not exist, stat err = %v", err)
	}
}
