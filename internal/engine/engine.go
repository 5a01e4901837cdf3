// Package engine is the boundary to the external speech models. Everything
// above it works with typed results and error kinds; everything below it is
// tool invocation detail.
package engine

import (
	"context"
	"time"

	"whisper-studio/internal/domain"
)

// Spec describes one model load request. Device must already be resolved to
// cpu or cuda before it reaches the engine.
type Spec struct {
	ModelID   string
	Device    domain.DeviceSelector
	Precision domain.Precision
	CacheDir  string
	Token     string
}

// Options tune a single transcription call.
type Options struct {
	BatchSize int
	Language  string
}

// Handle is a loaded model bound to one device and precision. A handle is
// replaced wholesale when the device selection changes, never mutated.
type Handle interface {
	// Transcribe runs the model once over the whole file.
	Transcribe(ctx context.Context, audioPath string, opts Options) (domain.Transcription, error)
	// TranscribeWindow runs the model over one time window of the file and
	// returns that window's text. Scratch resources for the window are
	// released before returning, success or failure.
	TranscribeWindow(ctx context.Context, audioPath string, offset, length time.Duration) (string, error)
	// Align maps the given segments to word-level timestamps.
	Align(ctx context.Context, audioPath string, segments []domain.Segment, language string) ([]domain.Segment, error)
	// AudioDuration reports the play time of a decodable input file.
	AudioDuration(ctx context.Context, audioPath string) (time.Duration, error)
	// ReleaseMemory frees retained accelerator memory, best effort.
	ReleaseMemory()
	Device() domain.DeviceSelector
	Precision() domain.Precision
	Close() error
}

// Loader creates handles. Implementations: the whisperx CLI loader and the
// in-process whisper.cpp loader behind the whisper_cpp build tag.
type Loader interface {
	Load(ctx context.Context, spec Spec) (Handle, error)
}
