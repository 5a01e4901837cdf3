// Package transcribe runs one transcription job over a loaded model handle.
// It owns the two processing policies and the alignment pass; it never
// replaces the handle it is given.
package transcribe

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"whisper-studio/internal/domain"
	"whisper-studio/internal/engine"
	"whisper-studio/internal/jobs"
)

// Reporter is a one-way progress sink. Implementations marshal the values
// to UI-visible state; the worker never blocks on it.
type Reporter interface {
	Progress(phase domain.Phase, fraction float64, message string)
}

// Request describes one transcription run.
type Request struct {
	AudioPath     string
	Policy        domain.Policy
	WindowSeconds int
	BatchSize     int
	Language      string
	Alignment     bool
}

// Worker executes transcription requests against a ready handle.
type Worker struct {
	log zerolog.Logger
}

// NewWorker creates a worker.
func NewWorker(log zerolog.Logger) *Worker {
	return &Worker{log: log}
}

// Run executes the request under the configured policy. Accelerator memory
// is reclaimed after every attempt, success or failure.
func (w *Worker) Run(ctx context.Context, handle engine.Handle, req Request, rep Reporter) (domain.Transcription, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return domain.Transcription{}, fmt.Errorf("audio path is required")
	}

	defer handle.ReleaseMemory()

	switch req.Policy {
	case domain.PolicyChunked:
		return w.runChunked(ctx, handle, req, rep)
	case domain.PolicyBatched:
		return w.runBatched(ctx, handle, req, rep)
	default:
		return domain.Transcription{}, fmt.Errorf("unknown policy: %s", req.Policy)
	}
}

// runChunked splits the audio into fixed windows and transcribes them
// strictly in order. A failing window aborts the remaining ones; the scratch
// state of each window is released by the engine before the next begins.
func (w *Worker) runChunked(ctx context.Context, handle engine.Handle, req Request, rep Reporter) (domain.Transcription, error) {
	windowSeconds := req.WindowSeconds
	if windowSeconds <= 0 {
		windowSeconds = 30
	}
	window := time.Duration(windowSeconds) * time.Second

	total, err := handle.AudioDuration(ctx, req.AudioPath)
	if err != nil {
		return domain.Transcription{}, fmt.Errorf("probe audio duration: %w", err)
	}

	count := int(math.Ceil(total.Seconds() / window.Seconds()))
	w.log.Info().
		Str("audio", req.AudioPath).
		Dur("duration", total).
		Int("windows", count).
		Msg("chunked transcription starting")

	segments := make([]domain.Segment, 0, count)
	for i := 0; i < count; i++ {
		offset := time.Duration(i) * window
		text, err := handle.TranscribeWindow(ctx, req.AudioPath, offset, window)
		if err != nil {
			return domain.Transcription{}, fmt.Errorf("window %d/%d: %w", i+1, count, err)
		}

		segments = append(segments, domain.Segment{Text: strings.TrimSpace(text)})
		fraction := float64(i+1) / float64(count)
		rep.Progress(domain.PhaseTranscribing, fraction,
			fmt.Sprintf("Transcribing... %.0f%%", fraction*100))
	}

	return domain.Transcription{
		Segments: segments,
		Text:     FormatSegments(segments),
	}, nil
}

// runBatched issues one batched call, retrying exactly once at batch size 1
// when the failure is memory exhaustion, then optionally aligns.
func (w *Worker) runBatched(ctx context.Context, handle engine.Handle, req Request, rep Reporter) (domain.Transcription, error) {
	batch := req.BatchSize
	if batch <= 0 {
		batch = 4
	}

	rep.Progress(domain.PhaseTranscribing, jobs.IndeterminateFraction,
		"Transcribing... This may take a while for long files")

	result, err := handle.Transcribe(ctx, req.AudioPath, engine.Options{
		BatchSize: batch,
		Language:  req.Language,
	})
	if err != nil {
		if !engine.IsOOM(err) {
			return domain.Transcription{}, err
		}

		w.log.Warn().Err(err).Msg("out of memory, retrying at batch size 1")
		rep.Progress(domain.PhaseTranscribing, jobs.IndeterminateFraction,
			"Out of memory detected. Retrying with lower settings...")
		handle.ReleaseMemory()

		result, err = handle.Transcribe(ctx, req.AudioPath, engine.Options{
			BatchSize: 1,
			Language:  req.Language,
		})
		if err != nil {
			return domain.Transcription{}, err
		}
	}

	if req.Alignment {
		aligned, err := w.align(ctx, handle, req, result, rep)
		if err != nil {
			return domain.Transcription{}, err
		}
		result.Segments = aligned
	}

	result.Text = FormatSegments(result.Segments)
	return result, nil
}

// align runs the word-alignment pass over the produced segments. The two
// known failure modes are re-raised with a remedial message instead of the
// raw backend error.
func (w *Worker) align(ctx context.Context, handle engine.Handle, req Request, result domain.Transcription, rep Reporter) ([]domain.Segment, error) {
	handle.ReleaseMemory()
	rep.Progress(domain.PhaseAligning, jobs.IndeterminateFraction, "Aligning...")

	language := result.Language
	if language == "" {
		language = req.Language
	}

	aligned, err := handle.Align(ctx, req.AudioPath, result.Segments, language)
	// Drop the alignment model's accelerator memory whether or not the
	// pass succeeded.
	handle.ReleaseMemory()
	if err != nil {
		switch engine.KindOf(err) {
		case engine.KindCorruptModel:
			return nil, fmt.Errorf(
				"alignment model appears corrupted; use Clear Cache and try again: %w", err)
		case engine.KindAuth:
			return nil, fmt.Errorf(
				"alignment authentication failed; set the HF_TOKEN environment variable to a valid Hugging Face token and restart the application: %w", err)
		default:
			return nil, err
		}
	}

	return aligned, nil
}
