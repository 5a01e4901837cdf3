//go:build whisper_cpp

package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"time"

	whisperpkg "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog"

	"whisper-studio/internal/audio"
	"whisper-studio/internal/domain"
)

// NativeLoader builds in-process handles backed by the whisper.cpp bindings.
// It only consumes 16 kHz mono WAV input and has no alignment stage, so the
// aligning path reports KindUnavailable.
type NativeLoader struct {
	log zerolog.Logger
}

// NewNativeLoader constructs the in-process loader.
func NewNativeLoader(log zerolog.Logger) *NativeLoader {
	return &NativeLoader{log: log}
}

// Load opens the ggml model file for the requested spec. The model file is
// expected under the cache directory as ggml-<model id>.bin.
func (l *NativeLoader) Load(ctx context.Context, spec Spec) (Handle, error) {
	modelPath := filepath.Join(spec.CacheDir, "ggml-"+spec.ModelID+".bin")
	if _, err := os.Stat(modelPath); err != nil {
		return nil, &Error{
			Kind: KindUnavailable,
			Op:   "load model",
			Msg:  fmt.Sprintf("model file not found: %s (run fetch-models first)", modelPath),
			Err:  err,
		}
	}

	model, err := whisperpkg.New(modelPath)
	if err != nil {
		return nil, classify("load model", err.Error(), err)
	}

	l.log.Info().Str("model", modelPath).Str("device", string(spec.Device)).Msg("native model loaded")
	return &nativeHandle{model: model, spec: spec, log: l.log}, nil
}

// nativeHandle runs whisper.cpp in process. Model access is serialized, the
// bindings are not safe for concurrent Process calls.
type nativeHandle struct {
	mu    sync.Mutex
	model whisperpkg.Model
	spec  Spec
	log   zerolog.Logger
}

// Transcribe decodes the WAV file and processes all samples in one call.
func (h *nativeHandle) Transcribe(ctx context.Context, audioPath string, opts Options) (domain.Transcription, error) {
	samples, rate, err := audio.DecodeFloat32(audioPath)
	if err != nil {
		return domain.Transcription{}, &Error{Kind: KindInternal, Op: "transcribe", Msg: "decode audio", Err: err}
	}
	if rate != audio.WhisperSampleRate {
		return domain.Transcription{}, &Error{
			Kind: KindInternal,
			Op:   "transcribe",
			Msg:  fmt.Sprintf("native engine needs 16 kHz audio, got %d Hz", rate),
		}
	}

	segments, language, err := h.process(samples, opts.Language)
	if err != nil {
		return domain.Transcription{}, err
	}

	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.Text != "" {
			texts = append(texts, seg.Text)
		}
	}
	return domain.Transcription{
		Segments: segments,
		Language: language,
		Text:     strings.Join(texts, " "),
	}, nil
}

// TranscribeWindow slices the decoded samples to the requested window and
// processes only that slice. The slice is scratch state on the Go heap, so
// there is nothing to delete afterwards.
func (h *nativeHandle) TranscribeWindow(ctx context.Context, audioPath string, offset, length time.Duration) (string, error) {
	samples, rate, err := audio.DecodeFloat32(audioPath)
	if err != nil {
		return "", &Error{Kind: KindInternal, Op: "transcribe window", Msg: "decode audio", Err: err}
	}

	window := audio.Window(samples, rate, offset, length)
	if len(window) == 0 {
		return "", nil
	}

	segments, _, err := h.process(window, "")
	if err != nil {
		return "", err
	}

	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.Text != "" {
			texts = append(texts, seg.Text)
		}
	}
	return strings.Join(texts, " "), nil
}

// Align is not provided by whisper.cpp.
func (h *nativeHandle) Align(ctx context.Context, audioPath string, segments []domain.Segment, language string) ([]domain.Segment, error) {
	return nil, &Error{
		Kind: KindUnavailable,
		Op:   "align",
		Msg:  "word alignment requires the whisperx backend",
	}
}

// AudioDuration reads the WAV header.
func (h *nativeHandle) AudioDuration(ctx context.Context, audioPath string) (time.Duration, error) {
	d, err := audio.Duration(audioPath)
	if err != nil {
		return 0, &Error{Kind: KindInternal, Op: "probe duration", Msg: "decode audio", Err: err}
	}
	return d, nil
}

// ReleaseMemory nudges the Go runtime; the model weights stay resident until
// Close.
func (h *nativeHandle) ReleaseMemory() {
	goruntime.GC()
}

// Device returns the resolved device this handle is bound to.
func (h *nativeHandle) Device() domain.DeviceSelector { return h.spec.Device }

// Precision returns the compute precision this handle is bound to.
func (h *nativeHandle) Precision() domain.Precision { return h.spec.Precision }

// Close releases the model.
func (h *nativeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.model != nil {
		h.model.Close()
		h.model = nil
	}
	return nil
}

// process runs one whisper.cpp pass over the samples.
func (h *nativeHandle) process(samples []float32, language string) ([]domain.Segment, string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.model == nil {
		return nil, "", &Error{Kind: KindUnavailable, Op: "transcribe", Msg: "model handle is closed"}
	}

	wctx, err := h.model.NewContext()
	if err != nil {
		return nil, "", classify("transcribe", err.Error(), err)
	}
	wctx.SetThreads(uint(goruntime.NumCPU()))
	if lang := normalizeLanguage(language); lang != "" {
		_ = wctx.SetLanguage(lang)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, "", classify("transcribe", err.Error(), err)
	}

	var segments []domain.Segment
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			if err == io.EOF {
				break
			}
			h.log.Warn().Err(err).Msg("error reading segment")
			break
		}
		segments = append(segments, domain.Segment{
			Start: seg.Start.Seconds(),
			End:   seg.End.Seconds(),
			Text:  strings.TrimSpace(seg.Text),
		})
	}

	lang := wctx.Language()
	if lang == "" {
		lang = wctx.DetectedLanguage()
	}
	return segments, lang, nil
}
