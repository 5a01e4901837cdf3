package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"whisper-studio/internal/domain"
)

// CLILoader builds handles backed by the whisperx command line tool, with
// ffmpeg used for audio window extraction.
type CLILoader struct {
	whisperxPath string
	ffmpegPath   string
	ffprobePath  string
	runner       commandRunner
	lookPath     func(string) (string, error)
	mkdirTemp    func(dir, pattern string) (string, error)
	removeAll    func(path string) error
	readDir      func(name string) ([]os.DirEntry, error)
	readFile     func(name string) ([]byte, error)
	log          zerolog.Logger
}

// NewCLILoader constructs the production loader with OS dependencies.
func NewCLILoader(log zerolog.Logger) *CLILoader {
	return &CLILoader{
		whisperxPath: "whisperx",
		ffmpegPath:   "ffmpeg",
		ffprobePath:  "ffprobe",
		runner:       &execRunner{},
		lookPath:     exec.LookPath,
		mkdirTemp:    os.MkdirTemp,
		removeAll:    os.RemoveAll,
		readDir:      os.ReadDir,
		readFile:     os.ReadFile,
		log:          log,
	}
}

// Load verifies the external tools are present and binds a handle to the
// resolved device and precision. The model weights themselves are fetched by
// the tool on first use, or ahead of time by cmd/fetch-models.
func (l *CLILoader) Load(ctx context.Context, spec Spec) (Handle, error) {
	for _, tool := range []string{l.whisperxPath, l.ffmpegPath, l.ffprobePath} {
		if _, err := l.lookPath(tool); err != nil {
			return nil, &Error{
				Kind: KindUnavailable,
				Op:   "load model",
				Msg:  fmt.Sprintf("required tool not found in PATH: %s", tool),
				Err:  err,
			}
		}
	}

	if spec.ModelID == "" {
		return nil, &Error{Kind: KindInternal, Op: "load model", Msg: "model id is required"}
	}

	l.log.Info().
		Str("model", spec.ModelID).
		Str("device", string(spec.Device)).
		Str("precision", string(spec.Precision)).
		Msg("model handle ready")

	return &cliHandle{loader: l, spec: spec}, nil
}

// cliHandle drives whisperx for one loaded model configuration.
type cliHandle struct {
	loader *CLILoader
	spec   Spec
}

// segmentFile mirrors the JSON document whisperx writes next to the audio.
type segmentFile struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
	Language string `json:"language"`
}

// Transcribe runs whisperx once over the whole file without alignment.
func (h *cliHandle) Transcribe(ctx context.Context, audioPath string, opts Options) (domain.Transcription, error) {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 1
	}

	args := h.baseArgs(audioPath, batch, opts.Language)
	args = append(args, "--no_align")

	doc, err := h.runToJSON(ctx, "transcribe", args)
	if err != nil {
		return domain.Transcription{}, err
	}
	return docToTranscription(doc, false), nil
}

// TranscribeWindow extracts one window into a scratch WAV, transcribes it at
// batch size 1, and removes the scratch file before returning.
func (h *cliHandle) TranscribeWindow(ctx context.Context, audioPath string, offset, length time.Duration) (string, error) {
	scratchDir, err := h.loader.mkdirTemp("", "whisper-studio-window-*")
	if err != nil {
		return "", &Error{Kind: KindInternal, Op: "extract window", Msg: "failed to create scratch directory", Err: err}
	}
	defer func() { _ = h.loader.removeAll(scratchDir) }()

	windowPath := filepath.Join(scratchDir, "window.wav")
	extractArgs := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-ss", formatSeconds(offset),
		"-t", formatSeconds(length),
		"-i", audioPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		windowPath,
	}
	result, runErr := h.loader.runner.Run(ctx, h.loader.ffmpegPath, extractArgs...)
	if runErr != nil {
		return "", classify("extract window", result.combined(), runErr)
	}

	args := h.baseArgs(windowPath, 1, "")
	args = append(args, "--no_align")
	doc, err := h.runToJSON(ctx, "transcribe window", args)
	if err != nil {
		return "", err
	}

	texts := make([]string, 0, len(doc.Segments))
	for _, seg := range doc.Segments {
		if t := strings.TrimSpace(seg.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, " "), nil
}

// Align reruns whisperx with the alignment stage enabled and returns the
// timestamped segments. The detected language steers alignment model choice.
func (h *cliHandle) Align(ctx context.Context, audioPath string, _ []domain.Segment, language string) ([]domain.Segment, error) {
	args := h.baseArgs(audioPath, 1, language)

	doc, err := h.runToJSON(ctx, "align", args)
	if err != nil {
		return nil, err
	}
	return docToTranscription(doc, true).Segments, nil
}

// AudioDuration probes the container play time via ffprobe.
func (h *cliHandle) AudioDuration(ctx context.Context, audioPath string) (time.Duration, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	}

	result, runErr := h.loader.runner.Run(ctx, h.loader.ffprobePath, args...)
	if runErr != nil {
		return 0, classify("probe duration", result.combined(), runErr)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(result.Stdout), 64)
	if err != nil || seconds < 0 {
		return 0, &Error{Kind: KindInternal, Op: "probe duration", Msg: "unreadable duration from ffprobe", Err: err}
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// ReleaseMemory is a no-op: each tool invocation is a separate process whose
// accelerator memory returns to the OS on exit.
func (h *cliHandle) ReleaseMemory() {
	h.loader.log.Debug().Msg("release memory requested on subprocess engine")
}

// Device returns the resolved device this handle is bound to.
func (h *cliHandle) Device() domain.DeviceSelector { return h.spec.Device }

// Precision returns the compute precision this handle is bound to.
func (h *cliHandle) Precision() domain.Precision { return h.spec.Precision }

// Close releases nothing for the subprocess engine.
func (h *cliHandle) Close() error { return nil }

// baseArgs builds the shared whisperx invocation for this handle's spec.
func (h *cliHandle) baseArgs(audioPath string, batch int, language string) []string {
	args := []string{
		audioPath,
		"--model", h.spec.ModelID,
		"--device", string(h.spec.Device),
		"--compute_type", string(h.spec.Precision),
		"--batch_size", strconv.Itoa(batch),
		"--output_format", "json",
	}
	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "--language", lang)
	}
	if h.spec.Token != "" {
		args = append(args, "--hf_token", h.spec.Token)
	}
	return args
}

// runToJSON executes whisperx into a temp output dir and parses the segment
// document it produced.
func (h *cliHandle) runToJSON(ctx context.Context, op string, args []string) (segmentFile, error) {
	outDir, err := h.loader.mkdirTemp("", "whisper-studio-out-*")
	if err != nil {
		return segmentFile{}, &Error{Kind: KindInternal, Op: op, Msg: "failed to create output directory", Err: err}
	}
	defer func() { _ = h.loader.removeAll(outDir) }()

	args = append(args, "--output_dir", outDir)

	started := time.Now()
	result, runErr := h.loader.runner.Run(ctx, h.loader.whisperxPath, args...)
	h.loader.log.Info().
		Str("op", op).
		Int("exitCode", result.ExitCode).
		Dur("elapsed", time.Since(started)).
		Msg("whisperx finished")
	if runErr != nil {
		return segmentFile{}, classify(op, result.combined(), runErr)
	}

	docPath, err := h.findSegmentFile(outDir)
	if err != nil {
		return segmentFile{}, &Error{Kind: KindInternal, Op: op, Msg: "whisperx completed but wrote no segment file", Err: err}
	}

	data, err := h.loader.readFile(docPath)
	if err != nil {
		return segmentFile{}, &Error{Kind: KindInternal, Op: op, Msg: "failed to read segment file", Err: err}
	}

	var doc segmentFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return segmentFile{}, &Error{Kind: KindInternal, Op: op, Msg: "unreadable segment file", Err: err}
	}
	return doc, nil
}

// findSegmentFile locates the JSON document whisperx wrote into outDir.
func (h *cliHandle) findSegmentFile(outDir string) (string, error) {
	entries, err := h.loader.readDir(outDir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			return filepath.Join(outDir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("no json output in %s", outDir)
}

// docToTranscription converts the tool document into the domain result.
func docToTranscription(doc segmentFile, aligned bool) domain.Transcription {
	segments := make([]domain.Segment, 0, len(doc.Segments))
	texts := make([]string, 0, len(doc.Segments))
	for _, seg := range doc.Segments {
		text := strings.TrimSpace(seg.Text)
		segments = append(segments, domain.Segment{
			Start:   seg.Start,
			End:     seg.End,
			Text:    text,
			Aligned: aligned,
		})
		if text != "" {
			texts = append(texts, text)
		}
	}

	return domain.Transcription{
		Segments: segments,
		Language: doc.Language,
		Text:     strings.Join(texts, " "),
	}
}

// normalizeLanguage maps "auto" and empty language to no CLI override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

// formatSeconds renders a duration as fractional seconds for ffmpeg flags.
func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// NewCLILoaderForTests constructs a loader with injectable dependencies.
func NewCLILoaderForTests(
	whisperxPath string,
	ffmpegPath string,
	ffprobePath string,
	runner commandRunner,
	lookPath func(string) (string, error),
	log zerolog.Logger,
) *CLILoader {
	return &CLILoader{
		whisperxPath: whisperxPath,
		ffmpegPath:   ffmpegPath,
		ffprobePath:  ffprobePath,
		runner:       runner,
		lookPath:     lookPath,
		mkdirTemp:    os.MkdirTemp,
		removeAll:    os.RemoveAll,
		readDir:      os.ReadDir,
		readFile:     os.ReadFile,
		log:          log,
	}
}
