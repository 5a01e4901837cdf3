package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"whisper-studio/internal/domain"
)

// fakeRunner simulates command execution order and outcomes.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (commandResult, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	if f.run == nil {
		return commandResult{}, nil
	}
	return f.run(ctx, name, args...)
}

func testLoader(t *testing.T, runner commandRunner) *CLILoader {
	t.Helper()
	return NewCLILoaderForTests(
		"whisperx", "ffmpeg", "ffprobe",
		runner,
		func(string) (string, error) { return "/usr/bin/tool", nil },
		zerolog.Nop(),
	)
}

func mustLoad(t *testing.T, loader *CLILoader) Handle {
	t.Helper()
	handle, err := loader.Load(context.Background(), Spec{
		ModelID:   "large-v2",
		Device:    domain.DeviceCPU,
		Precision: domain.PrecisionInt8,
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return handle
}

func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func hasArg(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

// TestLoadFailsWhenToolMissing checks the unavailable kind on a bare PATH.
func TestLoadFailsWhenToolMissing(t *testing.T) {
	loader := NewCLILoaderForTests(
		"whisperx", "ffmpeg", "ffprobe",
		&fakeRunner{},
		func(string) (string, error) { return "", errors.New("not found") },
		zerolog.Nop(),
	)

	_, err := loader.Load(context.Background(), Spec{ModelID: "large-v2", Device: domain.DeviceCPU})
	if KindOf(err) != KindUnavailable {
		t.Fatalf("kind = %s, want unavailable", KindOf(err))
	}
}

// TestTranscribeParsesSegmentDocument checks the full happy path.
func TestTranscribeParsesSegmentDocument(t *testing.T) {
	var seenArgs []string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			if name != "whisperx" {
				t.Fatalf("command = %q, want whisperx", name)
			}
			seenArgs = append([]string{}, args...)
			outDir := argValue(args, "--output_dir")
			doc := `{"segments":[{"start":0,"end":2.5,"text":" hello "},{"start":2.5,"end":4,"text":"world"}],"language":"en"}`
			if err := os.WriteFile(filepath.Join(outDir, "sample.json"), []byte(doc), 0o644); err != nil {
				t.Fatalf("write doc: %v", err)
			}
			return commandResult{Stdout: "ok"}, nil
		},
	}

	handle := mustLoad(t, testLoader(t, runner))
	result, err := handle.Transcribe(context.Background(), "/tmp/sample.wav", Options{BatchSize: 4, Language: "auto"})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}

	if result.Text != "hello world" {
		t.Fatalf("text = %q, want %q", result.Text, "hello world")
	}
	if result.Language != "en" {
		t.Fatalf("language = %q, want en", result.Language)
	}
	if len(result.Segments) != 2 || result.Segments[0].Aligned {
		t.Fatalf("segments = %+v", result.Segments)
	}
	if argValue(seenArgs, "--batch_size") != "4" {
		t.Fatalf("batch size arg missing: %v", seenArgs)
	}
	if !hasArg(seenArgs, "--no_align") {
		t.Fatalf("expected --no_align, args = %v", seenArgs)
	}
	if hasArg(seenArgs, "--language") {
		t.Fatalf("auto language should not pass --language, args = %v", seenArgs)
	}
}

// TestTranscribeClassifiesOOM checks stderr sniffing stays at the boundary.
func TestTranscribeClassifiesOOM(t *testing.T) {
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			return commandResult{Stderr: "RuntimeError: CUDA out of memory", ExitCode: 1}, errors.New("exit status 1")
		},
	}

	handle := mustLoad(t, testLoader(t, runner))
	_, err := handle.Transcribe(context.Background(), "/tmp/sample.wav", Options{BatchSize: 4})
	if !IsOOM(err) {
		t.Fatalf("expected OOM kind, got %v (kind %s)", err, KindOf(err))
	}
}

// TestTranscribeWindowExtractsThenTranscribes checks the two-step window flow
// and scratch cleanup.
func TestTranscribeWindowExtractsThenTranscribes(t *testing.T) {
	var windowPath string
	call := 0
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			call++
			switch call {
			case 1:
				if name != "ffmpeg" {
					t.Fatalf("command 1 = %q, want ffmpeg", name)
				}
				if argValue(args, "-ss") != "30.000" || argValue(args, "-t") != "30.000" {
					t.Fatalf("window bounds args = %v", args)
				}
				windowPath = args[len(args)-1]
				if err := os.WriteFile(windowPath, []byte("wav"), 0o644); err != nil {
					t.Fatalf("write window: %v", err)
				}
				return commandResult{}, nil
			case 2:
				if name != "whisperx" {
					t.Fatalf("command 2 = %q, want whisperx", name)
				}
				if args[0] != windowPath {
					t.Fatalf("transcribed %q, want window file %q", args[0], windowPath)
				}
				if argValue(args, "--batch_size") != "1" {
					t.Fatalf("window batch size args = %v", args)
				}
				outDir := argValue(args, "--output_dir")
				doc := `{"segments":[{"start":0,"end":2,"text":" chunk text "}],"language":"en"}`
				if err := os.WriteFile(filepath.Join(outDir, "window.json"), []byte(doc), 0o644); err != nil {
					t.Fatalf("write doc: %v", err)
				}
				return commandResult{}, nil
			default:
				t.Fatalf("unexpected call %d", call)
				return commandResult{}, nil
			}
		},
	}

	handle := mustLoad(t, testLoader(t, runner))
	text, err := handle.TranscribeWindow(context.Background(), "/tmp/long.mp3", 30*time.Second, 30*time.Second)
	if err != nil {
		t.Fatalf("transcribe window: %v", err)
	}
	if text != "chunk text" {
		t.Fatalf("text = %q", text)
	}
	if _, err := os.Stat(filepath.Dir(windowPath)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("scratch dir not removed, stat err = %v", err)
	}
}

// TestTranscribeWindowCleansScratchOnFailure checks cleanup on the error path.
func TestTranscribeWindowCleansScratchOnFailure(t *testing.T) {
	var windowPath string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			if name == "ffmpeg" {
				windowPath = args[len(args)-1]
				return commandResult{}, nil
			}
			return commandResult{Stderr: "boom", ExitCode: 1}, errors.New("exit status 1")
		},
	}

	handle := mustLoad(t, testLoader(t, runner))
	if _, err := handle.TranscribeWindow(context.Background(), "/tmp/long.mp3", 0, 30*time.Second); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(filepath.Dir(windowPath)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("scratch dir not removed after failure, stat err = %v", err)
	}
}

// TestAlignMarksSegmentsAndPassesLanguage checks the alignment invocation.
func TestAlignMarksSegmentsAndPassesLanguage(t *testing.T) {
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			if hasArg(args, "--no_align") {
				t.Fatalf("alignment run must not disable alignment, args = %v", args)
			}
			if argValue(args, "--language") != "en" {
				t.Fatalf("language arg = %q, want en", argValue(args, "--language"))
			}
			if argValue(args, "--hf_token") != "tok" {
				t.Fatalf("token arg missing: %v", args)
			}
			outDir := argValue(args, "--output_dir")
			doc := `{"segments":[{"start":65.25,"end":66.5,"text":" aligned "}],"language":"en"}`
			if err := os.WriteFile(filepath.Join(outDir, "a.json"), []byte(doc), 0o644); err != nil {
				t.Fatalf("write doc: %v", err)
			}
			return commandResult{}, nil
		},
	}

	loader := testLoader(t, runner)
	handle, err := loader.Load(context.Background(), Spec{
		ModelID:   "large-v2",
		Device:    domain.DeviceCPU,
		Precision: domain.PrecisionInt8,
		Token:     "tok",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	segments, err := handle.Align(context.Background(), "/tmp/sample.wav", nil, "en")
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if len(segments) != 1 || !segments[0].Aligned {
		t.Fatalf("segments = %+v", segments)
	}
	if segments[0].Start != 65.25 {
		t.Fatalf("start = %v, want 65.25", segments[0].Start)
	}
}

// TestAudioDurationParsesProbeOutput checks ffprobe invocation and parsing.
func TestAudioDurationParsesProbeOutput(t *testing.T) {
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			if name != "ffprobe" {
				t.Fatalf("command = %q, want ffprobe", name)
			}
			return commandResult{Stdout: "95.500000\n"}, nil
		},
	}

	handle := mustLoad(t, testLoader(t, runner))
	d, err := handle.AudioDuration(context.Background(), "/tmp/long.mp3")
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	if d != 95500*time.Millisecond {
		t.Fatalf("duration = %v, want 1m35.5s", d)
	}
}

// TestBaseArgsOmitEmptyToken checks no stray --hf_token flag.
func TestBaseArgsOmitEmptyToken(t *testing.T) {
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			if hasArg(args, "--hf_token") {
				t.Fatalf("token flag present without token: %v", args)
			}
			outDir := argValue(args, "--output_dir")
			if err := os.WriteFile(filepath.Join(outDir, "x.json"), []byte(`{"segments":[]}`), 0o644); err != nil {
				t.Fatalf("write doc: %v", err)
			}
			return commandResult{}, nil
		},
	}

	handle := mustLoad(t, testLoader(t, runner))
	if _, err := handle.Transcribe(context.Background(), "/tmp/a.wav", Options{BatchSize: 1}); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if !strings.Contains(string(handle.Precision()), "int8") {
		t.Fatalf("precision = %s", handle.Precision())
	}
}
