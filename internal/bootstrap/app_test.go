package bootstrap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"whisper-studio/internal/device"
	"whisper-studio/internal/domain"
	"whisper-studio/internal/engine"
	"whisper-studio/internal/jobs"
	"whisper-studio/internal/lifecycle"
	"whisper-studio/internal/transcribe"
)

// fakeStore keeps settings in memory.
type fakeStore struct {
	mu       sync.Mutex
	settings domain.Settings
	saves    int
}

func (s *fakeStore) Load() (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

func (s *fakeStore) Save(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.saves++
	return nil
}

// fakeHandle satisfies engine.Handle with canned responses.
type fakeHandle struct{}

func (h *fakeHandle) Transcribe(context.Context, string, engine.Options) (domain.Transcription, error) {
	return domain.Transcription{Text: "hello"}, nil
}

func (h *fakeHandle) TranscribeWindow(context.Context, string, time.Duration, time.Duration) (string, error) {
	return "hello", nil
}

func (h *fakeHandle) Align(_ context.Context, _ string, segments []domain.Segment, _ string) ([]domain.Segment, error) {
	return segments, nil
}

func (h *fakeHandle) AudioDuration(context.Context, string) (time.Duration, error) {
	return 10 * time.Second, nil
}

func (h *fakeHandle) ReleaseMemory()                {}
func (h *fakeHandle) Device() domain.DeviceSelector { return domain.DeviceCPU }
func (h *fakeHandle) Precision() domain.Precision   { return domain.PrecisionInt8 }
func (h *fakeHandle) Close() error                  { return nil }

// fakeLoader counts loads and always succeeds.
type fakeLoader struct {
	mu    sync.Mutex
	loads int
}

func (l *fakeLoader) Load(context.Context, engine.Spec) (engine.Handle, error) {
	l.mu.Lock()
	l.loads++
	l.mu.Unlock()
	return &fakeHandle{}, nil
}

func (l *fakeLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

// fakeWorker blocks until released so job overlap can be tested.
type fakeWorker struct {
	release chan struct{}
	result  domain.Transcription
	err     error
}

func (w *fakeWorker) Run(_ context.Context, _ engine.Handle, _ transcribe.Request, rep transcribe.Reporter) (domain.Transcription, error) {
	if w.release != nil {
		<-w.release
	}
	rep.Progress(domain.PhaseTranscribing, 1, "Transcribing... 100%")
	return w.result, w.err
}

// newTestApp wires an App with fakes and a detector with no accelerator.
func newTestApp(t *testing.T, settings domain.Settings, loader engine.Loader, worker workerRunner) (*App, *fakeStore) {
	t.Helper()

	store := &fakeStore{settings: settings}
	app := &App{
		Settings: settings,
		Store:    store,
		Jobs:     jobs.NewManager(),
		Worker:   worker,
		events:   jobs.NewEventBus(100),
		log:      zerolog.Nop(),
	}
	app.Lifecycle = lifecycle.NewManager(loader, device.StaticDetector(false), app, zerolog.Nop())
	return app, store
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testSettings() domain.Settings {
	return domain.Settings{
		Device:        domain.DeviceAuto,
		Policy:        domain.PolicyBatched,
		Language:      "auto",
		ModelID:       "large-v2",
		WindowSeconds: 30,
		BatchSize:     4,
		Backend:       "cli",
		CacheDir:      "/tmp/cache",
		OutputDir:     "/tmp/out",
	}
}

// TestStartTranscriptionRequiresPath checks the empty-selection guard.
func TestStartTranscriptionRequiresPath(t *testing.T) {
	app, _ := newTestApp(t, testSettings(), &fakeLoader{}, &fakeWorker{})

	if _, err := app.StartTranscription("   "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

// TestStartTranscriptionRequiresLoadedModel checks the no-model guard.
func TestStartTranscriptionRequiresLoadedModel(t *testing.T) {
	app, _ := newTestApp(t, testSettings(), &fakeLoader{}, &fakeWorker{})

	if _, err := app.StartTranscription("/audio/sample.wav"); err == nil {
		t.Fatal("expected error before any model load")
	}
}

// TestStartTranscriptionRunsJobToCompletion checks the happy path events.
func TestStartTranscriptionRunsJobToCompletion(t *testing.T) {
	worker := &fakeWorker{result: domain.Transcription{Text: "hello world"}}
	app, _ := newTestApp(t, testSettings(), &fakeLoader{}, worker)

	app.requestLoad(app.Settings)
	waitFor(t, "model ready", func() bool {
		_, ok := app.Lifecycle.Handle()
		return ok
	})

	job, err := app.StartTranscription("/audio/sample.wav")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if job.Status != domain.JobStatusTranscribing {
		t.Fatalf("job status = %s", job.Status)
	}

	waitFor(t, "job done", func() bool {
		return app.CurrentJob().Status == domain.JobStatusDone
	})

	var result *jobs.Event
	for _, event := range app.JobEvents(0) {
		if event.Type == jobs.EventTypeResult {
			e := event
			result = &e
		}
	}
	if result == nil {
		t.Fatal("no result event published")
	}
	if result.Text != "hello world" {
		t.Fatalf("result text = %q", result.Text)
	}
}

// TestStartTranscriptionRejectsSecondJob checks the single-job guard.
func TestStartTranscriptionRejectsSecondJob(t *testing.T) {
	worker := &fakeWorker{release: make(chan struct{})}
	app, _ := newTestApp(t, testSettings(), &fakeLoader{}, worker)

	app.requestLoad(app.Settings)
	waitFor(t, "model ready", func() bool {
		_, ok := app.Lifecycle.Handle()
		return ok
	})

	if _, err := app.StartTranscription("/audio/a.wav"); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if _, err := app.StartTranscription("/audio/b.wav"); !errors.Is(err, jobs.ErrJobAlreadyRunning) {
		t.Fatalf("second start err = %v, want ErrJobAlreadyRunning", err)
	}

	close(worker.release)
	waitFor(t, "job done", func() bool {
		return app.CurrentJob().Status == domain.JobStatusDone
	})
}

// TestJobFailurePublishesErrorEvent checks failure mapping.
func TestJobFailurePublishesErrorEvent(t *testing.T) {
	worker := &fakeWorker{err: errors.New("decode failed")}
	app, _ := newTestApp(t, testSettings(), &fakeLoader{}, worker)

	app.requestLoad(app.Settings)
	waitFor(t, "model ready", func() bool {
		_, ok := app.Lifecycle.Handle()
		return ok
	})

	if _, err := app.StartTranscription("/audio/sample.wav"); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, "job failed", func() bool {
		return app.CurrentJob().Status == domain.JobStatusFailed
	})

	found := false
	for _, event := range app.JobEvents(0) {
		if event.Type == jobs.EventTypeError && event.Message == "decode failed" {
			found = true
		}
	}
	if !found {
		t.Fatal("error event not published")
	}
}

// TestSaveSettingsReloadsOnDeviceChange checks a device edit triggers a load.
func TestSaveSettingsReloadsOnDeviceChange(t *testing.T) {
	loader := &fakeLoader{}
	app, _ := newTestApp(t, testSettings(), loader, &fakeWorker{})

	settings := app.Settings
	settings.OutputDir = "/tmp/elsewhere"
	if _, err := app.SaveSettings(settings); err != nil {
		t.Fatalf("save: %v", err)
	}
	if loader.count() != 0 {
		t.Fatalf("loads after unrelated edit = %d, want 0", loader.count())
	}

	settings.Device = domain.DeviceCPU
	if _, err := app.SaveSettings(settings); err != nil {
		t.Fatalf("save: %v", err)
	}
	waitFor(t, "reload", func() bool { return loader.count() == 1 })
}

// TestDeviceFallbackPersistsCorrectedSelector checks cuda->cpu correction.
func TestDeviceFallbackPersistsCorrectedSelector(t *testing.T) {
	settings := testSettings()
	settings.Device = domain.DeviceCUDA
	app, store := newTestApp(t, settings, &fakeLoader{}, &fakeWorker{})

	app.requestLoad(app.Settings)
	waitFor(t, "model ready", func() bool {
		_, ok := app.Lifecycle.Handle()
		return ok
	})

	waitFor(t, "persisted fallback", func() bool {
		persisted, _ := store.Load()
		return persisted.Device == domain.DeviceCPU
	})

	found := false
	for _, event := range app.JobEvents(0) {
		if event.Type == jobs.EventTypeNotice {
			found = true
		}
	}
	if !found {
		t.Fatal("fallback notice not published")
	}
}

// TestAutoResolutionStaysSilent checks auto->cpu produces no fallback notice.
func TestAutoResolutionStaysSilent(t *testing.T) {
	app, _ := newTestApp(t, testSettings(), &fakeLoader{}, &fakeWorker{})

	app.requestLoad(app.Settings)
	waitFor(t, "model ready", func() bool {
		_, ok := app.Lifecycle.Handle()
		return ok
	})

	for _, event := range app.JobEvents(0) {
		if event.Type == jobs.EventTypeNotice {
			t.Fatalf("unexpected notice: %+v", event)
		}
	}
}

// TestCopyToClipboardEmptyIsNoOp checks nothing happens for empty text.
func TestCopyToClipboardEmptyIsNoOp(t *testing.T) {
	app, _ := newTestApp(t, testSettings(), &fakeLoader{}, &fakeWorker{})

	if err := app.CopyToClipboard("  "); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if events := app.JobEvents(0); len(events) != 0 {
		t.Fatalf("events = %d, want 0", len(events))
	}
}

// TestExportTranscriptEmptyIsNoOp checks no dialog opens for empty text.
func TestExportTranscriptEmptyIsNoOp(t *testing.T) {
	app, _ := newTestApp(t, testSettings(), &fakeLoader{}, &fakeWorker{})

	path, err := app.ExportTranscript("", "/audio/sample.wav")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if path != "" {
		t.Fatalf("path = %q, want empty", path)
	}
}
