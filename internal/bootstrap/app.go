// Package bootstrap wires configuration, model lifecycle, jobs, and the UI
// runtime callbacks into one desktop application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"whisper-studio/internal/cache"
	"whisper-studio/internal/config"
	"whisper-studio/internal/device"
	"whisper-studio/internal/diagnostics"
	"whisper-studio/internal/domain"
	"whisper-studio/internal/engine"
	"whisper-studio/internal/export"
	"whisper-studio/internal/jobs"
	"whisper-studio/internal/lifecycle"
	"whisper-studio/internal/models"
	"whisper-studio/internal/transcribe"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// clipboardNoticeDuration is how long the "Copied!" confirmation stays up
// before reverting.
const clipboardNoticeDuration = 1200 * time.Millisecond

var audioDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Audio files",
		Pattern:     "*.mp3;*.wav;*.m4a;*.ogg;*.flac;*.webm;*.mp4",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// workerRunner isolates the transcription worker behind an interface.
type workerRunner interface {
	Run(ctx context.Context, handle engine.Handle, req transcribe.Request, rep transcribe.Reporter) (domain.Transcription, error)
}

// App wires configuration, model lifecycle, jobs, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Jobs        *jobs.Manager
	Lifecycle   *lifecycle.Manager
	Worker      workerRunner
	Diagnostics domain.DiagnosticReport

	assets  fs.FS
	checker *diagnostics.Checker
	events  *jobs.EventBus
	log     zerolog.Logger

	mu          sync.Mutex
	runtimeCtx  context.Context
	activeJobID string
	copyGen     int
	tokenOnce   sync.Once
}

// New builds the application with persisted settings and startup diagnostics.
func New(log zerolog.Logger) (*App, error) {
	return NewWithAssets(nil, log)
}

// NewWithAssets builds the application and optionally configures embedded
// frontend assets.
func NewWithAssets(assets fs.FS, log zerolog.Logger) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	store := config.NewYAMLStore(filepath.Join(homeDir, ".whisper-studio", "settings.yaml"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	checker := diagnostics.NewChecker()
	app := &App{
		Settings:    settings,
		Store:       store,
		Jobs:        jobs.NewManager(),
		Worker:      transcribe.NewWorker(log),
		Diagnostics: checker.Run(settings),
		assets:      assets,
		checker:     checker,
		events:      jobs.NewEventBus(1000),
		log:         log.With().Str("component", "app").Logger(),
	}
	app.Lifecycle = lifecycle.NewManager(chooseLoader(settings.Backend, log), device.NewExecDetector(), app, log)
	return app, nil
}

// chooseLoader maps the configured backend to an engine loader.
func chooseLoader(backend string, log zerolog.Logger) engine.Loader {
	if backend == "native" {
		return engine.NewNativeLoader(log)
	}
	return engine.NewCLILoader(log)
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Whisper Studio",
		Width:       1080,
		Height:      760,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			a.runtimeCtx = nil
			a.mu.Unlock()
			if err := a.Lifecycle.Close(); err != nil {
				a.log.Warn().Err(err).Msg("close model on shutdown")
			}
		},
		Bind: []interface{}{a},
	})
}

// Startup stores the Wails runtime context, kicks off the initial model load,
// and surfaces the one-time alignment token notice.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	settings := a.Settings
	a.mu.Unlock()

	a.requestLoad(settings)

	a.tokenOnce.Do(func() {
		if settings.Alignment && config.Token() == "" {
			a.publishNotice("Word alignment is enabled but " + config.TokenEnvVar +
				" is not set. Set it to a valid Hugging Face token to download alignment models.")
		}
	})
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.Diagnostics = a.checker.Run(settings)
	report := a.Diagnostics
	a.mu.Unlock()
	return report, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()
	return settings, nil
}

// SaveSettings persists settings and reloads the model when the device or
// model selection changed. Saving never blocks on the load itself.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	previous := a.Settings
	a.Settings = normalized
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(normalized)
	}
	a.mu.Unlock()

	if normalized.Device != previous.Device || normalized.ModelID != previous.ModelID {
		a.requestLoad(normalized)
	}
	return normalized, nil
}

// ReloadModel forces a model load with the current settings.
func (a *App) ReloadModel() error {
	settings, err := a.GetSettings()
	if err != nil {
		return err
	}
	a.requestLoad(settings)
	return nil
}

// ModelState reports the lifecycle state for the UI.
func (a *App) ModelState() string {
	return string(a.Lifecycle.State())
}

// requestLoad hands a load request to the lifecycle manager.
func (a *App) requestLoad(settings domain.Settings) {
	a.Lifecycle.RequestLoad(lifecycle.Request{
		Selector: settings.Device,
		ModelID:  settings.ModelID,
		CacheDir: settings.CacheDir,
		Token:    config.Token(),
	})
}

// LoadStarted implements lifecycle.Listener.
func (a *App) LoadStarted(selector domain.DeviceSelector) {
	a.publishEvent(jobs.Event{
		Type:     jobs.EventTypeProgress,
		Phase:    domain.PhaseLoading,
		Fraction: jobs.IndeterminateFraction,
		Message:  "Loading model...",
	})
}

// LoadSettled implements lifecycle.Listener.
func (a *App) LoadSettled(effective domain.DeviceSelector, precision domain.Precision, err error) {
	if err != nil {
		a.log.Error().Err(err).Msg("model load failed")
		a.publishEvent(jobs.Event{
			Type:    jobs.EventTypeError,
			Phase:   domain.PhaseLoading,
			Message: "Model load failed: " + err.Error(),
		})
		return
	}

	a.publishEvent(jobs.Event{
		Type:     jobs.EventTypeProgress,
		Phase:    domain.PhaseLoading,
		Fraction: 1,
		Message:  fmt.Sprintf("Model ready on %s (%s)", effective, precision),
	})
}

// DeviceFallback implements lifecycle.Listener. It persists the corrected
// device so the settings screen reflects what is actually in use.
func (a *App) DeviceFallback(requested, effective domain.DeviceSelector) {
	a.publishNotice(fmt.Sprintf("No CUDA accelerator found; using %s instead of %s.", effective, requested))

	a.mu.Lock()
	settings := a.Settings
	a.mu.Unlock()
	settings.Device = effective
	if err := a.Store.Save(settings); err != nil {
		a.log.Warn().Err(err).Msg("persist device fallback")
		return
	}
	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()
}

// PickAudioFile opens a native file dialog for audio selection.
func (a *App) PickAudioFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select audio file",
		Filters: audioDialogFilter,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}

// StartTranscription creates a job for the selected file and runs it
// asynchronously. It is rejected while a job runs or the model is unusable.
func (a *App) StartTranscription(audioPath string) (domain.Job, error) {
	if strings.TrimSpace(audioPath) == "" {
		return domain.Job{}, fmt.Errorf("select an audio file first")
	}

	if a.Lifecycle.Loading() {
		return domain.Job{}, fmt.Errorf("model is still loading; wait for it to finish")
	}
	handle, ok := a.Lifecycle.Handle()
	if !ok {
		return domain.Job{}, fmt.Errorf("no model is loaded; load a model first")
	}

	settings, err := a.GetSettings()
	if err != nil {
		return domain.Job{}, err
	}

	jobID := uuid.NewString()
	if err := a.Jobs.Start(jobID); err != nil {
		return domain.Job{}, err
	}

	a.mu.Lock()
	a.activeJobID = jobID
	a.mu.Unlock()

	go a.runJob(jobID, audioPath, handle, settings)
	return a.Jobs.Current(), nil
}

// runJob executes the worker and maps its outcome to job events. Errors from
// the background run are logged in full and surfaced as a short message.
func (a *App) runJob(jobID, audioPath string, handle engine.Handle, settings domain.Settings) {
	req := transcribe.Request{
		AudioPath:     audioPath,
		Policy:        settings.Policy,
		WindowSeconds: settings.WindowSeconds,
		BatchSize:     settings.BatchSize,
		Language:      settings.Language,
		Alignment:     settings.Alignment,
	}

	result, err := a.Worker.Run(context.Background(), handle, req, &jobReporter{app: a, jobID: jobID})
	if err != nil {
		a.log.Error().Err(err).Str("job", jobID).Str("audio", audioPath).Msg("transcription failed")
		_ = a.Jobs.Transition(domain.JobStatusFailed)
		a.publishEvent(jobs.Event{
			JobID:   jobID,
			Type:    jobs.EventTypeError,
			Phase:   domain.PhaseFailed,
			Message: err.Error(),
		})
		a.clearActiveJob(jobID)
		return
	}

	_ = a.Jobs.Transition(domain.JobStatusDone)
	a.publishEvent(jobs.Event{
		JobID:    jobID,
		Type:     jobs.EventTypeResult,
		Phase:    domain.PhaseComplete,
		Fraction: 1,
		Message:  "Transcription complete",
		Text:     result.Text,
	})
	a.clearActiveJob(jobID)
}

// jobReporter adapts worker progress to job events and status transitions.
type jobReporter struct {
	app   *App
	jobID string
}

func (r *jobReporter) Progress(phase domain.Phase, fraction float64, message string) {
	if phase == domain.PhaseAligning {
		_ = r.app.Jobs.Transition(domain.JobStatusAligning)
	}
	r.app.publishEvent(jobs.Event{
		JobID:    r.jobID,
		Type:     jobs.EventTypeProgress,
		Phase:    phase,
		Fraction: fraction,
		Message:  message,
	})
}

// CurrentJob returns current job metadata and status.
func (a *App) CurrentJob() domain.Job {
	return a.Jobs.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// ExportTranscript asks for a target path and writes the text. Empty text is
// a silent no-op; a cancelled dialog returns an empty path without error.
func (a *App) ExportTranscript(text, audioPath string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	outputDir := a.Settings.OutputDir
	a.mu.Unlock()

	path, err := wailsruntime.SaveFileDialog(ctx, wailsruntime.SaveDialogOptions{
		Title:            "Export transcript",
		DefaultDirectory: outputDir,
		DefaultFilename:  export.DefaultFileName(audioPath),
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(path) == "" {
		return "", nil
	}

	if err := export.WriteTranscript(path, text); err != nil {
		return "", fmt.Errorf("export transcript: %w", err)
	}
	a.publishNotice("Saved to " + path)
	return path, nil
}

// CopyToClipboard places the text on the system clipboard and flashes a
// confirmation that reverts after a short delay. Empty text is a no-op.
func (a *App) CopyToClipboard(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	ctx, err := a.runtimeContext()
	if err != nil {
		return err
	}
	if err := wailsruntime.ClipboardSetText(ctx, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}

	a.mu.Lock()
	a.copyGen++
	gen := a.copyGen
	a.mu.Unlock()

	a.publishNotice("Copied!")
	time.AfterFunc(clipboardNoticeDuration, func() {
		a.mu.Lock()
		stale := gen != a.copyGen
		a.mu.Unlock()
		// A newer copy owns the confirmation now.
		if stale {
			return
		}
		a.publishNotice("Copy to clipboard")
	})
	return nil
}

// ListModels returns the downloadable model catalog with cache status.
func (a *App) ListModels() []domain.ModelOption {
	a.mu.Lock()
	cacheDir := a.Settings.CacheDir
	a.mu.Unlock()
	return models.Catalog(cacheDir)
}

// ClearModelCache deletes the model cache after user confirmation. The
// returned message is empty when the user declines.
func (a *App) ClearModelCache() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	cacheDir := a.Settings.CacheDir
	a.mu.Unlock()

	choice, err := wailsruntime.MessageDialog(ctx, wailsruntime.MessageDialogOptions{
		Type:          wailsruntime.QuestionDialog,
		Title:         "Clear model cache",
		Message:       fmt.Sprintf("Delete all downloaded models under %s? They will be re-downloaded on next use.", cacheDir),
		Buttons:       []string{"Yes", "No"},
		DefaultButton: "No",
	})
	if err != nil {
		return "", err
	}
	if choice != "Yes" {
		return "", nil
	}

	if err := cache.Clear(cacheDir); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return "Model cache is already empty.", nil
		}
		return "", fmt.Errorf("clear model cache: %w", err)
	}

	a.log.Info().Str("dir", cacheDir).Msg("model cache cleared")
	return "Model cache cleared. Restart the application before loading a model again.", nil
}

// publishNotice sends a short informational event.
func (a *App) publishNotice(message string) {
	a.publishEvent(jobs.Event{
		Type:    jobs.EventTypeNotice,
		Message: message,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "job:event", published)
	}
}

// clearActiveJob clears the active marker for a finished job ID.
func (a *App) clearActiveJob(jobID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeJobID == jobID {
		a.activeJobID = ""
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}
