// Package lifecycle owns the loaded model handle and the async load state
// machine: Idle -> Loading -> {Ready, Failed}.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"whisper-studio/internal/device"
	"whisper-studio/internal/domain"
	"whisper-studio/internal/engine"
)

// State is the load state machine position.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// Listener receives lifecycle outcomes on the loader goroutine. Implementors
// are responsible for marshaling to the UI thread.
type Listener interface {
	// LoadStarted fires when a load begins.
	LoadStarted(selector domain.DeviceSelector)
	// LoadSettled fires exactly once per load, with err nil on success.
	LoadSettled(effective domain.DeviceSelector, precision domain.Precision, err error)
	// DeviceFallback fires when an explicit cuda request fell back to cpu.
	DeviceFallback(requested, effective domain.DeviceSelector)
}

// Request carries everything a load needs besides the selector.
type Request struct {
	Selector domain.DeviceSelector
	ModelID  string
	CacheDir string
	Token    string
}

// Manager serializes model loads. At most one load runs at a time; a request
// arriving mid-load is queued and becomes the next load once cleanup runs.
type Manager struct {
	loader   engine.Loader
	detector device.Detector
	listener Listener
	log      zerolog.Logger

	mu       sync.Mutex
	state    State
	loading  bool
	handle   engine.Handle
	selector domain.DeviceSelector
	pending  *Request
}

// NewManager creates an idle manager.
func NewManager(loader engine.Loader, detector device.Detector, listener Listener, log zerolog.Logger) *Manager {
	return &Manager{
		loader:   loader,
		detector: detector,
		listener: listener,
		log:      log,
		state:    StateIdle,
		selector: domain.DeviceAuto,
	}
}

// RequestLoad starts an async load for the request, discarding any existing
// handle first. If a load is already running the request is queued as the
// next load instead.
func (m *Manager) RequestLoad(req Request) {
	m.mu.Lock()
	if m.loading {
		next := req
		m.pending = &next
		m.mu.Unlock()
		m.log.Info().Str("selector", string(req.Selector)).Msg("load queued behind running load")
		return
	}

	m.begin(req)
	m.mu.Unlock()

	m.listener.LoadStarted(req.Selector)
	go m.runLoad(req)
}

// begin discards the old handle and enters Loading. Caller holds the lock.
func (m *Manager) begin(req Request) {
	if m.handle != nil {
		if err := m.handle.Close(); err != nil {
			m.log.Warn().Err(err).Msg("close previous model handle")
		}
		m.handle = nil
	}
	m.state = StateLoading
	m.loading = true
	m.selector = req.Selector
}

// runLoad performs one load and guarantees the loading flag clears on every
// path, including faults, before any queued load starts.
func (m *Manager) runLoad(req Request) {
	var (
		handle    engine.Handle
		effective domain.DeviceSelector
		precision domain.Precision
		loadErr   error
	)

	defer func() {
		if r := recover(); r != nil {
			loadErr = fmt.Errorf("model load fault: %v", r)
			m.log.Error().Interface("panic", r).Msg("model load panicked")
		}
		m.settle(handle, effective, precision, loadErr)
	}()

	effective, fellBack := device.Resolve(req.Selector, m.detector.AcceleratorPresent())
	precision = device.PrecisionFor(effective)
	if fellBack {
		m.listener.DeviceFallback(req.Selector, effective)
	}

	handle, loadErr = m.loader.Load(context.Background(), engine.Spec{
		ModelID:   req.ModelID,
		Device:    effective,
		Precision: precision,
		CacheDir:  req.CacheDir,
		Token:     req.Token,
	})
}

// settle records the outcome, clears the loading flag, notifies the
// listener, and kicks off any queued load.
func (m *Manager) settle(handle engine.Handle, effective domain.DeviceSelector, precision domain.Precision, loadErr error) {
	m.mu.Lock()
	m.loading = false
	if loadErr != nil {
		m.state = StateFailed
		m.handle = nil
	} else {
		m.state = StateReady
		m.handle = handle
		// Correct the stored selector so later reads match the device
		// actually in use after a fallback.
		m.selector = effective
	}
	next := m.pending
	m.pending = nil
	if next != nil {
		m.begin(*next)
	}
	m.mu.Unlock()

	if loadErr != nil {
		m.log.Error().Err(loadErr).Msg("model load failed")
	} else {
		m.log.Info().
			Str("device", string(effective)).
			Str("precision", string(precision)).
			Msg("model load ready")
	}
	m.listener.LoadSettled(effective, precision, loadErr)

	if next != nil {
		m.listener.LoadStarted(next.Selector)
		go m.runLoad(*next)
	}
}

// Handle returns the ready handle, or false when no model may be used:
// either no handle exists or a load is in progress.
func (m *Manager) Handle() (engine.Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil || m.loading {
		return nil, false
	}
	return m.handle, true
}

// Loading reports whether a load is in progress.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// State returns the current load state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Selector returns the stored device selector, corrected after fallback.
func (m *Manager) Selector() domain.DeviceSelector {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selector
}

// Close releases the current handle, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return nil
	}
	err := m.handle.Close()
	m.handle = nil
	m.state = StateIdle
	return err
}
