package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"whisper-studio/internal/domain"
)

// Store defines persistence operations for app settings.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// YAMLStore persists settings in a single YAML file on disk.
type YAMLStore struct {
	path string
}

// NewYAMLStore creates a YAML-backed settings store.
func NewYAMLStore(path string) *YAMLStore {
	return &YAMLStore{path: path}
}

// Load reads settings from disk or returns defaults when missing. Missing
// fields are backfilled with defaults so older settings files keep working.
func (s *YAMLStore) Load() (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), nil
		}

		return domain.Settings{}, err
	}

	cfg := DefaultSettings()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Settings{}, err
	}

	return Normalize(cfg), nil
}

// Save writes settings as YAML and creates parent directories.
func (s *YAMLStore) Save(cfg domain.Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(Normalize(cfg))
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o644)
}

// Normalize clamps out-of-range values and fills empty fields with defaults.
func Normalize(cfg domain.Settings) domain.Settings {
	defaults := DefaultSettings()

	switch cfg.Device {
	case domain.DeviceAuto, domain.DeviceCPU, domain.DeviceCUDA:
	default:
		cfg.Device = domain.DeviceAuto
	}
	switch cfg.Policy {
	case domain.PolicyChunked, domain.PolicyBatched:
	default:
		cfg.Policy = defaults.Policy
	}
	if cfg.Language == "" {
		cfg.Language = "auto"
	}
	if cfg.ModelID == "" {
		cfg.ModelID = defaults.ModelID
	}
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = defaults.WindowSeconds
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.Backend == "" {
		cfg.Backend = defaults.Backend
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = defaults.CacheDir
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaults.OutputDir
	}
	if cfg.LogFile == "" {
		cfg.LogFile = defaults.LogFile
	}

	return cfg
}
