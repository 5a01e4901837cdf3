package config

import (
	"os"
	"path/filepath"

	"whisper-studio/internal/domain"
)

// TokenEnvVar names the environment variable holding the Hugging Face
// access token used for alignment model downloads.
const TokenEnvVar = "HF_TOKEN"

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		Device:        domain.DeviceAuto,
		Policy:        domain.PolicyBatched,
		Alignment:     false,
		Language:      "auto",
		ModelID:       "large-v2",
		WindowSeconds: 30,
		BatchSize:     4,
		Backend:       "cli",
		CacheDir:      filepath.Join(homeDir, ".cache", "huggingface", "hub"),
		OutputDir:     filepath.Join(homeDir, "Documents", "Transcripts"),
		LogFile:       filepath.Join(homeDir, ".whisper-studio", "whisper-studio.log"),
	}
}

// Token reads the alignment credential from the environment. Empty means
// alignment model downloads are unavailable, not that the app is broken.
func Token() string {
	return os.Getenv(TokenEnvVar)
}
