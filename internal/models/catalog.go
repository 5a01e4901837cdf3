// Package models knows which speech model weights can be fetched ahead of
// time and how to download them into the cache directory.
package models

import (
	"os"
	"path/filepath"

	"whisper-studio/internal/domain"
)

var catalog = []domain.ModelOption{
	{
		ID:          "tiny",
		Name:        "Tiny (Multilingual)",
		FileName:    "ggml-tiny.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin",
		SizeLabel:   "~75 MB",
		Description: "Fastest multilingual model.",
	},
	{
		ID:          "base",
		Name:        "Base (Multilingual)",
		FileName:    "ggml-base.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
		SizeLabel:   "~142 MB",
		Description: "Balanced speed/quality, multilingual.",
	},
	{
		ID:          "small",
		Name:        "Small (Multilingual)",
		FileName:    "ggml-small.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
		SizeLabel:   "~466 MB",
		Description: "Higher quality multilingual model.",
	},
	{
		ID:          "large-v2",
		Name:        "Large v2",
		FileName:    "ggml-large-v2.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v2.bin",
		SizeLabel:   "~2.9 GB",
		Description: "Very high quality multilingual model; default for transcription.",
	},
	{
		ID:          "large-v3-turbo",
		Name:        "Large v3 Turbo",
		FileName:    "ggml-large-v3-turbo.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3-turbo.bin",
		SizeLabel:   "~1.6 GB",
		Description: "Faster large-v3 variant.",
	},
	{
		ID:          "align-en",
		Name:        "English alignment model",
		FileName:    "wav2vec2-base-960h.bin",
		URL:         "https://huggingface.co/facebook/wav2vec2-base-960h/resolve/main/pytorch_model.bin",
		SizeLabel:   "~360 MB",
		Description: "Word-level alignment for English. Requires an access token.",
		Alignment:   true,
	},
}

// Catalog returns the downloadable presets, marking the ones already present
// in cacheDir.
func Catalog(cacheDir string) []domain.ModelOption {
	models := make([]domain.ModelOption, len(catalog))
	copy(models, catalog)

	for i := range models {
		candidate := filepath.Join(cacheDir, models[i].FileName)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() || info.Size() == 0 {
			continue
		}
		models[i].Downloaded = true
		models[i].LocalPath = candidate
	}
	return models
}

// ByID looks up one catalog entry.
func ByID(id string) (domain.ModelOption, bool) {
	for _, model := range catalog {
		if model.ID == id {
			return model, true
		}
	}
	return domain.ModelOption{}, false
}
