// Command fetch-models downloads speech model weights ahead of time so the
// first transcription does not stall on a multi-gigabyte download.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"whisper-studio/internal/config"
	"whisper-studio/internal/models"
)

func main() {
	var (
		modelID   = flag.String("model", "large-v2", "transcription model to fetch")
		cacheDir  = flag.String("cache-dir", config.DefaultSettings().CacheDir, "directory for downloaded weights")
		withAlign = flag.Bool("align", false, "also fetch the English alignment model (requires "+config.TokenEnvVar+")")
		list      = flag.Bool("list", false, "list available models and exit")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *list {
		for _, m := range models.Catalog(*cacheDir) {
			status := " "
			if m.Downloaded {
				status = "*"
			}
			fmt.Printf("%s %-16s %-10s %s\n", status, m.ID, m.SizeLabel, m.Description)
		}
		return
	}

	token := config.Token()
	wanted := []string{*modelID}
	if *withAlign {
		if token == "" {
			log.Warn().Msgf("%s is not set; skipping the alignment model", config.TokenEnvVar)
		} else {
			wanted = append(wanted, "align-en")
		}
	}

	downloader := models.NewDownloader(token, log)
	ctx := context.Background()

	for _, id := range wanted {
		model, ok := models.ByID(id)
		if !ok {
			log.Fatal().Str("model", id).Msg("unknown model id; use -list to see available models")
		}

		lastPercent := -1
		path, err := downloader.Fetch(ctx, model, *cacheDir, func(received, total int64) {
			if total <= 0 {
				return
			}
			percent := int(received * 100 / total)
			if percent != lastPercent && percent%5 == 0 {
				lastPercent = percent
				fmt.Fprintf(os.Stderr, "\r%s: %d%%", model.ID, percent)
			}
		})
		fmt.Fprintln(os.Stderr)
		if err != nil {
			if model.Alignment && strings.Contains(err.Error(), "status") {
				log.Fatal().Err(err).Msgf("alignment model download failed; check that %s holds a valid token", config.TokenEnvVar)
			}
			log.Fatal().Err(err).Str("model", model.ID).Msg("download failed")
		}
		log.Info().Str("model", model.ID).Str("path", path).Msg("ready")
	}
}
