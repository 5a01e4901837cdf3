package main

import (
	"embed"
	"log"

	"whisper-studio/internal/bootstrap"
	"whisper-studio/internal/config"
	"whisper-studio/internal/logging"
)

//go:embed frontend/index.html
var appAssets embed.FS

func main() {
	logger := logging.Setup(config.DefaultSettings().LogFile, false)

	app, err := bootstrap.NewWithAssets(appAssets, logger)
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
