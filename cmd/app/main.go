package main

import (
	"log"

	"whisper-studio/internal/bootstrap"
	"whisper-studio/internal/config"
	"whisper-studio/internal/logging"
)

func main() {
	logger := logging.Setup(config.DefaultSettings().LogFile, true)

	app, err := bootstrap.New(logger)
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
