// Package logging configures the process-wide zerolog sink.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup builds a logger writing to a size-capped rotating file and, when
// console is true, to stderr as well. The file is capped at 1 MiB with three
// retained backups so long sessions cannot grow the log without bound.
func Setup(logFile string, console bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if parsed, err := zerolog.ParseLevel(v); err == nil {
			level = parsed
		}
	}

	writers := make([]io.Writer, 0, 2)
	if logFile != "" {
		_ = os.MkdirAll(filepath.Dir(logFile), 0o755)
		writers = append(writers, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    1,
			MaxBackups: 3,
		})
	}
	if console || len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
}
