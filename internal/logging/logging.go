// v1
// internal/logging/logging.go
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type DualLogger struct {
	Logger *slog.Logger
	file   *lumberjack.Logger
}

// New creates a slog logger that logs to both stdout and a rolling file.
// An empty path or "-" keeps output on stdout only.
func New(path, level string) *DualLogger {
	return newWithStdout(os.Stdout, path, level)
}

func newWithStdout(stdout io.Writer, path, level string) *DualLogger {
	writers := []io.Writer{stdout}

	var file *lumberjack.Logger
	if path != "" && path != "-" {
		file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
		}
		writers = append(writers, file)
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: ParseLevel(level)})
	return &DualLogger{Logger: slog.New(handler), file: file}
}

// Close flushes and closes the file side, if any.
func (d *DualLogger) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
