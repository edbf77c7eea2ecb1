package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// LoggerConfig holds configuration for creating loggers
type LoggerConfig struct {
	Format string     // "json" or "text"
	Level  slog.Level // Log level
	File   string     // optional log file, duplicated to stderr
}

// NewLogger creates a new slog.Logger. Output goes to stderr, and also to
// LoggerConfig.File when set (the directory is created if needed).
func NewLogger(config LoggerConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: config.Level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Rename timestamp key for better readability
			if a.Key == slog.TimeKey {
				a.Key = "timestamp"
			}
			return a
		},
	}

	var out io.Writer = os.Stderr
	if config.File != "" {
		if err := os.MkdirAll(filepath.Dir(config.File), 0o755); err == nil {
			if f, err := os.OpenFile(config.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
				out = io.MultiWriter(os.Stderr, f)
			}
		}
	}

	var handler slog.Handler
	if config.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler)
}

// ParseLevel converts a string log level to slog.Level
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
