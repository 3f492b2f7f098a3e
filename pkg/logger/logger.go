// Package logger provides the process-wide slog setup used by every
// worldforge subsystem: level comes from LOG_LEVEL, handler shape comes
// from GO_ENV/ENVIRONMENT.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New builds the root logger for the process. Every subsystem logger is
// derived from this one via Scope, never via slog.Default().
func New() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if isProd() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func isProd() bool {
	env := strings.ToLower(os.Getenv("GO_ENV"))
	if env == "" {
		env = strings.ToLower(os.Getenv("ENVIRONMENT"))
	}
	return env == "production" || env == "prod"
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info", "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

// Scope tags a logger with the subsystem it belongs to, e.g.
// log.With(logger.Scope("engine.tick")).
func Scope(name string) slog.Attr {
	return slog.String("scope", name)
}

// Error is the standard attribute used to attach an error to a log line.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}
