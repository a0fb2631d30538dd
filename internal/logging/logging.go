// Package logging configures the application-wide structured loggers.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	initOnce      sync.Once
	defaultLogger *slog.Logger
)

const (
	// LevelFatal extends slog with a level above Error for unrecoverable failures.
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelFatal: "FATAL",
}

func newHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				level := a.Value.Any().(slog.Level)
				if label, ok := levelNames[level]; ok {
					a.Value = slog.StringValue(label)
				}
			}
			return a
		},
	})
}

// Init sets up the JSON structured logger and installs it as the slog default.
// Safe to call multiple times; only the first call has effect.
func Init(debug bool) {
	initOnce.Do(func() {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		defaultLogger = slog.New(newHandler(os.Stdout, level))
		slog.SetDefault(defaultLogger)
	})
}

// SetOutput redirects logger output, primarily for tests.
func SetOutput(w io.Writer, level slog.Level) {
	defaultLogger = slog.New(newHandler(w, level))
	slog.SetDefault(defaultLogger)
}

// ForService returns a logger with the 'service' attribute added, so every
// line from a component is attributable without per-call boilerplate.
func ForService(serviceName string) *slog.Logger {
	if defaultLogger == nil {
		Init(false)
	}
	return defaultLogger.With("service", serviceName)
}

// Fatal logs at the custom fatal level and exits.
func Fatal(msg string, args ...any) {
	slog.Log(context.TODO(), LevelFatal, msg, args...)
	os.Exit(1)
}
