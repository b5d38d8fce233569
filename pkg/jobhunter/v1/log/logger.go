// Package log defines the logging interface shared by jobhunter packages.
package log

import (
	"context"
	"log/slog"
)

// Logger is the logging abstraction used across jobhunter. Implementations
// are expected to be structured (see internal/logger for the slog-backed one).
type Logger interface {
	// Debugf logs a formatted message at the DEBUG level.
	Debugf(format string, args ...interface{})
	// Infof logs a formatted message at the INFO level.
	Infof(format string, args ...interface{})
	// Warnf logs a formatted message at the WARN level.
	Warnf(format string, args ...interface{})
	// Errorf logs a formatted message at the ERROR level. When the last
	// argument is an error, implementations should also attach it as a
	// structured attribute.
	Errorf(format string, args ...interface{})

	// Log logs msg at level with key-value attributes.
	Log(level slog.Level, msg string, args ...interface{})
	// LogCtx is Log with a context, letting implementations pick up trace ids.
	LogCtx(ctx context.Context, level slog.Level, msg string, args ...interface{})

	// With returns a Logger that adds args to every entry.
	With(args ...interface{}) Logger
	// IsEnabled reports whether entries at level would be written.
	IsEnabled(level slog.Level) bool
}
