// Package log defines the public logging interface used across go-rex packages.
package log

import (
	"context"
	"log/slog"
)

// Logger is the logging contract shared by the store, the effect queue, the
// event bus, and the CLI. Keeping it as an interface lets embedders plug
// go-rex into whatever logging setup their application already uses.
type Logger interface {
	// Debugf logs a formatted message at the DEBUG level.
	// Arguments are handled in the manner of fmt.Sprintf.
	Debugf(format string, args ...interface{})
	// Infof logs a formatted message at the INFO level.
	Infof(format string, args ...interface{})
	// Warnf logs a formatted message at the WARN level.
	Warnf(format string, args ...interface{})
	// Errorf logs a formatted message at the ERROR level. Implementations
	// should check whether the last argument is an error and, if so, log it
	// structurally in addition to the formatted message.
	Errorf(format string, args ...interface{})

	// Log logs a message at the given slog.Level with key-value attributes.
	// This is the primary structured logging entry point.
	Log(level slog.Level, msg string, args ...interface{})
	// LogCtx logs like Log but threads a context, allowing implementations
	// to attach request or trace information carried by the context.
	LogCtx(ctx context.Context, level slog.Level, msg string, args ...interface{})

	// With returns a Logger that adds the given attributes to every
	// subsequent entry. Attributes are key-value pairs.
	With(args ...interface{}) Logger
	// IsEnabled reports whether entries at the given level would be emitted.
	// Callers can use it to skip expensive message construction.
	IsEnabled(level slog.Level) bool
}
