// Package log provides a structured logging interface for linmod estimators.
//
// The interface is slog-compatible and backed by zerolog. Estimators obtain a
// named logger once at construction and attach model context with With:
//
//	logger := log.GetLoggerWithName("linear").With(
//	    log.ModelNameKey, "OLS",
//	)
//	logger.Info("Training completed",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, n,
//	    log.FeaturesKey, p,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with log/slog.
// Fields are alternating key-value pairs; keys should come from attributes.go.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// If the first field is an error, it is rendered as a structured error
	// attribute with its type-specific fields.
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, value-compatible with slog.Level.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
