package log

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// zeroLogger adapts a zerolog.Logger to the Logger interface.
type zeroLogger struct {
	zl zerolog.Logger
}

var (
	rootMu sync.RWMutex
	root   = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
)

// GetLogger returns the default logger.
func GetLogger() Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return &zeroLogger{zl: root}
}

// GetLoggerWithName returns a logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return &zeroLogger{zl: root.With().Str(ComponentKey, name).Logger()}
}

// SetLevel sets the minimum level for loggers created after the call.
func SetLevel(level Level) {
	rootMu.Lock()
	defer rootMu.Unlock()
	root = root.Level(toZerologLevel(level))
}

// SetOutput redirects log output, primarily for tests. A nil writer restores
// the default stderr destination.
func SetOutput(w io.Writer) {
	rootMu.Lock()
	defer rootMu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	root = root.Output(w)
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (l *zeroLogger) Debug(msg string, fields ...any) {
	applyFields(l.zl.Debug(), fields).Msg(msg)
}

func (l *zeroLogger) Info(msg string, fields ...any) {
	applyFields(l.zl.Info(), fields).Msg(msg)
}

func (l *zeroLogger) Warn(msg string, fields ...any) {
	applyFields(l.zl.Warn(), fields).Msg(msg)
}

func (l *zeroLogger) Error(msg string, fields ...any) {
	ev := l.zl.Error()
	// An error as the first field becomes a structured error attribute.
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			if obj, ok := err.(zerolog.LogObjectMarshaler); ok {
				ev = ev.Object("error", obj)
			} else {
				ev = ev.Err(err)
			}
			fields = fields[1:]
		}
	}
	applyFields(ev, fields).Msg(msg)
}

func (l *zeroLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return &zeroLogger{zl: ctx.Logger()}
}

func (l *zeroLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= l.zl.GetLevel()
}

// applyFields attaches alternating key-value pairs to an event. Values that
// implement zerolog.LogObjectMarshaler are rendered as nested objects.
func applyFields(ev *zerolog.Event, fields []any) *zerolog.Event {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		switch v := fields[i+1].(type) {
		case zerolog.LogObjectMarshaler:
			ev = ev.Object(key, v)
		case error:
			ev = ev.AnErr(key, v)
		case string:
			ev = ev.Str(key, v)
		case int:
			ev = ev.Int(key, v)
		case int64:
			ev = ev.Int64(key, v)
		case float64:
			ev = ev.Float64(key, v)
		case bool:
			ev = ev.Bool(key, v)
		case []string:
			ev = ev.Strs(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	return ev
}
