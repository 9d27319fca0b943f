package log

import (
	"context"
	"sync"
)

// Record is a captured log entry, used by tests.
type Record struct {
	Level   Level
	Message string
	Fields  map[string]any
}

type recordSink struct {
	mu      sync.Mutex
	records []Record
}

// TestLogger is a Logger implementation that records entries in memory.
// Loggers derived via With share the same sink, so tests assert in one place.
type TestLogger struct {
	sink *recordSink
	with []any
}

// NewTestLogger creates an empty TestLogger.
func NewTestLogger() *TestLogger {
	return &TestLogger{sink: &recordSink{}}
}

func (t *TestLogger) log(level Level, msg string, fields []any) {
	all := make([]any, 0, len(t.with)+len(fields))
	all = append(all, t.with...)
	all = append(all, fields...)

	m := make(map[string]any, len(all)/2)
	for i := 0; i+1 < len(all); i += 2 {
		if key, ok := all[i].(string); ok {
			m[key] = all[i+1]
		}
	}

	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	t.sink.records = append(t.sink.records, Record{Level: level, Message: msg, Fields: m})
}

func (t *TestLogger) Debug(msg string, fields ...any) { t.log(LevelDebug, msg, fields) }
func (t *TestLogger) Info(msg string, fields ...any)  { t.log(LevelInfo, msg, fields) }
func (t *TestLogger) Warn(msg string, fields ...any)  { t.log(LevelWarn, msg, fields) }
func (t *TestLogger) Error(msg string, fields ...any) { t.log(LevelError, msg, fields) }

func (t *TestLogger) With(fields ...any) Logger {
	return &TestLogger{
		sink: t.sink,
		with: append(append([]any{}, t.with...), fields...),
	}
}

func (t *TestLogger) Enabled(context.Context, Level) bool { return true }

// Records returns a copy of the captured records, including those logged via
// With-derived child loggers.
func (t *TestLogger) Records() []Record {
	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	out := make([]Record, len(t.sink.records))
	copy(out, t.sink.records)
	return out
}

var _ Logger = (*TestLogger)(nil)
