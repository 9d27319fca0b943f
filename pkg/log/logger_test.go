package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestZeroLogger_StructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	logger := GetLoggerWithName("linear").With(ModelNameKey, "OLS")
	logger.Info("Training completed",
		OperationKey, OperationFit,
		SamplesKey, 100,
		FeaturesKey, 5,
	)

	line := strings.TrimSpace(buf.String())
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("output is not JSON: %v (line: %q)", err, line)
	}

	if record[ComponentKey] != "linear" {
		t.Errorf("component = %v, want linear", record[ComponentKey])
	}
	if record[ModelNameKey] != "OLS" {
		t.Errorf("model name = %v, want OLS", record[ModelNameKey])
	}
	if record[OperationKey] != OperationFit {
		t.Errorf("operation = %v, want fit", record[OperationKey])
	}
	if record[SamplesKey] != float64(100) {
		t.Errorf("samples = %v, want 100", record[SamplesKey])
	}
}

func TestZeroLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)
	defer func() {
		SetLevel(LevelInfo)
		SetOutput(nil)
	}()

	logger := GetLogger()
	logger.Info("suppressed")
	logger.Warn("emitted")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "emitted") {
		t.Error("warn record should be emitted at warn level")
	}
	if logger.Enabled(context.Background(), LevelDebug) {
		t.Error("debug should not be enabled at warn level")
	}
}

func TestTestLogger_CapturesWithFields(t *testing.T) {
	tl := NewTestLogger()
	child := tl.With(ModelNameKey, "PathFitter")
	child.Info("CV finished", FoldsKey, 5)

	records := tl.Records()
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	r := records[0]
	if r.Message != "CV finished" || r.Level != LevelInfo {
		t.Errorf("unexpected record %+v", r)
	}
	if r.Fields[ModelNameKey] != "PathFitter" || r.Fields[FoldsKey] != 5 {
		t.Errorf("fields not merged: %+v", r.Fields)
	}
}
