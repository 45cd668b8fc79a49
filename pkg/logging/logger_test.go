package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func parseEntry(t *testing.T, line string) LogEntry {
	t.Helper()

	var entry LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("Failed to parse log line %q: %v", line, err)
	}
	return entry
}

func TestJSONLogger_BasicOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	logger.Info("graph built", Nodes(120), Edges(3400))

	entry := parseEntry(t, buf.String())
	if entry.Level != "INFO" {
		t.Errorf("Level = %q, want INFO", entry.Level)
	}
	if entry.Message != "graph built" {
		t.Errorf("Message = %q, want 'graph built'", entry.Message)
	}
	if entry.Fields["nodes"] != float64(120) {
		t.Errorf("nodes field = %v, want 120", entry.Fields["nodes"])
	}
	if entry.Fields["edges"] != float64(3400) {
		t.Errorf("edges field = %v, want 3400", entry.Fields["edges"])
	}
}

func TestJSONLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, WarnLevel)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Error("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %d: %q", len(lines), buf.String())
	}
	if parseEntry(t, lines[0]).Level != "WARN" {
		t.Errorf("First line level = %q, want WARN", parseEntry(t, lines[0]).Level)
	}
}

func TestJSONLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	child := logger.With(Component("pipeline"), RunID("abc-123"))
	child.Info("cohort filtered", Patients(42))

	entry := parseEntry(t, buf.String())
	if entry.Fields["component"] != "pipeline" {
		t.Errorf("component = %v, want pipeline", entry.Fields["component"])
	}
	if entry.Fields["run_id"] != "abc-123" {
		t.Errorf("run_id = %v, want abc-123", entry.Fields["run_id"])
	}
	if entry.Fields["patients"] != float64(42) {
		t.Errorf("patients = %v, want 42", entry.Fields["patients"])
	}

	// Parent logger unaffected
	buf.Reset()
	logger.Info("plain")
	if entry := parseEntry(t, buf.String()); entry.Fields["component"] != nil {
		t.Error("With leaked fields into the parent logger")
	}
}

func TestJSONLogger_CallSiteFieldsOverrideBound(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel).With(Component("a"))

	logger.Info("msg", Component("b"))

	entry := parseEntry(t, buf.String())
	if entry.Fields["component"] != "b" {
		t.Errorf("component = %v, want b", entry.Fields["component"])
	}
}

func TestJSONLogger_ErrorField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	logger.Error("load failed", Error(errors.New("boom")))

	entry := parseEntry(t, buf.String())
	if entry.Fields["error"] != "boom" {
		t.Errorf("error field = %v, want boom", entry.Fields["error"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"gibberish", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	timer := StartTimer(logger, "build graph", Nodes(10))
	timer.End()

	entry := parseEntry(t, buf.String())
	if entry.Message != "build graph" {
		t.Errorf("Message = %q, want 'build graph'", entry.Message)
	}
	if _, ok := entry.Fields["latency"]; !ok {
		t.Error("Timed operation missing latency field")
	}
	if entry.Fields["nodes"] != float64(10) {
		t.Errorf("nodes = %v, want 10", entry.Fields["nodes"])
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()

	// Must not panic and With must chain
	logger.Info("ignored")
	logger.With(Component("x")).Error("also ignored")
	if logger.GetLevel() != InfoLevel {
		t.Errorf("NopLogger level = %v, want InfoLevel", logger.GetLevel())
	}
}
