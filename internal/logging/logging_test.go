package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("chore created", "chore_id", "01ABC")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["msg"] != "chore created" || rec["chore_id"] != "01ABC" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestNewTextDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug", "")

	logger.Debug("decay pass", "username", "sam")
	if !strings.Contains(buf.String(), "msg=\"decay pass\"") || !strings.Contains(buf.String(), "username=sam") {
		t.Errorf("unexpected text output: %q", buf.String())
	}
}
