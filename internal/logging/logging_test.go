package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "warn", FormatJSON)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	logger.Info("hidden")
	logger.Warn("snapshot reload failed", "path", "dora.json")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 log line, got %d: %q", len(lines), buf.String())
	}
	var record map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("Expected JSON log line, got %q", lines[0])
	}
	if record["path"] != "dora.json" {
		t.Errorf("Expected path attribute, got %v", record["path"])
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, err := ParseLevel("DEBUG"); err != nil || lvl != slog.LevelDebug {
		t.Errorf("Expected debug, got %v (%v)", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("Expected error for unknown level, got none")
	}
	if _, err := New(nil, "info", "xml"); err == nil {
		t.Error("Expected error for unknown format, got none")
	}
}
