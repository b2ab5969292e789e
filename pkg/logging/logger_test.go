package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		baseDir   string
		sessionID string
		wantErr   bool
	}{
		{
			name:      "valid directory and session ID",
			baseDir:   t.TempDir(),
			sessionID: "test-session-123",
			wantErr:   false,
		},
		{
			name:      "creates directories if not exist",
			baseDir:   filepath.Join(t.TempDir(), "nested", "path"),
			sessionID: "session-456",
			wantErr:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.baseDir, tt.sessionID)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer logger.Close()

			if _, statErr := os.Stat(filepath.Join(tt.baseDir, "sessions", tt.sessionID+".jsonl")); statErr != nil {
				t.Errorf("session log not created: %v", statErr)
			}
		})
	}
}

func TestLoggerWritesEvents(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "sess-1")
	if err != nil {
		t.Fatal(err)
	}

	if err := logger.Info(CategoryNetwork, "health_check", "probe succeeded", map[string]any{"latency_ms": 42}); err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if err := logger.Error(CategoryUpload, "upload_failed", "file rejected", nil); err != nil {
		t.Fatalf("Error() error = %v", err)
	}
	logger.Close()

	sessionData, err := os.ReadFile(filepath.Join(dir, "sessions", "sess-1.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	lines := splitLines(sessionData)
	if len(lines) != 2 {
		t.Fatalf("expected 2 session events, got %d", len(lines))
	}

	var first Event
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("invalid JSONL line: %v", err)
	}
	if first.Category != CategoryNetwork || first.EventType != "health_check" {
		t.Errorf("unexpected first event: %+v", first)
	}
	if first.SessionID != "sess-1" {
		t.Errorf("session id not stamped, got %q", first.SessionID)
	}

	errorData, err := os.ReadFile(filepath.Join(dir, "errors.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if len(splitLines(errorData)) != 1 {
		t.Error("error event should also land in errors.jsonl")
	}
}

func TestLoggerMinLevel(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "sess-2")
	if err != nil {
		t.Fatal(err)
	}

	// Default min level is info, so debug should be dropped
	if err := logger.Debug(CategoryChat, "ask", "question sent", nil); err != nil {
		t.Fatalf("Debug() error = %v", err)
	}
	logger.Close()

	data, err := os.ReadFile(filepath.Join(dir, "sessions", "sess-2.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if len(splitLines(data)) != 0 {
		t.Error("debug event should be dropped at default level")
	}
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i])
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
