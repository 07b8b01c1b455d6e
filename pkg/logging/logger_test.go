package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		enable slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"warn level", "warn", slog.LevelWarn},
		{"upper case", "ERROR", slog.LevelError},
		{"default info", "", slog.LevelInfo},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			if !logger.Enabled(ctx, tt.enable) {
				t.Fatalf("expected level %s to be enabled", tt.enable)
			}
		})
	}
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()
	logger.Info("test message", "key", "value")

	ctx := context.Background()
	if !logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("Default() should enable info level")
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("Default() should not enable debug level")
	}
	if logger == Default() {
		t.Error("Default() returned the same instance twice")
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var jsonBuf bytes.Buffer
	newLogger(slog.LevelInfo, FormatJSON, &jsonBuf, &jsonBuf).Info("hello", "conversation_id", "c1")
	var entry map[string]any
	if err := json.Unmarshal(jsonBuf.Bytes(), &entry); err != nil {
		t.Fatalf("json output not decodable: %v (%q)", err, jsonBuf.String())
	}
	if entry["conversation_id"] != "c1" {
		t.Fatalf("conversation_id = %v", entry["conversation_id"])
	}

	var textBuf bytes.Buffer
	newLogger(slog.LevelInfo, FormatText, &textBuf, &textBuf).Info("hello")
	if !strings.Contains(textBuf.String(), "msg=hello") {
		t.Fatalf("text output = %q", textBuf.String())
	}

	var colorBuf bytes.Buffer
	newLogger(slog.LevelInfo, FormatColor, &bytes.Buffer{}, &colorBuf).Info("hello")
	if !strings.Contains(colorBuf.String(), "hello") {
		t.Fatalf("color output = %q", colorBuf.String())
	}
}

func TestWithKeepsWrapper(t *testing.T) {
	var buf bytes.Buffer
	child := newLogger(slog.LevelInfo, FormatJSON, &buf, &buf).With("component", "router")
	child.Info("routed")
	if !strings.Contains(buf.String(), `"component":"router"`) {
		t.Fatalf("missing attribute: %s", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("Discard() should not enable error level")
	}
}
