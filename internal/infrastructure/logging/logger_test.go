package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNew_FormatsAndOutputs(t *testing.T) {
	formats := []string{"json", "text", ""}
	outputs := []string{"stdout", "stderr", ""}

	for _, format := range formats {
		for _, output := range outputs {
			logger := New(config.LoggingConfig{
				Level:  "info",
				Format: format,
				Output: output,
			}, "test")
			if logger == nil || logger.Logger == nil {
				t.Errorf("New(format=%q, output=%q) returned nil logger", format, output)
			}
		}
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hearth.log")

	logger := New(config.LoggingConfig{Level: "info", Format: "json", Output: path}, "test")
	logger.Info("written to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !bytes.Contains(data, []byte("written to file")) {
		t.Errorf("log file missing record: %s", data)
	}
}

func TestNew_UnwritablePathFallsBack(t *testing.T) {
	logger := New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: filepath.Join(t.TempDir(), "no-such-dir", "hearth.log"),
	}, "test")
	if logger == nil || logger.Logger == nil {
		t.Fatal("New() with unwritable path returned nil logger")
	}
}

func TestWith_ReturnsNewLogger(t *testing.T) {
	base := Default()
	child := base.With("component", "test")

	if child == base {
		t.Error("With() should return a new Logger instance")
	}
	if child.Logger == nil {
		t.Error("With() returned logger with nil slog.Logger")
	}
}
