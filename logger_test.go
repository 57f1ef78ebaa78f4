package modelguard

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// Light smoke tests ensuring the logger APIs stay callable without panics.
func TestSimpleLoggerLevels(t *testing.T) {
	logger := NewSimpleLogger()

	logger.Debug("debug message", "key", "value")
	logger.Info("info message")
	logger.Warn("warn message", "odd-trailing-key")
	logger.Error("error message", "attempt", 3)
}

func TestZerologLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf))

	logger.Warn("model call failed", "model", "primary", "tier", 1)

	out := buf.String()
	if !strings.Contains(out, "model call failed") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, `"model":"primary"`) {
		t.Errorf("expected structured field, got %q", out)
	}
	if !strings.Contains(out, `"tier":1`) {
		t.Errorf("expected numeric field, got %q", out)
	}
}

func TestDefaultZerologLogger(t *testing.T) {
	logger := NewDefaultZerologLogger()
	logger.Info("startup", "version", Version)
}

func TestDefaultDebugConfig(t *testing.T) {
	cfg := DefaultDebugConfig()
	if cfg.Enabled {
		t.Error("debug must be off by default")
	}
	if !cfg.LogCache || !cfg.LogCircuit || !cfg.LogRateLimit || !cfg.LogFallback {
		t.Error("all stages should be selected once debug is enabled")
	}
}
