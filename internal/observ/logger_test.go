package observ

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerLevels(t *testing.T) {
	for _, tt := range []struct{ env, level string }{
		{"production", "warn"},
		{"development", "debug"},
		{"development", "not-a-level"},
	} {
		logger, err := NewLogger(tt.env, tt.level, "")
		if err != nil {
			t.Fatalf("NewLogger(%s, %s): %v", tt.env, tt.level, err)
		}
		logger.Debug("probe")
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	logger, err := NewLogger("production", "info", path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("scan finished")
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), "scan finished") {
		t.Fatalf("log file missing entry: %s", raw)
	}
}
