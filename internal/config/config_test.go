package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	v, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if got := v.GetString("plugins.prefix"); got != "!" {
		t.Errorf("plugins.prefix = %q, want !", got)
	}
	if got := v.GetString("logging.level"); got != "info" {
		t.Errorf("logging.level = %q, want info", got)
	}
	if got := v.GetString("logging.format"); got != "json" {
		t.Errorf("logging.format = %q, want json", got)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cinch.yaml")
	data := []byte("plugins:\n  prefix: \"?\"\n  echo:\n    shout: true\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	v, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := v.GetString("plugins.prefix"); got != "?" {
		t.Errorf("plugins.prefix = %q, want ?", got)
	}
	if !v.GetBool("plugins.echo.shout") {
		t.Error("plugins.echo.shout = false, want true")
	}
	// Defaults still apply underneath.
	if got := v.GetString("logging.level"); got != "info" {
		t.Errorf("logging.level = %q, want info", got)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load with a missing explicit file must fail")
	}
}

func TestNewLogger(t *testing.T) {
	v, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	logger, err := NewLogger(v)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if !logger.Core().Enabled(zap.InfoLevel) {
		t.Error("default logger must enable info")
	}
	if logger.Core().Enabled(zap.DebugLevel) {
		t.Error("default logger must not enable debug")
	}

	v.Set("logging.level", "debug")
	v.Set("logging.format", "console")
	logger, err = NewLogger(v)
	if err != nil {
		t.Fatalf("NewLogger(debug/console) error = %v", err)
	}
	if !logger.Core().Enabled(zap.DebugLevel) {
		t.Error("debug logger must enable debug")
	}
}

func TestNewLoggerRejectsBadSettings(t *testing.T) {
	v, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	v.Set("logging.level", "loud")
	if _, err := NewLogger(v); err == nil {
		t.Error("invalid level must fail")
	}

	v.Set("logging.level", "info")
	v.Set("logging.format", "xml")
	if _, err := NewLogger(v); err == nil {
		t.Error("invalid format must fail")
	}
}
