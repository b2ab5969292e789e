package config

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/immodoc/immodoc/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.PropertyID != DefaultPropertyID {
		t.Errorf("PropertyID = %d", cfg.PropertyID)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
base_url: https://api.example.com/
property_id: 42
network_logs: true
watch:
  dir: /tmp/inbox
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "https://api.example.com" {
		t.Errorf("trailing slash should be trimmed, got %q", cfg.BaseURL)
	}
	if cfg.PropertyID != 42 {
		t.Errorf("PropertyID = %d", cfg.PropertyID)
	}
	if !cfg.NetworkLogs {
		t.Error("NetworkLogs should be true")
	}
	if cfg.Watch.Dir != "/tmp/inbox" {
		t.Errorf("Watch.Dir = %q", cfg.Watch.Dir)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "base_url: http://from-file:8000\nproperty_id: 2\n")
	t.Setenv("IMMODOC_BASE_URL", "http://from-env:9000")
	t.Setenv("IMMODOC_PROPERTY_ID", "9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "http://from-env:9000" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.PropertyID != 9 {
		t.Errorf("PropertyID = %d", cfg.PropertyID)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "base_url: [unterminated\n")
	_, err := Load(path)
	if !apperrors.IsCode(err, apperrors.ErrCodeConfigLoad) {
		t.Errorf("expected CONFIG_LOAD, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
		ok   bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"empty url", func(c *Config) { c.BaseURL = "" }, false},
		{"relative url", func(c *Config) { c.BaseURL = "localhost:8000" }, false},
		{"ftp scheme", func(c *Config) { c.BaseURL = "ftp://host" }, false},
		{"zero property", func(c *Config) { c.PropertyID = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mod(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if !tt.ok && !apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid) {
				t.Errorf("expected CONFIG_INVALID, got %v", err)
			}
		})
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/var/lib/immodoc"
	if got := cfg.SessionDBPath(); got != "/var/lib/immodoc/session.db" {
		t.Errorf("SessionDBPath = %q", got)
	}
	if got := cfg.LogDir(); got != "/var/lib/immodoc/logs" {
		t.Errorf("LogDir = %q", got)
	}
}
