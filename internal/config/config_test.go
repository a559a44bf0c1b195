package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/orange/internal/models"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Accessibility.Search.MaxNodes != 500 || cfg.Accessibility.Summary.MaxDepth != 5 {
		t.Errorf("unexpected accessibility defaults: %+v", cfg.Accessibility)
	}
	if cfg.Execution.OpenAppTimeout != 5*time.Second {
		t.Errorf("OpenAppTimeout = %v, want 5s", cfg.Execution.OpenAppTimeout)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
planner:
  url: http://127.0.0.1:9999
  timeout: 12s
execution:
  open_app_timeout: 2s
safety:
  approval_modes:
    low: always_ask
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Planner.URL != "http://127.0.0.1:9999" {
		t.Errorf("Planner.URL = %q", cfg.Planner.URL)
	}
	if cfg.Planner.Timeout != 12*time.Second {
		t.Errorf("Planner.Timeout = %v", cfg.Planner.Timeout)
	}
	if cfg.ApprovalModeFor(models.RiskLow) != models.ApprovalAlwaysAsk {
		t.Errorf("low risk mode = %s", cfg.ApprovalModeFor(models.RiskLow))
	}
	// Keys not present in the file keep their defaults.
	if cfg.ApprovalModeFor(models.RiskHigh) != models.ApprovalAlwaysAsk {
		t.Errorf("high risk mode = %s", cfg.ApprovalModeFor(models.RiskHigh))
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ORANGE_PLANNER_URL", "http://example.invalid:1")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Planner.URL != "http://example.invalid:1" {
		t.Errorf("Planner.URL = %q", cfg.Planner.URL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty planner url", func(c *Config) { c.Planner.URL = "" }},
		{"zero open timeout", func(c *Config) { c.Execution.OpenAppTimeout = 0 }},
		{"zero search nodes", func(c *Config) { c.Accessibility.Search.MaxNodes = 0 }},
		{"bad approval mode", func(c *Config) { c.Safety.ApprovalModes[models.RiskLow] = "sometimes" }},
		{"bad risk key", func(c *Config) { c.Safety.ApprovalModes["extreme"] = models.ApprovalOneTime }},
		{"telemetry without workers", func(c *Config) { c.Telemetry.Workers = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Control.Listen = "127.0.0.1:1234"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Control.Listen != "127.0.0.1:1234" {
		t.Errorf("Control.Listen = %q", got.Control.Listen)
	}
}
