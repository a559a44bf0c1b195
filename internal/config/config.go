// Package config loads and validates orange configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fentz26/orange/internal/models"
	"gopkg.in/yaml.v3"
)

// Config holds all orange settings.
type Config struct {
	Planner       PlannerConfig       `yaml:"planner"`
	Store         StoreConfig         `yaml:"store"`
	Log           LogConfig           `yaml:"log"`
	Control       ControlConfig       `yaml:"control"`
	Execution     ExecutionConfig     `yaml:"execution"`
	Accessibility AccessibilityConfig `yaml:"accessibility"`
	Safety        SafetyConfig        `yaml:"safety"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
}

// PlannerConfig points at the planner sidecar.
type PlannerConfig struct {
	// URL is the sidecar base URL.
	URL string `yaml:"url"`
	// Timeout bounds each planner HTTP request. Streams are not bounded.
	Timeout        time.Duration `yaml:"timeout"`
	PreferredModel string        `yaml:"preferred_model,omitempty"`
	Locale         string        `yaml:"locale,omitempty"`
	LowLatency     bool          `yaml:"low_latency"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `yaml:"level"`
	// Dir receives orange.log. Empty disables file logging.
	Dir string `yaml:"dir"`
}

// ControlConfig configures the local control API.
type ControlConfig struct {
	Listen string `yaml:"listen"`
}

// ExecutionConfig tunes the action executor.
type ExecutionConfig struct {
	// OpenAppTimeout bounds launching an app by bundle id.
	OpenAppTimeout time.Duration `yaml:"open_app_timeout"`
}

// Limits bounds an accessibility traversal.
type Limits struct {
	MaxDepth int `yaml:"max_depth"`
	MaxNodes int `yaml:"max_nodes"`
}

// AccessibilityConfig sets traversal budgets for summaries and click searches.
type AccessibilityConfig struct {
	Summary Limits `yaml:"summary"`
	Search  Limits `yaml:"search"`
}

// SafetyConfig maps plan risk levels to the approval mode given to policy prompts.
type SafetyConfig struct {
	ApprovalModes map[models.RiskLevel]models.ApprovalMode `yaml:"approval_modes"`
}

// TelemetryConfig configures the telemetry dispatcher.
type TelemetryConfig struct {
	Enabled   bool `yaml:"enabled"`
	QueueSize int  `yaml:"queue_size"`
	Workers   int  `yaml:"workers"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".orange")

	return &Config{
		Planner: PlannerConfig{
			URL:        "http://127.0.0.1:7789",
			Timeout:    30 * time.Second,
			LowLatency: true,
		},
		Store:   StoreConfig{Path: filepath.Join(base, "orange.db")},
		Log:     LogConfig{Level: "info", Dir: base},
		Control: ControlConfig{Listen: "127.0.0.1:7790"},
		Execution: ExecutionConfig{
			OpenAppTimeout: 5 * time.Second,
		},
		Accessibility: AccessibilityConfig{
			Summary: Limits{MaxDepth: 5, MaxNodes: 140},
			Search:  Limits{MaxDepth: 8, MaxNodes: 500},
		},
		Safety: SafetyConfig{
			ApprovalModes: map[models.RiskLevel]models.ApprovalMode{
				models.RiskLow:    models.ApprovalPerSession,
				models.RiskMedium: models.ApprovalOneTime,
				models.RiskHigh:   models.ApprovalAlwaysAsk,
			},
		},
		Telemetry: TelemetryConfig{
			Enabled:   true,
			QueueSize: 256,
			Workers:   2,
		},
	}
}

// DefaultPath returns ~/.orange/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".orange", "config.yaml")
}

// Load reads configuration from path. A missing file yields the defaults.
// Environment overrides are applied after the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromHome loads ~/.orange/config.yaml.
func LoadFromHome() (*Config, error) {
	return Load(DefaultPath())
}

func loadFromEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("ORANGE_PLANNER_URL")); v != "" {
		cfg.Planner.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("ORANGE_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("ORANGE_DB")); v != "" {
		cfg.Store.Path = v
	}
}

// Save writes cfg to path, creating parent directories if needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Planner.URL) == "" {
		return fmt.Errorf("planner.url is required")
	}
	if c.Planner.Timeout < 0 {
		return fmt.Errorf("planner.timeout must not be negative")
	}
	if c.Execution.OpenAppTimeout <= 0 {
		return fmt.Errorf("execution.open_app_timeout must be positive")
	}
	for name, l := range map[string]Limits{"summary": c.Accessibility.Summary, "search": c.Accessibility.Search} {
		if l.MaxDepth < 1 || l.MaxNodes < 1 {
			return fmt.Errorf("accessibility.%s limits must be at least 1", name)
		}
	}
	for risk, mode := range c.Safety.ApprovalModes {
		switch risk {
		case models.RiskLow, models.RiskMedium, models.RiskHigh:
		default:
			return fmt.Errorf("safety.approval_modes: unknown risk level %q", risk)
		}
		if !mode.Valid() {
			return fmt.Errorf("safety.approval_modes: invalid mode %q for %s", mode, risk)
		}
	}
	if c.Telemetry.Enabled && (c.Telemetry.QueueSize < 1 || c.Telemetry.Workers < 1) {
		return fmt.Errorf("telemetry queue_size and workers must be at least 1")
	}
	return nil
}

// ApprovalModeFor returns the configured approval mode for a risk level.
// Unknown or unset levels fall back to one_time.
func (c *Config) ApprovalModeFor(risk models.RiskLevel) models.ApprovalMode {
	if mode, ok := c.Safety.ApprovalModes[risk]; ok {
		return mode
	}
	return models.ApprovalOneTime
}
