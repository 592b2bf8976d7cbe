// Package config loads, validates, and persists the weeklens
// configuration. Secrets never live in the YAML file: the Gemini key and
// source tokens come from the environment, with .env picked up for local
// runs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"weeklens/internal/citation"
	"weeklens/internal/schema"
)

// DefaultPath is where commands look for the config file unless --config
// points elsewhere.
const DefaultPath = "weeklens.yaml"

// Config is the root configuration document.
type Config struct {
	Report  ReportConfig   `yaml:"report"`
	Sources []SourceConfig `yaml:"sources"`
	Gemini  GeminiConfig   `yaml:"gemini"`
	Storage StorageConfig  `yaml:"storage"`
	Output  OutputConfig   `yaml:"output"`
	Logging LoggingConfig  `yaml:"logging"`
}

// ReportConfig controls period selection, citation policy, and numeric
// display.
type ReportConfig struct {
	// Period is the default preset (last-week, last-month, last-quarter).
	// Explicit dates are flag-only; a preset is the stable weekly default.
	Period       string `yaml:"period"`
	Compare      bool   `yaml:"compare"`
	CitationMode string `yaml:"citation_mode"`
	Precision    int    `yaml:"precision"`
	// PercentAllowlist overrides which metrics are scaled from ratios at
	// ingestion. Omit the key for the built-in default; an explicit empty
	// list disables scaling entirely.
	PercentAllowlist []string `yaml:"percent_allowlist,omitempty"`
	// RoleTemplate optionally points at a text file replacing the built-in
	// analyst role at the top of the prompt.
	RoleTemplate string `yaml:"role_template,omitempty"`
}

// SourceConfig declares one analytics source. Order in the file is the
// order sections appear in the prompt and the report.
type SourceConfig struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"` // file or http
	Path     string `yaml:"path,omitempty"`
	URL      string `yaml:"url,omitempty"`
	Token    string `yaml:"token,omitempty"`
	Timeout  string `yaml:"timeout,omitempty"`
	Required bool   `yaml:"required"`
	LagDays  int    `yaml:"lag_days,omitempty"`
}

// GeminiConfig holds narrative-generation settings. APIKey is filled from
// the environment and never written back to disk.
type GeminiConfig struct {
	APIKey          string  `yaml:"-"`
	Model           string  `yaml:"model"`
	Timeout         string  `yaml:"timeout"`
	Temperature     float32 `yaml:"temperature"`
	TopP            float32 `yaml:"top_p"`
	MaxOutputTokens int32   `yaml:"max_output_tokens"`
}

// StorageConfig controls the local run archive.
type StorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// OutputConfig controls where finished reports are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig selects the log level; --verbose overrides it.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the configuration weeklens init writes: weekly
// strict-mode reports from file exports, traffic required, search trailing
// three days.
func DefaultConfig() *Config {
	return &Config{
		Report: ReportConfig{
			Period:       "last-week",
			Compare:      true,
			CitationMode: string(citation.ModeStrict),
			Precision:    2,
		},
		Sources: []SourceConfig{
			{Name: string(schema.SourceTraffic), Kind: "file", Path: "exports", Required: true},
			{Name: string(schema.SourceSearch), Kind: "file", Path: "exports", LagDays: 3},
		},
		Gemini: GeminiConfig{
			Model:           "gemini-2.0-flash",
			Timeout:         "2m",
			Temperature:     0.2,
			TopP:            0.8,
			MaxOutputTokens: 8000,
		},
		Storage: StorageConfig{Enabled: true, Path: "weeklens.db"},
		Output:  OutputConfig{Dir: "reports"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the config file, layering it over the defaults and then the
// environment over both. A missing file is not an error: first runs work
// from defaults plus environment.
func Load(path string) (*Config, error) {
	loadDotEnv()

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes the config as YAML, creating parent directories as needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// loadDotEnv loads .env for local development. Absence is normal.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		// Malformed .env files surface later as missing keys; do not fail
		// config loading over a side file.
		return
	}
}

// applyEnvOverrides layers environment variables over the file values.
// Secrets are environment-only.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WEEKLENS_GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	} else if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("WEEKLENS_GEMINI_MODEL"); v != "" {
		cfg.Gemini.Model = v
	}
	if v := os.Getenv("WEEKLENS_CITATION_MODE"); v != "" {
		cfg.Report.CitationMode = v
	}
	if v := os.Getenv("WEEKLENS_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("WEEKLENS_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	for i := range cfg.Sources {
		env := "WEEKLENS_TOKEN_" + strings.ToUpper(cfg.Sources[i].Name)
		if v := os.Getenv(env); v != "" {
			cfg.Sources[i].Token = v
		}
	}
}

// Validate checks the configuration for structural mistakes. The Gemini
// key is deliberately not checked here: dry runs work without one and the
// generator reports it when generation is actually requested.
func (c *Config) Validate() error {
	mode := citation.Mode(c.Report.CitationMode)
	if mode != citation.ModeStrict && mode != citation.ModeLenient {
		return fmt.Errorf("config: citation_mode must be %q or %q, got %q",
			citation.ModeStrict, citation.ModeLenient, c.Report.CitationMode)
	}
	if c.Report.Precision < 0 || c.Report.Precision > 6 {
		return fmt.Errorf("config: precision must be between 0 and 6, got %d", c.Report.Precision)
	}

	if len(c.Sources) == 0 {
		return fmt.Errorf("config: at least one source must be configured")
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, src := range c.Sources {
		if !schema.Source(src.Name).Known() {
			return fmt.Errorf("config: unknown source %q", src.Name)
		}
		if seen[src.Name] {
			return fmt.Errorf("config: source %q configured twice", src.Name)
		}
		seen[src.Name] = true

		switch src.Kind {
		case "file":
			if src.Path == "" {
				return fmt.Errorf("config: source %q: file kind needs a path", src.Name)
			}
		case "http":
			if src.URL == "" {
				return fmt.Errorf("config: source %q: http kind needs a url", src.Name)
			}
		default:
			return fmt.Errorf("config: source %q: kind must be file or http, got %q", src.Name, src.Kind)
		}
		if src.LagDays < 0 {
			return fmt.Errorf("config: source %q: lag_days cannot be negative", src.Name)
		}
		if src.Timeout != "" {
			if _, err := time.ParseDuration(src.Timeout); err != nil {
				return fmt.Errorf("config: source %q: invalid timeout %q", src.Name, src.Timeout)
			}
		}
	}

	if c.Gemini.Model == "" {
		return fmt.Errorf("config: gemini model must be set")
	}
	if c.Gemini.Timeout != "" {
		if _, err := time.ParseDuration(c.Gemini.Timeout); err != nil {
			return fmt.Errorf("config: invalid gemini timeout %q", c.Gemini.Timeout)
		}
	}
	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		return fmt.Errorf("config: gemini temperature must be between 0 and 2, got %g", c.Gemini.Temperature)
	}
	if c.Gemini.TopP < 0 || c.Gemini.TopP > 1 {
		return fmt.Errorf("config: gemini top_p must be between 0 and 1, got %g", c.Gemini.TopP)
	}
	if c.Gemini.MaxOutputTokens <= 0 {
		return fmt.Errorf("config: gemini max_output_tokens must be positive")
	}

	if c.Storage.Enabled && c.Storage.Path == "" {
		return fmt.Errorf("config: storage enabled without a database path")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("config: output dir must be set")
	}
	return nil
}

// GetGeminiTimeout parses the configured generation timeout, falling back
// to two minutes on absence or parse failure.
func (c *Config) GetGeminiTimeout() time.Duration {
	if c.Gemini.Timeout != "" {
		if d, err := time.ParseDuration(c.Gemini.Timeout); err == nil {
			return d
		}
	}
	return 2 * time.Minute
}

// GetTimeout parses the per-source fetch timeout, falling back to thirty
// seconds.
func (s SourceConfig) GetTimeout() time.Duration {
	if s.Timeout != "" {
		if d, err := time.ParseDuration(s.Timeout); err == nil {
			return d
		}
	}
	return 30 * time.Second
}

// RoleText returns the prompt role: the override file when configured,
// otherwise empty so the composer uses its built-in role.
func (c *Config) RoleText() (string, error) {
	if c.Report.RoleTemplate == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.Report.RoleTemplate)
	if err != nil {
		return "", fmt.Errorf("config: read role template: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
