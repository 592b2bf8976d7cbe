package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("WEEKLENS_GEMINI_API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("WEEKLENS_GEMINI_API_KEY", "")

	path := filepath.Join(t.TempDir(), "weeklens.yaml")

	cfg := DefaultConfig()
	cfg.Report.CitationMode = "lenient"
	cfg.Report.Precision = 1
	cfg.Sources = append(cfg.Sources, SourceConfig{
		Name: "ads", Kind: "http", URL: "https://exports.example.com/ads",
		Timeout: "15s", LagDays: 1,
	})
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("WEEKLENS_GEMINI_API_KEY", "")

	path := filepath.Join(t.TempDir(), "weeklens.yaml")
	partial := []byte("report:\n  citation_mode: lenient\n")
	require.NoError(t, os.WriteFile(path, partial, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lenient", cfg.Report.CitationMode)
	// Untouched keys keep their defaults.
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Len(t, cfg.Sources, 2)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "fallback-key")
	t.Setenv("WEEKLENS_GEMINI_API_KEY", "primary-key")
	t.Setenv("WEEKLENS_CITATION_MODE", "lenient")
	t.Setenv("WEEKLENS_TOKEN_TRAFFIC", "bearer-abc")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "primary-key", cfg.Gemini.APIKey)
	assert.Equal(t, "lenient", cfg.Report.CitationMode)
	assert.Equal(t, "bearer-abc", cfg.Sources[0].Token)
}

func TestGeminiKeyFallsBackToUnprefixedEnv(t *testing.T) {
	t.Setenv("WEEKLENS_GEMINI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "fallback-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "fallback-key", cfg.Gemini.APIKey)
}

func TestAPIKeyNeverSerialized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weeklens.yaml")

	cfg := DefaultConfig()
	cfg.Gemini.APIKey = "super-secret"
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-secret")
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown mode", func(c *Config) { c.Report.CitationMode = "loose" }, "citation_mode"},
		{"negative precision", func(c *Config) { c.Report.Precision = -1 }, "precision"},
		{"no sources", func(c *Config) { c.Sources = nil }, "at least one source"},
		{"unknown source", func(c *Config) { c.Sources[0].Name = "social" }, "unknown source"},
		{"duplicate source", func(c *Config) { c.Sources = append(c.Sources, c.Sources[0]) }, "configured twice"},
		{"bad kind", func(c *Config) { c.Sources[0].Kind = "ftp" }, "kind must be"},
		{"file without path", func(c *Config) { c.Sources[0].Path = "" }, "needs a path"},
		{"http without url", func(c *Config) { c.Sources[0].Kind = "http"; c.Sources[0].Path = "" }, "needs a url"},
		{"negative lag", func(c *Config) { c.Sources[0].LagDays = -2 }, "lag_days"},
		{"bad source timeout", func(c *Config) { c.Sources[0].Timeout = "fast" }, "invalid timeout"},
		{"empty model", func(c *Config) { c.Gemini.Model = "" }, "model"},
		{"bad gemini timeout", func(c *Config) { c.Gemini.Timeout = "soon" }, "gemini timeout"},
		{"temperature range", func(c *Config) { c.Gemini.Temperature = 3 }, "temperature"},
		{"top_p range", func(c *Config) { c.Gemini.TopP = 1.5 }, "top_p"},
		{"zero max tokens", func(c *Config) { c.Gemini.MaxOutputTokens = 0 }, "max_output_tokens"},
		{"storage without path", func(c *Config) { c.Storage.Path = "" }, "database path"},
		{"empty output dir", func(c *Config) { c.Output.Dir = "" }, "output dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGetGeminiTimeout(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "2m", cfg.Gemini.Timeout)

	cfg.Gemini.Timeout = "45s"
	assert.Equal(t, float64(45), cfg.GetGeminiTimeout().Seconds())

	cfg.Gemini.Timeout = ""
	assert.Equal(t, float64(120), cfg.GetGeminiTimeout().Seconds())
}

func TestRoleText(t *testing.T) {
	cfg := DefaultConfig()

	text, err := cfg.RoleText()
	require.NoError(t, err)
	assert.Empty(t, text)

	path := filepath.Join(t.TempDir(), "role.txt")
	require.NoError(t, os.WriteFile(path, []byte("You are the staff analyst.\n"), 0o644))
	cfg.Report.RoleTemplate = path

	text, err = cfg.RoleText()
	require.NoError(t, err)
	assert.Equal(t, "You are the staff analyst.", text)

	cfg.Report.RoleTemplate = filepath.Join(t.TempDir(), "missing.txt")
	_, err = cfg.RoleText()
	assert.Error(t, err)
}
