package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.Equal(t, "gemini", cfg.LLM.DefaultProvider)
	assert.Equal(t, "https://export.arxiv.org/api/query", cfg.ArXiv.BaseURL)
	assert.Equal(t, 15*time.Minute, cfg.ArXiv.SearchCacheTTL)
	assert.Equal(t, ":8000", cfg.Gateway.Addr)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.False(t, cfg.Tracer.Enabled)
	require.NoError(t, Validate(cfg))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
agent:
  max_iterations: 5
llm:
  default_provider: claude
  providers:
    - name: claude
      type: bedrock
      model: anthropic.claude-3-5-sonnet-20241022-v2:0
      region: us-east-1
gateway:
  addr: ":9999"
digest:
  enabled: true
  schedule: "0 6 * * *"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, "claude", cfg.LLM.DefaultProvider)
	require.Len(t, cfg.LLM.Providers, 1)
	assert.Equal(t, "bedrock", cfg.LLM.Providers[0].Type)
	assert.Equal(t, ":9999", cfg.Gateway.Addr)
	assert.True(t, cfg.Digest.Enabled)
	// Untouched sections keep defaults.
	assert.Equal(t, "https://export.arxiv.org/api/query", cfg.ArXiv.BaseURL)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SCHOLAR_LOGGER_LEVEL", "debug")
	t.Setenv("SCHOLAR_GATEWAY_ADDR", ":7777")
	t.Setenv("SCHOLAR_AGENT_MAX_ITERATIONS", "3")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, ":7777", cfg.Gateway.Addr)
	assert.Equal(t, 3, cfg.Agent.MaxIterations)
}

func TestEnvProviderAPIKey(t *testing.T) {
	t.Setenv("SCHOLAR_LLM_PROVIDER_GEMINI_API_KEY", "sk-from-env")

	cfg := Defaults()
	cfg.LLM.Providers = []ProviderConfig{{Name: "gemini", Type: "gemini"}}
	ApplyEnvOverrides(cfg)

	assert.Equal(t, "sk-from-env", cfg.LLM.Providers[0].APIKey)
}

func TestGeminiAPIKeyFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "sk-fallback")

	cfg := Defaults()
	cfg.LLM.Providers = []ProviderConfig{
		{Name: "gemini", Type: "gemini"},
		{Name: "other", Type: "gemini", APIKey: "sk-explicit"},
	}
	ApplyEnvOverrides(cfg)

	assert.Equal(t, "sk-fallback", cfg.LLM.Providers[0].APIKey)
	assert.Equal(t, "sk-explicit", cfg.LLM.Providers[1].APIKey)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero iterations", func(c *Config) { c.Agent.MaxIterations = 0 }},
		{"bad provider type", func(c *Config) {
			c.LLM.Providers = []ProviderConfig{{Name: "x", Type: "openai"}}
		}},
		{"duplicate provider", func(c *Config) {
			c.LLM.Providers = []ProviderConfig{
				{Name: "a", Type: "gemini"},
				{Name: "a", Type: "gemini"},
			}
		}},
		{"unknown default provider", func(c *Config) {
			c.LLM.Providers = []ProviderConfig{{Name: "a", Type: "gemini"}}
			c.LLM.DefaultProvider = "b"
		}},
		{"bad arxiv url", func(c *Config) { c.ArXiv.BaseURL = "ftp://example.com" }},
		{"arxiv max_results out of range", func(c *Config) { c.ArXiv.MaxResults = 0 }},
		{"empty store path", func(c *Config) { c.Store.Path = "" }},
		{"digest without schedule", func(c *Config) {
			c.Digest.Enabled = true
			c.Digest.Schedule = ""
		}},
		{"bad safety margin", func(c *Config) {
			c.Agent.ContextGuard.Enabled = true
			c.Agent.ContextGuard.SafetyMargin = 1.5
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}
