package llm

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
base_url: https://gateway.example.com/v1
api_key: test-key
default_model: fast
timeout: 45s
max_retries: 2
log_level: debug
models:
  fast:
    model_name: gpt-4o-mini
    temperature: 0.3
  deep:
    model_name: gpt-4o
    max_completion_tokens: 2048
`

func TestLoadConfigFromReader(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(sampleConfig))
	require.NoError(t, err)
	require.Equal(t, "https://gateway.example.com/v1", cfg.BaseURL)
	require.Equal(t, "fast", cfg.DefaultModel)
	require.Equal(t, 45*time.Second, cfg.Timeout)
	require.Equal(t, 2, cfg.MaxRetries)

	fast, ok := cfg.Model("fast")
	require.True(t, ok)
	require.Equal(t, "gpt-4o-mini", ResolveModelID("fast", fast))
	require.NotNil(t, fast.Temperature)
	require.InDelta(t, 0.3, *fast.Temperature, 1e-9)

	_, ok = cfg.Model("missing")
	require.False(t, ok)
	require.Equal(t, "missing", ResolveModelID("missing", ModelConfig{}))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader("api_key: k\ndefault_model: m\n"))
	require.NoError(t, err)
	require.Equal(t, defaultBaseURL, cfg.BaseURL)
	require.Equal(t, defaultTimeout, cfg.Timeout)
	require.Equal(t, defaultMaxRetries, cfg.MaxRetries)
}

func TestLoadConfigValidation(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("base_url: x\n"))
	require.Error(t, err)

	_, err = LoadConfigFromReader(strings.NewReader("api_key: k\ndefault_model: m\ntimeout: nonsense\n"))
	require.Error(t, err)
}

func TestConfigClone(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	dup := cfg.Clone()
	dup.Models["fast"] = ModelConfig{ModelName: "changed"}
	fast, _ := cfg.Model("fast")
	require.Equal(t, "gpt-4o-mini", fast.ModelName)
}
