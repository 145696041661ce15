package coingecko

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"criptosee-api/pkg/confkit"
)

// Config describes the provider endpoint and paging behaviour.
type Config struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`

	PerPage  int `yaml:"per_page"`
	MaxPages int `yaml:"max_pages"`

	CooldownRaw    string        `yaml:"cooldown"`
	Cooldown       time.Duration `yaml:"-"`
	HTTPTimeoutRaw string        `yaml:"http_timeout"`
	HTTPTimeout    time.Duration `yaml:"-"`
}

// LoadConfig reads provider configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal provider config: %w", err)
	}

	if cfg.PerPage <= 0 {
		cfg.PerPage = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 3
	}
	if cfg.CooldownRaw != "" {
		d, err := time.ParseDuration(cfg.CooldownRaw)
		if err != nil {
			return nil, fmt.Errorf("provider config: parse cooldown: %w", err)
		}
		cfg.Cooldown = d
	}
	if cfg.HTTPTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.HTTPTimeoutRaw)
		if err != nil {
			return nil, fmt.Errorf("provider config: parse http_timeout: %w", err)
		}
		cfg.HTTPTimeout = d
	}
	return &cfg, nil
}
