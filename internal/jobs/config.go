package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"criptosee-api/pkg/confkit"
)

// Config tunes job cadence and batch limits. Schedules use robfig/cron
// spec syntax (including @every).
type Config struct {
	SyncSchedule     string `yaml:"sync_schedule"`
	EvaluateSchedule string `yaml:"evaluate_schedule"`

	// Per-tier generation schedules, staggered so tiers do not contend
	// for the LLM at the same instant.
	PredictSchedules map[string]string `yaml:"predict_schedules"`

	HistoryKeep   int `yaml:"history_keep"`
	HistoryWindow int `yaml:"history_window"`
	EvaluateBatch int `yaml:"evaluate_batch"`

	PromptTemplate string `yaml:"prompt_template"`
	Model          string `yaml:"model"`

	LeaseTTLRaw string        `yaml:"lease_ttl"`
	LeaseTTL    time.Duration `yaml:"-"`
}

// DefaultConfig returns the built-in job cadence.
func DefaultConfig() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// LoadConfig reads job configuration from disk and applies defaults.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal jobs config: %w", err)
	}
	cfg.applyDefaults()

	if cfg.PromptTemplate != "" {
		cfg.PromptTemplate = confkit.ResolvePath(filepath.Dir(path), cfg.PromptTemplate)
	}
	if cfg.LeaseTTLRaw != "" {
		d, err := time.ParseDuration(cfg.LeaseTTLRaw)
		if err != nil {
			return nil, fmt.Errorf("jobs config: parse lease_ttl: %w", err)
		}
		cfg.LeaseTTL = d
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SyncSchedule == "" {
		c.SyncSchedule = "@every 30s"
	}
	if c.EvaluateSchedule == "" {
		c.EvaluateSchedule = "@every 1m"
	}
	if c.PredictSchedules == nil {
		c.PredictSchedules = map[string]string{
			TierFree:    "@every 30m",
			TierBasic:   "@every 15m",
			TierPremium: "@every 10m",
		}
	}
	if c.HistoryKeep <= 0 {
		c.HistoryKeep = 2880
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 26
	}
	if c.EvaluateBatch <= 0 {
		c.EvaluateBatch = 200
	}
}

// Schedule returns the generation schedule for a tier, falling back to a
// conservative default for unknown tiers.
func (c *Config) Schedule(tier string) string {
	if s, ok := c.PredictSchedules[tier]; ok && s != "" {
		return s
	}
	return "@every 30m"
}
