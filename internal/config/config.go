// Package config loads daemon configuration from a YAML file or, when no
// file is given, from FABRIK_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level fabrikd configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	API      APIConfig      `yaml:"api"`
	Provider ProviderConfig `yaml:"provider"`
	Develop  DevelopConfig  `yaml:"develop"`
	Slack    *SlackConfig   `yaml:"slack,omitempty"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Key  string `yaml:"api_key,omitempty"` // Bearer auth, empty disables
}

// ProviderConfig holds generative source settings.
type ProviderConfig struct {
	Type    string `yaml:"type"` // "gemini" (default) or "openai"
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// DevelopConfig tunes the develop pipeline.
type DevelopConfig struct {
	// TimeoutSec bounds one generative call. 0 = default 180.
	TimeoutSec int `yaml:"timeout_sec,omitempty"`
	// BlockStrategy selects the code block used when a section has
	// several: first (default), last or concat.
	BlockStrategy string `yaml:"block_strategy,omitempty"`
	// StaleAfterMin force-fails tickets stuck in_progress longer than
	// this many minutes. 0 = default 30.
	StaleAfterMin int `yaml:"stale_after_min,omitempty"`
}

// SlackConfig enables the Slack progress sink.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// Timeout returns the effective generative call bound.
func (d DevelopConfig) Timeout() time.Duration {
	if d.TimeoutSec > 0 {
		return time.Duration(d.TimeoutSec) * time.Second
	}
	return 180 * time.Second
}

// StaleAfter returns the effective stuck-ticket bound.
func (d DevelopConfig) StaleAfter() time.Duration {
	if d.StaleAfterMin > 0 {
		return time.Duration(d.StaleAfterMin) * time.Minute
	}
	return 30 * time.Minute
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a config from FABRIK_-prefixed environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DataDir: getenv("FABRIK_DATA_DIR", "./data"),
		API: APIConfig{
			Host: getenv("FABRIK_API_HOST", "0.0.0.0"),
			Port: getenvInt("FABRIK_API_PORT", 3000),
			Key:  os.Getenv("FABRIK_API_KEY"),
		},
		Provider: ProviderConfig{
			Type:    getenv("FABRIK_PROVIDER", "gemini"),
			APIKey:  os.Getenv("FABRIK_PROVIDER_API_KEY"),
			Model:   os.Getenv("FABRIK_MODEL"),
			BaseURL: os.Getenv("FABRIK_PROVIDER_BASE_URL"),
		},
		Develop: DevelopConfig{
			TimeoutSec:    getenvInt("FABRIK_DEVELOP_TIMEOUT_SEC", 0),
			BlockStrategy: os.Getenv("FABRIK_BLOCK_STRATEGY"),
			StaleAfterMin: getenvInt("FABRIK_STALE_AFTER_MIN", 0),
		},
	}

	// Provider keys also resolve from their conventional variables.
	if cfg.Provider.APIKey == "" {
		switch cfg.Provider.Type {
		case "openai":
			cfg.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
		default:
			cfg.Provider.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	if token := os.Getenv("FABRIK_SLACK_BOT_TOKEN"); token != "" {
		cfg.Slack = &SlackConfig{
			BotToken: token,
			Channel:  os.Getenv("FABRIK_SLACK_CHANNEL"),
		}
	}

	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 3000
	}
	if c.Provider.Type == "" {
		c.Provider.Type = "gemini"
	}
	if c.Develop.BlockStrategy == "" {
		c.Develop.BlockStrategy = "first"
	}
}

// Validate checks required fields, collecting every problem.
func (c *Config) Validate() error {
	var errs []string

	if c.Provider.APIKey == "" {
		errs = append(errs, "provider.api_key is required")
	}
	switch c.Provider.Type {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Sprintf("provider.type %q is not supported", c.Provider.Type))
	}
	switch c.Develop.BlockStrategy {
	case "first", "last", "concat":
	default:
		errs = append(errs, fmt.Sprintf("develop.block_strategy %q is not one of first, last, concat", c.Develop.BlockStrategy))
	}
	if c.Slack != nil {
		if c.Slack.BotToken == "" {
			errs = append(errs, "slack.bot_token is required")
		}
		if c.Slack.Channel == "" {
			errs = append(errs, "slack.channel is required")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
