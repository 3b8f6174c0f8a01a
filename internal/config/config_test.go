package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fabrik.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/fabrik
api:
  host: 127.0.0.1
  port: 8080
  api_key: secret
provider:
  type: openai
  api_key: sk-test
  model: gpt-4o
develop:
  timeout_sec: 60
  block_strategy: concat
  stale_after_min: 10
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/var/lib/fabrik" {
		t.Errorf("data_dir = %q", cfg.DataDir)
	}
	if cfg.API.Port != 8080 || cfg.API.Key != "secret" {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Provider.Type != "openai" || cfg.Provider.Model != "gpt-4o" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Develop.Timeout() != 60*time.Second {
		t.Errorf("timeout = %v", cfg.Develop.Timeout())
	}
	if cfg.Develop.StaleAfter() != 10*time.Minute {
		t.Errorf("stale after = %v", cfg.Develop.StaleAfter())
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
provider:
  api_key: k
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.Port != 3000 {
		t.Errorf("default port = %d", cfg.API.Port)
	}
	if cfg.Provider.Type != "gemini" {
		t.Errorf("default provider = %q", cfg.Provider.Type)
	}
	if cfg.Develop.BlockStrategy != "first" {
		t.Errorf("default strategy = %q", cfg.Develop.BlockStrategy)
	}
	if cfg.Develop.Timeout() != 180*time.Second {
		t.Errorf("default timeout = %v", cfg.Develop.Timeout())
	}
}

func TestLoad_ValidationCollectsAllErrors(t *testing.T) {
	path := writeConfig(t, `
provider:
  type: cohere
develop:
  block_strategy: random
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"provider.api_key", "provider.type", "block_strategy"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FABRIK_DATA_DIR", "/tmp/fabrik")
	t.Setenv("FABRIK_API_PORT", "9090")
	t.Setenv("FABRIK_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load from env: %v", err)
	}
	if cfg.DataDir != "/tmp/fabrik" || cfg.API.Port != 9090 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Provider.APIKey != "g-key" {
		t.Errorf("conventional key not picked up: %+v", cfg.Provider)
	}
}

func TestLoadFromEnv_SlackRequiresChannel(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("FABRIK_SLACK_BOT_TOKEN", "xoxb-1")

	_, err := LoadFromEnv()
	if err == nil || !strings.Contains(err.Error(), "slack.channel") {
		t.Fatalf("expected slack.channel error, got %v", err)
	}
}
