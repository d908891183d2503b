package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hermes.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Gateway.MaxPerUser != DefaultMaxPerUser {
		t.Errorf("MaxPerUser = %d", cfg.Gateway.MaxPerUser)
	}
	if cfg.Gateway.SendTimeout != 15*time.Second {
		t.Errorf("SendTimeout = %s", cfg.Gateway.SendTimeout)
	}
	if cfg.Stream.RecoveryWindow != 5*time.Minute {
		t.Errorf("RecoveryWindow = %s", cfg.Stream.RecoveryWindow)
	}
	if !cfg.Telemetry.Logging.RedactPII {
		t.Error("RedactPII should default to true")
	}
	if !cfg.Audit.Enabled {
		t.Error("Audit.Enabled should default to true")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9001"
gateway:
  max_per_user: 3
  send_timeout: 5s
stream:
  max_retries: 5
  recovery_window: 2m
accounts:
  - id: primary
    api_key: sk-abc
    base_url: https://api.example.com/v1
    model: gpt-4
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:9001" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Gateway.MaxPerUser != 3 {
		t.Errorf("MaxPerUser = %d", cfg.Gateway.MaxPerUser)
	}
	if cfg.Stream.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d", cfg.Stream.MaxRetries)
	}
	// Unspecified fields keep their defaults.
	if cfg.Gateway.MaxConnections != DefaultMaxConnections {
		t.Errorf("MaxConnections = %d", cfg.Gateway.MaxConnections)
	}
	if len(cfg.Accounts) != 1 || cfg.Accounts[0].ID != "primary" {
		t.Errorf("Accounts = %+v", cfg.Accounts)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
gateway:
  max_per_user: 3
accounts:
  - id: primary
    base_url: https://api.example.com/v1
`)

	t.Setenv("HERMES_GATEWAY_MAX_PER_USER", "7")
	t.Setenv("HERMES_STREAM_RECOVERY_WINDOW", "90s")
	t.Setenv("HERMES_ACCOUNT_PRIMARY_API_KEY", "sk-from-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Gateway.MaxPerUser != 7 {
		t.Errorf("MaxPerUser = %d, want env override 7", cfg.Gateway.MaxPerUser)
	}
	if cfg.Stream.RecoveryWindow != 90*time.Second {
		t.Errorf("RecoveryWindow = %s", cfg.Stream.RecoveryWindow)
	}
	if cfg.Accounts[0].APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q, want env override", cfg.Accounts[0].APIKey)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/hermes.yaml")
	if err == nil {
		t.Fatal("LoadConfig() expected error for missing file")
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig() expected parse error")
	}
}
