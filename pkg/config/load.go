package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults and
// environment overrides, and validates the result.
//
// The loading sequence is:
//  1. Start from NewDefault (defaults including default-true booleans)
//  2. Unmarshal YAML over it
//  3. Re-apply defaults for fields the file zeroed
//  4. Apply HERMES_* environment variable overrides
//  5. Validate
func LoadConfig(path string) (*Config, error) {
	cfg := NewDefault()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
		ApplyDefaults(cfg)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides using the
// HERMES_SECTION_FIELD naming convention. Environment variables always
// take precedence over file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("HERMES_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if d, ok := envDuration("HERMES_SERVER_SHUTDOWN_TIMEOUT"); ok {
		cfg.Server.ShutdownTimeout = d
	}

	if n, ok := envInt("HERMES_GATEWAY_MAX_CONNECTIONS"); ok {
		cfg.Gateway.MaxConnections = n
	}
	if n, ok := envInt("HERMES_GATEWAY_MAX_PER_USER"); ok {
		cfg.Gateway.MaxPerUser = n
	}
	if d, ok := envDuration("HERMES_GATEWAY_SEND_TIMEOUT"); ok {
		cfg.Gateway.SendTimeout = d
	}
	if d, ok := envDuration("HERMES_GATEWAY_CONNECTION_TIMEOUT"); ok {
		cfg.Gateway.ConnectionTimeout = d
	}

	if n, ok := envInt("HERMES_STREAM_MAX_RETRIES"); ok {
		cfg.Stream.MaxRetries = n
	}
	if d, ok := envDuration("HERMES_STREAM_RECOVERY_WINDOW"); ok {
		cfg.Stream.RecoveryWindow = d
	}

	if val := os.Getenv("HERMES_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("HERMES_AUDIT_SQLITE_PATH"); val != "" {
		cfg.Audit.SQLitePath = val
	}

	// Per-account API key overrides: HERMES_ACCOUNT_<ID>_API_KEY, with
	// the account id upper-cased and dashes mapped to underscores.
	for i := range cfg.Accounts {
		key := "HERMES_ACCOUNT_" + envKey(cfg.Accounts[i].ID) + "_API_KEY"
		if val := os.Getenv(key); val != "" {
			cfg.Accounts[i].APIKey = val
		}
	}
}

func envKey(id string) string {
	return strings.ToUpper(strings.ReplaceAll(id, "-", "_"))
}

func envInt(name string) (int, bool) {
	val := os.Getenv(name)
	if val == "" {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envDuration(name string) (time.Duration, bool) {
	val := os.Getenv(name)
	if val == "" {
		return 0, false
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, false
	}
	return d, true
}
