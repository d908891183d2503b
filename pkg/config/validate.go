package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks the configuration for inconsistencies. It returns the
// first error found.
func Validate(cfg *Config) error {
	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddress); err != nil {
		return fmt.Errorf("server.listen_address %q is not host:port: %w", cfg.Server.ListenAddress, err)
	}

	if cfg.Gateway.MaxConnections < 1 {
		return fmt.Errorf("gateway.max_connections must be positive, got %d", cfg.Gateway.MaxConnections)
	}
	if cfg.Gateway.MaxPerUser < 1 {
		return fmt.Errorf("gateway.max_per_user must be positive, got %d", cfg.Gateway.MaxPerUser)
	}
	if cfg.Gateway.MaxPerUser > cfg.Gateway.MaxConnections {
		return fmt.Errorf("gateway.max_per_user (%d) exceeds gateway.max_connections (%d)",
			cfg.Gateway.MaxPerUser, cfg.Gateway.MaxConnections)
	}
	if cfg.Gateway.SendTimeout <= 0 {
		return fmt.Errorf("gateway.send_timeout must be positive")
	}
	if cfg.Gateway.ConnectionTimeout <= 0 {
		return fmt.Errorf("gateway.connection_timeout must be positive")
	}

	if cfg.Stream.MaxRetries < 0 {
		return fmt.Errorf("stream.max_retries must not be negative, got %d", cfg.Stream.MaxRetries)
	}
	if cfg.Stream.BackoffBase <= 0 {
		return fmt.Errorf("stream.backoff_base must be positive")
	}
	if cfg.Stream.BackoffMax < cfg.Stream.BackoffBase {
		return fmt.Errorf("stream.backoff_max (%s) is below stream.backoff_base (%s)",
			cfg.Stream.BackoffMax, cfg.Stream.BackoffBase)
	}
	if cfg.Stream.RecoveryWindow <= 0 {
		return fmt.Errorf("stream.recovery_window must be positive")
	}

	seen := make(map[string]bool, len(cfg.Accounts))
	for i, acct := range cfg.Accounts {
		if acct.ID == "" {
			return fmt.Errorf("accounts[%d]: id is required", i)
		}
		if seen[acct.ID] {
			return fmt.Errorf("accounts[%d]: duplicate account id %q", i, acct.ID)
		}
		seen[acct.ID] = true
		if acct.BaseURL == "" {
			return fmt.Errorf("account %q: base_url is required", acct.ID)
		}
		if !strings.HasPrefix(acct.BaseURL, "http://") && !strings.HasPrefix(acct.BaseURL, "https://") {
			return fmt.Errorf("account %q: base_url must start with http:// or https://", acct.ID)
		}
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry.logging.level %q is not one of debug, info, warn, error",
			cfg.Telemetry.Logging.Level)
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("telemetry.logging.format %q is not one of json, text",
			cfg.Telemetry.Logging.Format)
	}

	switch cfg.Audit.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("audit.backend %q is not one of sqlite, memory", cfg.Audit.Backend)
	}
	if cfg.Audit.Enabled && cfg.Audit.Backend == "sqlite" && cfg.Audit.SQLitePath == "" {
		return fmt.Errorf("audit.sqlite_path is required for the sqlite backend")
	}

	return nil
}
