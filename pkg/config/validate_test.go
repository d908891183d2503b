package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := NewDefault()
	cfg.Accounts = []AccountConfig{
		{ID: "primary", APIKey: "sk-1", BaseURL: "https://api.example.com/v1", Model: "gpt-4"},
	}
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "bad listen address",
			mutate:  func(c *Config) { c.Server.ListenAddress = "not-an-address" },
			wantErr: "listen_address",
		},
		{
			name:    "zero max connections",
			mutate:  func(c *Config) { c.Gateway.MaxConnections = -1 },
			wantErr: "max_connections",
		},
		{
			name: "per-user cap above global cap",
			mutate: func(c *Config) {
				c.Gateway.MaxConnections = 2
				c.Gateway.MaxPerUser = 5
			},
			wantErr: "max_per_user",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Stream.MaxRetries = -1 },
			wantErr: "max_retries",
		},
		{
			name: "backoff max below base",
			mutate: func(c *Config) {
				c.Stream.BackoffBase = 10 * DefaultBackoffBase
				c.Stream.BackoffMax = DefaultBackoffBase
			},
			wantErr: "backoff_max",
		},
		{
			name: "duplicate account id",
			mutate: func(c *Config) {
				c.Accounts = append(c.Accounts, c.Accounts[0])
			},
			wantErr: "duplicate",
		},
		{
			name: "account missing base url",
			mutate: func(c *Config) {
				c.Accounts[0].BaseURL = ""
			},
			wantErr: "base_url",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "unknown audit backend",
			mutate:  func(c *Config) { c.Audit.Backend = "postgres" },
			wantErr: "audit.backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}
