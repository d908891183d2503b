// Package config loads, validates, and watches the gateway configuration.
package config

import "time"

// Config is the root configuration structure for the Hermes gateway.
type Config struct {
	// Server contains the HTTP/WebSocket listener configuration.
	Server ServerConfig `yaml:"server"`

	// Gateway contains connection registry limits and maintenance loops.
	Gateway GatewayConfig `yaml:"gateway"`

	// Stream contains the streaming pipeline's retry and recovery policy.
	Stream StreamConfig `yaml:"stream"`

	// Provider contains transport settings for the upstream backend.
	Provider ProviderConfig `yaml:"provider"`

	// Accounts lists the upstream accounts available for selection.
	Accounts []AccountConfig `yaml:"accounts"`

	// Auth lists the client tokens accepted by the in-process
	// authenticator. Production deployments typically validate tokens
	// externally and leave this empty.
	Auth AuthConfig `yaml:"auth"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Audit contains the lifecycle-event audit store configuration.
	Audit AuditConfig `yaml:"audit"`
}

// ServerConfig contains configuration for the listener.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8990"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds reading of plain HTTP requests. It does not
	// apply to established WebSocket connections.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds plain HTTP response writes.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown before in-flight connections are dropped.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AllowedOrigins lists Origin headers accepted for browser
	// WebSocket upgrades. Empty means same-origin only.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GatewayConfig contains connection registry limits and loop intervals.
type GatewayConfig struct {
	// MaxConnections is the system-wide connection cap. Registration
	// beyond it is rejected.
	// Default: 10000
	MaxConnections int `yaml:"max_connections"`

	// MaxPerUser is the per-user connection cap. Registration beyond it
	// evicts the user's oldest connection.
	// Default: 5
	MaxPerUser int `yaml:"max_per_user"`

	// SendTimeout bounds a single frame write. Expiry drops the frame
	// without erroring the connection.
	// Default: 15s
	SendTimeout time.Duration `yaml:"send_timeout"`

	// HeartbeatInterval is how often a heartbeat frame is pushed to
	// every connection.
	// Default: 30s
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// ReaperInterval is how often stale connections are scanned for.
	// Default: 60s
	ReaperInterval time.Duration `yaml:"reaper_interval"`

	// ConnectionTimeout is the ping-staleness threshold used by the
	// reaper. A connection is removed only when last_ping exceeds this,
	// last_activity exceeds twice this, and consecutive send errors
	// reached the error threshold.
	// Default: 300s
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`

	// RateLimitPerSecond caps inbound frames per connection. Zero
	// disables rate limiting.
	// Default: 20
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`

	// RateLimitBurst is the rate limiter burst size.
	// Default: 40
	RateLimitBurst int `yaml:"rate_limit_burst"`
}

// StreamConfig contains the pipeline retry and circuit breaker policy.
type StreamConfig struct {
	// MaxRetries is the number of streaming retry attempts after the
	// initial one (3 to 5 is typical).
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// BackoffBase is the base delay; attempt N sleeps
	// min(base * 2^N, BackoffMax).
	// Default: 1s
	BackoffBase time.Duration `yaml:"backoff_base"`

	// BackoffMax caps the exponential backoff delay.
	// Default: 30s
	BackoffMax time.Duration `yaml:"backoff_max"`

	// RecoveryWindow is how long a failed account is excluded from
	// selection.
	// Default: 5m
	RecoveryWindow time.Duration `yaml:"recovery_window"`
}

// ProviderConfig contains transport settings for the upstream backend.
type ProviderConfig struct {
	// Timeout bounds non-streaming calls and stream establishment.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxIdleConns is the connection pool size.
	// Default: 100
	MaxIdleConns int `yaml:"max_idle_conns"`

	// MaxIdleConnsPerHost is the per-host pool size.
	// Default: 10
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`

	// IdleConnTimeout is how long idle connections stay pooled.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// AccountConfig describes one upstream account.
type AccountConfig struct {
	// ID is the opaque account identifier
	ID string `yaml:"id"`

	// APIKey authenticates against the upstream. The HERMES_ACCOUNT_
	// <ID>_API_KEY environment variable overrides it.
	APIKey string `yaml:"api_key"`

	// BaseURL is the account's API endpoint
	BaseURL string `yaml:"base_url"`

	// Model is the default model for this account
	Model string `yaml:"model"`
}

// AuthConfig contains the in-process token table.
type AuthConfig struct {
	// Tokens maps client tokens to user ids
	Tokens []TokenConfig `yaml:"tokens"`
}

// TokenConfig describes one accepted client token.
type TokenConfig struct {
	Token   string `yaml:"token"`
	UserID  string `yaml:"user_id"`
	Enabled bool   `yaml:"enabled"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII enables automatic redaction of tokens and keys in logs.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether /metrics is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	// Default: "hermes"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric name subsystem.
	// Default: "gateway"
	Subsystem string `yaml:"subsystem"`
}

// AuditConfig contains the lifecycle-event audit store configuration.
// Conversation content is never persisted; only lifecycle metadata.
type AuditConfig struct {
	// Enabled controls whether lifecycle events are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the store ("sqlite" or "memory").
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file path for the sqlite backend.
	// Default: "data/audit.db"
	SQLitePath string `yaml:"sqlite_path"`

	// BufferSize is the async recorder queue depth; events beyond it
	// are dropped rather than blocking the hot path.
	// Default: 1000
	BufferSize int `yaml:"buffer_size"`

	// RetentionDays is how long events are kept.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// RetentionSchedule is the cron expression for the pruning job.
	// Default: "0 3 * * *"
	RetentionSchedule string `yaml:"retention_schedule"`
}
