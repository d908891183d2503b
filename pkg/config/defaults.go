package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8990"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Gateway defaults
	DefaultMaxConnections     = 10000
	DefaultMaxPerUser         = 5
	DefaultSendTimeout        = 15 * time.Second
	DefaultHeartbeatInterval  = 30 * time.Second
	DefaultReaperInterval     = 60 * time.Second
	DefaultConnectionTimeout  = 300 * time.Second
	DefaultRateLimitPerSecond = 20.0
	DefaultRateLimitBurst     = 40

	// Stream defaults
	DefaultMaxRetries     = 3
	DefaultBackoffBase    = 1 * time.Second
	DefaultBackoffMax     = 30 * time.Second
	DefaultRecoveryWindow = 5 * time.Minute

	// Provider defaults
	DefaultProviderTimeout     = 60 * time.Second
	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 10
	DefaultIdleConnTimeout     = 90 * time.Second

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultLogRedactPII     = true
	DefaultMetricsEnabled   = true
	DefaultMetricsNamespace = "hermes"
	DefaultMetricsSubsystem = "gateway"

	// Audit defaults
	DefaultAuditEnabled           = true
	DefaultAuditBackend           = "sqlite"
	DefaultAuditSQLitePath        = "data/audit.db"
	DefaultAuditBufferSize        = 1000
	DefaultAuditRetentionDays     = 30
	DefaultAuditRetentionSchedule = "0 3 * * *"
)

// ApplyDefaults fills in zero-valued fields with defaults. Booleans that
// default to true are handled in LoadConfig before unmarshalling, since
// a zero bool is indistinguishable from explicit false here.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Gateway.MaxConnections == 0 {
		cfg.Gateway.MaxConnections = DefaultMaxConnections
	}
	if cfg.Gateway.MaxPerUser == 0 {
		cfg.Gateway.MaxPerUser = DefaultMaxPerUser
	}
	if cfg.Gateway.SendTimeout == 0 {
		cfg.Gateway.SendTimeout = DefaultSendTimeout
	}
	if cfg.Gateway.HeartbeatInterval == 0 {
		cfg.Gateway.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Gateway.ReaperInterval == 0 {
		cfg.Gateway.ReaperInterval = DefaultReaperInterval
	}
	if cfg.Gateway.ConnectionTimeout == 0 {
		cfg.Gateway.ConnectionTimeout = DefaultConnectionTimeout
	}
	if cfg.Gateway.RateLimitPerSecond == 0 {
		cfg.Gateway.RateLimitPerSecond = DefaultRateLimitPerSecond
	}
	if cfg.Gateway.RateLimitBurst == 0 {
		cfg.Gateway.RateLimitBurst = DefaultRateLimitBurst
	}

	if cfg.Stream.MaxRetries == 0 {
		cfg.Stream.MaxRetries = DefaultMaxRetries
	}
	if cfg.Stream.BackoffBase == 0 {
		cfg.Stream.BackoffBase = DefaultBackoffBase
	}
	if cfg.Stream.BackoffMax == 0 {
		cfg.Stream.BackoffMax = DefaultBackoffMax
	}
	if cfg.Stream.RecoveryWindow == 0 {
		cfg.Stream.RecoveryWindow = DefaultRecoveryWindow
	}

	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = DefaultProviderTimeout
	}
	if cfg.Provider.MaxIdleConns == 0 {
		cfg.Provider.MaxIdleConns = DefaultMaxIdleConns
	}
	if cfg.Provider.MaxIdleConnsPerHost == 0 {
		cfg.Provider.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}
	if cfg.Provider.IdleConnTimeout == 0 {
		cfg.Provider.IdleConnTimeout = DefaultIdleConnTimeout
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}

	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.SQLitePath == "" {
		cfg.Audit.SQLitePath = DefaultAuditSQLitePath
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = DefaultAuditBufferSize
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = DefaultAuditRetentionDays
	}
	if cfg.Audit.RetentionSchedule == "" {
		cfg.Audit.RetentionSchedule = DefaultAuditRetentionSchedule
	}
}

// NewDefault returns a configuration with every default applied and the
// default-true booleans set. It is the starting point for LoadConfig.
func NewDefault() *Config {
	cfg := &Config{}
	cfg.Telemetry.Logging.RedactPII = DefaultLogRedactPII
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Audit.Enabled = DefaultAuditEnabled
	ApplyDefaults(cfg)
	return cfg
}
