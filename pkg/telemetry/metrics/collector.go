package metrics

import (
	"time"

	"quantra-hq/hermes/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the single entry point for recording gateway metrics.
// It owns the Prometheus registry and fans out to the connection and
// stream metric groups. Every recording method is a no-op when metrics
// are disabled in configuration, so callers never need to guard.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	connectionMetrics *ConnectionMetrics
	streamMetrics     *StreamMetrics
}

// NewCollector creates a new metrics collector with the specified
// configuration and Prometheus registry. If registry is nil, a fresh
// registry is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "hermes"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "gateway"
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}

	c.connectionMetrics = NewConnectionMetrics(cfg, registry)
	c.streamMetrics = NewStreamMetrics(cfg, registry)

	return c
}

// SetConnectionsActive sets the active connection gauge for a state
// ("pending", "authenticated", "disconnecting", "error").
func (c *Collector) SetConnectionsActive(state string, count int) {
	if !c.config.Enabled {
		return
	}
	c.connectionMetrics.SetActive(state, count)
}

// ConnectionRegistered records a connection accepted into the registry.
func (c *Collector) ConnectionRegistered() {
	if !c.config.Enabled {
		return
	}
	c.connectionMetrics.RecordRegistered()
}

// ConnectionEvicted records a connection eviction with its reason
// (e.g. "per-user limit", "capacity").
func (c *Collector) ConnectionEvicted(reason string) {
	if !c.config.Enabled {
		return
	}
	c.connectionMetrics.RecordEvicted(reason)
}

// ConnectionReaped records a stale connection removed by the reaper.
func (c *Collector) ConnectionReaped() {
	if !c.config.Enabled {
		return
	}
	c.connectionMetrics.RecordReaped()
}

// FrameReceived records an inbound frame by type.
func (c *Collector) FrameReceived(frameType string) {
	if !c.config.Enabled {
		return
	}
	c.connectionMetrics.RecordFrameReceived(frameType)
}

// FrameSent records an outbound frame by type.
func (c *Collector) FrameSent(frameType string) {
	if !c.config.Enabled {
		return
	}
	c.connectionMetrics.RecordFrameSent(frameType)
}

// SendError records a failed or timed-out frame send.
func (c *Collector) SendError() {
	if !c.config.Enabled {
		return
	}
	c.connectionMetrics.RecordSendError()
}

// RecordStream records a completed stream with its outcome
// ("success", "fallback", "error", "cancelled") and total duration.
func (c *Collector) RecordStream(outcome string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.streamMetrics.RecordStream(outcome, duration)
}

// StreamChunk records one chunk delivered to a client.
func (c *Collector) StreamChunk() {
	if !c.config.Enabled {
		return
	}
	c.streamMetrics.RecordChunk()
}

// StreamRetry records a retry with the failure reason that caused it
// (e.g. "rate_limited", "timeout", "upstream_error").
func (c *Collector) StreamRetry(reason string) {
	if !c.config.Enabled {
		return
	}
	c.streamMetrics.RecordRetry(reason)
}

// StreamFallback records a non-streaming fallback attempt with its
// outcome ("success", "error").
func (c *Collector) StreamFallback(outcome string) {
	if !c.config.Enabled {
		return
	}
	c.streamMetrics.RecordFallback(outcome)
}

// SetAccountsFailed sets the gauge of accounts currently in recovery.
func (c *Collector) SetAccountsFailed(count int) {
	if !c.config.Enabled {
		return
	}
	c.streamMetrics.SetAccountsFailed(count)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
