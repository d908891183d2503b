package metrics

import (
	"quantra-hq/hermes/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ConnectionMetrics tracks the gateway's connection population.
//
// Metrics:
//   - hermes_gateway_connections_active: Current connections by state
//   - hermes_gateway_connections_registered_total: Total registrations
//   - hermes_gateway_connections_evicted_total: Evictions by reason
//   - hermes_gateway_connections_reaped_total: Stale connections reaped
//   - hermes_gateway_frames_received_total: Inbound frames by type
//   - hermes_gateway_frames_sent_total: Outbound frames by type
//   - hermes_gateway_send_errors_total: Failed or timed-out sends
type ConnectionMetrics struct {
	active          *prometheus.GaugeVec
	registeredTotal prometheus.Counter
	evictedTotal    *prometheus.CounterVec
	reapedTotal     prometheus.Counter
	framesReceived  *prometheus.CounterVec
	framesSent      *prometheus.CounterVec
	sendErrorsTotal prometheus.Counter
}

// NewConnectionMetrics creates and registers connection metrics with the
// provided registry.
func NewConnectionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ConnectionMetrics {
	cm := &ConnectionMetrics{
		active: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "connections_active",
				Help:      "Current number of connections by state",
			},
			[]string{"state"},
		),

		registeredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "connections_registered_total",
				Help:      "Total number of connections accepted into the registry",
			},
		),

		evictedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "connections_evicted_total",
				Help:      "Total number of connections evicted by reason",
			},
			[]string{"reason"},
		),

		reapedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "connections_reaped_total",
				Help:      "Total number of stale connections removed by the reaper",
			},
		),

		framesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "frames_received_total",
				Help:      "Total inbound frames by frame type",
			},
			[]string{"type"},
		),

		framesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "frames_sent_total",
				Help:      "Total outbound frames by frame type",
			},
			[]string{"type"},
		),

		sendErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "send_errors_total",
				Help:      "Total failed or timed-out frame sends",
			},
		),
	}

	registry.MustRegister(
		cm.active,
		cm.registeredTotal,
		cm.evictedTotal,
		cm.reapedTotal,
		cm.framesReceived,
		cm.framesSent,
		cm.sendErrorsTotal,
	)

	return cm
}

// SetActive sets the active connection gauge for a state.
func (cm *ConnectionMetrics) SetActive(state string, count int) {
	cm.active.WithLabelValues(state).Set(float64(count))
}

// RecordRegistered increments the registration counter.
func (cm *ConnectionMetrics) RecordRegistered() {
	cm.registeredTotal.Inc()
}

// RecordEvicted increments the eviction counter for a reason.
func (cm *ConnectionMetrics) RecordEvicted(reason string) {
	cm.evictedTotal.WithLabelValues(reason).Inc()
}

// RecordReaped increments the reaper counter.
func (cm *ConnectionMetrics) RecordReaped() {
	cm.reapedTotal.Inc()
}

// RecordFrameReceived increments the inbound frame counter.
func (cm *ConnectionMetrics) RecordFrameReceived(frameType string) {
	cm.framesReceived.WithLabelValues(frameType).Inc()
}

// RecordFrameSent increments the outbound frame counter.
func (cm *ConnectionMetrics) RecordFrameSent(frameType string) {
	cm.framesSent.WithLabelValues(frameType).Inc()
}

// RecordSendError increments the send error counter.
func (cm *ConnectionMetrics) RecordSendError() {
	cm.sendErrorsTotal.Inc()
}
