package metrics

import (
	"time"

	"quantra-hq/hermes/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// StreamMetrics tracks the streaming pipeline.
//
// Metrics:
//   - hermes_gateway_streams_total: Streams by outcome
//   - hermes_gateway_stream_duration_seconds: Stream duration histogram
//   - hermes_gateway_stream_chunks_total: Chunks delivered to clients
//   - hermes_gateway_stream_retries_total: Retries by failure reason
//   - hermes_gateway_stream_fallbacks_total: Fallback attempts by outcome
//   - hermes_gateway_accounts_failed: Accounts currently in recovery
type StreamMetrics struct {
	streamsTotal   *prometheus.CounterVec
	streamDuration prometheus.Histogram
	chunksTotal    prometheus.Counter
	retriesTotal   *prometheus.CounterVec
	fallbacksTotal *prometheus.CounterVec
	accountsFailed prometheus.Gauge
}

// NewStreamMetrics creates and registers stream metrics with the provided
// registry.
func NewStreamMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StreamMetrics {
	sm := &StreamMetrics{
		streamsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "streams_total",
				Help:      "Total streams by outcome (success, fallback, error, cancelled)",
			},
			[]string{"outcome"},
		),

		streamDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_duration_seconds",
				Help:      "End-to-end stream duration in seconds",
				// Streaming responses run from sub-second to tens of seconds.
				Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0},
			},
		),

		chunksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_chunks_total",
				Help:      "Total stream chunks delivered to clients",
			},
		),

		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_retries_total",
				Help:      "Total stream retries by failure reason",
			},
			[]string{"reason"},
		),

		fallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_fallbacks_total",
				Help:      "Total non-streaming fallback attempts by outcome",
			},
			[]string{"outcome"},
		),

		accountsFailed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "accounts_failed",
				Help:      "Upstream accounts currently marked failed",
			},
		),
	}

	registry.MustRegister(
		sm.streamsTotal,
		sm.streamDuration,
		sm.chunksTotal,
		sm.retriesTotal,
		sm.fallbacksTotal,
		sm.accountsFailed,
	)

	return sm
}

// RecordStream records a completed stream with its outcome and duration.
func (sm *StreamMetrics) RecordStream(outcome string, duration time.Duration) {
	sm.streamsTotal.WithLabelValues(outcome).Inc()
	sm.streamDuration.Observe(duration.Seconds())
}

// RecordChunk increments the chunk counter.
func (sm *StreamMetrics) RecordChunk() {
	sm.chunksTotal.Inc()
}

// RecordRetry increments the retry counter for a failure reason.
func (sm *StreamMetrics) RecordRetry(reason string) {
	sm.retriesTotal.WithLabelValues(reason).Inc()
}

// RecordFallback increments the fallback counter for an outcome.
func (sm *StreamMetrics) RecordFallback(outcome string) {
	sm.fallbacksTotal.WithLabelValues(outcome).Inc()
}

// SetAccountsFailed sets the failed account gauge.
func (sm *StreamMetrics) SetAccountsFailed(count int) {
	sm.accountsFailed.Set(float64(count))
}
