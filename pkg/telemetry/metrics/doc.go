// Package metrics provides Prometheus metrics collection for the Hermes
// gateway.
//
// # Metrics Categories
//
//   - Connection Metrics: Active connections by state, registrations,
//     evictions, reaped connections, frame counters
//   - Stream Metrics: Chunks delivered, retries, fallbacks, stream
//     failures, stream duration
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.ConnectionRegistered()
//	collector.RecordStream("success", 1200*time.Millisecond)
//	http.Handle("/metrics", collector.Handler())
//
// All metrics carry the configured namespace and subsystem, e.g.
//
//	hermes_gateway_connections_active{state="authenticated"} 42
//	hermes_gateway_stream_retries_total{reason="rate_limited"} 7
package metrics
