// Hermes is a real-time conversational gateway for trading platforms.
//
// It terminates client WebSocket connections and brokers AI chat
// requests to upstream model providers, providing:
//   - Connection registry with per-user caps and heartbeat reaping
//   - Last-writer-wins request coordination with cascading cancel
//   - Streaming delivery with retry, circuit breaking, and fallback
//   - Prometheus metrics and a lifecycle audit trail
//
// Usage:
//
//	# Start gateway with default configuration
//	hermes run
//
//	# Start with custom configuration file
//	hermes run --config /path/to/config.yaml
//
//	# Validate a configuration file without starting
//	hermes validate
//
//	# Show version information
//	hermes version
package main

func main() {
	Execute()
}
