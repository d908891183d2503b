// Package audit records connection and request lifecycle events.
//
// The audit trail stores metadata only: connection ids, user ids,
// request ids, event kinds, and outcomes. Conversation content never
// reaches audit storage.
//
// Events are written asynchronously through a buffered Recorder so
// the gateway's hot paths never block on storage. When the buffer is
// full, events are dropped and counted rather than applying
// backpressure to connection handling.
//
// Two storage backends are provided: SQLite for persistence and an
// in-memory store for tests and ephemeral deployments. A cron-driven
// Pruner enforces the retention period on the SQLite backend.
package audit
