// Package stream drives one chat request against the upstream provider.
//
// The pipeline executes a request end to end: it announces the request,
// estimates complexity for the client, selects a healthy upstream
// account, streams chunks to the owning connection, and survives
// upstream flakiness with bounded retries, a per-account circuit
// breaker, and a single non-streaming fallback once streaming is
// exhausted.
//
// Cancellation is polled at exactly two suspension points: before each
// chunk is forwarded, and during backoff sleeps. A cancelled request
// therefore stops within one chunk or one backoff tick, and no frame is
// sent after cancellation.
package stream
