// Package providers contains the upstream generation backend adapters.
//
// The gateway talks to its generation backend through the StreamProvider
// interface: a chunked streaming call for normal delivery and a single
// blocking call used as the degradation fallback. The HTTP implementation
// handles connection pooling, SSE decoding, and maps upstream failures to
// a typed error taxonomy consumed by the streaming pipeline's retry
// policy.
package providers
