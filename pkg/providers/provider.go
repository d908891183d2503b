package providers

import "context"

// StreamProvider is the upstream generation backend consumed by the
// streaming pipeline. The account credentials are passed per call so the
// pipeline can switch accounts between retry attempts.
//
// All methods respect context cancellation and return promptly when the
// context is cancelled.
type StreamProvider interface {
	// Chat performs a single blocking generation call. It is used as the
	// non-streaming fallback after streaming retries are exhausted.
	Chat(ctx context.Context, creds Credentials, req *ChatRequest) (*ChatResponse, error)

	// StreamChat opens a chunked generation call. It returns a channel
	// that yields incremental chunks as they arrive; the channel closes
	// after the final chunk. A stream that fails mid-way carries the
	// error on its last chunk.
	//
	// Returning an error means the stream never opened (connection or
	// handshake failure).
	StreamChat(ctx context.Context, creds Credentials, req *ChatRequest) (<-chan *StreamChunk, error)

	// Close releases transport resources. The provider must not be used
	// after Close.
	Close() error
}
