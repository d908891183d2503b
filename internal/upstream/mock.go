// Package upstream provides a scriptable StreamProvider implementation
// for tests.
package upstream

import (
	"context"
	"sync"

	"quantra-hq/hermes/pkg/providers"
)

// Script describes the outcome of one StreamChat call.
type Script struct {
	// OpenErr, when set, fails the call before any chunk is produced.
	OpenErr error

	// Chunks are delivered in order before the terminal event.
	Chunks []string

	// Err, when set, terminates the stream abnormally after Chunks.
	Err error

	// Usage is attached to the final chunk of a successful stream.
	Usage *providers.TokenUsage
}

// MockProvider replays scripted stream outcomes in call order. After the
// scripts are exhausted the last script repeats. The zero value streams
// nothing and succeeds.
type MockProvider struct {
	mu      sync.Mutex
	scripts []Script
	next    int

	// ChatResponse and ChatErr control the non-streaming fallback call.
	ChatResponse *providers.ChatResponse
	ChatErr      error

	streamCalls int
	chatCalls   int

	// LastCreds records the credentials of the most recent call.
	LastCreds providers.Credentials
}

// NewMockProvider creates a provider that replays the given scripts.
func NewMockProvider(scripts ...Script) *MockProvider {
	return &MockProvider{scripts: scripts}
}

// StreamChat implements providers.StreamProvider.
func (m *MockProvider) StreamChat(ctx context.Context, creds providers.Credentials, req *providers.ChatRequest) (<-chan *providers.StreamChunk, error) {
	m.mu.Lock()
	m.streamCalls++
	m.LastCreds = creds
	var script Script
	if len(m.scripts) > 0 {
		idx := m.next
		if idx >= len(m.scripts) {
			idx = len(m.scripts) - 1
		}
		script = m.scripts[idx]
		m.next++
	}
	m.mu.Unlock()

	if script.OpenErr != nil {
		return nil, script.OpenErr
	}

	chunks := make(chan *providers.StreamChunk)
	go func() {
		defer close(chunks)
		for _, delta := range script.Chunks {
			select {
			case chunks <- &providers.StreamChunk{Delta: delta}:
			case <-ctx.Done():
				return
			}
		}
		terminal := &providers.StreamChunk{Done: true, Usage: script.Usage}
		if script.Err != nil {
			terminal = &providers.StreamChunk{Err: script.Err}
		}
		select {
		case chunks <- terminal:
		case <-ctx.Done():
		}
	}()
	return chunks, nil
}

// Chat implements providers.StreamProvider.
func (m *MockProvider) Chat(ctx context.Context, creds providers.Credentials, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	m.mu.Lock()
	m.chatCalls++
	m.LastCreds = creds
	resp, err := m.ChatResponse, m.ChatErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if resp == nil {
		resp = &providers.ChatResponse{Content: "fallback response", FinishReason: "stop"}
	}
	return resp, nil
}

// Close implements providers.StreamProvider.
func (m *MockProvider) Close() error { return nil }

// StreamCalls returns how many StreamChat calls were made.
func (m *MockProvider) StreamCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCalls
}

// ChatCalls returns how many Chat (fallback) calls were made.
func (m *MockProvider) ChatCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chatCalls
}
