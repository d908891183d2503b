package providers

import "time"

// Message represents a single message in a conversation.
type Message struct {
	// Role identifies the message sender (system, user, assistant)
	Role string `json:"role"`

	// Content is the message text content
	Content string `json:"content"`
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens used (prompt + completion)
	TotalTokens int `json:"total_tokens"`
}

// Credentials identifies one upstream account and how to reach it.
// The account selection policy lives outside this package; a handle is
// passed in per call so that retries can switch accounts.
type Credentials struct {
	// AccountID is the opaque upstream account identifier
	AccountID string

	// APIKey authenticates requests against the upstream
	APIKey string

	// BaseURL is the account's API endpoint (e.g. "https://api.openai.com/v1")
	BaseURL string

	// Model is the default model for this account
	Model string
}

// ChatRequest represents a provider-agnostic generation request.
type ChatRequest struct {
	// Model is the model identifier; empty means the account default
	Model string `json:"model"`

	// Messages is the conversation to complete
	Messages []Message `json:"messages"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float64 `json:"temperature,omitempty"`

	// Stream indicates whether to stream the response
	Stream bool `json:"stream,omitempty"`

	// Metadata carries internal request context (request id, user id).
	// It is never sent to the upstream.
	Metadata map[string]string `json:"-"`
}

// ChatResponse is the complete response from a non-streaming call.
type ChatResponse struct {
	// Content is the generated text
	Content string `json:"content"`

	// Model is the model that produced the response
	Model string `json:"model"`

	// Usage reports token consumption
	Usage TokenUsage `json:"usage"`

	// FinishReason explains why generation stopped ("stop", "length", ...)
	FinishReason string `json:"finish_reason"`
}

// StreamChunk is one incremental fragment of a streaming response.
// The final chunk has Done set; a failed stream carries Err on its last
// chunk before the channel closes.
type StreamChunk struct {
	// Delta is the incremental text fragment
	Delta string

	// Done marks the final chunk of a successful stream
	Done bool

	// Usage is populated on the final chunk when the upstream reports it
	Usage *TokenUsage

	// Err is set when the stream terminated abnormally
	Err error
}

// ProviderConfig contains transport settings for the HTTP provider.
type ProviderConfig struct {
	// Timeout is the per-request timeout for non-streaming calls.
	// Streaming calls use it as the connect/first-byte timeout only.
	Timeout time.Duration `yaml:"timeout"`

	// MaxIdleConns is the connection pool size across all hosts
	MaxIdleConns int `yaml:"max_idle_conns"`

	// MaxIdleConnsPerHost is the per-host connection pool size
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`

	// IdleConnTimeout is how long an idle connection is kept pooled
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}
