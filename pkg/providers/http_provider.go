package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPProvider talks to an OpenAI-compatible chat completion endpoint.
// It maintains a pooled HTTP client shared across accounts; credentials
// are injected per request.
//
// The provider performs no retries of its own. Failure classification is
// returned as typed errors and the retry/backoff/circuit-breaking policy
// is owned entirely by the streaming pipeline, so a single call maps to
// a single upstream request.
type HTTPProvider struct {
	config ProviderConfig
	client *http.Client
}

// NewHTTPProvider creates a provider with connection pooling.
func NewHTTPProvider(config ProviderConfig) *HTTPProvider {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxIdleConns <= 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost <= 0 {
		config.MaxIdleConnsPerHost = 10
	}
	if config.IdleConnTimeout <= 0 {
		config.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &HTTPProvider{
		config: config,
		// No client-level timeout: it would cut long-lived streams short.
		// Non-streaming calls get a per-request context deadline instead.
		client: &http.Client{Transport: transport},
	}
}

// chatCompletionRequest is the OpenAI-compatible request body.
type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// chatCompletionResponse is the OpenAI-compatible response body.
type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage TokenUsage `json:"usage"`
}

// Chat performs a single blocking generation call.
func (p *HTTPProvider) Chat(ctx context.Context, creds Credentials, req *ChatRequest) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	resp, err := p.doRequest(ctx, creds, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ParseError{AccountID: creds.AccountID, Cause: fmt.Errorf("read response: %w", err)}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, &ParseError{
			AccountID:   creds.AccountID,
			RawResponse: string(body),
			Cause:       fmt.Errorf("unmarshal response: %w", err),
		}
	}
	if len(completion.Choices) == 0 {
		return nil, &ParseError{
			AccountID:   creds.AccountID,
			RawResponse: string(body),
			Cause:       fmt.Errorf("response has no choices"),
		}
	}

	return &ChatResponse{
		Content:      completion.Choices[0].Message.Content,
		Model:        completion.Model,
		Usage:        completion.Usage,
		FinishReason: completion.Choices[0].FinishReason,
	}, nil
}

// doRequest builds and sends one chat completion request, mapping HTTP
// failures to the typed error taxonomy. On success the caller owns the
// response body.
func (p *HTTPProvider) doRequest(ctx context.Context, creds Credentials, req *ChatRequest, stream bool) (*http.Response, error) {
	model := req.Model
	if model == "" {
		model = creds.Model
	}

	payload, err := json.Marshal(chatCompletionRequest{
		Model:       model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := creds.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+creds.APIKey)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	slog.Debug("sending upstream request",
		"account", creds.AccountID,
		"model", model,
		"stream", stream,
	)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{AccountID: creds.AccountID, Timeout: p.config.Timeout}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{AccountID: creds.AccountID, Cause: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &AuthError{AccountID: creds.AccountID, Message: string(errorBody)}
	case http.StatusTooManyRequests:
		return nil, &RateLimitError{
			AccountID:  creds.AccountID,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    string(errorBody),
		}
	default:
		return nil, &UpstreamError{
			AccountID:  creds.AccountID,
			StatusCode: resp.StatusCode,
			Message:    string(errorBody),
		}
	}
}

// Close closes idle pooled connections.
func (p *HTTPProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// parseRetryAfter parses the Retry-After header value. It supports both
// delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}
