package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testCreds(baseURL string) Credentials {
	return Credentials{
		AccountID: "acct-1",
		APIKey:    "key-1",
		BaseURL:   baseURL,
		Model:     "gpt-4",
	}
}

func TestChatSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Errorf("Authorization = %q", got)
		}
		fmt.Fprint(w, `{
			"model": "gpt-4",
			"choices": [{"message": {"content": "hi there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
		}`)
	}))
	defer server.Close()

	p := NewHTTPProvider(ProviderConfig{Timeout: 5 * time.Second})
	defer p.Close()

	resp, err := p.Chat(context.Background(), testCreds(server.URL), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Content != "hi there" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 5 {
		t.Errorf("TotalTokens = %d, want 5", resp.Usage.TotalTokens)
	}
}

func TestChatErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		check   func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized maps to AuthError",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				if !errors.As(err, &authErr) {
					t.Errorf("error = %T, want *AuthError", err)
				}
			},
		},
		{
			name:    "rate limit maps to RateLimitError with retry-after",
			status:  http.StatusTooManyRequests,
			headers: map[string]string{"Retry-After": "7"},
			check: func(t *testing.T, err error) {
				var rlErr *RateLimitError
				if !errors.As(err, &rlErr) {
					t.Fatalf("error = %T, want *RateLimitError", err)
				}
				if rlErr.RetryAfter != 7*time.Second {
					t.Errorf("RetryAfter = %s, want 7s", rlErr.RetryAfter)
				}
			},
		},
		{
			name:   "server error maps to UpstreamError",
			status: http.StatusBadGateway,
			check: func(t *testing.T, err error) {
				var upErr *UpstreamError
				if !errors.As(err, &upErr) {
					t.Fatalf("error = %T, want *UpstreamError", err)
				}
				if upErr.StatusCode != http.StatusBadGateway {
					t.Errorf("StatusCode = %d", upErr.StatusCode)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			p := NewHTTPProvider(ProviderConfig{Timeout: 5 * time.Second})
			defer p.Close()

			_, err := p.Chat(context.Background(), testCreds(server.URL), &ChatRequest{})
			if err == nil {
				t.Fatal("Chat() expected error")
			}
			tt.check(t, err)
		})
	}
}

func TestChatNetworkError(t *testing.T) {
	p := NewHTTPProvider(ProviderConfig{Timeout: 2 * time.Second})
	defer p.Close()

	// Closed port: connection refused.
	_, err := p.Chat(context.Background(), testCreds("http://127.0.0.1:1"), &ChatRequest{})
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Errorf("error = %T (%v), want *NetworkError", err, err)
	}
}

func TestChatMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices": []}`)
	}))
	defer server.Close()

	p := NewHTTPProvider(ProviderConfig{Timeout: 5 * time.Second})
	defer p.Close()

	_, err := p.Chat(context.Background(), testCreds(server.URL), &ChatRequest{})
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("error = %T, want *ParseError", err)
	}
}

func TestStreamChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}],\"usage\":{\"total_tokens\":9}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := NewHTTPProvider(ProviderConfig{Timeout: 5 * time.Second})
	defer p.Close()

	chunks, err := p.StreamChat(context.Background(), testCreds(server.URL), &ChatRequest{})
	if err != nil {
		t.Fatalf("StreamChat() error: %v", err)
	}

	var text string
	var done bool
	var usage *TokenUsage
	for chunk := range chunks {
		if chunk.Err != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Err)
		}
		text += chunk.Delta
		if chunk.Done {
			done = true
			usage = chunk.Usage
		}
	}
	if text != "hello" {
		t.Errorf("accumulated text = %q, want %q", text, "hello")
	}
	if !done {
		t.Error("stream never reported Done")
	}
	if usage == nil || usage.TotalTokens != 9 {
		t.Errorf("usage = %+v, want total 9", usage)
	}
}

func TestStreamChatTruncatedStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"par\"}}]}\n\n")
		// Connection drops without [DONE].
	}))
	defer server.Close()

	p := NewHTTPProvider(ProviderConfig{Timeout: 5 * time.Second})
	defer p.Close()

	chunks, err := p.StreamChat(context.Background(), testCreds(server.URL), &ChatRequest{})
	if err != nil {
		t.Fatalf("StreamChat() error: %v", err)
	}

	var lastErr error
	for chunk := range chunks {
		if chunk.Err != nil {
			lastErr = chunk.Err
		}
	}
	var streamErr *StreamError
	if !errors.As(lastErr, &streamErr) {
		t.Errorf("final error = %T (%v), want *StreamError", lastErr, lastErr)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{name: "empty", header: "", want: 0},
		{name: "seconds", header: "30", want: 30 * time.Second},
		{name: "garbage", header: "soon", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRetryAfter(tt.header); got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %s, want %s", tt.header, got, tt.want)
			}
		})
	}
}
