package providers

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
)

// streamEvent is one decoded SSE data payload from an OpenAI-compatible
// streaming endpoint.
type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *TokenUsage `json:"usage"`
}

// StreamChat opens a chunked generation call and decodes the SSE stream
// into StreamChunk values. The returned channel closes after the final
// chunk; abnormal termination is reported as an Err on the last chunk.
func (p *HTTPProvider) StreamChat(ctx context.Context, creds Credentials, req *ChatRequest) (<-chan *StreamChunk, error) {
	resp, err := p.doRequest(ctx, creds, req, true)
	if err != nil {
		return nil, err
	}

	chunks := make(chan *StreamChunk)
	go p.readStream(ctx, creds, resp.Body, chunks)
	return chunks, nil
}

// readStream decodes SSE lines until [DONE], stream end, or context
// cancellation. It always closes the body and the channel.
func (p *HTTPProvider) readStream(ctx context.Context, creds Credentials, body io.ReadCloser, chunks chan<- *StreamChunk) {
	defer close(chunks)
	defer body.Close()

	var usage *TokenUsage
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)

		if data == "[DONE]" {
			p.emit(ctx, chunks, &StreamChunk{Done: true, Usage: usage})
			return
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			slog.Warn("skipping malformed stream event", "account", creds.AccountID, "error", err)
			continue
		}
		if event.Usage != nil {
			usage = event.Usage
		}
		if len(event.Choices) == 0 {
			continue
		}
		if delta := event.Choices[0].Delta.Content; delta != "" {
			if !p.emit(ctx, chunks, &StreamChunk{Delta: delta}) {
				return
			}
		}
		if event.Choices[0].FinishReason != "" {
			p.emit(ctx, chunks, &StreamChunk{Done: true, Usage: usage})
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		p.emit(ctx, chunks, &StreamChunk{
			Err: &StreamError{AccountID: creds.AccountID, Message: "stream interrupted", Cause: err},
		})
		return
	}
	if ctx.Err() != nil {
		return
	}

	// EOF without [DONE] or a finish reason: the upstream dropped us.
	p.emit(ctx, chunks, &StreamChunk{
		Err: &StreamError{AccountID: creds.AccountID, Message: "stream ended without completion"},
	})
}

// emit sends a chunk unless the context is cancelled. Returns false when
// the consumer is gone.
func (p *HTTPProvider) emit(ctx context.Context, chunks chan<- *StreamChunk, chunk *StreamChunk) bool {
	select {
	case chunks <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
