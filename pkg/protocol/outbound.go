package protocol

import (
	"fmt"
	"time"
)

// Usage summarizes token consumption reported on a stream end frame.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Outbound is a server-to-client frame. One struct with omitempty fields
// covers the whole outbound set; constructor helpers below populate the
// fields each frame type carries.
//
// The Error field is always a plain string, never a nested structure,
// so clients can render it without shape checks.
type Outbound struct {
	Type         FrameType `json:"type"`
	ConnectionID string    `json:"connection_id,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	Content      string    `json:"content,omitempty"`
	Chunk        string    `json:"chunk,omitempty"`
	Error        string    `json:"error,omitempty"`
	Complexity   string    `json:"complexity,omitempty"`
	EstimateSecs int       `json:"estimate_seconds,omitempty"`
	Attempt      int       `json:"attempt,omitempty"`
	DelayMS      int64     `json:"delay_ms,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	Usage        *Usage    `json:"usage,omitempty"`
	Timestamp    int64     `json:"timestamp,omitempty"`
}

// ErrorText normalizes an arbitrary error value into a wire-safe string.
// Clients have historically broken on structured error payloads, so every
// error frame funnels through this helper.
func ErrorText(v any) string {
	switch e := v.(type) {
	case nil:
		return "unknown error"
	case error:
		return e.Error()
	case string:
		if e == "" {
			return "unknown error"
		}
		return e
	default:
		return fmt.Sprintf("%v", e)
	}
}

func stamp(f Outbound) *Outbound {
	f.Timestamp = time.Now().UnixMilli()
	return &f
}

// Welcome is sent once on successful registration.
func Welcome(connectionID string) *Outbound {
	return stamp(Outbound{Type: TypeWelcome, ConnectionID: connectionID})
}

// Heartbeat is the periodic server liveness frame.
func Heartbeat() *Outbound {
	return stamp(Outbound{Type: TypeHeartbeat})
}

// Pong answers a client ping.
func Pong() *Outbound {
	return stamp(Outbound{Type: TypePong})
}

// AuthSuccess reports a successful authentication bind.
func AuthSuccess(userID string) *Outbound {
	return stamp(Outbound{Type: TypeAuthSuccess, UserID: userID})
}

// AuthError reports an authentication failure.
func AuthError(err any) *Outbound {
	return stamp(Outbound{Type: TypeAuthError, Error: ErrorText(err)})
}

// ChatStart acknowledges an accepted chat request.
func ChatStart(requestID string) *Outbound {
	return stamp(Outbound{Type: TypeAIChatStart, RequestID: requestID})
}

// ComplexityAnalysis carries the client-facing time estimate. It has no
// effect on control flow.
func ComplexityAnalysis(requestID, complexity string, estimateSecs int) *Outbound {
	return stamp(Outbound{
		Type:         TypeComplexityAnalysis,
		RequestID:    requestID,
		Complexity:   complexity,
		EstimateSecs: estimateSecs,
	})
}

// StreamStart marks the beginning of chunked delivery.
func StreamStart(requestID string) *Outbound {
	return stamp(Outbound{Type: TypeStreamStart, RequestID: requestID})
}

// StreamChunk carries one incremental response fragment.
func StreamChunk(requestID, chunk string) *Outbound {
	return stamp(Outbound{Type: TypeStreamChunk, RequestID: requestID, Chunk: chunk})
}

// StreamEnd carries the accumulated response text and usage metadata.
func StreamEnd(requestID, content string, usage *Usage) *Outbound {
	return stamp(Outbound{Type: TypeStreamEnd, RequestID: requestID, Content: content, Usage: usage})
}

// StreamError is the terminal failure frame for a request.
func StreamError(requestID string, err any) *Outbound {
	return stamp(Outbound{Type: TypeStreamError, RequestID: requestID, Error: ErrorText(err)})
}

// ChatCancelled confirms request cancellation.
func ChatCancelled(requestID string) *Outbound {
	return stamp(Outbound{Type: TypeChatCancelled, RequestID: requestID})
}

// StreamRetry announces a retry attempt and its backoff delay.
func StreamRetry(requestID string, attempt int, delay time.Duration) *Outbound {
	return stamp(Outbound{
		Type:      TypeStreamRetry,
		RequestID: requestID,
		Attempt:   attempt,
		DelayMS:   delay.Milliseconds(),
	})
}

// StreamFallback announces degradation to a single non-streaming call.
func StreamFallback(requestID string) *Outbound {
	return stamp(Outbound{Type: TypeStreamFallback, RequestID: requestID})
}

// FallbackResponse carries the complete response produced by the
// non-streaming fallback call.
func FallbackResponse(requestID, content string, usage *Usage) *Outbound {
	return stamp(Outbound{Type: TypeFallbackResponse, RequestID: requestID, Content: content, Usage: usage})
}

// Error is the generic error frame. Reason is optional context, for
// example the frame type that failed to decode.
func Error(err any, reason string) *Outbound {
	return stamp(Outbound{Type: TypeError, Error: ErrorText(err), Reason: reason})
}
