package protocol

import (
	"encoding/json"
	"fmt"
)

// FrameType is the wire discriminator carried in every frame's "type" field.
type FrameType string

// Client to server frame types.
const (
	TypeAuthenticate  FrameType = "authenticate"
	TypeAIChat        FrameType = "ai_chat"
	TypeCancelRequest FrameType = "cancel_request"
	TypePing          FrameType = "ping"
)

// Server to client frame types.
const (
	TypeWelcome            FrameType = "welcome"
	TypeHeartbeat          FrameType = "heartbeat"
	TypePong               FrameType = "pong"
	TypeAuthSuccess        FrameType = "auth_success"
	TypeAuthError          FrameType = "auth_error"
	TypeAIChatStart        FrameType = "ai_chat_start"
	TypeComplexityAnalysis FrameType = "ai_complexity_analysis"
	TypeStreamStart        FrameType = "ai_stream_start"
	TypeStreamChunk        FrameType = "ai_stream_chunk"
	TypeStreamEnd          FrameType = "ai_stream_end"
	TypeStreamError        FrameType = "ai_stream_error"
	TypeChatCancelled      FrameType = "ai_chat_cancelled"
	TypeStreamRetry        FrameType = "stream_retry"
	TypeStreamFallback     FrameType = "stream_fallback"
	TypeFallbackResponse   FrameType = "fallback_response"
	TypeError              FrameType = "error"
)

// Inbound is implemented by every client to server frame.
type Inbound interface {
	// FrameType returns the wire discriminator for this frame.
	FrameType() FrameType
}

// AuthenticateFrame binds a connection to a user after token validation.
type AuthenticateFrame struct {
	Type      FrameType `json:"type"`
	Token     string    `json:"token"`
	SessionID string    `json:"session_id,omitempty"`
}

// FrameType implements Inbound.
func (f *AuthenticateFrame) FrameType() FrameType { return TypeAuthenticate }

// ChatFrame submits one AI chat request. RequestID is optional; the
// coordinator generates one when absent.
type ChatFrame struct {
	Type        FrameType `json:"type"`
	Content     string    `json:"content"`
	RequestID   string    `json:"request_id,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	AIMode      string    `json:"ai_mode,omitempty"`
	SessionType string    `json:"session_type,omitempty"`
}

// FrameType implements Inbound.
func (f *ChatFrame) FrameType() FrameType { return TypeAIChat }

// CancelFrame cancels the named in-flight request.
type CancelFrame struct {
	Type      FrameType `json:"type"`
	RequestID string    `json:"request_id"`
}

// FrameType implements Inbound.
func (f *CancelFrame) FrameType() FrameType { return TypeCancelRequest }

// PingFrame updates connection liveness and is answered with a pong.
type PingFrame struct {
	Type FrameType `json:"type"`
}

// FrameType implements Inbound.
func (f *PingFrame) FrameType() FrameType { return TypePing }

// DecodeError describes a frame that could not be decoded. The
// connection stays open; the caller replies with an error frame.
type DecodeError struct {
	// Reason is a short human-readable description of the failure.
	Reason string

	// Cause is the underlying JSON error, if any.
	Cause error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("frame decode failed: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("frame decode failed: %s", e.Reason)
}

// Unwrap returns the underlying error for error chain support.
func (e *DecodeError) Unwrap() error { return e.Cause }

// envelope is the minimal shape read before dispatching on type.
type envelope struct {
	Type FrameType `json:"type"`
}

// Decode parses one inbound frame. Unknown or malformed frames return a
// *DecodeError; they are protocol-level failures and never fatal to the
// connection.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Reason: "malformed JSON", Cause: err}
	}

	var frame Inbound
	switch env.Type {
	case TypeAuthenticate:
		frame = &AuthenticateFrame{}
	case TypeAIChat:
		frame = &ChatFrame{}
	case TypeCancelRequest:
		frame = &CancelFrame{}
	case TypePing:
		frame = &PingFrame{}
	case "":
		return nil, &DecodeError{Reason: "missing type field"}
	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown frame type %q", env.Type)}
	}

	if err := json.Unmarshal(data, frame); err != nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("invalid %s frame", env.Type), Cause: err}
	}
	return frame, nil
}
