package providers

import (
	"fmt"
	"time"
)

// UpstreamError represents a general upstream API error. It includes the
// account that produced it, the HTTP status code, and the underlying
// error. The retry policy treats it as retryable and circuit-breaks the
// account.
type UpstreamError struct {
	// AccountID is the upstream account that returned the error
	AccountID string

	// StatusCode is the HTTP status code (0 if not applicable)
	StatusCode int

	// Message is the error message
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("account %q upstream error (status %d): %s", e.AccountID, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("account %q upstream error: %s", e.AccountID, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *UpstreamError) Unwrap() error { return e.Cause }

// AuthError represents an upstream authentication failure (HTTP 401/403).
// It is never retried.
type AuthError struct {
	// AccountID is the account whose key was rejected
	AccountID string

	// Message is the error message from the upstream
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("account %q authentication failed: %s", e.AccountID, e.Message)
}

// RateLimitError represents a rate limit exceeded error (HTTP 429),
// including the upstream's retry-after hint when present.
type RateLimitError struct {
	// AccountID is the rate-limited account
	AccountID string

	// RetryAfter is the duration to wait before retrying (if provided)
	RetryAfter time.Duration

	// Message is the error message from the upstream
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("account %q rate limited (retry after %s): %s", e.AccountID, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("account %q rate limited: %s", e.AccountID, e.Message)
}

// TimeoutError represents a request that exceeded its timeout.
type TimeoutError struct {
	// AccountID is the account where the timeout occurred
	AccountID string

	// Timeout is the configured timeout duration
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("account %q request timeout after %s", e.AccountID, e.Timeout)
}

// NetworkError represents a transport-level failure before any HTTP
// status was received.
type NetworkError struct {
	// AccountID is the account being called
	AccountID string

	// Cause is the underlying transport error
	Cause error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("account %q network error: %v", e.AccountID, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *NetworkError) Unwrap() error { return e.Cause }

// ParseError represents a malformed upstream response.
type ParseError struct {
	// AccountID is the account that returned the malformed response
	AccountID string

	// RawResponse is the response body that failed to parse
	RawResponse string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("account %q response parse error: %v", e.AccountID, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error { return e.Cause }

// StreamError represents a failure in the middle of an open stream.
type StreamError struct {
	// AccountID is the account whose stream failed
	AccountID string

	// Message describes where in the stream the failure occurred
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("account %q stream error: %s: %v", e.AccountID, e.Message, e.Cause)
	}
	return fmt.Sprintf("account %q stream error: %s", e.AccountID, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *StreamError) Unwrap() error { return e.Cause }
