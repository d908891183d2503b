package audit

import (
	"context"
	"fmt"
	"time"
)

// EventKind identifies the lifecycle event being recorded.
type EventKind string

const (
	// EventConnectionOpened marks a connection accepted into the registry.
	EventConnectionOpened EventKind = "connection_opened"

	// EventConnectionClosed marks a connection removed from the registry.
	EventConnectionClosed EventKind = "connection_closed"

	// EventConnectionEvicted marks a connection evicted to make room.
	EventConnectionEvicted EventKind = "connection_evicted"

	// EventAuthSucceeded marks a successful authentication.
	EventAuthSucceeded EventKind = "auth_succeeded"

	// EventAuthFailed marks a rejected authentication attempt.
	EventAuthFailed EventKind = "auth_failed"

	// EventRequestStarted marks a chat request accepted by the coordinator.
	EventRequestStarted EventKind = "request_started"

	// EventRequestCompleted marks a chat request that streamed to completion.
	EventRequestCompleted EventKind = "request_completed"

	// EventRequestCancelled marks a chat request cancelled by the client
	// or superseded by a newer request.
	EventRequestCancelled EventKind = "request_cancelled"

	// EventRequestFailed marks a chat request that exhausted all
	// recovery options.
	EventRequestFailed EventKind = "request_failed"
)

// Event is one audit record. Only lifecycle metadata is captured;
// message content is deliberately absent from this type.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Kind is the lifecycle event kind.
	Kind EventKind `json:"kind"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// ConnectionID is the connection involved, if any.
	ConnectionID string `json:"connection_id,omitempty"`

	// UserID is the authenticated user, if known.
	UserID string `json:"user_id,omitempty"`

	// RequestID is the request involved, if any.
	RequestID string `json:"request_id,omitempty"`

	// SessionID is the client session, if any.
	SessionID string `json:"session_id,omitempty"`

	// Detail carries a short human-readable note, such as an eviction
	// reason or error kind. Never message content.
	Detail string `json:"detail,omitempty"`
}

// Storage is the interface audit backends implement.
type Storage interface {
	// Store persists one event.
	Store(ctx context.Context, event *Event) error

	// Count returns the total number of stored events.
	Count(ctx context.Context) (int64, error)

	// DeleteOlderThan removes events with a timestamp before the cutoff
	// and returns the number deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases backend resources.
	Close() error
}

// StorageError wraps a backend failure with the backend name and
// operation that failed.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage %s: %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError creates a StorageError.
func NewStorageError(backend, op string, err error) *StorageError {
	return &StorageError{Backend: backend, Op: op, Err: err}
}
