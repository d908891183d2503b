package gateway

import "errors"

var (
	// ErrResourceExhausted means the system-wide connection cap is
	// reached and the new connection cannot be admitted.
	ErrResourceExhausted = errors.New("connection limit reached")

	// ErrDeliveryFailed means the welcome frame could not be delivered;
	// the connection was torn down during registration.
	ErrDeliveryFailed = errors.New("welcome frame delivery failed")

	// ErrConnectionNotFound means no live connection has the given id.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrUserNotFound means the user has no live connections.
	ErrUserNotFound = errors.New("user has no connections")

	// ErrSessionNotFound means no live connection owns the session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSendTimeout means a single frame write exceeded the send
	// timeout. Non-fatal: the frame is dropped and the connection
	// stays healthy.
	ErrSendTimeout = errors.New("send timed out, frame dropped")

	// ErrInvalidTransition means a connection state change violated the
	// forward-only state machine.
	ErrInvalidTransition = errors.New("invalid state transition")
)
