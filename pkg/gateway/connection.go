package gateway

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"quantra-hq/hermes/pkg/protocol"
)

// State is a connection lifecycle state. Transitions are forward-only:
// Error and Disconnected are terminal, and a client must reconnect to
// get a new connection id.
type State string

const (
	StateConnecting     State = "connecting"
	StateConnected      State = "connected"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateDisconnecting  State = "disconnecting"
	StateDisconnected   State = "disconnected"
	StateError          State = "error"
)

// validTransitions is the closed set of allowed state changes. Any
// non-terminal state may additionally move to Error or Disconnecting.
var validTransitions = map[State][]State{
	StateConnecting:     {StateConnected},
	StateConnected:      {StateAuthenticating, StateAuthenticated},
	StateAuthenticating: {StateAuthenticated, StateConnected},
	StateAuthenticated:  {StateAuthenticating},
	StateDisconnecting:  {StateDisconnected},
}

func transitionAllowed(from, to State) bool {
	if from == StateDisconnected || from == StateError {
		return false
	}
	if to == StateError || to == StateDisconnecting {
		return true
	}
	if from == StateDisconnecting {
		return to == StateDisconnected
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Channel is the physical duplex transport beneath a Connection. The
// WebSocket implementation lives in the server; tests substitute an
// in-memory fake.
type Channel interface {
	// Write sends one text frame, honoring the deadline.
	Write(deadline time.Time, data []byte) error

	// Close closes the transport.
	Close() error
}

// maxConsecutiveSendErrors is the failure count at which a connection
// transitions to Error and is scheduled for removal.
const maxConsecutiveSendErrors = 3

// Connection wraps one physical channel to a client. The registry owns
// the authoritative copy; everything else references it by id.
//
// Writes are serialized through a per-connection mutex so that two
// concurrently-streaming requests never interleave partial frames.
type Connection struct {
	// ID is the server-generated connection id.
	ID string

	// ConnectedAt is when the connection was accepted.
	ConnectedAt time.Time

	channel     Channel
	sendTimeout time.Duration

	writeMu sync.Mutex

	mu                sync.RWMutex
	state             State
	userID            string
	sessionID         string
	lastPing          time.Time
	lastActivity      time.Time
	messagesSent      int64
	messagesReceived  int64
	bytesSent         int64
	bytesReceived     int64
	consecutiveErrors int
	totalErrors       int
}

// newConnection creates a connection in the Connecting state.
func newConnection(id string, channel Channel, sendTimeout time.Duration) *Connection {
	now := time.Now()
	return &Connection{
		ID:           id,
		ConnectedAt:  now,
		channel:      channel,
		sendTimeout:  sendTimeout,
		state:        StateConnecting,
		lastPing:     now,
		lastActivity: now,
	}
}

// Send serializes the frame and writes it within the send timeout.
//
// A timeout drops the frame without erroring the connection, since
// streaming frames are a lossy-tolerant progress channel. Any other
// write failure counts toward consecutive errors; at the threshold the
// connection transitions to Error and Send reports fatal=true so the
// caller can schedule removal.
func (c *Connection) Send(frame *protocol.Outbound) (fatal bool, err error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return false, err
	}

	c.writeMu.Lock()
	writeErr := c.channel.Write(time.Now().Add(c.sendTimeout), data)
	c.writeMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if writeErr == nil {
		c.messagesSent++
		c.bytesSent += int64(len(data))
		c.consecutiveErrors = 0
		return false, nil
	}

	if isTimeout(writeErr) {
		return false, ErrSendTimeout
	}

	c.consecutiveErrors++
	c.totalErrors++
	if c.consecutiveErrors >= maxConsecutiveSendErrors && transitionAllowed(c.state, StateError) {
		c.state = StateError
		return true, writeErr
	}
	return false, writeErr
}

func isTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}

// Transition moves the connection to a new state, enforcing the
// forward-only machine.
func (c *Connection) Transition(to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !transitionAllowed(c.state, to) {
		return ErrInvalidTransition
	}
	c.state = to
	return nil
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// BindUser records the authenticated user and optional session.
func (c *Connection) BindUser(userID, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.sessionID = sessionID
}

// UserID returns the owning user id, empty before authentication.
func (c *Connection) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// SessionID returns the bound session id, if any.
func (c *Connection) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Touch records inbound activity.
func (c *Connection) Touch(bytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = time.Now()
	c.messagesReceived++
	c.bytesReceived += int64(bytes)
}

// PingReceived records a client ping.
func (c *Connection) PingReceived() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.lastPing = now
	c.lastActivity = now
}

// stale reports whether the connection meets every staleness condition:
// no ping within the timeout, no activity within twice the timeout, and
// a run of send errors. All three must hold so a quiet but healthy
// connection is never reaped.
func (c *Connection) stale(now time.Time, timeout time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return now.Sub(c.lastPing) > timeout &&
		now.Sub(c.lastActivity) > 2*timeout &&
		c.consecutiveErrors >= 5
}

// close shuts the channel. Idempotence is the registry's concern.
func (c *Connection) close() {
	c.channel.Close()
}

// Age returns how long the connection has been open.
func (c *Connection) Age() time.Duration {
	return time.Since(c.ConnectedAt)
}

// ConnectionStats is a point-in-time snapshot of one connection's
// counters, exposed through the registry's statistics query.
type ConnectionStats struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id,omitempty"`
	SessionID         string        `json:"session_id,omitempty"`
	State             State         `json:"state"`
	Age               time.Duration `json:"age"`
	MessagesSent      int64         `json:"messages_sent"`
	MessagesReceived  int64         `json:"messages_received"`
	BytesSent         int64         `json:"bytes_sent"`
	BytesReceived     int64         `json:"bytes_received"`
	ConsecutiveErrors int           `json:"consecutive_errors"`
	TotalErrors       int           `json:"total_errors"`
}

// Stats returns a snapshot of the connection's counters.
func (c *Connection) Stats() ConnectionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ConnectionStats{
		ID:                c.ID,
		UserID:            c.userID,
		SessionID:         c.sessionID,
		State:             c.state,
		Age:               time.Since(c.ConnectedAt),
		MessagesSent:      c.messagesSent,
		MessagesReceived:  c.messagesReceived,
		BytesSent:         c.bytesSent,
		BytesReceived:     c.bytesReceived,
		ConsecutiveErrors: c.consecutiveErrors,
		TotalErrors:       c.totalErrors,
	}
}
