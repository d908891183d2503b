package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"quantra-hq/hermes/pkg/audit"
	"quantra-hq/hermes/pkg/protocol"
	"quantra-hq/hermes/pkg/telemetry/logging"
	"quantra-hq/hermes/pkg/telemetry/metrics"
)

// RegistryConfig contains the registry's admission limits and loop
// intervals.
type RegistryConfig struct {
	// MaxConnections is the system-wide connection cap. Default: 10000
	MaxConnections int

	// MaxPerUser is the per-user connection cap. Reaching it evicts the
	// user's oldest connection. Default: 5
	MaxPerUser int

	// SendTimeout bounds a single frame write. Default: 15s
	SendTimeout time.Duration

	// HeartbeatInterval is how often heartbeat frames are pushed.
	// Default: 30s
	HeartbeatInterval time.Duration

	// ReaperInterval is how often the stale scan runs. Default: 60s
	ReaperInterval time.Duration

	// ConnectionTimeout is the ping staleness threshold used by the
	// reaper. Default: 300s
	ConnectionTimeout time.Duration
}

func (c *RegistryConfig) applyDefaults() {
	if c.MaxConnections <= 0 {
		c.MaxConnections = 10000
	}
	if c.MaxPerUser <= 0 {
		c.MaxPerUser = 5
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 15 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ReaperInterval <= 0 {
		c.ReaperInterval = 60 * time.Second
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = 300 * time.Second
	}
}

// taskCanceller is the coordinator hook invoked on connection teardown
// so in-flight requests owned by the connection are cancelled.
type taskCanceller interface {
	OnConnectionRemoved(connectionID string)
}

// Registry owns every live connection and the user and session indexes
// over them. Each index map has its own lock so heartbeat and reaper
// scans never block concurrent registration.
type Registry struct {
	// limitsMu guards the admission caps, which are hot-reloadable.
	// The timing fields of config are fixed at construction.
	limitsMu sync.RWMutex
	config   RegistryConfig

	conns syncConnMap

	users syncUserIndex

	sessions syncSessionIndex

	coordinator taskCanceller

	logger   *logging.Logger
	metrics  *metrics.Collector
	recorder *audit.Recorder
}

// NewRegistry creates a registry. The coordinator hook is attached
// later via SetCoordinator because the coordinator itself needs the
// registry to deliver frames.
func NewRegistry(config RegistryConfig, logger *logging.Logger, collector *metrics.Collector, recorder *audit.Recorder) *Registry {
	config.applyDefaults()
	r := &Registry{
		config:   config,
		logger:   logger,
		metrics:  collector,
		recorder: recorder,
	}
	r.conns.init()
	r.users.init()
	r.sessions.init()
	return r
}

// SetCoordinator attaches the cascading-cancellation hook.
func (r *Registry) SetCoordinator(c taskCanceller) {
	r.coordinator = c
}

func (r *Registry) maxConnections() int {
	r.limitsMu.RLock()
	defer r.limitsMu.RUnlock()
	return r.config.MaxConnections
}

func (r *Registry) maxPerUser() int {
	r.limitsMu.RLock()
	defer r.limitsMu.RUnlock()
	return r.config.MaxPerUser
}

// UpdateLimits applies new admission caps. They take effect for
// subsequent registrations and binds; established connections are not
// evicted retroactively. Non-positive values leave a cap unchanged.
func (r *Registry) UpdateLimits(maxConnections, maxPerUser int) {
	r.limitsMu.Lock()
	defer r.limitsMu.Unlock()
	if maxConnections > 0 {
		r.config.MaxConnections = maxConnections
	}
	if maxPerUser > 0 {
		r.config.MaxPerUser = maxPerUser
	}
}

// Register admits a new connection. The user id may be empty for a
// connection that will authenticate over the wire; the per-user cap and
// session index are applied at bind time in that case.
//
// Fails with ErrResourceExhausted at the system-wide cap. On success
// the welcome frame has been delivered; if that delivery fails the
// connection is torn down and registration fails with ErrDeliveryFailed.
func (r *Registry) Register(channel Channel, userID, sessionID string) (*Connection, error) {
	maxConns := r.maxConnections()
	if r.conns.len() >= maxConns {
		r.logger.Warn("connection rejected, system-wide cap reached",
			"max_connections", maxConns,
		)
		return nil, ErrResourceExhausted
	}

	conn := newConnection(uuid.NewString(), channel, r.config.SendTimeout)
	conn.Transition(StateConnected)
	r.conns.store(conn)

	if userID != "" {
		if err := r.bindUser(conn, userID, sessionID); err != nil {
			r.conns.delete(conn.ID)
			conn.close()
			return nil, err
		}
	}

	if _, err := conn.Send(protocol.Welcome(conn.ID)); err != nil && err != ErrSendTimeout {
		r.removeFromIndexes(conn)
		conn.close()
		r.logger.Warn("welcome delivery failed, tearing down connection",
			"connection_id", conn.ID,
			"error", err,
		)
		return nil, ErrDeliveryFailed
	}

	r.metrics.ConnectionRegistered()
	r.metrics.FrameSent(string(protocol.TypeWelcome))
	r.recorder.Record(audit.EventConnectionOpened,
		audit.WithConnection(conn.ID),
		audit.WithUser(userID),
		audit.WithSession(sessionID),
	)
	r.logger.Info("connection registered",
		"connection_id", conn.ID,
		"user", userID,
	)
	r.publishStateGauges()
	return conn, nil
}

// Authenticate binds an authenticated user (and optional session) to an
// already-registered connection, enforcing the per-user cap and the
// one-connection-per-session invariant.
func (r *Registry) Authenticate(connectionID, userID, sessionID string) error {
	conn, ok := r.conns.load(connectionID)
	if !ok {
		return ErrConnectionNotFound
	}
	if err := r.bindUser(conn, userID, sessionID); err != nil {
		return err
	}
	conn.Transition(StateAuthenticated)
	r.publishStateGauges()
	return nil
}

// bindUser inserts the connection into the user and session indexes.
// At the per-user cap the user's oldest connection is evicted first. A
// session already bound to another connection is taken over: the old
// connection is unregistered, treating reconnection as "new connection,
// client resubmits".
func (r *Registry) bindUser(conn *Connection, userID, sessionID string) error {
	for r.users.count(userID) >= r.maxPerUser() {
		oldest := r.oldestConnection(userID)
		if oldest == nil {
			break
		}
		r.logger.Info("evicting oldest connection at per-user cap",
			"user", userID,
			"evicted_connection_id", oldest.ID,
		)
		r.metrics.ConnectionEvicted("per-user limit")
		r.recorder.Record(audit.EventConnectionEvicted,
			audit.WithConnection(oldest.ID),
			audit.WithUser(userID),
			audit.WithDetail("per-user limit"),
		)
		r.Unregister(oldest.ID, "per-user limit")
	}

	if sessionID != "" {
		if oldID, ok := r.sessions.load(sessionID); ok && oldID != conn.ID {
			r.logger.Info("session rebound to new connection",
				"session_id", sessionID,
				"old_connection_id", oldID,
				"new_connection_id", conn.ID,
			)
			r.Unregister(oldID, "session resumed")
		}
		r.sessions.store(sessionID, conn.ID)
	}

	conn.BindUser(userID, sessionID)
	r.users.add(userID, conn.ID)
	return nil
}

func (r *Registry) oldestConnection(userID string) *Connection {
	var oldest *Connection
	for _, id := range r.users.ids(userID) {
		conn, ok := r.conns.load(id)
		if !ok {
			continue
		}
		if oldest == nil || conn.ConnectedAt.Before(oldest.ConnectedAt) {
			oldest = conn
		}
	}
	return oldest
}

// Unregister removes a connection from every index, closes it, and
// cascades cancellation to its in-flight requests. Idempotent: a second
// call for the same id is a no-op.
func (r *Registry) Unregister(connectionID, reason string) {
	conn, ok := r.conns.load(connectionID)
	if !ok {
		return
	}

	r.removeFromIndexes(conn)

	conn.Transition(StateDisconnecting)
	conn.Transition(StateDisconnected)
	conn.close()

	if r.coordinator != nil {
		r.coordinator.OnConnectionRemoved(connectionID)
	}

	r.recorder.Record(audit.EventConnectionClosed,
		audit.WithConnection(connectionID),
		audit.WithUser(conn.UserID()),
		audit.WithDetail(reason),
	)
	r.logger.Info("connection unregistered",
		"connection_id", connectionID,
		"reason", reason,
	)
	r.publishStateGauges()
}

// removeFromIndexes deletes the connection from all three maps. The
// connection map delete is the idempotence gate: only the caller that
// wins it proceeds with teardown.
func (r *Registry) removeFromIndexes(conn *Connection) bool {
	if !r.conns.delete(conn.ID) {
		return false
	}
	if userID := conn.UserID(); userID != "" {
		r.users.remove(userID, conn.ID)
	}
	if sessionID := conn.SessionID(); sessionID != "" {
		r.sessions.deleteIf(sessionID, conn.ID)
	}
	return true
}

// Send delivers one frame to the connection with the given id. A send
// timeout drops the frame without error to the caller's flow; a fatal
// send failure schedules the connection for removal.
func (r *Registry) Send(connectionID string, frame *protocol.Outbound) error {
	conn, ok := r.conns.load(connectionID)
	if !ok {
		return ErrConnectionNotFound
	}
	return r.sendOn(conn, frame)
}

func (r *Registry) sendOn(conn *Connection, frame *protocol.Outbound) error {
	fatal, err := conn.Send(frame)
	if err == nil {
		r.metrics.FrameSent(string(frame.Type))
		return nil
	}
	if err == ErrSendTimeout {
		r.metrics.SendError()
		r.logger.Warn("frame send timed out, dropped",
			"connection_id", conn.ID,
			"frame_type", string(frame.Type),
		)
		return nil
	}

	r.metrics.SendError()
	if fatal {
		r.logger.Warn("connection errored after repeated send failures",
			"connection_id", conn.ID,
			"error", err,
		)
		go r.Unregister(conn.ID, "repeated send failure")
	}
	return err
}

// SendToUser delivers a frame to every connection the user owns.
func (r *Registry) SendToUser(userID string, frame *protocol.Outbound) error {
	ids := r.users.ids(userID)
	if len(ids) == 0 {
		return ErrUserNotFound
	}
	for _, id := range ids {
		if conn, ok := r.conns.load(id); ok {
			r.sendOn(conn, frame)
		}
	}
	return nil
}

// SendToSession delivers a frame to the connection bound to the session.
func (r *Registry) SendToSession(sessionID string, frame *protocol.Outbound) error {
	id, ok := r.sessions.load(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	return r.Send(id, frame)
}

// Broadcast fans a frame out to every authenticated connection,
// best-effort.
func (r *Registry) Broadcast(frame *protocol.Outbound) {
	for _, conn := range r.conns.all() {
		if conn.State() != StateAuthenticated {
			continue
		}
		r.sendOn(conn, frame)
	}
}

// Run drives the heartbeat and reaper loops until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	heartbeat := time.NewTicker(r.config.HeartbeatInterval)
	reaper := time.NewTicker(r.config.ReaperInterval)
	defer heartbeat.Stop()
	defer reaper.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			r.pushHeartbeats()
		case <-reaper.C:
			r.reapStale()
		}
	}
}

// pushHeartbeats sends a heartbeat frame to every connection. Absence
// of a client pong is not itself fatal; liveness is judged by
// last_activity in the reaper.
func (r *Registry) pushHeartbeats() {
	frame := protocol.Heartbeat()
	for _, conn := range r.conns.all() {
		r.sendOn(conn, frame)
	}
}

// reapStale removes connections meeting all three staleness conditions.
func (r *Registry) reapStale() {
	now := time.Now()
	for _, conn := range r.conns.all() {
		if conn.stale(now, r.config.ConnectionTimeout) {
			r.metrics.ConnectionReaped()
			r.logger.Info("reaping stale connection",
				"connection_id", conn.ID,
				"user", conn.UserID(),
			)
			r.Unregister(conn.ID, "reaper timeout")
		}
	}
}

func (r *Registry) publishStateGauges() {
	counts := map[State]int{}
	for _, conn := range r.conns.all() {
		counts[conn.State()]++
	}
	for _, state := range []State{StateConnected, StateAuthenticated, StateDisconnecting, StateError} {
		r.metrics.SetConnectionsActive(string(state), counts[state])
	}
}

// RegistryStats is the operational statistics snapshot exposed on the
// stats endpoint.
type RegistryStats struct {
	TotalConnections int            `json:"total_connections"`
	ByState          map[string]int `json:"by_state"`
	ByUser           map[string]int `json:"by_user"`
	AverageAgeSecs   float64        `json:"average_age_seconds"`
}

// Stats returns connection counts, the per-user distribution, and the
// average connection age.
func (r *Registry) Stats() RegistryStats {
	stats := RegistryStats{
		ByState: map[string]int{},
		ByUser:  map[string]int{},
	}
	var totalAge time.Duration
	for _, conn := range r.conns.all() {
		stats.TotalConnections++
		stats.ByState[string(conn.State())]++
		if userID := conn.UserID(); userID != "" {
			stats.ByUser[userID]++
		}
		totalAge += conn.Age()
	}
	if stats.TotalConnections > 0 {
		stats.AverageAgeSecs = totalAge.Seconds() / float64(stats.TotalConnections)
	}
	return stats
}

// Connection returns the live connection with the given id.
func (r *Registry) Connection(connectionID string) (*Connection, bool) {
	return r.conns.load(connectionID)
}
