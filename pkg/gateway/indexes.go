package gateway

import "sync"

// The three registry indexes each carry their own lock so a scan of one
// never blocks mutation of another.

// syncConnMap is the index from connection id to Connection.
type syncConnMap struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

func (m *syncConnMap) init() {
	m.conns = make(map[string]*Connection)
}

func (m *syncConnMap) store(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[conn.ID] = conn
}

func (m *syncConnMap) load(id string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[id]
	return conn, ok
}

// delete removes the id and reports whether it was present. The report
// makes teardown idempotent: only the caller that removed the entry
// continues.
func (m *syncConnMap) delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conns[id]; !ok {
		return false
	}
	delete(m.conns, id)
	return true
}

func (m *syncConnMap) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// all returns a snapshot slice so callers iterate without holding the
// lock.
func (m *syncConnMap) all() []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Connection, 0, len(m.conns))
	for _, conn := range m.conns {
		out = append(out, conn)
	}
	return out
}

// syncUserIndex is the index from user id to connection ids.
type syncUserIndex struct {
	mu    sync.RWMutex
	users map[string]map[string]struct{}
}

func (m *syncUserIndex) init() {
	m.users = make(map[string]map[string]struct{})
}

func (m *syncUserIndex) add(userID, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.users[userID]
	if !ok {
		set = make(map[string]struct{})
		m.users[userID] = set
	}
	set[connID] = struct{}{}
}

func (m *syncUserIndex) remove(userID, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.users[userID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(m.users, userID)
	}
}

func (m *syncUserIndex) count(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users[userID])
}

func (m *syncUserIndex) ids(userID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.users[userID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// syncSessionIndex is the index from session id to connection id.
type syncSessionIndex struct {
	mu       sync.RWMutex
	sessions map[string]string
}

func (m *syncSessionIndex) init() {
	m.sessions = make(map[string]string)
}

func (m *syncSessionIndex) store(sessionID, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = connID
}

func (m *syncSessionIndex) load(sessionID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.sessions[sessionID]
	return id, ok
}

// deleteIf removes the session only while it still points at the given
// connection, so a takeover by a newer connection is never undone by
// the old connection's teardown.
func (m *syncSessionIndex) deleteIf(sessionID, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[sessionID] == connID {
		delete(m.sessions, sessionID)
	}
}
