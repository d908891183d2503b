package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage implements Storage in process memory. Intended for
// tests and deployments that do not need a persistent audit trail.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []*Event
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Store appends one event.
func (s *MemoryStorage) Store(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *event
	s.events = append(s.events, &copied)
	return nil
}

// Count returns the number of stored events.
func (s *MemoryStorage) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.events)), nil
}

// DeleteOlderThan removes events before the cutoff.
func (s *MemoryStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for _, e := range s.events {
		if e.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return deleted, nil
}

// Events returns a snapshot of stored events in insertion order.
func (s *MemoryStorage) Events() []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Event, len(s.events))
	copy(out, s.events)
	return out
}

// Close is a no-op.
func (s *MemoryStorage) Close() error { return nil }
