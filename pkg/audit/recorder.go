package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RecorderConfig contains configuration for the async recorder.
type RecorderConfig struct {
	// Enabled enables audit recording.
	Enabled bool

	// BufferSize is the size of the async write channel buffer.
	// Default: 1000
	BufferSize int

	// WriteTimeout is the timeout for writing one event to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		Enabled:      true,
		BufferSize:   1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder writes audit events to storage asynchronously. Record
// returns immediately; a background worker drains the buffer. When the
// buffer is full the event is dropped and counted.
type Recorder struct {
	storage Storage
	config  *RecorderConfig
	events  chan *Event
	dropped atomic.Int64
	wg      sync.WaitGroup
	done    chan struct{}
	logger  *slog.Logger
}

// NewRecorder creates a recorder backed by the given storage and starts
// its background worker.
func NewRecorder(storage Storage, config *RecorderConfig) *Recorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}

	r := &Recorder{
		storage: storage,
		config:  config,
		events:  make(chan *Event, config.BufferSize),
		done:    make(chan struct{}),
		logger:  slog.Default().With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Record enqueues one event for async persistence. The event's ID and
// Timestamp are filled in if unset. Returns immediately.
func (r *Recorder) Record(kind EventKind, opts ...EventOption) {
	if !r.config.Enabled {
		return
	}

	event := &Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(event)
	}

	select {
	case r.events <- event:
	default:
		dropped := r.dropped.Add(1)
		if dropped%100 == 1 {
			r.logger.Warn("audit buffer full, dropping events",
				"dropped_total", dropped,
			)
		}
	}
}

// Dropped returns the number of events dropped due to a full buffer.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close drains remaining buffered events and stops the worker.
func (r *Recorder) Close() error {
	close(r.done)
	r.wg.Wait()
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case event := <-r.events:
			r.write(event)
		case <-r.done:
			// Drain whatever is still buffered before exiting.
			for {
				select {
				case event := <-r.events:
					r.write(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.storage.Store(ctx, event); err != nil {
		r.logger.Error("failed to store audit event",
			"event_id", event.ID,
			"kind", event.Kind,
			"error", err,
		)
	}
}

// EventOption sets optional fields on an event being recorded.
type EventOption func(*Event)

// WithConnection sets the connection id.
func WithConnection(connectionID string) EventOption {
	return func(e *Event) { e.ConnectionID = connectionID }
}

// WithUser sets the user id.
func WithUser(userID string) EventOption {
	return func(e *Event) { e.UserID = userID }
}

// WithRequest sets the request id.
func WithRequest(requestID string) EventOption {
	return func(e *Event) { e.RequestID = requestID }
}

// WithSession sets the session id.
func WithSession(sessionID string) EventOption {
	return func(e *Event) { e.SessionID = sessionID }
}

// WithDetail sets the detail note.
func WithDetail(detail string) EventOption {
	return func(e *Event) { e.Detail = detail }
}
