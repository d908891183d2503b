package gateway

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"quantra-hq/hermes/pkg/audit"
	"quantra-hq/hermes/pkg/protocol"
	"quantra-hq/hermes/pkg/stream"
	"quantra-hq/hermes/pkg/telemetry/logging"
)

// PipelineRunner executes one chat request to a terminal outcome. The
// streaming pipeline implements it; tests substitute fakes.
type PipelineRunner interface {
	Run(ctx context.Context, req *stream.Request) stream.Outcome
}

// task is one live request: its cancel handle and completion signal.
type task struct {
	requestID    string
	connectionID string
	cancel       context.CancelFunc
	done         chan struct{}
}

// Coordinator demultiplexes chat requests into independently
// cancellable tasks, holding at most one live task per
// (connection id, request id) pair. Submitting a duplicate request id
// cancels the older task first; tearing down a connection cancels every
// task it owns.
type Coordinator struct {
	registry *Registry
	runner   PipelineRunner
	logger   *logging.Logger
	recorder *audit.Recorder

	mu    sync.Mutex
	tasks map[string]map[string]*task // connectionID -> requestID -> task

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoordinator creates a coordinator delivering output through the
// registry.
func NewCoordinator(registry *Registry, runner PipelineRunner, logger *logging.Logger, recorder *audit.Recorder) *Coordinator {
	base, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		registry: registry,
		runner:   runner,
		logger:   logger,
		recorder: recorder,
		tasks:    make(map[string]map[string]*task),
		base:     base,
		cancel:   cancel,
	}
	registry.SetCoordinator(c)
	return c
}

// Submit accepts a chat frame from a connection and starts its task.
// The request id is generated when the client supplied none. If a live
// task already holds the id, it is cancelled first (last-writer-wins).
// Returns the resolved request id.
func (c *Coordinator) Submit(connectionID, userID string, frame *protocol.ChatFrame) string {
	requestID := frame.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(c.base)
	t := &task{
		requestID:    requestID,
		connectionID: connectionID,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	c.mu.Lock()
	byRequest, ok := c.tasks[connectionID]
	if !ok {
		byRequest = make(map[string]*task)
		c.tasks[connectionID] = byRequest
	}
	if old, exists := byRequest[requestID]; exists {
		c.logger.Warn("duplicate request id, cancelling previous task",
			"connection_id", connectionID,
			"request_id", requestID,
		)
		old.cancel()
	}
	byRequest[requestID] = t
	c.mu.Unlock()

	req := &stream.Request{
		ConnectionID: connectionID,
		UserID:       userID,
		RequestID:    requestID,
		SessionID:    frame.SessionID,
		Content:      frame.Content,
		AIMode:       frame.AIMode,
		SessionType:  frame.SessionType,
	}

	c.recorder.Record(audit.EventRequestStarted,
		audit.WithConnection(connectionID),
		audit.WithUser(userID),
		audit.WithRequest(requestID),
		audit.WithSession(frame.SessionID),
	)

	c.wg.Add(1)
	go c.runTask(ctx, t, req)
	return requestID
}

// runTask drives the pipeline and unconditionally removes the task's
// bookkeeping afterwards, whatever branch terminated it.
func (c *Coordinator) runTask(ctx context.Context, t *task, req *stream.Request) {
	defer c.wg.Done()
	defer close(t.done)
	defer t.cancel()
	defer c.remove(t)

	ctx = logging.WithConnectionID(ctx, req.ConnectionID)
	ctx = logging.WithRequestID(ctx, req.RequestID)
	ctx = logging.WithUser(ctx, req.UserID)

	outcome := c.runner.Run(ctx, req)

	switch outcome {
	case stream.OutcomeSuccess, stream.OutcomeFallback:
		c.recorder.Record(audit.EventRequestCompleted,
			audit.WithConnection(req.ConnectionID),
			audit.WithUser(req.UserID),
			audit.WithRequest(req.RequestID),
			audit.WithDetail(string(outcome)),
		)
	case stream.OutcomeCancelled:
		c.recorder.Record(audit.EventRequestCancelled,
			audit.WithConnection(req.ConnectionID),
			audit.WithUser(req.UserID),
			audit.WithRequest(req.RequestID),
		)
	default:
		c.recorder.Record(audit.EventRequestFailed,
			audit.WithConnection(req.ConnectionID),
			audit.WithUser(req.UserID),
			audit.WithRequest(req.RequestID),
		)
	}

	c.logger.InfoContext(ctx, "request finished", "outcome", string(outcome))
}

// remove deletes the task's bookkeeping if it is still the registered
// task for its request id. A superseding task with the same id is left
// alone.
func (c *Coordinator) remove(t *task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byRequest, ok := c.tasks[t.connectionID]
	if !ok {
		return
	}
	if byRequest[t.requestID] == t {
		delete(byRequest, t.requestID)
		if len(byRequest) == 0 {
			delete(c.tasks, t.connectionID)
		}
	}
}

// Cancel cancels the named task and notifies the owning user. A cancel
// with no matching task is a harmless no-op: cancellation racing with
// natural completion is expected.
func (c *Coordinator) Cancel(connectionID, requestID string) {
	c.mu.Lock()
	t, ok := c.tasks[connectionID][requestID]
	if ok {
		delete(c.tasks[connectionID], requestID)
		if len(c.tasks[connectionID]) == 0 {
			delete(c.tasks, connectionID)
		}
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("cancel for unknown request, ignoring",
			"connection_id", connectionID,
			"request_id", requestID,
		)
		return
	}

	t.cancel()
	c.registry.Send(connectionID, protocol.ChatCancelled(requestID))
}

// OnConnectionRemoved cancels every task owned by the connection and
// clears its request set. Invoked by the registry's unregister path.
func (c *Coordinator) OnConnectionRemoved(connectionID string) {
	c.mu.Lock()
	byRequest := c.tasks[connectionID]
	delete(c.tasks, connectionID)
	c.mu.Unlock()

	for _, t := range byRequest {
		t.cancel()
	}
	if len(byRequest) > 0 {
		c.logger.Info("cancelled in-flight requests for removed connection",
			"connection_id", connectionID,
			"count", len(byRequest),
		)
	}
}

// TaskCount returns how many live tasks the connection owns.
func (c *Coordinator) TaskCount(connectionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks[connectionID])
}

// Close cancels every task and waits for the workers to finish.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}
