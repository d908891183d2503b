package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"quantra-hq/hermes/pkg/protocol"
	"quantra-hq/hermes/pkg/stream"
)

// blockingRunner holds every request until its context is cancelled or
// the release channel is closed.
type blockingRunner struct {
	mu      sync.Mutex
	started []*stream.Request
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context, req *stream.Request) stream.Outcome {
	r.mu.Lock()
	r.started = append(r.started, req)
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return stream.OutcomeCancelled
	case <-r.release:
		return stream.OutcomeSuccess
	}
}

func (r *blockingRunner) startedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.started)
}

func newTestCoordinator(t *testing.T, runner PipelineRunner) (*Coordinator, *Registry) {
	t.Helper()
	registry := newTestRegistry(t, RegistryConfig{})
	recorder, _ := testRecorder(t)
	c := NewCoordinator(registry, runner, testLogger(t), recorder)
	t.Cleanup(c.Close)
	return c, registry
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSubmitGeneratesRequestID(t *testing.T) {
	runner := newBlockingRunner()
	c, _ := newTestCoordinator(t, runner)

	id := c.Submit("conn-1", "user-1", &protocol.ChatFrame{Content: "hello"})
	if id == "" {
		t.Fatal("no request id generated")
	}
	waitFor(t, func() bool { return c.TaskCount("conn-1") == 1 }, "task not registered")
	close(runner.release)
	waitFor(t, func() bool { return c.TaskCount("conn-1") == 0 }, "task not cleaned up")
}

func TestSubmitDuplicateIDLastWriterWins(t *testing.T) {
	runner := newBlockingRunner()
	c, _ := newTestCoordinator(t, runner)

	frame := &protocol.ChatFrame{Content: "hello", RequestID: "req-1"}
	c.Submit("conn-1", "user-1", frame)
	waitFor(t, func() bool { return runner.startedCount() == 1 }, "first task not started")

	c.Submit("conn-1", "user-1", frame)
	waitFor(t, func() bool { return runner.startedCount() == 2 }, "second task not started")

	// The first task was cancelled; exactly one live task remains.
	waitFor(t, func() bool { return c.TaskCount("conn-1") == 1 }, "expected exactly one live task")

	close(runner.release)
	waitFor(t, func() bool { return c.TaskCount("conn-1") == 0 }, "tasks not cleaned up")
}

func TestCancelUnknownRequestIsNoop(t *testing.T) {
	runner := newBlockingRunner()
	c, registry := newTestCoordinator(t, runner)

	ch := &fakeChannel{}
	conn, err := registry.Register(ch, "user-1", "")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	c.Cancel(conn.ID, "no-such-request")

	// No cancelled or error frame goes out for a no-op cancel.
	for _, ft := range ch.frameTypes() {
		if ft == protocol.TypeChatCancelled || ft == protocol.TypeError {
			t.Errorf("unexpected frame %s after no-op cancel", ft)
		}
	}
	close(runner.release)
}

func TestCancelLiveTask(t *testing.T) {
	runner := newBlockingRunner()
	c, registry := newTestCoordinator(t, runner)

	ch := &fakeChannel{}
	conn, err := registry.Register(ch, "user-1", "")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	id := c.Submit(conn.ID, "user-1", &protocol.ChatFrame{Content: "hello"})
	waitFor(t, func() bool { return c.TaskCount(conn.ID) == 1 }, "task not started")

	c.Cancel(conn.ID, id)

	waitFor(t, func() bool { return c.TaskCount(conn.ID) == 0 }, "task not removed on cancel")
	found := false
	for _, ft := range ch.frameTypes() {
		if ft == protocol.TypeChatCancelled {
			found = true
		}
	}
	if !found {
		t.Error("no ai_chat_cancelled frame after cancel")
	}
	close(runner.release)
}

func TestConnectionRemovalCancelsAllTasks(t *testing.T) {
	runner := newBlockingRunner()
	c, registry := newTestCoordinator(t, runner)

	conn, err := registry.Register(&fakeChannel{}, "user-1", "")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		c.Submit(conn.ID, "user-1", &protocol.ChatFrame{Content: "hello"})
	}
	waitFor(t, func() bool { return c.TaskCount(conn.ID) == 3 }, "tasks not started")

	registry.Unregister(conn.ID, "test")

	waitFor(t, func() bool { return c.TaskCount(conn.ID) == 0 },
		"coordinator still holds tasks for removed connection")
	close(runner.release)
}
