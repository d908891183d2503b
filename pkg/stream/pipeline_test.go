package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"quantra-hq/hermes/internal/upstream"
	"quantra-hq/hermes/pkg/accounts"
	"quantra-hq/hermes/pkg/config"
	"quantra-hq/hermes/pkg/protocol"
	"quantra-hq/hermes/pkg/providers"
	"quantra-hq/hermes/pkg/telemetry/logging"
	"quantra-hq/hermes/pkg/telemetry/metrics"
)

// frameSink captures frames the pipeline would deliver to a connection.
type frameSink struct {
	mu     sync.Mutex
	frames []*protocol.Outbound
}

func (s *frameSink) Send(connectionID string, frame *protocol.Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return nil
}

func (s *frameSink) types() []protocol.FrameType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.FrameType, len(s.frames))
	for i, f := range s.frames {
		out[i] = f.Type
	}
	return out
}

func (s *frameSink) count(t protocol.FrameType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.frames {
		if f.Type == t {
			n++
		}
	}
	return n
}

func (s *frameSink) last() *protocol.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func (s *frameSink) find(t protocol.FrameType) *protocol.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.frames {
		if f.Type == t {
			return f
		}
	}
	return nil
}

func testAccounts(ids ...string) []*accounts.Account {
	out := make([]*accounts.Account, len(ids))
	for i, id := range ids {
		out[i] = &accounts.Account{ID: id, APIKey: "sk-" + id, BaseURL: "http://upstream", Model: "test-model"}
	}
	return out
}

func newTestPipeline(t *testing.T, provider providers.StreamProvider, selector accounts.Selector, recovery *RecoveryManager, sink *frameSink, cfg Config) *Pipeline {
	t.Helper()
	logger, err := logging.New(logging.Config{Writer: io.Discard})
	if err != nil {
		t.Fatalf("logging.New() error = %v", err)
	}
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true}, nil)
	return NewPipeline(provider, selector, recovery, sink, cfg, logger, collector)
}

func testRequest() *Request {
	return &Request{
		ConnectionID: "conn-1",
		UserID:       "user-1",
		RequestID:    "req-1",
		Content:      "hello",
	}
}

func fastConfig() Config {
	return Config{MaxRetries: 3, BackoffBase: time.Millisecond, BackoffMax: 4 * time.Millisecond}
}

func TestPipelineSingleChunkSuccess(t *testing.T) {
	provider := upstream.NewMockProvider(upstream.Script{
		Chunks: []string{"hi"},
		Usage:  &providers.TokenUsage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
	})
	sink := &frameSink{}
	p := newTestPipeline(t, provider,
		accounts.NewRoundRobinSelector(testAccounts("a")),
		NewRecoveryManager(time.Minute), sink, fastConfig())

	outcome := p.Run(context.Background(), testRequest())
	if outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeSuccess)
	}

	want := []protocol.FrameType{
		protocol.TypeAIChatStart,
		protocol.TypeComplexityAnalysis,
		protocol.TypeStreamStart,
		protocol.TypeStreamChunk,
		protocol.TypeStreamEnd,
	}
	got := sink.types()
	if len(got) != len(want) {
		t.Fatalf("frame sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	chunk := sink.find(protocol.TypeStreamChunk)
	if chunk.Chunk != "hi" {
		t.Errorf("chunk = %q, want %q", chunk.Chunk, "hi")
	}
	end := sink.find(protocol.TypeStreamEnd)
	if end.Content != "hi" {
		t.Errorf("end content = %q, want %q", end.Content, "hi")
	}
	if end.Usage == nil || end.Usage.TotalTokens != 2 {
		t.Errorf("end usage = %+v, want total 2", end.Usage)
	}
}

func TestPipelineRetriesThenSucceeds(t *testing.T) {
	transient := &providers.NetworkError{AccountID: "a", Cause: errors.New("connection reset")}
	provider := upstream.NewMockProvider(
		upstream.Script{OpenErr: transient},
		upstream.Script{OpenErr: transient},
		upstream.Script{Chunks: []string{"recovered"}},
	)
	sink := &frameSink{}
	p := newTestPipeline(t, provider,
		accounts.NewRoundRobinSelector(testAccounts("a", "b")),
		NewRecoveryManager(time.Minute), sink, fastConfig())

	outcome := p.Run(context.Background(), testRequest())
	if outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeSuccess)
	}

	if got := sink.count(protocol.TypeStreamRetry); got != 2 {
		t.Errorf("stream_retry frames = %d, want 2", got)
	}
	if got := sink.count(protocol.TypeStreamEnd); got != 1 {
		t.Errorf("ai_stream_end frames = %d, want 1", got)
	}
	if got := provider.StreamCalls(); got != 3 {
		t.Errorf("stream attempts = %d, want 3", got)
	}
}

func TestPipelineExhaustedFallsBack(t *testing.T) {
	transient := &providers.NetworkError{AccountID: "a", Cause: errors.New("unreachable")}
	provider := upstream.NewMockProvider(upstream.Script{OpenErr: transient})
	provider.ChatResponse = &providers.ChatResponse{
		Content: "degraded answer",
		Usage:   providers.TokenUsage{TotalTokens: 3},
	}
	sink := &frameSink{}
	p := newTestPipeline(t, provider,
		accounts.NewRoundRobinSelector(testAccounts("a")),
		NewRecoveryManager(time.Minute), sink, fastConfig())

	outcome := p.Run(context.Background(), testRequest())
	if outcome != OutcomeFallback {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeFallback)
	}

	// Retries before fallback: MaxRetries of them.
	if got := sink.count(protocol.TypeStreamRetry); got != 3 {
		t.Errorf("stream_retry frames = %d, want 3", got)
	}
	if got := sink.count(protocol.TypeStreamFallback); got != 1 {
		t.Errorf("stream_fallback frames = %d, want 1", got)
	}
	if got := sink.count(protocol.TypeFallbackResponse); got != 1 {
		t.Errorf("fallback_response frames = %d, want 1", got)
	}
	if got := sink.count(protocol.TypeStreamError); got != 0 {
		t.Errorf("error frames = %d, want 0 alongside fallback_response", got)
	}
	if resp := sink.find(protocol.TypeFallbackResponse); resp.Content != "degraded answer" {
		t.Errorf("fallback content = %q", resp.Content)
	}
	if got := provider.ChatCalls(); got != 1 {
		t.Errorf("fallback calls = %d, want exactly 1", got)
	}
}

func TestPipelineFallbackFailureIsTerminal(t *testing.T) {
	transient := &providers.TimeoutError{AccountID: "a"}
	provider := upstream.NewMockProvider(upstream.Script{OpenErr: transient})
	provider.ChatErr = &providers.UpstreamError{AccountID: "a", StatusCode: 503, Message: "unavailable"}
	sink := &frameSink{}
	p := newTestPipeline(t, provider,
		accounts.NewRoundRobinSelector(testAccounts("a")),
		NewRecoveryManager(time.Minute), sink, fastConfig())

	outcome := p.Run(context.Background(), testRequest())
	if outcome != OutcomeError {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeError)
	}

	if got := sink.count(protocol.TypeStreamFallback); got != 1 {
		t.Errorf("stream_fallback frames = %d, want 1", got)
	}
	if got := sink.count(protocol.TypeFallbackResponse); got != 0 {
		t.Errorf("fallback_response frames = %d, want 0 after fallback failure", got)
	}
	errFrame := sink.last()
	if errFrame.Type != protocol.TypeStreamError {
		t.Fatalf("last frame = %s, want %s", errFrame.Type, protocol.TypeStreamError)
	}
	if errFrame.Error == "" {
		t.Error("terminal error frame carries no error text")
	}
}

func TestPipelineUpstreamErrorTripsBreaker(t *testing.T) {
	upErr := &providers.StreamError{AccountID: "a", Message: "truncated mid-stream"}
	provider := upstream.NewMockProvider(
		upstream.Script{Chunks: []string{"partial"}, Err: upErr},
		upstream.Script{Chunks: []string{"ok"}},
	)
	sink := &frameSink{}
	recovery := NewRecoveryManager(time.Minute)
	p := newTestPipeline(t, provider,
		accounts.NewRoundRobinSelector(testAccounts("a", "b")),
		recovery, sink, fastConfig())

	outcome := p.Run(context.Background(), testRequest())
	if outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeSuccess)
	}

	// The first selected account failed mid-stream and must now be held
	// out by the breaker.
	if !recovery.IsFailed("a") {
		t.Error("failing account not marked failed")
	}
	if recovery.IsFailed("b") {
		t.Error("healthy account marked failed")
	}
	// The retry re-selects and must land on the remaining account.
	if provider.LastCreds.AccountID != "b" {
		t.Errorf("retry used account %q, want b", provider.LastCreds.AccountID)
	}
}

func TestPipelineAuthErrorNotRetried(t *testing.T) {
	provider := upstream.NewMockProvider(upstream.Script{
		OpenErr: &providers.AuthError{AccountID: "a", Message: "invalid api key"},
	})
	sink := &frameSink{}
	p := newTestPipeline(t, provider,
		accounts.NewRoundRobinSelector(testAccounts("a")),
		NewRecoveryManager(time.Minute), sink, fastConfig())

	outcome := p.Run(context.Background(), testRequest())
	if outcome != OutcomeError {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeError)
	}
	if got := sink.count(protocol.TypeStreamRetry); got != 0 {
		t.Errorf("stream_retry frames = %d, want 0 for auth error", got)
	}
	if got := provider.StreamCalls(); got != 1 {
		t.Errorf("stream attempts = %d, want 1", got)
	}
	if got := provider.ChatCalls(); got != 0 {
		t.Errorf("fallback attempted after non-retryable error")
	}
}

func TestPipelineNoAccountTerminal(t *testing.T) {
	provider := upstream.NewMockProvider()
	sink := &frameSink{}
	p := newTestPipeline(t, provider,
		accounts.NewRoundRobinSelector(nil),
		NewRecoveryManager(time.Minute), sink, fastConfig())

	outcome := p.Run(context.Background(), testRequest())
	if outcome != OutcomeError {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeError)
	}
	if got := provider.StreamCalls(); got != 0 {
		t.Errorf("stream attempted with no accounts")
	}
	errFrame := sink.find(protocol.TypeStreamError)
	if errFrame == nil || errFrame.Error == "" {
		t.Fatal("no terminal error frame with text")
	}
}

func TestPipelineCancelledDuringBackoff(t *testing.T) {
	transient := &providers.NetworkError{AccountID: "a"}
	provider := upstream.NewMockProvider(upstream.Script{OpenErr: transient})
	sink := &frameSink{}
	p := newTestPipeline(t, provider,
		accounts.NewRoundRobinSelector(testAccounts("a")),
		NewRecoveryManager(time.Minute), sink,
		Config{MaxRetries: 3, BackoffBase: 10 * time.Second, BackoffMax: 10 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	done := make(chan Outcome, 1)
	go func() { done <- p.Run(ctx, testRequest()) }()

	select {
	case outcome := <-done:
		if outcome != OutcomeCancelled {
			t.Fatalf("outcome = %s, want %s", outcome, OutcomeCancelled)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not honor cancellation during backoff")
	}

	// The retry announcement is the last thing the client saw; nothing
	// goes out after cancellation.
	if last := sink.last(); last.Type != protocol.TypeStreamRetry {
		t.Errorf("last frame = %s, want %s", last.Type, protocol.TypeStreamRetry)
	}
}
