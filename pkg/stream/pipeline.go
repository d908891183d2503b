package stream

import (
	"context"
	"time"

	"quantra-hq/hermes/pkg/accounts"
	"quantra-hq/hermes/pkg/protocol"
	"quantra-hq/hermes/pkg/providers"
	"quantra-hq/hermes/pkg/telemetry/logging"
	"quantra-hq/hermes/pkg/telemetry/metrics"
)

// Sender delivers one frame to a connection. Implemented by the
// connection registry; the pipeline never holds a connection directly,
// only its id.
type Sender interface {
	Send(connectionID string, frame *protocol.Outbound) error
}

// Config contains the retry and breaker policy for the pipeline.
type Config struct {
	// MaxRetries is how many times a failed stream is retried before
	// falling back. Default: 3
	MaxRetries int

	// BackoffBase is the first retry delay. Default: 1s
	BackoffBase time.Duration

	// BackoffMax caps the exponential backoff. Default: 30s
	BackoffMax time.Duration
}

// Request is one chat request handed to the pipeline by the coordinator.
type Request struct {
	ConnectionID string
	UserID       string
	RequestID    string
	SessionID    string
	Content      string
	AIMode       string
	SessionType  string
}

// Outcome is the terminal result of one pipeline run.
type Outcome string

const (
	// OutcomeSuccess means the stream completed and an end frame was sent.
	OutcomeSuccess Outcome = "success"

	// OutcomeFallback means streaming was exhausted but the single
	// non-streaming fallback succeeded.
	OutcomeFallback Outcome = "fallback"

	// OutcomeError means every mitigation failed; a terminal error frame
	// was sent.
	OutcomeError Outcome = "error"

	// OutcomeCancelled means the request's context was cancelled. No
	// frame is sent after cancellation.
	OutcomeCancelled Outcome = "cancelled"
)

// Pipeline executes chat requests against the upstream provider. One
// Pipeline is shared by all requests; per-request state lives on the
// stack of Run.
type Pipeline struct {
	provider providers.StreamProvider
	selector accounts.Selector
	recovery *RecoveryManager
	sender   Sender
	config   Config
	logger   *logging.Logger
	metrics  *metrics.Collector
}

// NewPipeline creates a pipeline. The recovery manager is shared across
// requests so one request's upstream failure shields the rest.
func NewPipeline(
	provider providers.StreamProvider,
	selector accounts.Selector,
	recovery *RecoveryManager,
	sender Sender,
	config Config,
	logger *logging.Logger,
	collector *metrics.Collector,
) *Pipeline {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = time.Second
	}
	if config.BackoffMax <= 0 {
		config.BackoffMax = 30 * time.Second
	}
	return &Pipeline{
		provider: provider,
		selector: selector,
		recovery: recovery,
		sender:   sender,
		config:   config,
		logger:   logger,
		metrics:  collector,
	}
}

// Run executes one request to a terminal state and returns the outcome.
// The caller owns task bookkeeping; Run only produces frames.
func (p *Pipeline) Run(ctx context.Context, req *Request) Outcome {
	start := time.Now()
	outcome := p.run(ctx, req)
	p.metrics.RecordStream(string(outcome), time.Since(start))
	p.metrics.SetAccountsFailed(p.recovery.FailedCount())
	return outcome
}

func (p *Pipeline) run(ctx context.Context, req *Request) Outcome {
	p.send(req.ConnectionID, protocol.ChatStart(req.RequestID))

	complexity, estimate := EstimateComplexity(req.Content)
	p.send(req.ConnectionID, protocol.ComplexityAnalysis(req.RequestID, complexity, estimate))

	chatReq := &providers.ChatRequest{
		Messages: []providers.Message{{Role: "user", Content: req.Content}},
		Stream:   true,
		Metadata: map[string]string{
			"request_id": req.RequestID,
			"user_id":    req.UserID,
		},
	}

	attempt := 0
	for {
		account, err := p.selector.Select(p.recovery.IsFailed)
		if err != nil {
			p.logger.WarnContext(ctx, "no upstream account available",
				"attempt", attempt,
			)
			p.send(req.ConnectionID, protocol.StreamError(req.RequestID, err))
			return OutcomeError
		}

		finished, streamErr := p.streamOnce(ctx, req, account, chatReq)
		if finished {
			return OutcomeSuccess
		}

		kind := Classify(streamErr)
		if kind == KindCancelled {
			return OutcomeCancelled
		}

		if kind.TripsBreaker() {
			p.recovery.MarkFailed(account.ID)
			p.logger.WarnContext(ctx, "upstream account marked failed",
				"account_id", account.ID,
				"error", streamErr,
			)
		}

		if !kind.Retryable() {
			p.send(req.ConnectionID, protocol.StreamError(req.RequestID, streamErr))
			return OutcomeError
		}

		if attempt >= p.config.MaxRetries {
			return p.fallback(ctx, req, chatReq)
		}

		delay := BackoffDelay(attempt, p.config.BackoffBase, p.config.BackoffMax)
		attempt++
		p.metrics.StreamRetry(string(kind))
		p.logger.WarnContext(ctx, "stream failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"kind", string(kind),
			"error", streamErr,
		)
		p.send(req.ConnectionID, protocol.StreamRetry(req.RequestID, attempt, delay))

		if err := sleep(ctx, delay); err != nil {
			return OutcomeCancelled
		}
	}
}

// streamOnce performs one streaming attempt. It returns finished=true
// when the stream completed and the end frame was sent; otherwise the
// error that ended the attempt.
func (p *Pipeline) streamOnce(ctx context.Context, req *Request, account *accounts.Account, chatReq *providers.ChatRequest) (bool, error) {
	ch, err := p.provider.StreamChat(ctx, account.Credentials(), chatReq)
	if err != nil {
		return false, err
	}

	p.send(req.ConnectionID, protocol.StreamStart(req.RequestID))

	var accumulated []byte
	var usage *providers.TokenUsage
	done := false

	for chunk := range ch {
		if chunk.Err != nil {
			return false, chunk.Err
		}

		// The one cancellation point inside a stream: checked before
		// each send so no frame goes out after cancellation.
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		if chunk.Delta != "" {
			p.send(req.ConnectionID, protocol.StreamChunk(req.RequestID, chunk.Delta))
			accumulated = append(accumulated, chunk.Delta...)
			p.metrics.StreamChunk()
		}
		if chunk.Done {
			usage = chunk.Usage
			done = true
		}
	}

	if !done {
		return false, &providers.StreamError{Message: "stream closed without completion"}
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	p.send(req.ConnectionID, protocol.StreamEnd(req.RequestID, string(accumulated), toWireUsage(usage)))
	return true, nil
}

// fallback performs the single non-streaming call after streaming
// retries are exhausted. Exactly one of fallback_response or a terminal
// error frame is emitted.
func (p *Pipeline) fallback(ctx context.Context, req *Request, chatReq *providers.ChatRequest) Outcome {
	p.send(req.ConnectionID, protocol.StreamFallback(req.RequestID))

	account, err := p.selector.Select(p.recovery.IsFailed)
	if err != nil {
		// Every account is inside its failure window. The fallback is a
		// last resort, so take any account rather than fail outright.
		account, err = p.selector.Select(nil)
	}
	if err != nil {
		p.metrics.StreamFallback("error")
		p.send(req.ConnectionID, protocol.StreamError(req.RequestID, err))
		return OutcomeError
	}

	fallbackReq := *chatReq
	fallbackReq.Stream = false

	resp, err := p.provider.Chat(ctx, account.Credentials(), &fallbackReq)
	if err != nil {
		if Classify(err) == KindCancelled {
			return OutcomeCancelled
		}
		p.metrics.StreamFallback("error")
		p.logger.ErrorContext(ctx, "fallback call failed",
			"account_id", account.ID,
			"error", err,
		)
		p.send(req.ConnectionID, protocol.StreamError(req.RequestID, err))
		return OutcomeError
	}
	if ctx.Err() != nil {
		return OutcomeCancelled
	}

	p.metrics.StreamFallback("success")
	p.send(req.ConnectionID, protocol.FallbackResponse(req.RequestID, resp.Content, toWireUsage(&resp.Usage)))
	return OutcomeFallback
}

// send delivers a frame best-effort. Delivery failures are the
// registry's concern (it tracks per-connection error counters); the
// pipeline keeps streaming.
func (p *Pipeline) send(connectionID string, frame *protocol.Outbound) {
	if err := p.sender.Send(connectionID, frame); err != nil {
		p.logger.Debug("frame delivery failed",
			"connection_id", connectionID,
			"frame_type", string(frame.Type),
			"error", err,
		)
	}
}

func toWireUsage(u *providers.TokenUsage) *protocol.Usage {
	if u == nil {
		return nil
	}
	return &protocol.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}
