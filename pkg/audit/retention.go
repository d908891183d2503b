package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig contains configuration for the retention pruner.
type RetentionConfig struct {
	// RetentionDays is the number of days to retain events.
	// 0 keeps events forever.
	RetentionDays int

	// Schedule is a cron expression for scheduling pruning,
	// e.g. "0 3 * * *" for daily at 3 AM. Empty disables the schedule.
	Schedule string
}

// Pruner enforces the retention period on an audit store. It can run
// one-shot via Prune or on a cron schedule via Start.
type Pruner struct {
	storage Storage
	config  *RetentionConfig
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	logger  *slog.Logger
}

// NewPruner creates a retention pruner for the given storage.
func NewPruner(storage Storage, config *RetentionConfig) *Pruner {
	return &Pruner{
		storage: storage,
		config:  config,
		cron:    cron.New(),
		logger:  slog.Default().With("component", "audit.retention"),
	}
}

// Prune deletes events older than the retention period and returns the
// number deleted. A zero retention period deletes nothing.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -p.config.RetentionDays)
	deleted, err := p.storage.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune audit events: %w", err)
	}

	p.logger.Info("pruned audit events",
		"deleted_count", deleted,
		"retention_days", p.config.RetentionDays,
	)
	return deleted, nil
}

// Start schedules pruning per the configured cron expression. It does
// nothing when no schedule is configured. The scheduler stops when ctx
// is cancelled.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.Schedule == "" {
		p.logger.Info("retention schedule not configured, skipping")
		return nil
	}

	if _, err := cron.ParseStandard(p.config.Schedule); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", p.config.Schedule, err)
	}

	_, err := p.cron.AddFunc(p.config.Schedule, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("scheduled pruning failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule pruning: %w", err)
	}

	p.cron.Start()
	p.running = true

	p.logger.Info("retention scheduler started",
		"schedule", p.config.Schedule,
		"retention_days", p.config.RetentionDays,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

// Stop halts the scheduler. Safe to call more than once.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	p.running = false
	p.logger.Info("retention scheduler stopped")
}
