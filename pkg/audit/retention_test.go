package audit

import (
	"context"
	"testing"
	"time"
)

func TestPrunerDeletesExpired(t *testing.T) {
	store := NewMemoryStorage()
	store.Store(context.Background(), testEvent(EventConnectionOpened, 10*24*time.Hour))
	store.Store(context.Background(), testEvent(EventConnectionClosed, time.Hour))

	pruner := NewPruner(store, &RetentionConfig{RetentionDays: 7})
	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("Prune() = %d, want 1", deleted)
	}
}

func TestPrunerZeroRetentionKeepsAll(t *testing.T) {
	store := NewMemoryStorage()
	store.Store(context.Background(), testEvent(EventConnectionOpened, 365*24*time.Hour))

	pruner := NewPruner(store, &RetentionConfig{RetentionDays: 0})
	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("Prune() = %d, want 0", deleted)
	}
}

func TestPrunerScheduleValidation(t *testing.T) {
	store := NewMemoryStorage()
	pruner := NewPruner(store, &RetentionConfig{
		RetentionDays: 7,
		Schedule:      "not a cron expression",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := pruner.Start(ctx); err == nil {
		t.Error("Start() accepted an invalid schedule")
	}
}

func TestPrunerEmptyScheduleNoop(t *testing.T) {
	store := NewMemoryStorage()
	pruner := NewPruner(store, &RetentionConfig{RetentionDays: 7})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := pruner.Start(ctx); err != nil {
		t.Errorf("Start() error = %v", err)
	}
	pruner.Stop()
}
