package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testEvent(kind EventKind, age time.Duration) *Event {
	return &Event{
		ID:           uuid.NewString(),
		Kind:         kind,
		Timestamp:    time.Now().UTC().Add(-age),
		ConnectionID: "conn-1",
		UserID:       "user-1",
	}
}

// storageUnderTest runs the shared backend contract against a Storage.
func storageUnderTest(t *testing.T, store Storage) {
	t.Helper()
	ctx := context.Background()

	if err := store.Store(ctx, testEvent(EventConnectionOpened, 48*time.Hour)); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := store.Store(ctx, testEvent(EventRequestStarted, time.Minute)); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}

	deleted, err := store.DeleteOlderThan(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("DeleteOlderThan() = %d, want 1", deleted)
	}

	count, err = store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() after prune = %d, want 1", count)
	}
}

func TestMemoryStorage(t *testing.T) {
	store := NewMemoryStorage()
	defer store.Close()
	storageUnderTest(t, store)
}

func TestSQLiteStorage(t *testing.T) {
	store, err := NewSQLiteStorage(&SQLiteConfig{
		Path:         filepath.Join(t.TempDir(), "audit.db"),
		MaxOpenConns: 2,
		BusyTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	defer store.Close()
	storageUnderTest(t, store)
}

func TestSQLiteStorageReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	ctx := context.Background()

	store, err := NewSQLiteStorage(&SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	if err := store.Store(ctx, testEvent(EventAuthSucceeded, 0)); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStorage(&SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() after reopen = %d, want 1", count)
	}
}
