package stream

import (
	"sync"
	"sync/atomic"
	"time"
)

// RecoveryManager is the per-account circuit breaker. An account that
// caused an upstream failure is marked failed until a cooldown elapses;
// the selector skips failed accounts via IsFailed. Entries past their
// window are removed lazily on the next lookup, so reinstatement needs
// no background sweeper.
//
// The table is keyed by account id and sized by the number of distinct
// upstream accounts, not by request volume, so a sync.Map is enough.
type RecoveryManager struct {
	windowNanos atomic.Int64
	failed      sync.Map // accountID -> failedUntil time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewRecoveryManager creates a breaker with the given cooldown window.
func NewRecoveryManager(window time.Duration) *RecoveryManager {
	rm := &RecoveryManager{now: time.Now}
	rm.windowNanos.Store(int64(window))
	return rm
}

// SetWindow updates the cooldown applied to subsequent failures.
// Accounts already marked keep their original reinstatement time.
func (rm *RecoveryManager) SetWindow(window time.Duration) {
	rm.windowNanos.Store(int64(window))
}

// MarkFailed records that the account failed now; it is excluded from
// selection until the recovery window elapses.
func (rm *RecoveryManager) MarkFailed(accountID string) {
	window := time.Duration(rm.windowNanos.Load())
	rm.failed.Store(accountID, rm.now().Add(window))
}

// IsFailed reports whether the account is inside its failure window.
// An expired entry is deleted and the account reported healthy.
func (rm *RecoveryManager) IsFailed(accountID string) bool {
	v, ok := rm.failed.Load(accountID)
	if !ok {
		return false
	}
	failedUntil := v.(time.Time)
	if rm.now().Before(failedUntil) {
		return true
	}
	rm.failed.Delete(accountID)
	return false
}

// FailedCount returns the number of accounts currently inside their
// failure window.
func (rm *RecoveryManager) FailedCount() int {
	count := 0
	now := rm.now()
	rm.failed.Range(func(key, value any) bool {
		if now.Before(value.(time.Time)) {
			count++
		}
		return true
	})
	return count
}
