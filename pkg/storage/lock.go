package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// LockFile is held for the whole of one event so hooks on a host run one at
// a time. It is separate from the database so status stays readable.
const LockFile = "hook.lock"

// lockRetryDelay is how often a contended lock is retried
const lockRetryDelay = 100 * time.Millisecond

// HookLock is an exclusive advisory lock on the state directory
type HookLock struct {
	lock *flock.Flock
}

// AcquireHookLock waits for the hook lock in dataDir. A zero timeout waits
// until ctx is done; an expired timeout returns ErrLocked.
func AcquireHookLock(ctx context.Context, dataDir string, timeout time.Duration) (*HookLock, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	lock := flock.New(filepath.Join(dataDir, LockFile))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if locked {
		return &HookLock{lock: lock}, nil
	}
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return nil, ErrLocked
	}
	return nil, fmt.Errorf("failed to lock state directory: %w", err)
}

// Release unlocks the state directory
func (l *HookLock) Release() error {
	return l.lock.Unlock()
}
