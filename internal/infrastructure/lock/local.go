package lock

import (
	"context"
	stdsync "sync"

	"github.com/dentalab/erpsync/internal/domain/sync"
)

// LocalRunLocker implements sync.RunLocker with an in-process mutex map.
// Suitable for single-instance deployments only; clustered deployments
// need the Redis locker so instances see each other's runs.
type LocalRunLocker struct {
	mu   stdsync.Mutex
	held map[string]bool
}

// NewLocalRunLocker creates an in-process run locker
func NewLocalRunLocker() *LocalRunLocker {
	return &LocalRunLocker{held: make(map[string]bool)}
}

// TryLock acquires the key or fails immediately with ErrBusy
func (l *LocalRunLocker) TryLock(ctx context.Context, key string) (sync.RunLock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, sync.ErrBusy
	}
	l.held[key] = true
	return &localRunLock{locker: l, key: key}, nil
}

type localRunLock struct {
	locker *LocalRunLocker
	key    string
}

// Release frees the lock
func (l *localRunLock) Release(ctx context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	delete(l.locker.held, l.key)
	return nil
}

// Ensure LocalRunLocker implements sync.RunLocker
var _ sync.RunLocker = (*LocalRunLocker)(nil)
