package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// RunLock is a held single-flight lock for one (tenant, module) key
type RunLock interface {
	// Release frees the lock. Safe to call exactly once.
	Release(ctx context.Context) error
}

// RunLocker enforces at-most-one concurrent run per (tenant, module).
// Acquisition is non-blocking: a key already held fails with ErrBusy rather
// than queueing, so a misbehaving scheduler cannot build a backlog.
// A process-local implementation suffices for single-instance deployments;
// clustered deployments must use a shared lock.
type RunLocker interface {
	TryLock(ctx context.Context, key string) (RunLock, error)
}

// RunLockKey builds the canonical lock key for a tenant and module
func RunLockKey(tenantID uuid.UUID, module Module) string {
	return fmt.Sprintf("sync:%s:%s", tenantID, module)
}
