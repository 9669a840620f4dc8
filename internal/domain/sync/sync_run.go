package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SyncRun is one synchronizer invocation recorded in the append-only run log.
// Status moves monotonically from running to exactly one terminal state;
// after that the row is immutable.
type SyncRun struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	Module           Module
	Status           RunStatus
	StartedAt        time.Time
	FinishedAt       *time.Time
	RecordsProcessed int
	RecordsFailed    int
	ErrorMessage     string
}

// NewSyncRun opens a run in the running state
func NewSyncRun(tenantID uuid.UUID, module Module) *SyncRun {
	return &SyncRun{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Module:    module,
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}
}

// Complete finalizes the run from per-record tallies. Zero failures yield
// success; a mix yields partial; failures with nothing processed yield failed.
func (r *SyncRun) Complete(processed, failed int, lastError string) error {
	if r.Status.IsTerminal() {
		return ErrRunFinalized
	}
	now := time.Now()
	r.RecordsProcessed = processed
	r.RecordsFailed = failed
	r.FinishedAt = &now
	r.ErrorMessage = lastError

	switch {
	case failed == 0:
		r.Status = RunStatusSuccess
	case processed > 0:
		r.Status = RunStatusPartial
	default:
		r.Status = RunStatusFailed
	}
	return nil
}

// Fail finalizes the run after a batch-level error (auth failure, malformed
// filter, panic, cancellation). Per-record counts committed so far are kept.
func (r *SyncRun) Fail(processed, failed int, reason string) error {
	if r.Status.IsTerminal() {
		return ErrRunFinalized
	}
	now := time.Now()
	r.RecordsProcessed = processed
	r.RecordsFailed = failed
	r.FinishedAt = &now
	r.Status = RunStatusFailed
	r.ErrorMessage = reason
	return nil
}

// Duration returns how long the run took, or time since start if still running
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

// SyncRunRepository is the append-only run log. A run row is written once at
// start and updated exactly once when it reaches a terminal state.
type SyncRunRepository interface {
	// Create persists a new run in the running state
	Create(ctx context.Context, run *SyncRun) error

	// Finalize writes the terminal state of a run. Fails with ErrRunFinalized
	// if the stored row already left the running state.
	Finalize(ctx context.Context, run *SyncRun) error

	// FindByID returns a single run, or ErrRunNotFound
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*SyncRun, error)

	// ReadRecent returns the most recent runs for a module, newest first
	ReadRecent(ctx context.Context, tenantID uuid.UUID, module Module, limit int) ([]SyncRun, error)

	// LastRunPerModule returns the newest run for every module that has one
	LastRunPerModule(ctx context.Context, tenantID uuid.UUID) (map[Module]SyncRun, error)
}
