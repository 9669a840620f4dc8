package sync

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dentalab/erpsync/internal/domain/sync"
)

// Tally accumulates per-record outcomes across one sync pass
type Tally struct {
	Processed int
	Failed    int
	LastError string
}

func (t *Tally) recordSuccess() {
	t.Processed++
}

func (t *Tally) recordFailure(err error) {
	t.Failed++
	t.LastError = err.Error()
}

// abortsPass reports whether a record-level error has poisoned the rest
// of the pull. Transport and auth failures affect every remaining record,
// and cancellation ends the run. Anything scoped to a single record,
// conflicts, validation failures and store write errors included, is
// tallied and the pass moves on.
func abortsPass(err error) bool {
	return errors.Is(err, sync.ErrTransport) ||
		errors.Is(err, sync.ErrAuth) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Synchronizer pulls one module's records from the ERP and applies them
// to the internal database. Implementations process records one at a
// time so a bad record never aborts the pass.
type Synchronizer interface {
	// Module returns the module name this synchronizer serves
	Module() sync.Module

	// Sync runs one full pass for a tenant, accumulating per-record
	// outcomes into tally as it goes. Progress stays visible to the
	// caller even when the pass aborts or panics mid-batch.
	Sync(ctx context.Context, tenantID uuid.UUID, tally *Tally) error
}
