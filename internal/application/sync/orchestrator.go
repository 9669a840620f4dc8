package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dentalab/erpsync/internal/domain/sync"
)

// Orchestrator drives sync runs: it enforces single-flight per (tenant,
// module), opens and finalizes the run log row, and bounds each run with
// a timeout. Synchronizer failures never leave a run dangling in the
// running state.
type Orchestrator struct {
	synchronizers map[sync.Module]Synchronizer
	runs          sync.SyncRunRepository
	locker        sync.RunLocker
	runTimeout    time.Duration
	logger        *zap.Logger
}

// NewOrchestrator creates an orchestrator over the given synchronizers
func NewOrchestrator(synchronizers []Synchronizer, runs sync.SyncRunRepository, locker sync.RunLocker, runTimeout time.Duration, logger *zap.Logger) *Orchestrator {
	if runTimeout <= 0 {
		runTimeout = 10 * time.Minute
	}
	byModule := make(map[sync.Module]Synchronizer, len(synchronizers))
	for _, s := range synchronizers {
		byModule[s.Module()] = s
	}
	return &Orchestrator{
		synchronizers: byModule,
		runs:          runs,
		locker:        locker,
		runTimeout:    runTimeout,
		logger:        logger,
	}
}

// TriggerSync runs one module synchronously and returns the finalized
// report. A concurrent run for the same (tenant, module) fails with
// ErrBusy instead of queueing.
func (o *Orchestrator) TriggerSync(ctx context.Context, tenantID uuid.UUID, module sync.Module) (*RunReport, error) {
	synchronizer, ok := o.synchronizers[module]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sync.ErrUnknownModule, module)
	}

	lock, err := o.locker.TryLock(ctx, sync.RunLockKey(tenantID, module))
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			o.logger.Warn("failed to release run lock",
				zap.String("module", module.String()),
				zap.Error(releaseErr))
		}
	}()

	run := sync.NewSyncRun(tenantID, module)
	if err := o.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	o.logger.Info("sync run started",
		zap.String("run_id", run.ID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("module", module.String()))

	o.execute(ctx, tenantID, synchronizer, run)

	if err := o.runs.Finalize(context.WithoutCancel(ctx), run); err != nil {
		return nil, err
	}

	o.logger.Info("sync run finished",
		zap.String("run_id", run.ID.String()),
		zap.String("module", module.String()),
		zap.String("status", run.Status.String()),
		zap.Int("processed", run.RecordsProcessed),
		zap.Int("failed", run.RecordsFailed),
		zap.Duration("duration", run.Duration()))

	return NewRunReport(run), nil
}

// execute runs the synchronizer and moves the run to its terminal state
// in memory. A panic inside a synchronizer fails the run instead of
// crashing the process.
func (o *Orchestrator) execute(ctx context.Context, tenantID uuid.UUID, synchronizer Synchronizer, run *sync.SyncRun) {
	runCtx, cancel := context.WithTimeout(ctx, o.runTimeout)
	defer cancel()

	var tally Tally
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("sync run panicked",
				zap.String("run_id", run.ID.String()),
				zap.Any("panic", r))
			// Records committed before the panic stay visible in the log.
			_ = run.Fail(tally.Processed, tally.Failed, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := synchronizer.Sync(runCtx, tenantID, &tally); err != nil {
		_ = run.Fail(tally.Processed, tally.Failed, err.Error())
		return
	}
	_ = run.Complete(tally.Processed, tally.Failed, tally.LastError)
}

// TriggerAll runs every module in canonical order: customers first so
// staff and invoices can resolve clinic mappings. A busy module is
// reported and skipped; other modules still run.
func (o *Orchestrator) TriggerAll(ctx context.Context, tenantID uuid.UUID) []ModuleResult {
	results := make([]ModuleResult, 0, len(sync.AllModules()))
	for _, module := range sync.AllModules() {
		if _, ok := o.synchronizers[module]; !ok {
			continue
		}
		report, err := o.TriggerSync(ctx, tenantID, module)
		result := ModuleResult{Module: module.String(), Report: report}
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results
}

// Runs returns the most recent runs for a module, newest first
func (o *Orchestrator) Runs(ctx context.Context, tenantID uuid.UUID, module sync.Module, limit int) ([]RunReport, error) {
	if !module.IsValid() {
		return nil, fmt.Errorf("%w: %s", sync.ErrUnknownModule, module)
	}
	runs, err := o.runs.ReadRecent(ctx, tenantID, module, limit)
	if err != nil {
		return nil, err
	}
	reports := make([]RunReport, len(runs))
	for i := range runs {
		reports[i] = *NewRunReport(&runs[i])
	}
	return reports, nil
}

// Status returns the latest run of every module, in canonical order
func (o *Orchestrator) Status(ctx context.Context, tenantID uuid.UUID) (*EngineStatus, error) {
	latest, err := o.runs.LastRunPerModule(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	status := &EngineStatus{Modules: make([]ModuleStatus, 0, len(sync.AllModules()))}
	for _, module := range sync.AllModules() {
		ms := ModuleStatus{Module: module.String()}
		if run, ok := latest[module]; ok {
			ms.LastRun = NewRunReport(&run)
		}
		status.Modules = append(status.Modules, ms)
	}
	return status, nil
}
