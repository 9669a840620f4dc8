package sync

import (
	"time"

	"github.com/google/uuid"

	"github.com/dentalab/erpsync/internal/domain/sync"
)

// RunReport is the finalized outcome of one sync run
type RunReport struct {
	RunID            uuid.UUID  `json:"run_id"`
	Module           string     `json:"module"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	DurationMillis   int64      `json:"duration_ms"`
	RecordsProcessed int        `json:"records_processed"`
	RecordsFailed    int        `json:"records_failed"`
	ErrorMessage     string     `json:"error_message,omitempty"`
}

// NewRunReport builds a report from a finalized run
func NewRunReport(run *sync.SyncRun) *RunReport {
	return &RunReport{
		RunID:            run.ID,
		Module:           run.Module.String(),
		Status:           run.Status.String(),
		StartedAt:        run.StartedAt,
		FinishedAt:       run.FinishedAt,
		DurationMillis:   run.Duration().Milliseconds(),
		RecordsProcessed: run.RecordsProcessed,
		RecordsFailed:    run.RecordsFailed,
		ErrorMessage:     run.ErrorMessage,
	}
}

// ModuleResult is one module's outcome within a run-all pass
type ModuleResult struct {
	Module string     `json:"module"`
	Report *RunReport `json:"report,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// ModuleStatus summarizes the latest run of one module. LastRun is nil
// for a module that has never run.
type ModuleStatus struct {
	Module  string     `json:"module"`
	LastRun *RunReport `json:"last_run,omitempty"`
}

// EngineStatus summarizes the latest run of every module
type EngineStatus struct {
	Modules []ModuleStatus `json:"modules"`
}

// RepairReport summarizes one clinic link repair pass
type RepairReport struct {
	ClinicsChecked  int      `json:"clinics_checked"`
	LinksRepaired   int      `json:"links_repaired"`
	PartnersCreated int      `json:"partners_created"`
	Failures        []string `json:"failures,omitempty"`
}
