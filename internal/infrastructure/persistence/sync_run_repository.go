package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dentalab/erpsync/internal/domain/sync"
	"github.com/dentalab/erpsync/internal/infrastructure/persistence/models"
)

// GormSyncRunRepository implements SyncRunRepository using GORM
type GormSyncRunRepository struct {
	db *gorm.DB
}

// NewGormSyncRunRepository creates a new GormSyncRunRepository
func NewGormSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

// Create persists a new run in the running state
func (r *GormSyncRunRepository) Create(ctx context.Context, run *sync.SyncRun) error {
	return r.db.WithContext(ctx).Create(models.SyncRunModelFromDomain(run)).Error
}

// Finalize writes the terminal state of a run. The status guard keeps
// finalized rows immutable even under concurrent finalization attempts.
func (r *GormSyncRunRepository) Finalize(ctx context.Context, run *sync.SyncRun) error {
	model := models.SyncRunModelFromDomain(run)
	result := r.db.WithContext(ctx).
		Model(&models.SyncRunModel{}).
		Where("id = ? AND status = ?", run.ID, sync.RunStatusRunning).
		Updates(map[string]any{
			"status":            model.Status,
			"finished_at":       model.FinishedAt,
			"records_processed": model.RecordsProcessed,
			"records_failed":    model.RecordsFailed,
			"error_message":     model.ErrorMessage,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&models.SyncRunModel{}).
			Where("id = ?", run.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return sync.ErrRunNotFound
		}
		return sync.ErrRunFinalized
	}
	return nil
}

// FindByID returns a single run
func (r *GormSyncRunRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*sync.SyncRun, error) {
	var model models.SyncRunModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrRunNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ReadRecent returns the most recent runs for a module, newest first
func (r *GormSyncRunRepository) ReadRecent(ctx context.Context, tenantID uuid.UUID, module sync.Module, limit int) ([]sync.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runModels []models.SyncRunModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND module = ?", tenantID, module).
		Order("started_at DESC").
		Limit(limit).
		Find(&runModels).Error; err != nil {
		return nil, err
	}

	runs := make([]sync.SyncRun, len(runModels))
	for i, model := range runModels {
		runs[i] = *model.ToDomain()
	}
	return runs, nil
}

// LastRunPerModule returns the newest run for every module that has one
func (r *GormSyncRunRepository) LastRunPerModule(ctx context.Context, tenantID uuid.UUID) (map[sync.Module]sync.SyncRun, error) {
	var runModels []models.SyncRunModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("started_at IN (?)", r.db.
			Model(&models.SyncRunModel{}).
			Select("MAX(started_at)").
			Where("tenant_id = ?", tenantID).
			Group("module")).
		Find(&runModels).Error; err != nil {
		return nil, err
	}

	latest := make(map[sync.Module]sync.SyncRun, len(runModels))
	for _, model := range runModels {
		run := model.ToDomain()
		existing, ok := latest[run.Module]
		if !ok || run.StartedAt.After(existing.StartedAt) {
			latest[run.Module] = *run
		}
	}
	return latest, nil
}

// Ensure GormSyncRunRepository implements SyncRunRepository
var _ sync.SyncRunRepository = (*GormSyncRunRepository)(nil)
