package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dentalab/erpsync/internal/domain/sync"
	"github.com/dentalab/erpsync/internal/infrastructure/persistence/models"
)

// GormIdentityMappingRepository implements IdentityMappingRepository using GORM
type GormIdentityMappingRepository struct {
	db *gorm.DB
}

// NewGormIdentityMappingRepository creates a new GormIdentityMappingRepository
func NewGormIdentityMappingRepository(db *gorm.DB) *GormIdentityMappingRepository {
	return &GormIdentityMappingRepository{db: db}
}

// Resolve looks up the internal ID for an external key
func (r *GormIdentityMappingRepository) Resolve(ctx context.Context, tenantID uuid.UUID, entityType sync.EntityType, externalID int64) (uuid.UUID, error) {
	var model models.IdentityMappingModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND external_id = ?", tenantID, entityType, externalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, sync.ErrMappingNotFound
		}
		return uuid.Nil, err
	}
	return model.InternalID, nil
}

// Bind persists a new mapping. Re-binding the same internal ID is a no-op;
// a different internal ID for an existing key is a conflict. A concurrent
// bind can still slip between the read and the insert, so an insert the
// unique index rejects is re-read and reported as a conflict too.
func (r *GormIdentityMappingRepository) Bind(ctx context.Context, mapping *sync.IdentityMapping) error {
	existing, err := r.findExisting(ctx, mapping)
	if err == nil {
		return compareBound(existing, mapping)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	createErr := r.db.WithContext(ctx).Create(models.IdentityMappingModelFromDomain(mapping)).Error
	if createErr == nil {
		return nil
	}

	// The key may have been bound by a concurrent run in the meantime.
	existing, err = r.findExisting(ctx, mapping)
	if err != nil {
		return createErr
	}
	return compareBound(existing, mapping)
}

func (r *GormIdentityMappingRepository) findExisting(ctx context.Context, mapping *sync.IdentityMapping) (*models.IdentityMappingModel, error) {
	var existing models.IdentityMappingModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND external_id = ?",
			mapping.TenantID, mapping.EntityType, mapping.ExternalID).
		First(&existing).Error
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

func compareBound(existing *models.IdentityMappingModel, mapping *sync.IdentityMapping) error {
	if existing.InternalID == mapping.InternalID {
		return nil
	}
	return &sync.ConflictError{
		EntityType: mapping.EntityType,
		ExternalID: mapping.ExternalID,
		ExistingID: existing.InternalID,
		ClaimedID:  mapping.InternalID,
	}
}

// Touch advances LastSyncedAt for a processed mapping
func (r *GormIdentityMappingRepository) Touch(ctx context.Context, tenantID uuid.UUID, entityType sync.EntityType, externalID int64, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.IdentityMappingModel{}).
		Where("tenant_id = ? AND entity_type = ? AND external_id = ?", tenantID, entityType, externalID).
		Updates(map[string]any{"last_synced_at": at, "updated_at": at})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return sync.ErrMappingNotFound
	}
	return nil
}

// ListByType returns all mappings of one entity type for a tenant
func (r *GormIdentityMappingRepository) ListByType(ctx context.Context, tenantID uuid.UUID, entityType sync.EntityType) ([]sync.IdentityMapping, error) {
	var mappingModels []models.IdentityMappingModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ?", tenantID, entityType).
		Order("external_id ASC").
		Find(&mappingModels).Error; err != nil {
		return nil, err
	}

	mappings := make([]sync.IdentityMapping, len(mappingModels))
	for i, model := range mappingModels {
		mappings[i] = *model.ToDomain()
	}
	return mappings, nil
}

// FindStale returns mappings not touched since the given instant
func (r *GormIdentityMappingRepository) FindStale(ctx context.Context, tenantID uuid.UUID, entityType sync.EntityType, before time.Time) ([]sync.IdentityMapping, error) {
	var mappingModels []models.IdentityMappingModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND last_synced_at < ?", tenantID, entityType, before).
		Order("last_synced_at ASC").
		Find(&mappingModels).Error; err != nil {
		return nil, err
	}

	mappings := make([]sync.IdentityMapping, len(mappingModels))
	for i, model := range mappingModels {
		mappings[i] = *model.ToDomain()
	}
	return mappings, nil
}

// Ensure GormIdentityMappingRepository implements IdentityMappingRepository
var _ sync.IdentityMappingRepository = (*GormIdentityMappingRepository)(nil)
