package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dentalab/erpsync/internal/domain/catalog"
)

// GormServiceRepository implements catalog.Repository using GORM
type GormServiceRepository struct {
	db *gorm.DB
}

// NewGormServiceRepository creates a new GormServiceRepository
func NewGormServiceRepository(db *gorm.DB) *GormServiceRepository {
	return &GormServiceRepository{db: db}
}

// FindByID finds a service by its ID within a tenant
func (r *GormServiceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*catalog.Service, error) {
	var s catalog.Service
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindByCode finds a service by its code within a tenant
func (r *GormServiceRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*catalog.Service, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, catalog.ErrServiceNotFound
	}
	var s catalog.Service
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND code = ?", tenantID, code).
		First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindByName finds a service by exact name within a tenant
func (r *GormServiceRepository) FindByName(ctx context.Context, tenantID uuid.UUID, name string) (*catalog.Service, error) {
	var s catalog.Service
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND name = ?", tenantID, name).
		First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Save creates or updates a service
func (r *GormServiceRepository) Save(ctx context.Context, s *catalog.Service) error {
	return r.db.WithContext(ctx).Save(s).Error
}

// Count counts services for a tenant
func (r *GormServiceRepository) Count(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&catalog.Service{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormServiceRepository implements catalog.Repository
var _ catalog.Repository = (*GormServiceRepository)(nil)
