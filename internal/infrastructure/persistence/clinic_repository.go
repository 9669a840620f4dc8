package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dentalab/erpsync/internal/domain/clinic"
)

// GormClinicRepository implements clinic.Repository using GORM
type GormClinicRepository struct {
	db *gorm.DB
}

// NewGormClinicRepository creates a new GormClinicRepository
func NewGormClinicRepository(db *gorm.DB) *GormClinicRepository {
	return &GormClinicRepository{db: db}
}

// FindByID finds a clinic by its ID within a tenant
func (r *GormClinicRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*clinic.Clinic, error) {
	var c clinic.Clinic
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, clinic.ErrClinicNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindByEmail finds a clinic by email within a tenant
func (r *GormClinicRepository) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*clinic.Clinic, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, clinic.ErrClinicNotFound
	}
	var c clinic.Clinic
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND LOWER(email) = ?", tenantID, email).
		First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, clinic.ErrClinicNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindByName finds a clinic by exact name within a tenant
func (r *GormClinicRepository) FindByName(ctx context.Context, tenantID uuid.UUID, name string) (*clinic.Clinic, error) {
	var c clinic.Clinic
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND name = ?", tenantID, name).
		First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, clinic.ErrClinicNotFound
		}
		return nil, err
	}
	return &c, nil
}

// List returns all clinics for a tenant
func (r *GormClinicRepository) List(ctx context.Context, tenantID uuid.UUID) ([]clinic.Clinic, error) {
	var clinics []clinic.Clinic
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Find(&clinics).Error; err != nil {
		return nil, err
	}
	return clinics, nil
}

// Save creates or updates a clinic
func (r *GormClinicRepository) Save(ctx context.Context, c *clinic.Clinic) error {
	return r.db.WithContext(ctx).Save(c).Error
}

// Count counts clinics for a tenant
func (r *GormClinicRepository) Count(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&clinic.Clinic{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormClinicRepository implements clinic.Repository
var _ clinic.Repository = (*GormClinicRepository)(nil)
