package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dentalab/erpsync/internal/domain/staff"
)

// GormStaffRepository implements staff.Repository using GORM
type GormStaffRepository struct {
	db *gorm.DB
}

// NewGormStaffRepository creates a new GormStaffRepository
func NewGormStaffRepository(db *gorm.DB) *GormStaffRepository {
	return &GormStaffRepository{db: db}
}

// FindByID finds a staff member by ID within a tenant
func (r *GormStaffRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*staff.Member, error) {
	var m staff.Member
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, staff.ErrStaffNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindByEmail finds a staff member by email within a tenant
func (r *GormStaffRepository) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*staff.Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, staff.ErrStaffNotFound
	}
	var m staff.Member
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND LOWER(email) = ?", tenantID, email).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, staff.ErrStaffNotFound
		}
		return nil, err
	}
	return &m, nil
}

// ListByClinic returns all staff members of a clinic
func (r *GormStaffRepository) ListByClinic(ctx context.Context, tenantID, clinicID uuid.UUID) ([]staff.Member, error) {
	var members []staff.Member
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND clinic_id = ?", tenantID, clinicID).
		Order("name ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// Save creates or updates a staff member
func (r *GormStaffRepository) Save(ctx context.Context, m *staff.Member) error {
	return r.db.WithContext(ctx).Save(m).Error
}

// Count counts staff members for a tenant
func (r *GormStaffRepository) Count(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&staff.Member{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormStaffRepository implements staff.Repository
var _ staff.Repository = (*GormStaffRepository)(nil)
