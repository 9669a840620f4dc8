package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dentalab/erpsync/internal/domain/billing"
)

// GormInvoiceRepository implements billing.Repository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice by ID within a tenant
func (r *GormInvoiceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	var inv billing.Invoice
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billing.ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// FindByNumber finds an invoice by its number within a tenant
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*billing.Invoice, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, billing.ErrInvoiceNotFound
	}
	var inv billing.Invoice
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND number = ?", tenantID, number).
		First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billing.ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// ListByClinic returns a clinic's invoices, newest first
func (r *GormInvoiceRepository) ListByClinic(ctx context.Context, tenantID, clinicID uuid.UUID) ([]billing.Invoice, error) {
	var invoices []billing.Invoice
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND clinic_id = ?", tenantID, clinicID).
		Order("issue_date DESC").
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// Save creates or updates an invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *billing.Invoice) error {
	return r.db.WithContext(ctx).Save(inv).Error
}

// Count counts invoices for a tenant
func (r *GormInvoiceRepository) Count(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&billing.Invoice{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormInvoiceRepository implements billing.Repository
var _ billing.Repository = (*GormInvoiceRepository)(nil)
