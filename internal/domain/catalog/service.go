package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dentalab/erpsync/internal/domain/shared"
)

var (
	// ErrServiceNotFound is returned when a service cannot be located
	ErrServiceNotFound = errors.New("catalog: service not found")
	// ErrServiceNameRequired is returned when a service has no name
	ErrServiceNameRequired = errors.New("catalog: service name is required")
	// ErrServiceCodeRequired is returned when a service has no code
	ErrServiceCodeRequired = errors.New("catalog: service code is required")
)

// Category classifies a lab service by the kind of prosthetic work
type Category string

const (
	CategoryFixed        Category = "fija"
	CategoryRemovable    Category = "removible"
	CategoryOrthodontics Category = "ortodoncia"
	CategoryImplants     Category = "implantes"
)

// CategoryFromERP maps an ERP product category display name onto the lab's
// fixed set of categories. Fixed prosthetics is the catch-all default.
func CategoryFromERP(name string) Category {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "removible"):
		return CategoryRemovable
	case strings.Contains(lower, "ortodoncia"):
		return CategoryOrthodontics
	case strings.Contains(lower, "implante"):
		return CategoryImplants
	default:
		return CategoryFixed
	}
}

// DefaultTurnaroundDays applies when the ERP reports no lead time for a product
const DefaultTurnaroundDays = 3

// Service is a sellable lab service, the internal counterpart of an ERP
// product. Prices are fixed-point decimals; the sync engine owns every field
// in ERPSnapshot, while Notes stays local.
type Service struct {
	shared.TenantEntity
	Code           string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_service_tenant_code,priority:2"`
	Name           string          `gorm:"type:varchar(200);not null;index"`
	Category       Category        `gorm:"type:varchar(20);not null;default:'fija'"`
	Description    string          `gorm:"type:text"`
	CostPrice      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	BasePrice      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TurnaroundDays int             `gorm:"not null;default:3"`
	SLAHours       int             `gorm:"not null;default:72"`
	Active         bool            `gorm:"not null;default:true"`
	Notes          string          `gorm:"type:text"` // local-only, not ERP-owned
}

// TableName returns the table name for GORM
func (Service) TableName() string {
	return "services"
}

// ERPSnapshot carries the ERP-owned fields of a service as seen in one pull
type ERPSnapshot struct {
	Code           string
	Name           string
	Category       Category
	Description    string
	CostPrice      decimal.Decimal
	BasePrice      decimal.Decimal
	TurnaroundDays int
	Active         bool
}

// NewService creates a service from an ERP snapshot
func NewService(tenantID uuid.UUID, snap ERPSnapshot) (*Service, error) {
	if strings.TrimSpace(snap.Name) == "" {
		return nil, ErrServiceNameRequired
	}
	if strings.TrimSpace(snap.Code) == "" {
		return nil, ErrServiceCodeRequired
	}

	s := &Service{
		TenantEntity: shared.NewTenantEntity(tenantID),
	}
	s.applySnapshot(snap)
	return s, nil
}

// ApplyERPSnapshot overwrites the ERP-owned fields and reports whether any
// changed. Price comparison uses decimal equality so float drift in the RPC
// payload never causes spurious updates.
func (s *Service) ApplyERPSnapshot(snap ERPSnapshot) bool {
	if !s.differsFrom(snap) {
		return false
	}
	s.applySnapshot(snap)
	return true
}

// turnaround returns the effective lead time, defaulting when the ERP
// reports none. Both diff and apply go through this so a missing lead time
// cannot flap between no-op and update across runs.
func (snap ERPSnapshot) turnaround() int {
	if snap.TurnaroundDays <= 0 {
		return DefaultTurnaroundDays
	}
	return snap.TurnaroundDays
}

func (s *Service) differsFrom(snap ERPSnapshot) bool {
	return s.Code != snap.Code ||
		s.Name != snap.Name ||
		s.Category != snap.Category ||
		s.Description != snap.Description ||
		!s.CostPrice.Equal(snap.CostPrice) ||
		!s.BasePrice.Equal(snap.BasePrice) ||
		s.TurnaroundDays != snap.turnaround() ||
		s.Active != snap.Active
}

func (s *Service) applySnapshot(snap ERPSnapshot) {
	days := snap.turnaround()
	s.Code = snap.Code
	s.Name = snap.Name
	s.Category = snap.Category
	s.Description = snap.Description
	s.CostPrice = snap.CostPrice
	s.BasePrice = snap.BasePrice
	s.TurnaroundDays = days
	s.SLAHours = days * 24
	s.Active = snap.Active
}

// Repository defines persistence operations for lab services
type Repository interface {
	// FindByID returns a service by internal ID, or ErrServiceNotFound
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Service, error)

	// FindByCode returns the service with the given code, the primary
	// secondary-match key for unmapped ERP products
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Service, error)

	// FindByName returns the service with the exact given name
	FindByName(ctx context.Context, tenantID uuid.UUID, name string) (*Service, error)

	// Save upserts a service within its own transaction
	Save(ctx context.Context, s *Service) error

	// Count returns the number of services for a tenant
	Count(ctx context.Context, tenantID uuid.UUID) (int64, error)
}
