package clinic

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/dentalab/erpsync/internal/domain/shared"
)

var (
	// ErrClinicNotFound is returned when a clinic cannot be located
	ErrClinicNotFound = errors.New("clinic: not found")
	// ErrClinicNameRequired is returned when a clinic has no name
	ErrClinicNameRequired = errors.New("clinic: name is required")
)

// Clinic is a dental clinic, the internal counterpart of an ERP partner with
// customer rank. The sync engine is the sole writer of the ERP-owned fields
// (everything in ERPSnapshot); Notes is entered locally and must never be
// overwritten by sync.
type Clinic struct {
	shared.TenantEntity
	Name        string `gorm:"type:varchar(200);not null;index"`
	Email       string `gorm:"type:varchar(200);index"`
	Phone       string `gorm:"type:varchar(50)"`
	Address     string `gorm:"type:text"`
	ContactName string `gorm:"type:varchar(100)"`
	TaxID       string `gorm:"type:varchar(50)"`
	IsCompany   bool   `gorm:"not null;default:true"`
	Active      bool   `gorm:"not null;default:true"`
	Notes       string `gorm:"type:text"` // local-only, not ERP-owned
}

// TableName returns the table name for GORM
func (Clinic) TableName() string {
	return "clinics"
}

// ERPSnapshot carries the ERP-owned fields of a clinic as seen in one pull
type ERPSnapshot struct {
	Name        string
	Email       string
	Phone       string
	Address     string
	ContactName string
	TaxID       string
	IsCompany   bool
	Active      bool
}

// NewClinic creates a clinic from an ERP snapshot
func NewClinic(tenantID uuid.UUID, snap ERPSnapshot) (*Clinic, error) {
	if strings.TrimSpace(snap.Name) == "" {
		return nil, ErrClinicNameRequired
	}

	c := &Clinic{
		TenantEntity: shared.NewTenantEntity(tenantID),
		Active:       true,
	}
	c.applySnapshot(snap)
	return c, nil
}

// ApplyERPSnapshot overwrites the ERP-owned fields and reports whether any of
// them actually changed. A false return means the upsert can be skipped
// entirely, which is what keeps repeated runs write-free.
func (c *Clinic) ApplyERPSnapshot(snap ERPSnapshot) bool {
	if !c.differsFrom(snap) {
		return false
	}
	c.applySnapshot(snap)
	return true
}

func (c *Clinic) differsFrom(snap ERPSnapshot) bool {
	return c.Name != snap.Name ||
		c.Email != snap.Email ||
		c.Phone != snap.Phone ||
		c.Address != snap.Address ||
		c.ContactName != snap.ContactName ||
		c.TaxID != snap.TaxID ||
		c.IsCompany != snap.IsCompany ||
		c.Active != snap.Active
}

func (c *Clinic) applySnapshot(snap ERPSnapshot) {
	c.Name = snap.Name
	c.Email = snap.Email
	c.Phone = snap.Phone
	c.Address = snap.Address
	c.ContactName = snap.ContactName
	c.TaxID = snap.TaxID
	c.IsCompany = snap.IsCompany
	c.Active = snap.Active
}

// Repository defines persistence operations for clinics
type Repository interface {
	// FindByID returns a clinic by internal ID, or ErrClinicNotFound
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Clinic, error)

	// FindByEmail returns the clinic with the given email, the secondary
	// match key used before creating a new clinic for an unmapped partner
	FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*Clinic, error)

	// FindByName returns the clinic with the exact given name
	FindByName(ctx context.Context, tenantID uuid.UUID, name string) (*Clinic, error)

	// List returns all clinics for a tenant
	List(ctx context.Context, tenantID uuid.UUID) ([]Clinic, error)

	// Save upserts a clinic within its own transaction
	Save(ctx context.Context, c *Clinic) error

	// Count returns the number of clinics for a tenant
	Count(ctx context.Context, tenantID uuid.UUID) (int64, error)
}
