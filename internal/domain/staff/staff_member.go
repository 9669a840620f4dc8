package staff

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/dentalab/erpsync/internal/domain/shared"
)

var (
	// ErrStaffNotFound is returned when a staff member cannot be located
	ErrStaffNotFound = errors.New("staff: member not found")
	// ErrStaffNameRequired is returned when a staff member has no name
	ErrStaffNameRequired = errors.New("staff: name is required")
	// ErrStaffEmailRequired is returned when a staff member has no email.
	// Email is the business key linking staff to their login identity.
	ErrStaffEmailRequired = errors.New("staff: email is required")
)

// Member is a clinic staff member, the internal counterpart of an ERP child
// contact under a clinic's partner record. Email is unique per tenant and is
// the secondary match key for unmapped contacts.
type Member struct {
	shared.TenantEntity
	ClinicID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name     string    `gorm:"type:varchar(200);not null"`
	Email    string    `gorm:"type:varchar(200);not null;uniqueIndex:idx_staff_tenant_email,priority:2"`
	JobTitle string    `gorm:"type:varchar(100)"`
	Phone    string    `gorm:"type:varchar(50)"`
	Mobile   string    `gorm:"type:varchar(50)"`
	Active   bool      `gorm:"not null;default:true"`
	Notes    string    `gorm:"type:text"` // local-only, not ERP-owned
}

// TableName returns the table name for GORM
func (Member) TableName() string {
	return "staff_members"
}

// ERPSnapshot carries the ERP-owned fields of a staff member from one pull
type ERPSnapshot struct {
	ClinicID uuid.UUID
	Name     string
	Email    string
	JobTitle string
	Phone    string
	Mobile   string
	Active   bool
}

// NewMember creates a staff member from an ERP snapshot
func NewMember(tenantID uuid.UUID, snap ERPSnapshot) (*Member, error) {
	if strings.TrimSpace(snap.Name) == "" {
		return nil, ErrStaffNameRequired
	}
	if strings.TrimSpace(snap.Email) == "" {
		return nil, ErrStaffEmailRequired
	}

	m := &Member{
		TenantEntity: shared.NewTenantEntity(tenantID),
	}
	m.applySnapshot(snap)
	return m, nil
}

// ApplyERPSnapshot overwrites the ERP-owned fields and reports whether any changed
func (m *Member) ApplyERPSnapshot(snap ERPSnapshot) bool {
	if !m.differsFrom(snap) {
		return false
	}
	m.applySnapshot(snap)
	return true
}

func (m *Member) differsFrom(snap ERPSnapshot) bool {
	return m.ClinicID != snap.ClinicID ||
		m.Name != snap.Name ||
		m.Email != snap.Email ||
		m.JobTitle != snap.JobTitle ||
		m.Phone != snap.Phone ||
		m.Mobile != snap.Mobile ||
		m.Active != snap.Active
}

func (m *Member) applySnapshot(snap ERPSnapshot) {
	m.ClinicID = snap.ClinicID
	m.Name = snap.Name
	m.Email = snap.Email
	m.JobTitle = snap.JobTitle
	m.Phone = snap.Phone
	m.Mobile = snap.Mobile
	m.Active = snap.Active
}

// Repository defines persistence operations for staff members
type Repository interface {
	// FindByID returns a member by internal ID, or ErrStaffNotFound
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Member, error)

	// FindByEmail returns the member with the given email, the secondary
	// match key for unmapped ERP contacts
	FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*Member, error)

	// ListByClinic returns a clinic's staff
	ListByClinic(ctx context.Context, tenantID, clinicID uuid.UUID) ([]Member, error)

	// Save upserts a member within its own transaction
	Save(ctx context.Context, m *Member) error

	// Count returns the number of staff members for a tenant
	Count(ctx context.Context, tenantID uuid.UUID) (int64, error)
}
