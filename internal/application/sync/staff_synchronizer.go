package sync

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dentalab/erpsync/internal/domain/staff"
	"github.com/dentalab/erpsync/internal/domain/sync"
)

// staffFields is what one contact pull fetches from the ERP
var staffFields = []string{"name", "email", "function", "phone", "mobile", "active"}

// StaffSynchronizer imports the ERP's child contacts of each mapped
// clinic as staff members. Clinics must be synced first; contacts of
// unmapped clinics are simply not visible to this pass.
type StaffSynchronizer struct {
	erp      sync.ERPClient
	mappings sync.IdentityMappingRepository
	members  staff.Repository
	logger   *zap.Logger
}

// NewStaffSynchronizer creates a staff synchronizer
func NewStaffSynchronizer(erp sync.ERPClient, mappings sync.IdentityMappingRepository, members staff.Repository, logger *zap.Logger) *StaffSynchronizer {
	return &StaffSynchronizer{
		erp:      erp,
		mappings: mappings,
		members:  members,
		logger:   logger,
	}
}

// Module returns the module name this synchronizer serves
func (s *StaffSynchronizer) Module() sync.Module {
	return sync.ModuleStaff
}

// Sync walks every mapped clinic and pulls its child contacts
func (s *StaffSynchronizer) Sync(ctx context.Context, tenantID uuid.UUID, tally *Tally) error {
	clinicMappings, err := s.mappings.ListByType(ctx, tenantID, sync.EntityTypeClinic)
	if err != nil {
		return err
	}

	for _, cm := range clinicMappings {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.syncClinicContacts(ctx, tenantID, cm, tally); err != nil {
			return err
		}
	}
	return nil
}

func (s *StaffSynchronizer) syncClinicContacts(ctx context.Context, tenantID uuid.UUID, cm sync.IdentityMapping, tally *Tally) error {
	query := sync.SearchQuery{
		Model:  "res.partner",
		Filter: sync.Filter{sync.Eq("parent_id", cm.ExternalID)},
		Fields: staffFields,
		Order:  "id asc",
	}

	return s.erp.SearchRead(ctx, query, func(record sync.ExternalRecord) error {
		if err := s.syncRecord(ctx, tenantID, cm.InternalID, record); err != nil {
			if abortsPass(err) {
				return err
			}
			tally.recordFailure(err)
			s.logger.Warn("skipped contact record",
				zap.Int64("external_id", record.ID),
				zap.Int64("clinic_external_id", cm.ExternalID),
				zap.Error(err))
			return nil
		}
		tally.recordSuccess()
		return nil
	})
}

func (s *StaffSynchronizer) syncRecord(ctx context.Context, tenantID, clinicID uuid.UUID, record sync.ExternalRecord) error {
	snap, err := staffSnapshot(clinicID, record)
	if err != nil {
		return err
	}

	internalID, err := s.mappings.Resolve(ctx, tenantID, sync.EntityTypeStaff, record.ID)
	switch {
	case err == nil:
		if err := s.updateMapped(ctx, tenantID, record.ID, internalID, snap); err != nil {
			return err
		}
	case errors.Is(err, sync.ErrMappingNotFound):
		if err := s.adoptOrCreate(ctx, tenantID, record.ID, snap); err != nil {
			return err
		}
	default:
		return err
	}

	return s.mappings.Touch(ctx, tenantID, sync.EntityTypeStaff, record.ID, time.Now())
}

func (s *StaffSynchronizer) updateMapped(ctx context.Context, tenantID uuid.UUID, externalID int64, internalID uuid.UUID, snap staff.ERPSnapshot) error {
	m, err := s.members.FindByID(ctx, tenantID, internalID)
	if err != nil {
		if errors.Is(err, staff.ErrStaffNotFound) {
			return sync.NewValidationError(sync.EntityTypeStaff, externalID,
				"mapping", "resolves to a missing staff member")
		}
		return err
	}
	if !m.ApplyERPSnapshot(snap) {
		return nil
	}
	return s.members.Save(ctx, m)
}

// adoptOrCreate binds an unmapped contact to an existing member matched
// by email, or creates a new member when nothing matches
func (s *StaffSynchronizer) adoptOrCreate(ctx context.Context, tenantID uuid.UUID, externalID int64, snap staff.ERPSnapshot) error {
	existing, err := s.members.FindByEmail(ctx, tenantID, snap.Email)
	if err != nil && !errors.Is(err, staff.ErrStaffNotFound) {
		return err
	}

	if existing == nil {
		created, err := staff.NewMember(tenantID, snap)
		if err != nil {
			return sync.NewValidationError(sync.EntityTypeStaff, externalID, "email", err.Error())
		}
		if err := s.members.Save(ctx, created); err != nil {
			return err
		}
		existing = created
	} else if existing.ApplyERPSnapshot(snap) {
		if err := s.members.Save(ctx, existing); err != nil {
			return err
		}
	}

	mapping, err := sync.NewIdentityMapping(tenantID, sync.EntityTypeStaff, externalID, existing.ID)
	if err != nil {
		return err
	}
	return s.mappings.Bind(ctx, mapping)
}

// staffSnapshot maps a contact record onto the member's ERP-owned fields.
// Contacts without an email are rejected: email is the business key that
// links a staff member to their login identity.
func staffSnapshot(clinicID uuid.UUID, record sync.ExternalRecord) (staff.ERPSnapshot, error) {
	name := strings.TrimSpace(record.Str("name"))
	if name == "" {
		return staff.ERPSnapshot{}, sync.NewValidationError(
			sync.EntityTypeStaff, record.ID, "name", "is empty")
	}
	email := strings.TrimSpace(record.Str("email"))
	if email == "" {
		return staff.ERPSnapshot{}, sync.NewValidationError(
			sync.EntityTypeStaff, record.ID, "email", "is empty")
	}

	return staff.ERPSnapshot{
		ClinicID: clinicID,
		Name:     name,
		Email:    email,
		JobTitle: record.Str("function"),
		Phone:    record.Str("phone"),
		Mobile:   record.Str("mobile"),
		Active:   record.Bool("active"),
	}, nil
}

// Ensure StaffSynchronizer implements Synchronizer
var _ Synchronizer = (*StaffSynchronizer)(nil)
