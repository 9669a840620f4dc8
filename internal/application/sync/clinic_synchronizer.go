package sync

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dentalab/erpsync/internal/domain/clinic"
	"github.com/dentalab/erpsync/internal/domain/sync"
)

// clinicFields is what one partner pull fetches from the ERP
var clinicFields = []string{"name", "email", "phone", "street", "city", "vat", "is_company", "active"}

// ClinicSynchronizer imports ERP partners with customer rank as clinics
type ClinicSynchronizer struct {
	erp      sync.ERPClient
	mappings sync.IdentityMappingRepository
	clinics  clinic.Repository
	logger   *zap.Logger
}

// NewClinicSynchronizer creates a clinic synchronizer
func NewClinicSynchronizer(erp sync.ERPClient, mappings sync.IdentityMappingRepository, clinics clinic.Repository, logger *zap.Logger) *ClinicSynchronizer {
	return &ClinicSynchronizer{
		erp:      erp,
		mappings: mappings,
		clinics:  clinics,
		logger:   logger,
	}
}

// Module returns the module name this synchronizer serves
func (s *ClinicSynchronizer) Module() sync.Module {
	return sync.ModuleCustomers
}

// Sync pulls every partner with a positive customer rank and upserts the
// matching clinic, one record per transaction.
func (s *ClinicSynchronizer) Sync(ctx context.Context, tenantID uuid.UUID, tally *Tally) error {
	query := sync.SearchQuery{
		Model:  "res.partner",
		Filter: sync.Filter{sync.Gt("customer_rank", 0)},
		Fields: clinicFields,
		Order:  "id asc",
	}

	return s.erp.SearchRead(ctx, query, func(record sync.ExternalRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.syncRecord(ctx, tenantID, record); err != nil {
			if abortsPass(err) {
				return err
			}
			tally.recordFailure(err)
			s.logger.Warn("skipped partner record",
				zap.Int64("external_id", record.ID),
				zap.Error(err))
			return nil
		}
		tally.recordSuccess()
		return nil
	})
}

func (s *ClinicSynchronizer) syncRecord(ctx context.Context, tenantID uuid.UUID, record sync.ExternalRecord) error {
	snap, err := clinicSnapshot(record)
	if err != nil {
		return err
	}

	internalID, err := s.mappings.Resolve(ctx, tenantID, sync.EntityTypeClinic, record.ID)
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

	return s.mappings.Touch(ctx, tenantID, sync.EntityTypeClinic, record.ID, time.Now())
}

// updateMapped applies the snapshot to an already-mapped clinic, writing
// only when something actually changed
func (s *ClinicSynchronizer) updateMapped(ctx context.Context, tenantID uuid.UUID, externalID int64, internalID uuid.UUID, snap clinic.ERPSnapshot) error {
	c, err := s.clinics.FindByID(ctx, tenantID, internalID)
	if err != nil {
		if errors.Is(err, clinic.ErrClinicNotFound) {
			return sync.NewValidationError(sync.EntityTypeClinic, externalID,
				"mapping", "resolves to a missing clinic")
		}
		return err
	}
	if !c.ApplyERPSnapshot(snap) {
		return nil
	}
	return s.clinics.Save(ctx, c)
}

// adoptOrCreate binds an unmapped partner to an existing clinic matched by
// email then name, or creates a new clinic when nothing matches
func (s *ClinicSynchronizer) adoptOrCreate(ctx context.Context, tenantID uuid.UUID, externalID int64, snap clinic.ERPSnapshot) error {
	existing, err := s.matchExisting(ctx, tenantID, snap)
	if err != nil {
		return err
	}

	if existing == nil {
		created, err := clinic.NewClinic(tenantID, snap)
		if err != nil {
			return sync.NewValidationError(sync.EntityTypeClinic, externalID, "name", err.Error())
		}
		if err := s.clinics.Save(ctx, created); err != nil {
			return err
		}
		existing = created
	} else if existing.ApplyERPSnapshot(snap) {
		if err := s.clinics.Save(ctx, existing); err != nil {
			return err
		}
	}

	mapping, err := sync.NewIdentityMapping(tenantID, sync.EntityTypeClinic, externalID, existing.ID)
	if err != nil {
		return err
	}
	return s.mappings.Bind(ctx, mapping)
}

func (s *ClinicSynchronizer) matchExisting(ctx context.Context, tenantID uuid.UUID, snap clinic.ERPSnapshot) (*clinic.Clinic, error) {
	if snap.Email != "" {
		c, err := s.clinics.FindByEmail(ctx, tenantID, snap.Email)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, clinic.ErrClinicNotFound) {
			return nil, err
		}
	}
	c, err := s.clinics.FindByName(ctx, tenantID, snap.Name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, clinic.ErrClinicNotFound) {
		return nil, err
	}
	return nil, nil
}

// clinicSnapshot maps a partner record onto the clinic's ERP-owned fields
func clinicSnapshot(record sync.ExternalRecord) (clinic.ERPSnapshot, error) {
	name := strings.TrimSpace(record.Str("name"))
	if name == "" {
		return clinic.ERPSnapshot{}, sync.NewValidationError(
			sync.EntityTypeClinic, record.ID, "name", "is empty")
	}

	address := strings.TrimSpace(record.Str("street") + " " + record.Str("city"))
	return clinic.ERPSnapshot{
		Name:        name,
		Email:       record.Str("email"),
		Phone:       record.Str("phone"),
		Address:     address,
		ContactName: name,
		TaxID:       record.Str("vat"),
		IsCompany:   record.Bool("is_company"),
		Active:      record.Bool("active"),
	}, nil
}

// Ensure ClinicSynchronizer implements Synchronizer
var _ Synchronizer = (*ClinicSynchronizer)(nil)
