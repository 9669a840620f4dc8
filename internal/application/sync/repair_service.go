package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dentalab/erpsync/internal/domain/clinic"
	"github.com/dentalab/erpsync/internal/domain/sync"
)

// RepairService restores broken clinic-to-partner links. This is the one
// reverse-direction flow: a local clinic with no mapping is looked up on
// the ERP by email and, when absent there too, created remotely before
// being bound.
type RepairService struct {
	erp      sync.ERPClient
	mappings sync.IdentityMappingRepository
	clinics  clinic.Repository
	logger   *zap.Logger
}

// NewRepairService creates a repair service
func NewRepairService(erp sync.ERPClient, mappings sync.IdentityMappingRepository, clinics clinic.Repository, logger *zap.Logger) *RepairService {
	return &RepairService{
		erp:      erp,
		mappings: mappings,
		clinics:  clinics,
		logger:   logger,
	}
}

// RepairClinicLinks walks every local clinic and ensures it has an
// identity mapping to an ERP partner. Per-clinic failures are collected
// in the report; only batch-level errors abort the pass.
func (s *RepairService) RepairClinicLinks(ctx context.Context, tenantID uuid.UUID) (*RepairReport, error) {
	clinics, err := s.clinics.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	mapped, err := s.mappedClinicIDs(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	report := &RepairReport{ClinicsChecked: len(clinics)}
	for i := range clinics {
		c := &clinics[i]
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if mapped[c.ID] {
			continue
		}

		created, err := s.repairClinic(ctx, tenantID, c)
		if err != nil {
			report.Failures = append(report.Failures,
				fmt.Sprintf("%s: %v", c.Name, err))
			s.logger.Warn("failed to repair clinic link",
				zap.String("clinic_id", c.ID.String()),
				zap.String("clinic", c.Name),
				zap.Error(err))
			continue
		}
		report.LinksRepaired++
		if created {
			report.PartnersCreated++
		}
	}
	return report, nil
}

func (s *RepairService) mappedClinicIDs(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]bool, error) {
	mappings, err := s.mappings.ListByType(ctx, tenantID, sync.EntityTypeClinic)
	if err != nil {
		return nil, err
	}
	mapped := make(map[uuid.UUID]bool, len(mappings))
	for _, m := range mappings {
		mapped[m.InternalID] = true
	}
	return mapped, nil
}

// repairClinic finds or creates the remote partner for one unmapped
// clinic and binds the mapping. Returns whether a partner was created.
func (s *RepairService) repairClinic(ctx context.Context, tenantID uuid.UUID, c *clinic.Clinic) (bool, error) {
	externalID, err := s.findPartnerByEmail(ctx, c.Email)
	if err != nil {
		return false, err
	}

	created := false
	if externalID == 0 {
		externalID, err = s.erp.Create(ctx, "res.partner", map[string]any{
			"name":          c.Name,
			"email":         c.Email,
			"phone":         c.Phone,
			"active":        true,
			"customer_rank": 1,
			"company_type":  "company",
		})
		if err != nil {
			return false, err
		}
		created = true
		s.logger.Info("created partner for clinic",
			zap.String("clinic", c.Name),
			zap.Int64("external_id", externalID))
	}

	mapping, err := sync.NewIdentityMapping(tenantID, sync.EntityTypeClinic, externalID, c.ID)
	if err != nil {
		return created, err
	}
	if err := s.mappings.Bind(ctx, mapping); err != nil {
		return created, err
	}
	return created, s.mappings.Touch(ctx, tenantID, sync.EntityTypeClinic, externalID, time.Now())
}

// findPartnerByEmail returns the matching partner's ID, or 0 when the
// clinic has no email or the ERP knows no such partner
func (s *RepairService) findPartnerByEmail(ctx context.Context, email string) (int64, error) {
	if email == "" {
		return 0, nil
	}

	var externalID int64
	err := s.erp.SearchRead(ctx, sync.SearchQuery{
		Model:  "res.partner",
		Filter: sync.Filter{sync.Eq("email", email)},
		Fields: []string{"name"},
		Limit:  1,
	}, func(record sync.ExternalRecord) error {
		externalID = record.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return externalID, nil
}
