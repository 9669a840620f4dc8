package sync

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dentalab/erpsync/internal/domain/catalog"
	"github.com/dentalab/erpsync/internal/domain/sync"
)

// serviceFields is what one product pull fetches from the ERP
var serviceFields = []string{"name", "default_code", "list_price", "standard_price", "sale_delay", "categ_id", "description_sale", "active"}

// ServiceSynchronizer imports sellable ERP products as lab services
type ServiceSynchronizer struct {
	erp      sync.ERPClient
	mappings sync.IdentityMappingRepository
	services catalog.Repository
	logger   *zap.Logger
}

// NewServiceSynchronizer creates a service synchronizer
func NewServiceSynchronizer(erp sync.ERPClient, mappings sync.IdentityMappingRepository, services catalog.Repository, logger *zap.Logger) *ServiceSynchronizer {
	return &ServiceSynchronizer{
		erp:      erp,
		mappings: mappings,
		services: services,
		logger:   logger,
	}
}

// Module returns the module name this synchronizer serves
func (s *ServiceSynchronizer) Module() sync.Module {
	return sync.ModuleProducts
}

// Sync pulls every sellable product and upserts the matching service
func (s *ServiceSynchronizer) Sync(ctx context.Context, tenantID uuid.UUID, tally *Tally) error {
	query := sync.SearchQuery{
		Model:  "product.product",
		Filter: sync.Filter{sync.Eq("sale_ok", true)},
		Fields: serviceFields,
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
			s.logger.Warn("skipped product record",
				zap.Int64("external_id", record.ID),
				zap.Error(err))
			return nil
		}
		tally.recordSuccess()
		return nil
	})
}

func (s *ServiceSynchronizer) syncRecord(ctx context.Context, tenantID uuid.UUID, record sync.ExternalRecord) error {
	snap, err := serviceSnapshot(record)
	if err != nil {
		return err
	}

	internalID, err := s.mappings.Resolve(ctx, tenantID, sync.EntityTypeService, record.ID)
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

	return s.mappings.Touch(ctx, tenantID, sync.EntityTypeService, record.ID, time.Now())
}

func (s *ServiceSynchronizer) updateMapped(ctx context.Context, tenantID uuid.UUID, externalID int64, internalID uuid.UUID, snap catalog.ERPSnapshot) error {
	svc, err := s.services.FindByID(ctx, tenantID, internalID)
	if err != nil {
		if errors.Is(err, catalog.ErrServiceNotFound) {
			return sync.NewValidationError(sync.EntityTypeService, externalID,
				"mapping", "resolves to a missing service")
		}
		return err
	}
	if !svc.ApplyERPSnapshot(snap) {
		return nil
	}
	return s.services.Save(ctx, svc)
}

// adoptOrCreate binds an unmapped product to an existing service matched
// by code then name, or creates a new service when nothing matches
func (s *ServiceSynchronizer) adoptOrCreate(ctx context.Context, tenantID uuid.UUID, externalID int64, snap catalog.ERPSnapshot) error {
	existing, err := s.matchExisting(ctx, tenantID, snap)
	if err != nil {
		return err
	}

	if existing == nil {
		created, err := catalog.NewService(tenantID, snap)
		if err != nil {
			return sync.NewValidationError(sync.EntityTypeService, externalID, "name", err.Error())
		}
		if err := s.services.Save(ctx, created); err != nil {
			return err
		}
		existing = created
	} else if existing.ApplyERPSnapshot(snap) {
		if err := s.services.Save(ctx, existing); err != nil {
			return err
		}
	}

	mapping, err := sync.NewIdentityMapping(tenantID, sync.EntityTypeService, externalID, existing.ID)
	if err != nil {
		return err
	}
	return s.mappings.Bind(ctx, mapping)
}

func (s *ServiceSynchronizer) matchExisting(ctx context.Context, tenantID uuid.UUID, snap catalog.ERPSnapshot) (*catalog.Service, error) {
	svc, err := s.services.FindByCode(ctx, tenantID, snap.Code)
	if err == nil {
		return svc, nil
	}
	if !errors.Is(err, catalog.ErrServiceNotFound) {
		return nil, err
	}
	svc, err = s.services.FindByName(ctx, tenantID, snap.Name)
	if err == nil {
		return svc, nil
	}
	if !errors.Is(err, catalog.ErrServiceNotFound) {
		return nil, err
	}
	return nil, nil
}

// serviceSnapshot maps a product record onto the service's ERP-owned
// fields. Products without an internal reference get a stable synthetic
// code derived from their external ID.
func serviceSnapshot(record sync.ExternalRecord) (catalog.ERPSnapshot, error) {
	name := strings.TrimSpace(record.Str("name"))
	if name == "" {
		return catalog.ERPSnapshot{}, sync.NewValidationError(
			sync.EntityTypeService, record.ID, "name", "is empty")
	}

	code := strings.TrimSpace(record.Str("default_code"))
	if code == "" {
		code = fmt.Sprintf("ODOO-%d", record.ID)
	}

	category := catalog.CategoryFixed
	if _, categName, ok := record.Relation("categ_id"); ok {
		category = catalog.CategoryFromERP(categName)
	}

	description := record.Str("description_sale")
	if description == "" {
		description = name
	}

	return catalog.ERPSnapshot{
		Code:           code,
		Name:           name,
		Category:       category,
		Description:    description,
		CostPrice:      record.Decimal("standard_price"),
		BasePrice:      record.Decimal("list_price"),
		TurnaroundDays: int(math.Round(record.Float("sale_delay"))),
		Active:         record.Bool("active"),
	}, nil
}

// Ensure ServiceSynchronizer implements Synchronizer
var _ Synchronizer = (*ServiceSynchronizer)(nil)
