package sync

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dentalab/erpsync/internal/domain/billing"
	"github.com/dentalab/erpsync/internal/domain/sync"
)

// invoiceFields is what one invoice pull fetches from the ERP
var invoiceFields = []string{"name", "date", "invoice_date_due", "amount_total", "amount_residual", "currency_id", "payment_state", "partner_id"}

// erpDateLayout is how the ERP encodes date fields on the wire
const erpDateLayout = "2006-01-02"

// InvoiceSynchronizer mirrors posted ERP customer invoices. The clinic
// link stays nil when the invoice's partner has no mapping yet and fills
// in on a later run once the customers module has bound it.
type InvoiceSynchronizer struct {
	erp      sync.ERPClient
	mappings sync.IdentityMappingRepository
	invoices billing.Repository
	logger   *zap.Logger
}

// NewInvoiceSynchronizer creates an invoice synchronizer
func NewInvoiceSynchronizer(erp sync.ERPClient, mappings sync.IdentityMappingRepository, invoices billing.Repository, logger *zap.Logger) *InvoiceSynchronizer {
	return &InvoiceSynchronizer{
		erp:      erp,
		mappings: mappings,
		invoices: invoices,
		logger:   logger,
	}
}

// Module returns the module name this synchronizer serves
func (s *InvoiceSynchronizer) Module() sync.Module {
	return sync.ModuleInvoices
}

// Sync pulls every posted customer invoice and upserts its mirror
func (s *InvoiceSynchronizer) Sync(ctx context.Context, tenantID uuid.UUID, tally *Tally) error {
	query := sync.SearchQuery{
		Model: "account.move",
		Filter: sync.Filter{
			sync.Eq("move_type", "out_invoice"),
			sync.Eq("state", "posted"),
		},
		Fields: invoiceFields,
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
			s.logger.Warn("skipped invoice record",
				zap.Int64("external_id", record.ID),
				zap.Error(err))
			return nil
		}
		tally.recordSuccess()
		return nil
	})
}

func (s *InvoiceSynchronizer) syncRecord(ctx context.Context, tenantID uuid.UUID, record sync.ExternalRecord) error {
	snap, err := s.invoiceSnapshot(ctx, tenantID, record)
	if err != nil {
		return err
	}

	internalID, err := s.mappings.Resolve(ctx, tenantID, sync.EntityTypeInvoice, record.ID)
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

	return s.mappings.Touch(ctx, tenantID, sync.EntityTypeInvoice, record.ID, time.Now())
}

func (s *InvoiceSynchronizer) updateMapped(ctx context.Context, tenantID uuid.UUID, externalID int64, internalID uuid.UUID, snap billing.ERPSnapshot) error {
	inv, err := s.invoices.FindByID(ctx, tenantID, internalID)
	if err != nil {
		if errors.Is(err, billing.ErrInvoiceNotFound) {
			return sync.NewValidationError(sync.EntityTypeInvoice, externalID,
				"mapping", "resolves to a missing invoice")
		}
		return err
	}
	if !inv.ApplyERPSnapshot(snap) {
		return nil
	}
	return s.invoices.Save(ctx, inv)
}

// adoptOrCreate binds an unmapped invoice to an existing row matched by
// number, or creates a new mirror when nothing matches
func (s *InvoiceSynchronizer) adoptOrCreate(ctx context.Context, tenantID uuid.UUID, externalID int64, snap billing.ERPSnapshot) error {
	existing, err := s.invoices.FindByNumber(ctx, tenantID, snap.Number)
	if err != nil && !errors.Is(err, billing.ErrInvoiceNotFound) {
		return err
	}

	if existing == nil {
		created, err := billing.NewInvoice(tenantID, snap)
		if err != nil {
			return sync.NewValidationError(sync.EntityTypeInvoice, externalID, "name", err.Error())
		}
		if err := s.invoices.Save(ctx, created); err != nil {
			return err
		}
		existing = created
	} else if existing.ApplyERPSnapshot(snap) {
		if err := s.invoices.Save(ctx, existing); err != nil {
			return err
		}
	}

	mapping, err := sync.NewIdentityMapping(tenantID, sync.EntityTypeInvoice, externalID, existing.ID)
	if err != nil {
		return err
	}
	return s.mappings.Bind(ctx, mapping)
}

// invoiceSnapshot maps an account move onto the invoice's fields,
// resolving the partner relation to an internal clinic when mapped
func (s *InvoiceSynchronizer) invoiceSnapshot(ctx context.Context, tenantID uuid.UUID, record sync.ExternalRecord) (billing.ERPSnapshot, error) {
	number := strings.TrimSpace(record.Str("name"))
	if number == "" {
		return billing.ERPSnapshot{}, sync.NewValidationError(
			sync.EntityTypeInvoice, record.ID, "name", "is empty")
	}

	issueDate, err := time.Parse(erpDateLayout, record.Str("date"))
	if err != nil {
		return billing.ERPSnapshot{}, sync.NewValidationError(
			sync.EntityTypeInvoice, record.ID, "date", "is not a valid date")
	}
	dueDate := issueDate
	if raw := record.Str("invoice_date_due"); raw != "" {
		parsed, err := time.Parse(erpDateLayout, raw)
		if err != nil {
			return billing.ERPSnapshot{}, sync.NewValidationError(
				sync.EntityTypeInvoice, record.ID, "invoice_date_due", "is not a valid date")
		}
		dueDate = parsed
	}

	currency := "GTQ"
	if _, currencyName, ok := record.Relation("currency_id"); ok && currencyName != "" {
		currency = currencyName
	}

	paymentState := billing.PaymentStateNotPaid
	if raw := record.Str("payment_state"); raw != "" {
		paymentState = billing.PaymentState(raw)
	}

	var clinicID *uuid.UUID
	if partnerID, _, ok := record.Relation("partner_id"); ok {
		internalID, err := s.mappings.Resolve(ctx, tenantID, sync.EntityTypeClinic, partnerID)
		switch {
		case err == nil:
			clinicID = &internalID
		case errors.Is(err, sync.ErrMappingNotFound):
			// clinic not synced yet; link resolves on a later run
		default:
			return billing.ERPSnapshot{}, err
		}
	}

	return billing.ERPSnapshot{
		Number:       number,
		ClinicID:     clinicID,
		IssueDate:    issueDate,
		DueDate:      dueDate,
		TotalAmount:  record.Decimal("amount_total"),
		AmountDue:    record.Decimal("amount_residual"),
		Currency:     currency,
		PaymentState: paymentState,
	}, nil
}

// Ensure InvoiceSynchronizer implements Synchronizer
var _ Synchronizer = (*InvoiceSynchronizer)(nil)
