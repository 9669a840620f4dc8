package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dentalab/erpsync/internal/domain/shared"
)

var (
	// ErrInvoiceNotFound is returned when an invoice cannot be located
	ErrInvoiceNotFound = errors.New("billing: invoice not found")
	// ErrInvoiceNumberRequired is returned when an invoice has no number
	ErrInvoiceNumberRequired = errors.New("billing: invoice number is required")
)

// PaymentState mirrors the ERP's invoice payment lifecycle
type PaymentState string

const (
	PaymentStateNotPaid   PaymentState = "not_paid"
	PaymentStatePartial   PaymentState = "partial"
	PaymentStatePaid      PaymentState = "paid"
	PaymentStateReversed  PaymentState = "reversed"
	PaymentStateInPayment PaymentState = "in_payment"
)

// Invoice is a posted ERP customer invoice mirrored read-only for clinic
// account views. Every field is ERP-owned; nothing on an invoice is edited
// locally.
type Invoice struct {
	shared.TenantEntity
	Number       string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_invoice_tenant_number,priority:2"`
	ClinicID     *uuid.UUID      `gorm:"type:uuid;index"` // nil until the partner mapping resolves
	IssueDate    time.Time       `gorm:"not null"`
	DueDate      time.Time       `gorm:"not null"`
	TotalAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	AmountDue    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency     string          `gorm:"type:varchar(10);not null;default:'GTQ'"`
	PaymentState PaymentState    `gorm:"type:varchar(20);not null;default:'not_paid'"`
}

// TableName returns the table name for GORM
func (Invoice) TableName() string {
	return "invoices"
}

// ERPSnapshot carries an invoice's fields as seen in one pull
type ERPSnapshot struct {
	Number       string
	ClinicID     *uuid.UUID
	IssueDate    time.Time
	DueDate      time.Time
	TotalAmount  decimal.Decimal
	AmountDue    decimal.Decimal
	Currency     string
	PaymentState PaymentState
}

// NewInvoice creates an invoice from an ERP snapshot
func NewInvoice(tenantID uuid.UUID, snap ERPSnapshot) (*Invoice, error) {
	if strings.TrimSpace(snap.Number) == "" {
		return nil, ErrInvoiceNumberRequired
	}

	inv := &Invoice{
		TenantEntity: shared.NewTenantEntity(tenantID),
	}
	inv.applySnapshot(snap)
	return inv, nil
}

// ApplyERPSnapshot overwrites the invoice fields and reports whether any changed
func (inv *Invoice) ApplyERPSnapshot(snap ERPSnapshot) bool {
	if !inv.differsFrom(snap) {
		return false
	}
	inv.applySnapshot(snap)
	return true
}

func (inv *Invoice) differsFrom(snap ERPSnapshot) bool {
	return inv.Number != snap.Number ||
		!uuidPtrEqual(inv.ClinicID, snap.ClinicID) ||
		!inv.IssueDate.Equal(snap.IssueDate) ||
		!inv.DueDate.Equal(snap.DueDate) ||
		!inv.TotalAmount.Equal(snap.TotalAmount) ||
		!inv.AmountDue.Equal(snap.AmountDue) ||
		inv.Currency != snap.Currency ||
		inv.PaymentState != snap.PaymentState
}

func (inv *Invoice) applySnapshot(snap ERPSnapshot) {
	inv.Number = snap.Number
	inv.ClinicID = snap.ClinicID
	inv.IssueDate = snap.IssueDate
	inv.DueDate = snap.DueDate
	inv.TotalAmount = snap.TotalAmount
	inv.AmountDue = snap.AmountDue
	inv.Currency = snap.Currency
	inv.PaymentState = snap.PaymentState
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Repository defines persistence operations for invoices
type Repository interface {
	// FindByID returns an invoice by internal ID, or ErrInvoiceNotFound
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByNumber returns the invoice with the given number, the secondary
	// match key for unmapped ERP invoices
	FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*Invoice, error)

	// ListByClinic returns a clinic's invoices, newest first
	ListByClinic(ctx context.Context, tenantID, clinicID uuid.UUID) ([]Invoice, error)

	// Save upserts an invoice within its own transaction
	Save(ctx context.Context, inv *Invoice) error

	// Count returns the number of invoices for a tenant
	Count(ctx context.Context, tenantID uuid.UUID) (int64, error)
}
