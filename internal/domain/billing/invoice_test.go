package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSnapshot(clinicID *uuid.UUID) ERPSnapshot {
	issued := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	return ERPSnapshot{
		Number:       "INV/2026/0042",
		ClinicID:     clinicID,
		IssueDate:    issued,
		DueDate:      issued.AddDate(0, 1, 0),
		TotalAmount:  decimal.RequireFromString("1200.00"),
		AmountDue:    decimal.RequireFromString("400.00"),
		Currency:     "GTQ",
		PaymentState: PaymentStatePartial,
	}
}

func TestNewInvoice(t *testing.T) {
	t.Run("creates invoice from snapshot", func(t *testing.T) {
		clinicID := uuid.New()
		inv, err := NewInvoice(uuid.New(), validSnapshot(&clinicID))
		require.NoError(t, err)

		assert.Equal(t, "INV/2026/0042", inv.Number)
		require.NotNil(t, inv.ClinicID)
		assert.Equal(t, clinicID, *inv.ClinicID)
		assert.True(t, inv.AmountDue.Equal(decimal.NewFromInt(400)))
	})

	t.Run("allows unresolved clinic link", func(t *testing.T) {
		inv, err := NewInvoice(uuid.New(), validSnapshot(nil))
		require.NoError(t, err)
		assert.Nil(t, inv.ClinicID)
	})

	t.Run("rejects empty number", func(t *testing.T) {
		snap := validSnapshot(nil)
		snap.Number = ""
		_, err := NewInvoice(uuid.New(), snap)
		assert.ErrorIs(t, err, ErrInvoiceNumberRequired)
	})
}

func TestInvoice_ApplyERPSnapshot(t *testing.T) {
	t.Run("identical snapshot is a no-op", func(t *testing.T) {
		clinicID := uuid.New()
		inv, err := NewInvoice(uuid.New(), validSnapshot(&clinicID))
		require.NoError(t, err)

		assert.False(t, inv.ApplyERPSnapshot(validSnapshot(&clinicID)))
	})

	t.Run("payment progress is applied", func(t *testing.T) {
		inv, err := NewInvoice(uuid.New(), validSnapshot(nil))
		require.NoError(t, err)

		snap := validSnapshot(nil)
		snap.AmountDue = decimal.Zero
		snap.PaymentState = PaymentStatePaid

		assert.True(t, inv.ApplyERPSnapshot(snap))
		assert.Equal(t, PaymentStatePaid, inv.PaymentState)
		assert.True(t, inv.AmountDue.IsZero())
	})

	t.Run("late clinic resolution is applied", func(t *testing.T) {
		inv, err := NewInvoice(uuid.New(), validSnapshot(nil))
		require.NoError(t, err)

		clinicID := uuid.New()
		assert.True(t, inv.ApplyERPSnapshot(validSnapshot(&clinicID)))
		require.NotNil(t, inv.ClinicID)
		assert.Equal(t, clinicID, *inv.ClinicID)
	})
}
