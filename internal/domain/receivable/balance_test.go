package receivable

import (
	"testing"
	"time"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeForDelta(t *testing.T) {
	assert.Equal(t, TypeCredit, TypeForDelta(decimal.NewFromInt(1200)))
	assert.Equal(t, TypeDebit, TypeForDelta(decimal.NewFromInt(-900)))
}

func TestCustomerBalance_AvailableCredit(t *testing.T) {
	b := &CustomerBalance{
		CustomerID:     7,
		CurrentBalance: decimal.NewFromInt(1500),
		CreditLimit:    decimal.NewFromInt(5000),
	}
	assert.True(t, decimal.NewFromInt(3500).Equal(b.AvailableCredit()))
}

func TestNewBalanceTransaction(t *testing.T) {
	t.Run("creates credit transaction", func(t *testing.T) {
		tx, err := NewBalanceTransaction(7, decimal.NewFromInt(1200), TypeCredit, decimal.NewFromInt(300), decimal.NewFromInt(1500))
		require.NoError(t, err)

		intentID := uuid.New()
		tx.WithOrderRef(order.Ref{OrderID: 3}).WithDescription("payment method cash -> credit").WithIntent(intentID).WithRemoteID("rtx-1")

		assert.Equal(t, int64(7), tx.CustomerID)
		assert.Equal(t, int64(3), tx.OrderRef.OrderID)
		assert.Equal(t, intentID, *tx.IntentID)
		assert.Equal(t, "rtx-1", tx.RemoteID)
		assert.False(t, tx.TransactionDate.IsZero())
	})

	t.Run("rejects inconsistent balances", func(t *testing.T) {
		_, err := NewBalanceTransaction(7, decimal.NewFromInt(1200), TypeCredit, decimal.NewFromInt(300), decimal.NewFromInt(1200))
		assert.Error(t, err)
	})

	t.Run("rejects zero amount and unknown type", func(t *testing.T) {
		_, err := NewBalanceTransaction(7, decimal.Zero, TypeCredit, decimal.Zero, decimal.Zero)
		assert.Error(t, err)

		_, err = NewBalanceTransaction(7, decimal.NewFromInt(1), TransactionType("bonus"), decimal.Zero, decimal.NewFromInt(1))
		assert.Error(t, err)
	})
}

func TestRemoteTransaction_ToDomain(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	remote := &RemoteTransaction{
		ID:              "rtx-9",
		CustomerID:      42,
		OrderID:         9,
		OrderNumber:     "ORD-0009",
		Amount:          decimal.NewFromInt(-900),
		Type:            TypeDebit,
		PreviousBalance: decimal.NewFromInt(900),
		NewBalance:      decimal.Zero,
		CreatedAt:       at,
	}

	tx := remote.ToDomain()
	assert.Equal(t, "rtx-9", tx.RemoteID)
	assert.Equal(t, order.Ref{OrderID: 9, OrderNumber: "ORD-0009"}, tx.OrderRef)
	assert.Equal(t, at, tx.TransactionDate)
	assert.NotEqual(t, uuid.Nil, tx.ID)
}
