package reconciliation

import (
	"testing"
	"time"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransitionKey(t *testing.T) {
	key := StatusKey(9, order.StatusCompleted, order.StatusCancelled)
	assert.Equal(t, "9:status:completed->cancelled", key.String())
	assert.NoError(t, key.Validate())

	pm := PaymentMethodKey(3, order.PaymentCash, order.PaymentCredit)
	assert.Equal(t, KindPaymentMethod, pm.Kind)

	cust := CustomerKey(3, nil, order.Int64Ptr(7))
	assert.Equal(t, "3:customer:none->7", cust.String())

	assert.Error(t, TransitionKey{OrderID: 0, Kind: KindStatus, From: "a", To: "b"}.Validate())
	assert.Error(t, TransitionKey{OrderID: 1, Kind: "price", From: "a", To: "b"}.Validate())
	assert.Error(t, TransitionKey{OrderID: 1, Kind: KindStatus}.Validate())
}

func TestTransitionRecord_Supersede(t *testing.T) {
	intentID := uuid.New()
	rec := NewTransitionRecord(StatusKey(9, order.StatusCompleted, order.StatusCancelled), &intentID)
	assert.True(t, rec.IsActive())

	first := time.Now()
	rec.Supersede(first)
	rec.Supersede(first.Add(time.Hour))

	assert.False(t, rec.IsActive())
	assert.Equal(t, first, *rec.SupersededAt)
}

func TestRefundFor(t *testing.T) {
	lines := []ReturnedLine{
		{ProductID: 1, ReturnedQuantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(100)},
		{ProductID: 2, ReturnedQuantity: decimal.RequireFromString("0.5"), UnitPrice: decimal.RequireFromString("3.333")},
	}
	assert.Equal(t, "401.67", RefundFor(lines).StringFixed(2))
	assert.True(t, RefundFor(nil).IsZero())
}

func TestReturnedQuantities(t *testing.T) {
	records := []*AdjustmentRecord{
		NewAdjustmentRecord(order.Ref{OrderID: 1}, []ReturnedLine{{ProductID: 1, ReturnedQuantity: decimal.NewFromInt(2)}}, decimal.Zero, true, ""),
		NewAdjustmentRecord(order.Ref{OrderID: 1}, []ReturnedLine{
			{ProductID: 1, ReturnedQuantity: decimal.NewFromInt(1)},
			{ProductID: 4, ReturnedQuantity: decimal.NewFromInt(5)},
		}, decimal.Zero, true, ""),
	}
	got := ReturnedQuantities(records)
	assert.True(t, decimal.NewFromInt(3).Equal(got[1]))
	assert.True(t, decimal.NewFromInt(5).Equal(got[4]))
	assert.True(t, got[9].IsZero())
}
