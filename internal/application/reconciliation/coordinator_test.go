package reconciliation

import (
	"context"
	"testing"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/receivable"
	"github.com/erp/order-reconciler/internal/domain/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockCoordinator_ReconcileStock(t *testing.T) {
	ctx := context.Background()
	o := mixedOrder(order.StatusCompleted, order.PaymentCash, nil)
	h := newHarness(t, o)
	h.inventory.SetStock(5, dec(10))
	h.inventory.SetStock(6, dec(4))

	key := reconciliation.StatusKey(o.ID, order.StatusCompleted, order.StatusCancelled)
	deltas := reconciliation.PlanStockDeltas(o.Items, order.StatusCompleted, order.StatusCancelled)
	intent := reconciliation.NewIntent(key, o.Ref(), deltas, nil)

	movements, err := h.engine.stock.ReconcileStock(ctx, intent)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, stock.ReasonOrderCancelled, movements[0].Reason)
	assert.True(t, dec(13).Equal(h.inventory.Stock(5)))
	assert.True(t, dec(6).Equal(h.inventory.Stock(6)))

	calls := h.inventory.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, intent.ID.String()+":apply:5", calls[0].IdempotencyKey)
	assert.Equal(t, intent.ID.String()+":apply:6", calls[1].IdempotencyKey)

	t.Run("replaying the intent does not move stock again", func(t *testing.T) {
		_, err := h.engine.stock.ReconcileStock(ctx, intent)
		require.NoError(t, err)
		assert.True(t, dec(13).Equal(h.inventory.Stock(5)))
		assert.True(t, dec(6).Equal(h.inventory.Stock(6)))
	})

	t.Run("an intent without stock deltas makes no calls", func(t *testing.T) {
		before := len(h.inventory.Calls())
		empty := reconciliation.NewIntent(reconciliation.PaymentMethodKey(o.ID, order.PaymentCash, order.PaymentCard), o.Ref(), nil, nil)
		movements, err := h.engine.stock.ReconcileStock(ctx, empty)
		require.NoError(t, err)
		assert.Empty(t, movements)
		assert.Len(t, h.inventory.Calls(), before)
	})
}

func TestBalanceCoordinator_Plans(t *testing.T) {
	c := NewBalanceCoordinator(nil)

	t.Run("walk-in orders never plan balance steps", func(t *testing.T) {
		o := riceOrder(order.StatusPending, order.PaymentCash, nil)
		assert.Empty(t, c.PlanForStatus(o, order.StatusPending, order.StatusCredit))
		assert.Empty(t, c.PlanForPaymentMethod(o, order.PaymentCash, order.PaymentCredit))
		assert.Empty(t, c.PlanForCustomer(o, order.Int64Ptr(7)))
	})

	t.Run("status to credit creates the debt", func(t *testing.T) {
		o := riceOrder(order.StatusPending, order.PaymentCash, order.Int64Ptr(42))
		steps := c.PlanForStatus(o, order.StatusPending, order.StatusCredit)
		require.Len(t, steps, 1)
		assert.Equal(t, int64(42), steps[0].CustomerID)
		assert.True(t, dec(900).Equal(steps[0].Amount))
		assert.Equal(t, receivable.TypeCredit, steps[0].Type)
	})

	t.Run("payment method off credit clears the debt", func(t *testing.T) {
		o := riceOrder(order.StatusCompleted, order.PaymentCredit, order.Int64Ptr(42))
		steps := c.PlanForPaymentMethod(o, order.PaymentCredit, order.PaymentBankTransfer)
		require.Len(t, steps, 1)
		assert.True(t, dec(-900).Equal(steps[0].Amount))
		assert.Equal(t, receivable.TypeDebit, steps[0].Type)
	})

	t.Run("reassignment moves the receivable", func(t *testing.T) {
		o := riceOrder(order.StatusCredit, order.PaymentCash, order.Int64Ptr(42))
		steps := c.PlanForCustomer(o, order.Int64Ptr(43))
		require.Len(t, steps, 2)
		assert.True(t, dec(-900).Equal(steps[0].Amount))
		assert.Equal(t, int64(43), steps[1].CustomerID)
		assert.True(t, dec(900).Equal(steps[1].Amount))
		assert.True(t, NetDelta(steps).IsZero())
	})
}

func TestBalanceCoordinator_ReconcileBalance(t *testing.T) {
	ctx := context.Background()
	o := riceOrder(order.StatusCredit, order.PaymentCash, order.Int64Ptr(42))
	h := newHarness(t, o)
	h.receivables.SetBalance(42, dec(900))
	h.receivables.SetBalance(43, dec(100))

	key := reconciliation.CustomerKey(o.ID, o.CustomerID, order.Int64Ptr(43))
	steps := h.engine.balance.PlanForCustomer(o, order.Int64Ptr(43))
	intent := reconciliation.NewIntent(key, o.Ref(), nil, steps)

	txs, failed, err := h.engine.balance.ReconcileBalance(ctx, intent)
	require.NoError(t, err)
	assert.Nil(t, failed)
	assert.Len(t, txs, 2)
	assert.Equal(t, 2, intent.BalanceApplied)
	assert.True(t, h.receivables.Balance(42).IsZero())
	assert.True(t, dec(1000).Equal(h.receivables.Balance(43)))

	calls := h.receivables.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, intent.ID.String()+":balance:0", calls[0].IdempotencyKey)
	assert.Equal(t, intent.ID.String()+":balance:1", calls[1].IdempotencyKey)

	t.Run("a finished intent has nothing left to apply", func(t *testing.T) {
		txs, failed, err := h.engine.balance.ReconcileBalance(ctx, intent)
		require.NoError(t, err)
		assert.Nil(t, failed)
		assert.Empty(t, txs)
		assert.Len(t, h.receivables.Calls(), 2)
	})
}
