package reconciliation

import (
	"context"
	"math/rand"
	"testing"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/domain/stock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func returnOrder() *order.Order {
	return &order.Order{
		ID:            31,
		OrderNumber:   "ORD-0031",
		Status:        order.StatusCompleted,
		PaymentMethod: order.PaymentCash,
		Items: []order.Item{
			{ProductID: 5, ProductName: "Rice 5kg", Quantity: dec(10), UnitPrice: dec(100)},
			{ProductID: 6, ProductName: "Soy Sauce", Quantity: dec(2), UnitPrice: dec(25)},
		},
		Subtotal: dec(1050),
		Total:    dec(1050),
		Version:  1,
	}
}

func TestEngine_ProcessReturn(t *testing.T) {
	ctx := context.Background()

	t.Run("should refund and restock the returned quantity", func(t *testing.T) {
		h := newHarness(t, returnOrder())
		h.inventory.SetStock(5, dec(20))

		result, err := h.engine.ProcessReturn(ctx, 31, []ItemReturn{{ProductID: 5, ReturnQuantity: dec(4), Reason: "damaged"}}, "customer return")
		require.NoError(t, err)

		assert.Equal(t, "400.00", result.RefundAmount.StringFixed(order.MoneyPrecision))
		assert.True(t, result.Restocked)
		assert.True(t, dec(24).Equal(h.inventory.Stock(5)))

		adjusts := h.orders.Adjustments()
		require.Len(t, adjusts, 1, "restock and refund travel in one request")
		assert.True(t, dec(400).Equal(adjusts[0].RefundAmount))
		assert.True(t, adjusts[0].RestockItems)
		require.Len(t, adjusts[0].Items, 1)
		assert.Equal(t, "damaged", adjusts[0].Items[0].Reason)

		movements := h.movements.All()
		require.Len(t, movements, 1)
		assert.Equal(t, stock.ReasonReturn, movements[0].Reason)
		assert.True(t, dec(20).Equal(movements[0].BalanceBefore))
		assert.True(t, dec(24).Equal(movements[0].BalanceAfter))

		records, err := h.engine.Adjustments(ctx, 31)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, result.AdjustmentID, records[0].ID)
		assert.Len(t, h.publisher.EventsOfType(reconciliation.EventTypeReturnProcessed), 1)
		assert.Len(t, h.metrics.Refunds, 1)
		assert.Empty(t, h.receivables.Calls(), "returns never call the balance ledger")
	})

	t.Run("should clamp to what earlier returns left", func(t *testing.T) {
		h := newHarness(t, returnOrder())
		h.inventory.SetStock(5, dec(0))

		_, err := h.engine.ProcessReturn(ctx, 31, []ItemReturn{{ProductID: 5, ReturnQuantity: dec(4)}}, "")
		require.NoError(t, err)

		second, err := h.engine.ProcessReturn(ctx, 31, []ItemReturn{{ProductID: 5, ReturnQuantity: dec(10)}}, "")
		require.NoError(t, err)
		require.Len(t, second.Lines, 1)
		assert.True(t, dec(6).Equal(second.Lines[0].ReturnedQuantity))
		assert.Equal(t, "600.00", second.RefundAmount.StringFixed(order.MoneyPrecision))

		_, err = h.engine.ProcessReturn(ctx, 31, []ItemReturn{{ProductID: 5, ReturnQuantity: dec(1)}}, "")
		require.Error(t, err)
		assert.Equal(t, CodeEmptyReturn, codeOf(err))
		assert.True(t, dec(10).Equal(h.inventory.Stock(5)), "never more than ordered comes back")
	})

	t.Run("should price each order line of a repeated product", func(t *testing.T) {
		o := returnOrder()
		o.Items = []order.Item{
			{ProductID: 5, ProductName: "Rice 5kg", Quantity: dec(3), UnitPrice: dec(100)},
			{ProductID: 6, ProductName: "Soy Sauce", Quantity: dec(2), UnitPrice: dec(25)},
			{ProductID: 5, ProductName: "Rice 5kg", Quantity: dec(2), UnitPrice: dec(150)},
		}
		o.Subtotal, o.Total = dec(650), dec(650)
		h := newHarness(t, o)
		h.inventory.SetStock(5, dec(0))

		first, err := h.engine.ProcessReturn(ctx, 31, []ItemReturn{{ProductID: 5, ReturnQuantity: dec(2)}}, "")
		require.NoError(t, err)
		require.Len(t, first.Lines, 1)
		assert.True(t, dec(100).Equal(first.Lines[0].UnitPrice))
		assert.Equal(t, "200.00", first.RefundAmount.StringFixed(order.MoneyPrecision))

		second, err := h.engine.ProcessReturn(ctx, 31, []ItemReturn{{ProductID: 5, ReturnQuantity: dec(3)}}, "")
		require.NoError(t, err)
		require.Len(t, second.Lines, 2)
		assert.True(t, dec(1).Equal(second.Lines[0].ReturnedQuantity))
		assert.True(t, dec(100).Equal(second.Lines[0].UnitPrice))
		assert.True(t, dec(2).Equal(second.Lines[1].ReturnedQuantity))
		assert.True(t, dec(150).Equal(second.Lines[1].UnitPrice))
		assert.Equal(t, "400.00", second.RefundAmount.StringFixed(order.MoneyPrecision))

		adjusts := h.orders.Adjustments()
		require.Len(t, adjusts, 2)
		require.Len(t, adjusts[1].Items, 1, "the order service sees one line per product")
		assert.True(t, dec(3).Equal(adjusts[1].Items[0].ReturnedQuantity))
		assert.True(t, dec(5).Equal(h.inventory.Stock(5)))
	})

	t.Run("should ignore negative quantities", func(t *testing.T) {
		h := newHarness(t, returnOrder())
		h.inventory.SetStock(5, dec(0))
		h.inventory.SetStock(6, dec(0))

		result, err := h.engine.ProcessReturn(ctx, 31, []ItemReturn{
			{ProductID: 5, ReturnQuantity: dec(-3)},
			{ProductID: 6, ReturnQuantity: dec(1)},
		}, "")
		require.NoError(t, err)
		require.Len(t, result.Lines, 1)
		assert.Equal(t, int64(6), result.Lines[0].ProductID)
		assert.Equal(t, "25.00", result.RefundAmount.StringFixed(order.MoneyPrecision))
		assert.True(t, h.inventory.Stock(5).IsZero())
	})

	t.Run("should reject products that are not in the order", func(t *testing.T) {
		h := newHarness(t, returnOrder())

		_, err := h.engine.ProcessReturn(ctx, 31, []ItemReturn{{ProductID: 99, ReturnQuantity: dec(1)}}, "")
		require.Error(t, err)
		assert.Equal(t, CodeItemNotInOrder, codeOf(err))
		assert.Empty(t, h.orders.Adjustments())
	})

	t.Run("should reject returns on cancelled orders", func(t *testing.T) {
		o := returnOrder()
		o.Status = order.StatusCancelled
		h := newHarness(t, o)

		_, err := h.engine.ProcessReturn(ctx, 31, []ItemReturn{{ProductID: 5, ReturnQuantity: dec(1)}}, "")
		require.Error(t, err)
		assert.Equal(t, order.CodeOrderCancelled, codeOf(err))
	})

	t.Run("should leave nothing behind when the order service rejects the return", func(t *testing.T) {
		h := newHarness(t, returnOrder())
		h.inventory.SetStock(5, dec(20))
		h.orders.SetAdjustError(shared.NewNetworkError("order service unavailable", nil))

		_, err := h.engine.ProcessReturn(ctx, 31, []ItemReturn{{ProductID: 5, ReturnQuantity: dec(4)}}, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrNetwork)
		assert.True(t, dec(20).Equal(h.inventory.Stock(5)))
		assert.Empty(t, h.movements.All())

		records, err := h.engine.Adjustments(ctx, 31)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestReturnProcessor_RefundIsExactSumOfLines(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	for n := 0; n <= 10; n++ {
		o := &order.Order{
			ID:            40,
			OrderNumber:   "ORD-0040",
			Status:        order.StatusCompleted,
			PaymentMethod: order.PaymentCash,
			Version:       1,
		}
		var returns []ItemReturn
		expected := decimal.Zero
		for i := 0; i < n; i++ {
			productID := int64(100 + i)
			qty := decimal.New(rng.Int63n(5000)+1, -3)
			price := decimal.New(rng.Int63n(100000)+1, -2)
			o.Items = append(o.Items, order.Item{ProductID: productID, Quantity: qty.Add(dec(1)), UnitPrice: price})
			returns = append(returns, ItemReturn{ProductID: productID, ReturnQuantity: qty})
			expected = expected.Add(qty.Mul(price))
		}
		h := newHarness(t, o)
		for _, it := range o.Items {
			h.inventory.SetStock(it.ProductID, dec(0))
		}

		result, err := h.engine.ProcessReturn(ctx, 40, returns, "")
		if n == 0 {
			assert.Equal(t, CodeEmptyReturn, codeOf(err))
			continue
		}
		require.NoError(t, err, "lines=%d", n)
		assert.True(t, expected.Round(order.MoneyPrecision).Equal(result.RefundAmount),
			"lines=%d expected=%s got=%s", n, expected.Round(order.MoneyPrecision), result.RefundAmount)
		assert.LessOrEqual(t, result.RefundAmount.Exponent(), int32(0))
		assert.GreaterOrEqual(t, result.RefundAmount.Exponent(), int32(-order.MoneyPrecision))
	}
}

func TestClampReturnQuantity(t *testing.T) {
	tests := []struct {
		name      string
		requested decimal.Decimal
		limit     decimal.Decimal
		want      decimal.Decimal
	}{
		{"within limit", dec(3), dec(10), dec(3)},
		{"above limit", dec(12), dec(10), dec(10)},
		{"exactly limit", dec(10), dec(10), dec(10)},
		{"negative request", dec(-1), dec(10), dec(0)},
		{"nothing left", dec(2), dec(0), dec(0)},
		{"fractional", decimal.RequireFromString("1.5"), dec(1), dec(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(ClampReturnQuantity(tt.requested, tt.limit)))
		})
	}
}
