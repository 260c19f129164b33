package reconciliation

import (
	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/shopspring/decimal"
)

// ProductDelta is a signed stock change for one product
type ProductDelta struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// StockDirection returns the per-item stock direction of a status transition:
// +1 restocks, -1 re-deducts, 0 leaves stock alone. Stock is deducted when the
// sale is created, so only leaving or re-entering cancelled moves it, and only
// from or to completed.
func StockDirection(from, to order.Status) int {
	switch {
	case from == order.StatusCompleted && to == order.StatusCancelled:
		return 1
	case from == order.StatusCancelled && to == order.StatusCompleted:
		return -1
	}
	return 0
}

// PlanStockDeltas maps a status transition to per-product signed deltas.
// Lines of the same product are aggregated and zero quantities are skipped.
// The result keeps the order in which products first appear.
func PlanStockDeltas(items []order.Item, from, to order.Status) []ProductDelta {
	dir := StockDirection(from, to)
	if dir == 0 {
		return nil
	}
	sign := decimal.NewFromInt(int64(dir))

	index := make(map[int64]int)
	var deltas []ProductDelta
	for _, it := range items {
		if it.Quantity.IsZero() {
			continue
		}
		q := it.Quantity.Mul(sign)
		if i, ok := index[it.ProductID]; ok {
			deltas[i].Quantity = deltas[i].Quantity.Add(q)
			continue
		}
		index[it.ProductID] = len(deltas)
		deltas = append(deltas, ProductDelta{ProductID: it.ProductID, ProductName: it.ProductName, Quantity: q})
	}
	return deltas
}

// Inverse returns the deltas that undo ds
func Inverse(ds []ProductDelta) []ProductDelta {
	out := make([]ProductDelta, len(ds))
	for i, d := range ds {
		out[i] = ProductDelta{ProductID: d.ProductID, ProductName: d.ProductName, Quantity: d.Quantity.Neg()}
	}
	return out
}

// carriesReceivable reports whether an order in this status, settled this
// way, contributes its total to the customer's balance.
func carriesReceivable(status order.Status, method order.PaymentMethod) bool {
	if status == order.StatusCancelled {
		return false
	}
	return status == order.StatusCredit || method == order.PaymentCredit
}

func receivableDelta(total decimal.Decimal, before, after bool) decimal.Decimal {
	switch {
	case !before && after:
		return total.Round(order.MoneyPrecision)
	case before && !after:
		return total.Round(order.MoneyPrecision).Neg()
	}
	return decimal.Zero
}

// BalanceDeltaForStatus returns the signed receivable change of a status
// transition. Entering credit creates the debt and leaving it clears the
// debt. Cancelling an order settled on credit clears its debt as well. An
// order whose payment method already carries the debt is not charged twice.
func BalanceDeltaForStatus(total decimal.Decimal, method order.PaymentMethod, from, to order.Status) decimal.Decimal {
	return receivableDelta(total, carriesReceivable(from, method), carriesReceivable(to, method))
}

// BalanceDeltaForPaymentMethod returns the signed receivable change of a
// payment-method change: moving onto credit creates the debt and moving off
// it clears the debt. Switching between cash, card and bank transfer is free.
func BalanceDeltaForPaymentMethod(total decimal.Decimal, status order.Status, from, to order.PaymentMethod) decimal.Decimal {
	return receivableDelta(total, carriesReceivable(status, from), carriesReceivable(status, to))
}

// ReceivableOf returns the amount an order currently contributes to its
// customer's balance.
func ReceivableOf(o *order.Order) decimal.Decimal {
	if !o.HasCustomer() || !carriesReceivable(o.Status, o.PaymentMethod) {
		return decimal.Zero
	}
	return o.Total.Round(order.MoneyPrecision)
}
