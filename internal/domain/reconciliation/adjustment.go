package reconciliation

import (
	"context"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ReturnedLine is one returned product of an adjustment
type ReturnedLine struct {
	ProductID        int64           `json:"product_id"`
	ProductName      string          `json:"product_name,omitempty"`
	ReturnedQuantity decimal.Decimal `json:"returned_quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Reason           string          `json:"reason,omitempty"`
}

// Amount returns returned quantity x unit price
func (l ReturnedLine) Amount() decimal.Decimal {
	return l.ReturnedQuantity.Mul(l.UnitPrice)
}

// AdjustmentRecord is the audit record of a committed return
type AdjustmentRecord struct {
	shared.BaseEntity
	OrderRef     order.Ref
	Lines        []ReturnedLine
	RefundAmount decimal.Decimal
	Restocked    bool
	Notes        string
}

// NewAdjustmentRecord creates an adjustment record
func NewAdjustmentRecord(ref order.Ref, lines []ReturnedLine, refund decimal.Decimal, restocked bool, notes string) *AdjustmentRecord {
	return &AdjustmentRecord{
		BaseEntity:   shared.NewBaseEntity(),
		OrderRef:     ref,
		Lines:        lines,
		RefundAmount: refund,
		Restocked:    restocked,
		Notes:        notes,
	}
}

// RefundFor computes the refund of lines rounded to money precision
func RefundFor(lines []ReturnedLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount())
	}
	return total.Round(order.MoneyPrecision)
}

// AdjustmentRepository persists adjustment records
type AdjustmentRepository interface {
	// Save persists a new adjustment record
	Save(ctx context.Context, rec *AdjustmentRecord) error
	// FindByOrder lists adjustments of an order, oldest first
	FindByOrder(ctx context.Context, orderID int64) ([]*AdjustmentRecord, error)
}

// ReturnedQuantities sums returned quantities per product over records
func ReturnedQuantities(records []*AdjustmentRecord) map[int64]decimal.Decimal {
	out := make(map[int64]decimal.Decimal)
	for _, rec := range records {
		for _, l := range rec.Lines {
			out[l.ProductID] = out[l.ProductID].Add(l.ReturnedQuantity)
		}
	}
	return out
}
