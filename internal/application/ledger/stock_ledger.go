package ledger

import (
	"context"
	"fmt"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/domain/stock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Availability is the result of a stock availability check
type Availability struct {
	ProductID      int64           `json:"product_id"`
	ProductName    string          `json:"product_name,omitempty"`
	Requested      decimal.Decimal `json:"requested"`
	AvailableStock decimal.Decimal `json:"available_stock"`
	Shortfall      decimal.Decimal `json:"shortfall"`
	IsValid        bool            `json:"is_valid"`
}

// StockLedger validates and applies signed stock changes through the
// Inventory Service and journals one movement per applied change.
type StockLedger struct {
	inventory stock.InventoryService
	movements stock.MovementRepository
	logger    *zap.Logger
}

// NewStockLedger creates a new StockLedger
func NewStockLedger(inventory stock.InventoryService, movements stock.MovementRepository, logger *zap.Logger) *StockLedger {
	return &StockLedger{
		inventory: inventory,
		movements: movements,
		logger:    logger,
	}
}

// ValidateAvailability checks whether requested units can be taken out of stock
func (l *StockLedger) ValidateAvailability(ctx context.Context, productID int64, requested decimal.Decimal) (*Availability, error) {
	if requested.IsNegative() {
		return nil, shared.NewValidationError("INVALID_QUANTITY", "requested quantity cannot be negative")
	}
	product, err := l.inventory.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	a := &Availability{
		ProductID:      productID,
		ProductName:    product.Name,
		Requested:      requested,
		AvailableStock: product.Stock,
		Shortfall:      decimal.Zero,
		IsValid:        true,
	}
	if product.Stock.LessThan(requested) {
		a.IsValid = false
		a.Shortfall = requested.Sub(product.Stock)
	}
	return a, nil
}

// ApplyDelta changes a product's stock by a signed quantity and records the movement
func (l *StockLedger) ApplyDelta(ctx context.Context, productID int64, quantity decimal.Decimal, reason stock.Reason, ref order.Ref, opts ...Option) (*stock.Movement, error) {
	if quantity.IsZero() {
		return nil, shared.NewValidationError("INVALID_QUANTITY", "stock delta cannot be zero")
	}
	o := collect(opts)

	if quantity.IsNegative() && !o.prevalidated {
		avail, err := l.ValidateAvailability(ctx, productID, quantity.Neg())
		if err != nil {
			return nil, err
		}
		if !avail.IsValid {
			return nil, shared.ErrInsufficientStock.
				WithDetail("product_id", productID).
				WithDetail("available", avail.AvailableStock.String()).
				WithDetail("shortfall", avail.Shortfall.String())
		}
	}

	res, err := l.inventory.ApplyStockDelta(ctx, stock.DeltaRequest{
		ProductID:      productID,
		Quantity:       quantity,
		Notes:          notesFor(reason, o.notes),
		OrderRef:       ref,
		IdempotencyKey: o.idempotencyKey,
	})
	if err != nil {
		return nil, err
	}

	before := res.NewStock.Sub(quantity)
	if !res.PreviousStock.IsZero() && !res.PreviousStock.Equal(before) {
		l.logger.Warn("Inventory service reported inconsistent stock change",
			zap.Int64("product_id", productID),
			zap.String("previous", res.PreviousStock.String()),
			zap.String("new", res.NewStock.String()),
			zap.String("delta", quantity.String()))
	}
	return l.journal(ctx, productID, quantity, before, res.NewStock, reason, ref, o)
}

// RecordMovement journals a stock change another service already applied,
// such as the restock committed together with a return.
func (l *StockLedger) RecordMovement(ctx context.Context, productID int64, quantity decimal.Decimal, reason stock.Reason, ref order.Ref, opts ...Option) (*stock.Movement, error) {
	product, err := l.inventory.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return l.journal(ctx, productID, quantity, product.Stock.Sub(quantity), product.Stock, reason, ref, collect(opts))
}

func (l *StockLedger) journal(ctx context.Context, productID int64, quantity, before, after decimal.Decimal, reason stock.Reason, ref order.Ref, o applyOptions) (*stock.Movement, error) {
	m, err := stock.NewMovement(productID, quantity, before, after, reason, ref)
	if err != nil {
		return nil, err
	}
	m.WithNotes(o.notes)
	if o.intentID != nil {
		m.WithIntent(*o.intentID)
	}

	// The remote change is committed; a lost journal row is logged, not returned.
	if err := l.movements.Save(ctx, m); err != nil {
		l.logger.Error("Failed to journal stock movement",
			zap.Int64("product_id", productID),
			zap.String("delta", quantity.String()),
			zap.Int64("order_id", ref.OrderID),
			zap.Error(err))
	}
	return m, nil
}

// CurrentStock returns the on-hand quantity of a product
func (l *StockLedger) CurrentStock(ctx context.Context, productID int64) (decimal.Decimal, error) {
	product, err := l.inventory.GetProduct(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return product.Stock, nil
}

// Movements lists the journaled movements of a product, newest first
func (l *StockLedger) Movements(ctx context.Context, productID int64, page shared.Page) ([]*stock.Movement, int64, error) {
	return l.movements.FindByProduct(ctx, productID, page.Normalize())
}

func notesFor(reason stock.Reason, notes string) string {
	if notes == "" {
		return reason.String()
	}
	return fmt.Sprintf("%s: %s", reason, notes)
}
