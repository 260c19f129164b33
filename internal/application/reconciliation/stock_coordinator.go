package reconciliation

import (
	"context"
	"fmt"

	"github.com/erp/order-reconciler/internal/application/ledger"
	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/domain/stock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Shortfall is one product that cannot cover a re-deduction
type Shortfall struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"product_name,omitempty"`
	Requested string `json:"requested"`
	Available string `json:"available"`
	Shortfall string `json:"shortfall"`
}

// StockCoordinator maps status transitions to stock deltas and drives the
// stock ledger. A transition either applies every delta or none: deltas
// already applied when a later one fails are reversed.
type StockCoordinator struct {
	ledger StockLedger
	logger *zap.Logger
}

// NewStockCoordinator creates a new StockCoordinator
func NewStockCoordinator(l StockLedger, logger *zap.Logger) *StockCoordinator {
	return &StockCoordinator{ledger: l, logger: logger}
}

// ReconcileStock applies the stock step of an intent: every planned delta
// or none. Movements are linked to the intent and the remote calls carry
// idempotency keys derived from it.
func (c *StockCoordinator) ReconcileStock(ctx context.Context, intent *reconciliation.Intent) ([]*stock.Movement, error) {
	return c.apply(ctx, intent.OrderRef, intent.StockDeltas, intent.ID, reasonForDeltas(intent.StockDeltas))
}

func (c *StockCoordinator) apply(ctx context.Context, ref order.Ref, deltas []reconciliation.ProductDelta, intentID uuid.UUID, reason stock.Reason) ([]*stock.Movement, error) {
	if len(deltas) == 0 {
		return nil, nil
	}
	if err := c.validate(ctx, deltas); err != nil {
		return nil, err
	}

	movements := make([]*stock.Movement, 0, len(deltas))
	for i, d := range deltas {
		opts := c.options(intentID, d.ProductID, "apply")
		if d.Quantity.IsNegative() {
			opts = append(opts, ledger.Prevalidated())
		}
		m, err := c.ledger.ApplyDelta(ctx, d.ProductID, d.Quantity, reason, ref, opts...)
		if err != nil {
			c.logger.Warn("Stock delta failed, compensating applied deltas",
				zap.Int64("order_id", ref.OrderID),
				zap.Int64("product_id", d.ProductID),
				zap.Int("applied", i),
				zap.Error(err))
			if compErr := c.compensate(ctx, ref, deltas[:i], intentID); compErr != nil {
				return nil, shared.NewStateError("COMPENSATION_FAILED",
					fmt.Sprintf("stock for order %d is partially applied and could not be reversed", ref.OrderID)).
					WithDetail("order_id", ref.OrderID).
					WithCause(fmt.Errorf("%w (compensation: %v)", err, compErr))
			}
			return nil, fmt.Errorf("apply stock delta for product %d: %w", d.ProductID, err)
		}
		movements = append(movements, m)
	}
	return movements, nil
}

// validate checks availability of every product that is re-deducted.
// All shortfalls are reported together.
func (c *StockCoordinator) validate(ctx context.Context, deltas []reconciliation.ProductDelta) error {
	var shortfalls []Shortfall
	for _, d := range deltas {
		if !d.Quantity.IsNegative() {
			continue
		}
		a, err := c.ledger.ValidateAvailability(ctx, d.ProductID, d.Quantity.Neg())
		if err != nil {
			return err
		}
		if !a.IsValid {
			name := d.ProductName
			if name == "" {
				name = a.ProductName
			}
			shortfalls = append(shortfalls, Shortfall{
				ProductID: d.ProductID,
				Name:      name,
				Requested: a.Requested.String(),
				Available: a.AvailableStock.String(),
				Shortfall: a.Shortfall.String(),
			})
		}
	}
	if len(shortfalls) > 0 {
		return shared.ErrInsufficientStock.
			WithDetail("shortfalls", shortfalls)
	}
	return nil
}

// compensate reverses applied deltas, newest first
func (c *StockCoordinator) compensate(ctx context.Context, ref order.Ref, applied []reconciliation.ProductDelta, intentID uuid.UUID) error {
	inverse := reconciliation.Inverse(applied)
	var firstErr error
	for i := len(inverse) - 1; i >= 0; i-- {
		d := inverse[i]
		opts := append(c.options(intentID, d.ProductID, "compensate"), ledger.Prevalidated())
		if _, err := c.ledger.ApplyDelta(ctx, d.ProductID, d.Quantity, stock.ReasonCompensation, ref, opts...); err != nil {
			c.logger.Error("Failed to compensate stock delta",
				zap.Int64("order_id", ref.OrderID),
				zap.Int64("product_id", d.ProductID),
				zap.String("quantity", d.Quantity.String()),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (c *StockCoordinator) options(intentID uuid.UUID, productID int64, phase string) []ledger.Option {
	if intentID == uuid.Nil {
		return nil
	}
	return []ledger.Option{
		ledger.WithIntent(intentID),
		ledger.WithIdempotencyKey(fmt.Sprintf("%s:%s:%d", intentID, phase, productID)),
	}
}

// reasonForDeltas labels the movements of a plan: negative deltas
// re-deduct a reinstated order, positive ones restock a cancelled one
func reasonForDeltas(deltas []reconciliation.ProductDelta) stock.Reason {
	for _, d := range deltas {
		if d.Quantity.IsNegative() {
			return stock.ReasonOrderReinstated
		}
	}
	return stock.ReasonOrderCancelled
}
