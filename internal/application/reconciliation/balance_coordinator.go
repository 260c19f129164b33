package reconciliation

import (
	"context"
	"fmt"

	"github.com/erp/order-reconciler/internal/application/ledger"
	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/receivable"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceCoordinator maps status, payment-method and customer changes to
// signed receivable deltas and drives the balance ledger. Orders without a
// customer never touch the balance ledger.
type BalanceCoordinator struct {
	ledger BalanceLedger
}

// NewBalanceCoordinator creates a new BalanceCoordinator
func NewBalanceCoordinator(l BalanceLedger) *BalanceCoordinator {
	return &BalanceCoordinator{ledger: l}
}

// PlanForStatus returns the balance steps of a status transition
func (c *BalanceCoordinator) PlanForStatus(o *order.Order, from, to order.Status) []reconciliation.BalanceStep {
	if !o.HasCustomer() {
		return nil
	}
	delta := reconciliation.BalanceDeltaForStatus(o.Total, o.PaymentMethod, from, to)
	return stepFor(*o.CustomerID, delta, fmt.Sprintf("Order %s status %s -> %s", label(o), from, to))
}

// PlanForPaymentMethod returns the balance steps of a payment-method change
func (c *BalanceCoordinator) PlanForPaymentMethod(o *order.Order, from, to order.PaymentMethod) []reconciliation.BalanceStep {
	if !o.HasCustomer() {
		return nil
	}
	delta := reconciliation.BalanceDeltaForPaymentMethod(o.Total, o.Status, from, to)
	return stepFor(*o.CustomerID, delta, fmt.Sprintf("Order %s payment %s -> %s", label(o), from, to))
}

// PlanForCustomer returns the steps that move an order's receivable from
// its current customer to another one (or off the books when to is nil).
func (c *BalanceCoordinator) PlanForCustomer(o *order.Order, to *int64) []reconciliation.BalanceStep {
	amount := reconciliation.ReceivableOf(o)
	if amount.IsZero() {
		return nil
	}
	var steps []reconciliation.BalanceStep
	if o.HasCustomer() {
		steps = append(steps, stepFor(*o.CustomerID, amount.Neg(),
			fmt.Sprintf("Order %s reassigned away from customer", label(o)))...)
	}
	if to != nil && *to > 0 {
		steps = append(steps, stepFor(*to, amount,
			fmt.Sprintf("Order %s reassigned to customer", label(o)))...)
	}
	return steps
}

// ApplyStep applies one planned balance step. index distinguishes the
// steps of one intent in the idempotency key.
func (c *BalanceCoordinator) ApplyStep(ctx context.Context, ref order.Ref, step reconciliation.BalanceStep, intentID uuid.UUID, index int) (*receivable.BalanceTransaction, error) {
	var opts []ledger.Option
	if intentID != uuid.Nil {
		opts = append(opts,
			ledger.WithIntent(intentID),
			ledger.WithIdempotencyKey(fmt.Sprintf("%s:balance:%d", intentID, index)))
	}
	return c.ledger.ApplyDelta(ctx, step.CustomerID, step.Amount, step.Type, step.Description, ref, opts...)
}

// ReconcileBalance applies the intent's remaining balance steps in order,
// advancing the intent after each one. It stops at the first failure and
// returns the failed step with the error. The steps come from PlanForStatus,
// PlanForPaymentMethod or PlanForCustomer.
func (c *BalanceCoordinator) ReconcileBalance(ctx context.Context, intent *reconciliation.Intent) ([]*receivable.BalanceTransaction, *reconciliation.BalanceStep, error) {
	var txs []*receivable.BalanceTransaction
	for _, step := range intent.PendingBalanceSteps() {
		tx, err := c.ApplyStep(ctx, intent.OrderRef, step, intent.ID, intent.BalanceApplied)
		if err != nil {
			failed := step
			return txs, &failed, err
		}
		txs = append(txs, tx)
		intent.MarkBalanceStepApplied()
	}
	return txs, nil, nil
}

// NetDelta sums the amounts of steps
func NetDelta(steps []reconciliation.BalanceStep) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range steps {
		sum = sum.Add(s.Amount)
	}
	return sum
}

func stepFor(customerID int64, delta decimal.Decimal, desc string) []reconciliation.BalanceStep {
	if delta.IsZero() {
		return nil
	}
	return []reconciliation.BalanceStep{{
		CustomerID:  customerID,
		Amount:      delta,
		Type:        receivable.TypeForDelta(delta),
		Description: desc,
	}}
}

func label(o *order.Order) string {
	if o.OrderNumber != "" {
		return o.OrderNumber
	}
	return fmt.Sprintf("#%d", o.ID)
}
