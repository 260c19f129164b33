package reconciliation

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/google/uuid"
)

// Guard prevents a transition's ledger side effects from being applied twice.
//
// Records are keyed by (order, kind, from, to). Marking a transition
// supersedes the order's earlier records of the same kind, so a legitimate
// cycle such as completed -> cancelled -> completed -> cancelled reconciles
// every edge, while a retry of the latest edge is a no-op.
type Guard struct {
	store reconciliation.TransitionStore
}

// NewGuard creates a new Guard
func NewGuard(store reconciliation.TransitionStore) *Guard {
	return &Guard{store: store}
}

// AlreadyApplied reports whether the transition's effects are already applied
func (g *Guard) AlreadyApplied(ctx context.Context, key reconciliation.TransitionKey) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	rec, err := g.store.FindActive(ctx, key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("find transition %s: %w", key, err)
	}
	return rec.IsActive(), nil
}

// MarkApplied records that the transition's effects were applied
func (g *Guard) MarkApplied(ctx context.Context, key reconciliation.TransitionKey, intentID *uuid.UUID) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := g.store.MarkApplied(ctx, reconciliation.NewTransitionRecord(key, intentID)); err != nil {
		return fmt.Errorf("mark transition %s: %w", key, err)
	}
	return nil
}

// StatusAlreadyApplied is AlreadyApplied for a status transition
func (g *Guard) StatusAlreadyApplied(ctx context.Context, orderID int64, from, to order.Status) (bool, error) {
	return g.AlreadyApplied(ctx, reconciliation.StatusKey(orderID, from, to))
}

// History returns every transition record of an order, oldest first
func (g *Guard) History(ctx context.Context, orderID int64) ([]*reconciliation.TransitionRecord, error) {
	return g.store.ListByOrder(ctx, orderID)
}
