package stock

import (
	"context"
	"fmt"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reason describes why a stock quantity changed
type Reason string

const (
	// ReasonOrderCancelled restocks the lines of a completed order that was cancelled
	ReasonOrderCancelled Reason = "order_cancelled"
	// ReasonOrderReinstated re-deducts the lines of a cancelled order that was completed again
	ReasonOrderReinstated Reason = "order_reinstated"
	// ReasonReturn restocks items returned against an order
	ReasonReturn Reason = "return"
	// ReasonCompensation reverses a delta applied by an aborted transition
	ReasonCompensation Reason = "compensation"
	// ReasonManual covers operator corrections
	ReasonManual Reason = "manual"
)

// String returns the string representation of Reason
func (r Reason) String() string {
	return string(r)
}

// IsValid returns true if the reason is known
func (r Reason) IsValid() bool {
	switch r {
	case ReasonOrderCancelled, ReasonOrderReinstated, ReasonReturn, ReasonCompensation, ReasonManual:
		return true
	}
	return false
}

// Movement is an immutable record of one signed stock change.
// Corrections are made with new movements, never by editing old ones.
type Movement struct {
	shared.BaseEntity
	ProductID     int64
	QuantityDelta decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Reason        Reason
	Notes         string
	OrderRef      order.Ref
	// IntentID links the movement to the reconciliation intent that caused it
	IntentID *uuid.UUID
}

// NewMovement creates a movement record
func NewMovement(productID int64, delta, before, after decimal.Decimal, reason Reason, ref order.Ref) (*Movement, error) {
	if productID <= 0 {
		return nil, shared.NewValidationError("INVALID_PRODUCT", "product id must be positive")
	}
	if delta.IsZero() {
		return nil, shared.NewValidationError("INVALID_QUANTITY", "movement quantity cannot be zero")
	}
	if !reason.IsValid() {
		return nil, shared.NewValidationError("INVALID_REASON", fmt.Sprintf("unknown movement reason %q", reason))
	}
	if !before.Add(delta).Equal(after) {
		return nil, shared.NewValidationError("INVALID_BALANCE",
			fmt.Sprintf("balance after %s does not equal %s %+v", after, before, delta))
	}
	return &Movement{
		BaseEntity:    shared.NewBaseEntity(),
		ProductID:     productID,
		QuantityDelta: delta,
		BalanceBefore: before,
		BalanceAfter:  after,
		Reason:        reason,
		OrderRef:      ref,
	}, nil
}

// WithNotes sets free-form notes
func (m *Movement) WithNotes(notes string) *Movement {
	m.Notes = notes
	return m
}

// WithIntent links the movement to a reconciliation intent
func (m *Movement) WithIntent(id uuid.UUID) *Movement {
	m.IntentID = &id
	return m
}

// IsIncrease reports whether the movement added stock
func (m *Movement) IsIncrease() bool {
	return m.QuantityDelta.IsPositive()
}

// MovementRepository is the append-only movement journal
type MovementRepository interface {
	// Save appends a movement
	Save(ctx context.Context, m *Movement) error
	// FindByProduct lists movements of a product, newest first
	FindByProduct(ctx context.Context, productID int64, page shared.Page) ([]*Movement, int64, error)
	// FindByIntent lists movements recorded for a reconciliation intent
	FindByIntent(ctx context.Context, intentID uuid.UUID) ([]*Movement, error)
	// FindByOrder lists movements recorded against an order
	FindByOrder(ctx context.Context, orderID int64) ([]*Movement, error)
}
