package reconciliation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/google/uuid"
)

// TransitionKind distinguishes the kinds of order edits that reconcile ledgers
type TransitionKind string

const (
	KindStatus        TransitionKind = "status"
	KindPaymentMethod TransitionKind = "payment_method"
	KindCustomer      TransitionKind = "customer"
)

// IsValid returns true if the kind is known
func (k TransitionKind) IsValid() bool {
	switch k {
	case KindStatus, KindPaymentMethod, KindCustomer:
		return true
	}
	return false
}

// TransitionKey identifies one logical transition of one order
type TransitionKey struct {
	OrderID int64          `json:"order_id"`
	Kind    TransitionKind `json:"kind"`
	From    string         `json:"from"`
	To      string         `json:"to"`
}

// StatusKey builds the key of a status transition
func StatusKey(orderID int64, from, to order.Status) TransitionKey {
	return TransitionKey{OrderID: orderID, Kind: KindStatus, From: string(from), To: string(to)}
}

// PaymentMethodKey builds the key of a payment-method transition
func PaymentMethodKey(orderID int64, from, to order.PaymentMethod) TransitionKey {
	return TransitionKey{OrderID: orderID, Kind: KindPaymentMethod, From: string(from), To: string(to)}
}

// CustomerKey builds the key of a customer reassignment
func CustomerKey(orderID int64, from, to *int64) TransitionKey {
	return TransitionKey{OrderID: orderID, Kind: KindCustomer, From: customerString(from), To: customerString(to)}
}

func customerString(id *int64) string {
	if id == nil || *id <= 0 {
		return "none"
	}
	return strconv.FormatInt(*id, 10)
}

// String renders the key, e.g. "9:status:completed->cancelled"
func (k TransitionKey) String() string {
	return fmt.Sprintf("%d:%s:%s->%s", k.OrderID, k.Kind, k.From, k.To)
}

// Validate checks the key is complete
func (k TransitionKey) Validate() error {
	if k.OrderID <= 0 {
		return shared.NewValidationError("INVALID_ORDER", "order id must be positive")
	}
	if !k.Kind.IsValid() {
		return shared.NewValidationError("INVALID_TRANSITION_KIND", fmt.Sprintf("unknown transition kind %q", k.Kind))
	}
	if k.From == "" || k.To == "" {
		return shared.NewValidationError("INVALID_TRANSITION", "transition endpoints are required")
	}
	return nil
}

// TransitionRecord remembers that a transition's ledger side effects were applied.
// A record stays active until a later transition of the same order and kind
// supersedes it; only active records block re-application.
type TransitionRecord struct {
	ID           uuid.UUID     `json:"id"`
	Key          TransitionKey `json:"key"`
	Applied      bool          `json:"applied"`
	AppliedAt    time.Time     `json:"applied_at"`
	SupersededAt *time.Time    `json:"superseded_at,omitempty"`
	IntentID     *uuid.UUID    `json:"intent_id,omitempty"`
}

// NewTransitionRecord creates an applied record for key
func NewTransitionRecord(key TransitionKey, intentID *uuid.UUID) *TransitionRecord {
	return &TransitionRecord{
		ID:        uuid.New(),
		Key:       key,
		Applied:   true,
		AppliedAt: time.Now(),
		IntentID:  intentID,
	}
}

// IsActive reports whether the record still blocks re-application
func (r *TransitionRecord) IsActive() bool {
	return r.Applied && r.SupersededAt == nil
}

// Supersede deactivates the record
func (r *TransitionRecord) Supersede(at time.Time) {
	if r.SupersededAt == nil {
		r.SupersededAt = &at
	}
}

// TransitionStore persists transition records
type TransitionStore interface {
	// FindActive returns the active record for key, or shared.ErrNotFound
	FindActive(ctx context.Context, key TransitionKey) (*TransitionRecord, error)
	// MarkApplied stores rec and supersedes every other active record of
	// the same order and kind in one step
	MarkApplied(ctx context.Context, rec *TransitionRecord) error
	// ListByOrder returns all records of an order, oldest first
	ListByOrder(ctx context.Context, orderID int64) ([]*TransitionRecord, error)
}
