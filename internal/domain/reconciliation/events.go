package reconciliation

import (
	"strconv"

	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type constants
const (
	EventTypePartialFailureDetected = "reconciliation.partial_failure"
	EventTypeTransitionReconciled   = "reconciliation.transition_applied"
	EventTypeReturnProcessed        = "reconciliation.return_processed"
	EventTypeIntentDead             = "reconciliation.intent_dead"
)

// AggregateTypeOrder is the aggregate type of every reconciliation event
const AggregateTypeOrder = "Order"

func orderKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// PartialFailureDetected is raised when stock was reconciled but the
// balance step failed. It carries what is needed to finish by hand.
type PartialFailureDetected struct {
	shared.BaseDomainEvent
	IntentID      uuid.UUID       `json:"intent_id"`
	OrderID       int64           `json:"order_id"`
	OrderNumber   string          `json:"order_number,omitempty"`
	CustomerID    int64           `json:"customer_id"`
	Transition    string          `json:"transition"`
	IntendedDelta decimal.Decimal `json:"intended_delta"`
	Error         string          `json:"error"`
}

// NewPartialFailureDetected creates the event
func NewPartialFailureDetected(intent *Intent, step BalanceStep, cause error) *PartialFailureDetected {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &PartialFailureDetected{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePartialFailureDetected, AggregateTypeOrder, orderKey(intent.OrderRef.OrderID)),
		IntentID:        intent.ID,
		OrderID:         intent.OrderRef.OrderID,
		OrderNumber:     intent.OrderRef.OrderNumber,
		CustomerID:      step.CustomerID,
		Transition:      intent.Key.String(),
		IntendedDelta:   step.Amount,
		Error:           msg,
	}
}

// IntentDeadEvent is raised when automatic retries of an intent are exhausted
type IntentDeadEvent struct {
	shared.BaseDomainEvent
	IntentID   uuid.UUID `json:"intent_id"`
	OrderID    int64     `json:"order_id"`
	Transition string    `json:"transition"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error"`
}

// NewIntentDeadEvent creates the event
func NewIntentDeadEvent(intent *Intent) *IntentDeadEvent {
	return &IntentDeadEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeIntentDead, AggregateTypeOrder, orderKey(intent.OrderRef.OrderID)),
		IntentID:        intent.ID,
		OrderID:         intent.OrderRef.OrderID,
		Transition:      intent.Key.String(),
		Attempts:        intent.Attempts,
		Error:           intent.LastError,
	}
}

// TransitionReconciled is raised after a transition's ledger effects are applied
type TransitionReconciled struct {
	shared.BaseDomainEvent
	OrderID     int64           `json:"order_id"`
	Transition  string          `json:"transition"`
	StockDeltas []ProductDelta  `json:"stock_deltas,omitempty"`
	Balance     decimal.Decimal `json:"balance_delta"`
}

// NewTransitionReconciled creates the event
func NewTransitionReconciled(key TransitionKey, stock []ProductDelta, balance decimal.Decimal) *TransitionReconciled {
	return &TransitionReconciled{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransitionReconciled, AggregateTypeOrder, orderKey(key.OrderID)),
		OrderID:         key.OrderID,
		Transition:      key.String(),
		StockDeltas:     stock,
		Balance:         balance,
	}
}

// ReturnProcessed is raised after a return is committed
type ReturnProcessed struct {
	shared.BaseDomainEvent
	AdjustmentID uuid.UUID       `json:"adjustment_id"`
	OrderID      int64           `json:"order_id"`
	OrderNumber  string          `json:"order_number,omitempty"`
	Lines        []ReturnedLine  `json:"lines"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Restocked    bool            `json:"restocked"`
}

// NewReturnProcessed creates the event
func NewReturnProcessed(rec *AdjustmentRecord) *ReturnProcessed {
	return &ReturnProcessed{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReturnProcessed, AggregateTypeOrder, orderKey(rec.OrderRef.OrderID)),
		AdjustmentID:    rec.ID,
		OrderID:         rec.OrderRef.OrderID,
		OrderNumber:     rec.OrderRef.OrderNumber,
		Lines:           rec.Lines,
		RefundAmount:    rec.RefundAmount,
		Restocked:       rec.Restocked,
	}
}

// compile-time checks
var (
	_ shared.DomainEvent = (*PartialFailureDetected)(nil)
	_ shared.DomainEvent = (*IntentDeadEvent)(nil)
	_ shared.DomainEvent = (*TransitionReconciled)(nil)
	_ shared.DomainEvent = (*ReturnProcessed)(nil)
)
