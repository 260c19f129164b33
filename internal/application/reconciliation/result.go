package reconciliation

import (
	"fmt"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/receivable"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Outcome is how an edit ended when it did not fail outright
type Outcome string

const (
	// OutcomeApplied means every ledger effect was applied
	OutcomeApplied Outcome = "applied"
	// OutcomeAlreadyApplied means the transition's effects were applied earlier
	OutcomeAlreadyApplied Outcome = "already_applied"
	// OutcomeNoChange means the edit does not change anything
	OutcomeNoChange Outcome = "no_change"
	// OutcomeConfirmationRequired means the caller must confirm before commit
	OutcomeConfirmationRequired Outcome = "confirmation_required"
	// OutcomePartialFailure means stock was reconciled but the balance step failed
	OutcomePartialFailure Outcome = "partial_failure"
)

// PartialFailureError describes a committed stock step whose balance step
// failed. It carries what an operator or the reconciliation job needs to
// finish the work.
type PartialFailureError struct {
	IntentID      uuid.UUID       `json:"intent_id"`
	OrderID       int64           `json:"order_id"`
	CustomerID    int64           `json:"customer_id"`
	IntendedDelta decimal.Decimal `json:"intended_delta"`
	Cause         error           `json:"-"`
}

// Error implements the error interface
func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("order %d: balance delta %s for customer %d not applied: %v",
		e.OrderID, e.IntendedDelta.StringFixed(order.MoneyPrecision), e.CustomerID, e.Cause)
}

// Unwrap returns the balance step's error
func (e *PartialFailureError) Unwrap() error {
	return e.Cause
}

// DomainError renders the failure in the shared error form
func (e *PartialFailureError) DomainError() *shared.DomainError {
	return (&shared.DomainError{
		Code:      "PARTIAL_FAILURE",
		Message:   "stock reconciled but customer balance update failed",
		Kind:      shared.KindPartialFailure,
		Retryable: true,
	}).
		WithDetail("intent_id", e.IntentID.String()).
		WithDetail("order_id", e.OrderID).
		WithDetail("customer_id", e.CustomerID).
		WithDetail("intended_delta", e.IntendedDelta.String()).
		WithCause(e.Cause)
}

// Result is the explicit outcome of an edit. A Result is returned together
// with a nil error for every outcome, including partial failure.
type Result struct {
	Outcome      Outcome                          `json:"outcome"`
	Transition   reconciliation.TransitionKey     `json:"transition"`
	IntentID     *uuid.UUID                       `json:"intent_id,omitempty"`
	Order        *order.Order                     `json:"order,omitempty"`
	Movements    []*stock.Movement                `json:"-"`
	Transactions []*receivable.BalanceTransaction `json:"-"`
	StockDeltas  []reconciliation.ProductDelta    `json:"stock_deltas,omitempty"`
	BalanceDelta decimal.Decimal                  `json:"balance_delta"`
	Failure      *PartialFailureError             `json:"failure,omitempty"`
}

// Err returns the non-fatal condition of the result, if any: a
// PartialFailureError for partial failures and an ALREADY_APPLIED
// conflict error for repeated transitions.
func (r *Result) Err() error {
	switch r.Outcome {
	case OutcomePartialFailure:
		if r.Failure != nil {
			return r.Failure
		}
	case OutcomeAlreadyApplied:
		return shared.ErrAlreadyApplied.WithDetail("transition", r.Transition.String())
	}
	return nil
}

// IsPartialFailure reports whether the balance step needs follow-up
func (r *Result) IsPartialFailure() bool {
	return r.Outcome == OutcomePartialFailure
}

// ReturnResult is the outcome of a processed return
type ReturnResult struct {
	AdjustmentID uuid.UUID                     `json:"adjustment_id"`
	RefundAmount decimal.Decimal               `json:"refund_amount"`
	Restocked    bool                          `json:"restocked"`
	Lines        []reconciliation.ReturnedLine `json:"lines"`
	Order        *order.Order                  `json:"order,omitempty"`
}
