package order

import (
	"fmt"

	"github.com/erp/order-reconciler/internal/domain/shared"
)

// Error codes raised by the transition validator
const (
	CodeOrderCancelled     = "ORDER_CANCELLED"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeInvalidStatus      = "INVALID_STATUS"
	CodeInvalidPayment     = "INVALID_PAYMENT_METHOD"
	CodeConfirmationNeeded = "CONFIRMATION_REQUIRED"
)

// allowedTransitions is the status state machine. Cancelled has no outgoing edge.
var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusCompleted, StatusCancelled, StatusCredit},
	StatusCompleted: {StatusPending, StatusCancelled, StatusCredit},
	StatusCredit:    {StatusPending, StatusCompleted},
	StatusCancelled: {},
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range allowedTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// CanEdit reports whether any edit may be applied to the order
func CanEdit(o *Order) bool {
	return o != nil && !o.Status.IsTerminal()
}

// EnsureEditable returns a StateError when the order no longer accepts edits
func EnsureEditable(o *Order) error {
	if o == nil {
		return shared.NewValidationError("INVALID_ORDER", "order is required")
	}
	if !CanEdit(o) {
		return shared.NewStateError(CodeOrderCancelled,
			fmt.Sprintf("order %d is cancelled and cannot be edited", o.ID)).
			WithDetail("order_id", o.ID)
	}
	return nil
}

// ValidateStatusTransition checks a status change against the state machine.
// The same-status case is not a transition and is rejected here; callers
// detect it earlier and report it as a no-op.
func ValidateStatusTransition(from, to Status) error {
	if !from.IsValid() {
		return shared.NewValidationError(CodeInvalidStatus, fmt.Sprintf("unknown status %q", from))
	}
	if !to.IsValid() {
		return shared.NewValidationError(CodeInvalidStatus, fmt.Sprintf("unknown status %q", to))
	}
	if from.IsTerminal() {
		return shared.NewStateError(CodeOrderCancelled, "cancelled orders cannot change status").
			WithDetail("from", from).WithDetail("to", to)
	}
	if !from.CanTransitionTo(to) {
		return shared.NewStateError(CodeInvalidTransition,
			fmt.Sprintf("cannot change status from %s to %s", from, to)).
			WithDetail("from", from).WithDetail("to", to)
	}
	return nil
}

// ValidatePaymentMethod checks that the payment method is known
func ValidatePaymentMethod(m PaymentMethod) error {
	if !m.IsValid() {
		return shared.NewValidationError(CodeInvalidPayment, fmt.Sprintf("unknown payment method %q", m))
	}
	return nil
}

// RequiresConfirmation reports whether moving to the target status needs an
// explicit second confirmation from the caller before it is committed.
func RequiresConfirmation(to Status) bool {
	return to == StatusCancelled
}
