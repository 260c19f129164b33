package reconciliation

import (
	"context"
	"fmt"

	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ListIntents lists reconciliation intents, optionally filtered by status
func (e *Engine) ListIntents(ctx context.Context, status reconciliation.IntentStatus, page shared.Page) ([]*reconciliation.Intent, int64, error) {
	if status != "" && !status.IsValid() {
		return nil, 0, shared.NewValidationError("INVALID_INTENT_STATUS", fmt.Sprintf("unknown intent status %q", status))
	}
	return e.intents.FindByStatus(ctx, status, page.Normalize())
}

// GetIntent loads one intent
func (e *Engine) GetIntent(ctx context.Context, id uuid.UUID) (*reconciliation.Intent, error) {
	return e.intents.FindByID(ctx, id)
}

// IntentCounts returns the number of intents per status
func (e *Engine) IntentCounts(ctx context.Context) (map[reconciliation.IntentStatus]int64, error) {
	return e.intents.CountByStatus(ctx)
}

// RetryIntent is the operator path for finishing an intent: a dead intent
// is put back in the retry queue and its pending balance steps are
// attempted right away. Only intents whose stock step committed can be
// retried; a needs-review intent left stock in an unknown state and is
// settled by hand.
func (e *Engine) RetryIntent(ctx context.Context, id uuid.UUID) (*Result, error) {
	intent, err := e.intents.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch intent.Status {
	case reconciliation.IntentDead:
		if err := intent.ResetForRetry(); err != nil {
			return nil, shared.NewStateError("INTENT_NOT_RETRYABLE", err.Error())
		}
	case reconciliation.IntentPartialFailure, reconciliation.IntentStockApplied:
	case reconciliation.IntentNeedsReview:
		return nil, shared.NewStateError("INTENT_NOT_RETRYABLE",
			fmt.Sprintf("intent %s did not commit its stock step and must be settled by hand", intent.ID)).
			WithDetail("status", string(intent.Status)).
			WithDetail("last_error", intent.LastError)
	default:
		return nil, shared.NewStateError("INTENT_NOT_RETRYABLE",
			fmt.Sprintf("intent %s is %s and cannot be retried", intent.ID, intent.Status)).
			WithDetail("status", string(intent.Status))
	}
	return e.ResumeIntent(ctx, intent)
}

// ResumeIntent applies the remaining balance steps of an intent whose
// stock step is already committed. It holds the order's lock while doing so.
func (e *Engine) ResumeIntent(ctx context.Context, intent *reconciliation.Intent) (*Result, error) {
	unlock, err := e.lockOrder(ctx, intent.OrderRef.OrderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	log := e.logger.With(
		zap.Int64("order_id", intent.OrderRef.OrderID),
		zap.String("intent_id", intent.ID.String()),
		zap.String("transition", intent.Key.String()),
		zap.Int("attempt", intent.Attempts+1))

	id := intent.ID
	result := &Result{
		Outcome:      OutcomeApplied,
		Transition:   intent.Key,
		IntentID:     &id,
		StockDeltas:  intent.StockDeltas,
		BalanceDelta: NetDelta(intent.PendingBalanceSteps()),
	}

	txs, failed, err := e.balance.ReconcileBalance(ctx, intent)
	result.Transactions = txs
	if err != nil {
		intent.MarkPartialFailure(err.Error())
		e.updateIntent(ctx, intent, log)
		result.Outcome = OutcomePartialFailure
		result.Failure = &PartialFailureError{
			IntentID:      intent.ID,
			OrderID:       intent.OrderRef.OrderID,
			CustomerID:    failed.CustomerID,
			IntendedDelta: failed.Amount,
			Cause:         err,
		}
		if intent.IsDead() {
			log.Error("Intent exhausted its retries", zap.String("last_error", intent.LastError))
			e.metrics.RecordIntentDead(ctx)
			e.publish(ctx, log, reconciliation.NewIntentDeadEvent(intent))
		} else {
			log.Warn("Balance retry failed", zap.Error(err))
		}
		return result, nil
	}

	intent.MarkCompleted()
	e.updateIntent(ctx, intent, log)
	e.publish(ctx, log, reconciliation.NewTransitionReconciled(intent.Key, intent.StockDeltas, NetDelta(intent.BalanceSteps)))
	log.Info("Intent completed")
	return result, nil
}
