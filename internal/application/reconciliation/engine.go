package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"go.uber.org/zap"
)

// StatusChange is a request to move an order to another status
type StatusChange struct {
	OrderID int64
	To      order.Status
	// Confirm must be true to commit a transition that requires confirmation
	Confirm bool
	// ExpectedVersion of 0 skips the optimistic concurrency check
	ExpectedVersion int
}

// PaymentMethodChange is a request to change how an order is settled
type PaymentMethodChange struct {
	OrderID         int64
	To              order.PaymentMethod
	ExpectedVersion int
}

// CustomerChange is a request to reassign an order to another customer
type CustomerChange struct {
	OrderID         int64
	To              *int64
	ExpectedVersion int
}

// Edit changes status and/or payment method in one request. When both
// change, only the status-driven balance delta is applied; the new payment
// method is still written to the order.
type Edit struct {
	OrderID         int64
	Status          *order.Status
	PaymentMethod   *order.PaymentMethod
	Confirm         bool
	ExpectedVersion int
}

// Engine runs order edits as short sagas over the stock and balance ledgers:
// validate, check the guard, record intent, reconcile stock, mark the guard,
// reconcile balance, then update the order.
type Engine struct {
	orders    order.Service
	guard     *Guard
	stock     *StockCoordinator
	balance   *BalanceCoordinator
	returns   *ReturnProcessor
	intents   reconciliation.IntentRepository
	locker    OrderLocker
	publisher shared.EventPublisher
	metrics   Metrics
	logger    *zap.Logger

	maxAttempts int
	lockWait    time.Duration
}

// NewEngine creates a new Engine
func NewEngine(
	orders order.Service,
	guard *Guard,
	stockCoordinator *StockCoordinator,
	balanceCoordinator *BalanceCoordinator,
	returns *ReturnProcessor,
	intents reconciliation.IntentRepository,
	locker OrderLocker,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		orders:  orders,
		guard:   guard,
		stock:   stockCoordinator,
		balance: balanceCoordinator,
		returns: returns,
		intents: intents,
		locker:  locker,
		metrics: noopMetrics{},
		logger:  logger,

		maxAttempts: reconciliation.DefaultMaxAttempts,
	}
}

// SetMaxAttempts bounds how often a partial failure is retried before the
// intent is marked dead
func (e *Engine) SetMaxAttempts(n int) {
	if n > 0 {
		e.maxAttempts = n
	}
}

// SetLockWait bounds how long an edit waits for the order lock; zero waits
// as long as the request context allows
func (e *Engine) SetLockWait(d time.Duration) {
	e.lockWait = d
}

// SetEventPublisher sets the publisher for reconciliation events
func (e *Engine) SetEventPublisher(publisher shared.EventPublisher) {
	e.publisher = publisher
}

// SetMetrics sets the metrics sink
func (e *Engine) SetMetrics(m Metrics) {
	if m != nil {
		e.metrics = m
	}
}

// UpdateStatus validates, reconciles and commits a status change
func (e *Engine) UpdateStatus(ctx context.Context, req StatusChange) (*Result, error) {
	return e.Edit(ctx, Edit{
		OrderID:         req.OrderID,
		Status:          &req.To,
		Confirm:         req.Confirm,
		ExpectedVersion: req.ExpectedVersion,
	})
}

// UpdatePaymentMethod validates, reconciles and commits a payment-method change
func (e *Engine) UpdatePaymentMethod(ctx context.Context, req PaymentMethodChange) (*Result, error) {
	return e.Edit(ctx, Edit{
		OrderID:         req.OrderID,
		PaymentMethod:   &req.To,
		ExpectedVersion: req.ExpectedVersion,
	})
}

// Edit applies a status and/or payment-method change
func (e *Engine) Edit(ctx context.Context, req Edit) (*Result, error) {
	var result *Result
	err := e.withOrder(ctx, req.OrderID, req.ExpectedVersion, func(o *order.Order) error {
		var err error
		result, err = e.edit(ctx, o, req)
		return err
	})
	return result, err
}

func (e *Engine) edit(ctx context.Context, o *order.Order, req Edit) (*Result, error) {
	if err := order.EnsureEditable(o); err != nil {
		return nil, err
	}
	statusChanges := req.Status != nil && *req.Status != o.Status
	methodChanges := req.PaymentMethod != nil && *req.PaymentMethod != o.PaymentMethod

	if req.Status != nil {
		if err := validateStatus(o, *req.Status); err != nil {
			return nil, err
		}
	}
	if req.PaymentMethod != nil {
		if err := order.ValidatePaymentMethod(*req.PaymentMethod); err != nil {
			return nil, err
		}
	}

	switch {
	case !statusChanges && !methodChanges:
		key := reconciliation.StatusKey(o.ID, o.Status, o.Status)
		return &Result{Outcome: OutcomeNoChange, Transition: key, Order: o}, nil

	case statusChanges:
		to := *req.Status
		key := reconciliation.StatusKey(o.ID, o.Status, to)
		if order.RequiresConfirmation(to) && !req.Confirm {
			return &Result{Outcome: OutcomeConfirmationRequired, Transition: key, Order: o}, nil
		}
		result, err := e.ReconcileStatusTransition(ctx, o, o.Status, to)
		if err != nil {
			return nil, err
		}
		if methodChanges {
			// The method edge is settled by the status delta; recording it
			// retires the order's earlier payment-method record.
			methodKey := reconciliation.PaymentMethodKey(o.ID, o.PaymentMethod, *req.PaymentMethod)
			if err := e.guard.MarkApplied(ctx, methodKey, result.IntentID); err != nil {
				e.logger.Error("Failed to mark payment method transition applied",
					zap.String("transition", methodKey.String()), zap.Error(err))
			}
		}
		updated, err := e.orders.UpdateStatus(ctx, o.ID, to, o.Version)
		if err != nil {
			return nil, e.commitFailed(result, err)
		}
		if methodChanges {
			if updated, err = e.orders.UpdatePaymentMethod(ctx, o.ID, *req.PaymentMethod, updated.Version); err != nil {
				return nil, e.commitFailed(result, err)
			}
		}
		result.Order = updated
		return result, nil

	default:
		to := *req.PaymentMethod
		result, err := e.reconcilePaymentMethod(ctx, o, o.PaymentMethod, to)
		if err != nil {
			return nil, err
		}
		updated, err := e.orders.UpdatePaymentMethod(ctx, o.ID, to, o.Version)
		if err != nil {
			return nil, e.commitFailed(result, err)
		}
		result.Order = updated
		return result, nil
	}
}

// UpdateCustomer reassigns an order. When the order carries a receivable it
// moves from the old customer to the new one.
func (e *Engine) UpdateCustomer(ctx context.Context, req CustomerChange) (*Result, error) {
	var result *Result
	err := e.withOrder(ctx, req.OrderID, req.ExpectedVersion, func(o *order.Order) error {
		if err := order.EnsureEditable(o); err != nil {
			return err
		}
		key := reconciliation.CustomerKey(o.ID, o.CustomerID, req.To)
		if key.From == key.To {
			result = &Result{Outcome: OutcomeNoChange, Transition: key, Order: o}
			return nil
		}
		steps := e.balance.PlanForCustomer(o, req.To)
		r, err := e.runSaga(ctx, key, o.Ref(), nil, steps)
		if err != nil {
			return err
		}
		updated, err := e.orders.UpdateCustomer(ctx, o.ID, req.To, o.Version)
		if err != nil {
			return e.commitFailed(r, err)
		}
		r.Order = updated
		result = r
		return nil
	})
	return result, err
}

// ProcessReturn runs the return processor under the order's lock so it
// never overlaps a status edit of the same order.
func (e *Engine) ProcessReturn(ctx context.Context, orderID int64, returns []ItemReturn, notes string) (*ReturnResult, error) {
	var result *ReturnResult
	err := e.withOrder(ctx, orderID, 0, func(o *order.Order) error {
		var err error
		result, err = e.returns.ProcessReturn(ctx, o, returns, notes)
		return err
	})
	return result, err
}

// ReconcileStatusTransition applies the stock and balance effects of moving
// o from one status to another, at most once per transition. It does not
// validate the transition or update the order store.
func (e *Engine) ReconcileStatusTransition(ctx context.Context, o *order.Order, from, to order.Status) (*Result, error) {
	key := reconciliation.StatusKey(o.ID, from, to)
	deltas := reconciliation.PlanStockDeltas(o.Items, from, to)
	steps := e.balance.PlanForStatus(o, from, to)
	return e.runSaga(ctx, key, o.Ref(), deltas, steps)
}

func (e *Engine) reconcilePaymentMethod(ctx context.Context, o *order.Order, from, to order.PaymentMethod) (*Result, error) {
	key := reconciliation.PaymentMethodKey(o.ID, from, to)
	steps := e.balance.PlanForPaymentMethod(o, from, to)
	return e.runSaga(ctx, key, o.Ref(), nil, steps)
}

// runSaga is the shared saga of every reconciled edit
func (e *Engine) runSaga(ctx context.Context, key reconciliation.TransitionKey, ref order.Ref, deltas []reconciliation.ProductDelta, steps []reconciliation.BalanceStep) (*Result, error) {
	log := e.logger.With(zap.Int64("order_id", key.OrderID), zap.String("transition", key.String()))

	applied, err := e.guard.AlreadyApplied(ctx, key)
	if err != nil {
		return nil, err
	}
	if applied {
		log.Info("Transition already reconciled, skipping ledgers")
		e.metrics.RecordTransition(ctx, string(key.Kind), string(OutcomeAlreadyApplied))
		return &Result{Outcome: OutcomeAlreadyApplied, Transition: key}, nil
	}

	result := &Result{
		Outcome:      OutcomeApplied,
		Transition:   key,
		StockDeltas:  deltas,
		BalanceDelta: NetDelta(steps),
	}

	if len(deltas) == 0 && len(steps) == 0 {
		if err := e.guard.MarkApplied(ctx, key, nil); err != nil {
			log.Warn("Failed to mark transition applied", zap.Error(err))
		}
		e.metrics.RecordTransition(ctx, string(key.Kind), string(result.Outcome))
		return result, nil
	}

	intent := reconciliation.NewIntent(key, ref, deltas, steps)
	intent.MaxAttempts = e.maxAttempts
	if err := e.intents.Save(ctx, intent); err != nil {
		return nil, fmt.Errorf("record intent for %s: %w", key, err)
	}
	result.IntentID = &intent.ID
	log = log.With(zap.String("intent_id", intent.ID.String()))

	movements, err := e.stock.ReconcileStock(ctx, intent)
	if err != nil {
		if shared.KindOf(err) == shared.KindState {
			intent.MarkNeedsReview(err.Error())
		} else {
			intent.MarkAborted(err.Error())
		}
		e.updateIntent(ctx, intent, log)
		log.Warn("Stock reconciliation failed, transition aborted", zap.Error(err))
		e.metrics.RecordTransition(ctx, string(key.Kind), "aborted")
		return nil, err
	}
	result.Movements = movements
	_ = intent.MarkStockApplied()

	// The guard is marked as soon as stock is committed; a balance failure
	// is retried through the intent, never by re-running the transition.
	if err := e.guard.MarkApplied(ctx, key, &intent.ID); err != nil {
		log.Error("Failed to mark transition applied", zap.Error(err))
	}

	txs, failed, err := e.balance.ReconcileBalance(ctx, intent)
	result.Transactions = txs
	if err != nil {
		intent.MarkPartialFailure(err.Error())
		e.updateIntent(ctx, intent, log)

		result.Outcome = OutcomePartialFailure
		result.Failure = &PartialFailureError{
			IntentID:      intent.ID,
			OrderID:       key.OrderID,
			CustomerID:    failed.CustomerID,
			IntendedDelta: failed.Amount,
			Cause:         err,
		}
		log.Error("Balance reconciliation failed after stock was applied",
			zap.Int64("customer_id", failed.CustomerID),
			zap.String("intended_delta", failed.Amount.String()),
			zap.Error(err))
		e.metrics.RecordPartialFailure(ctx, string(key.Kind))
		e.metrics.RecordTransition(ctx, string(key.Kind), string(result.Outcome))
		e.publish(ctx, log, reconciliation.NewPartialFailureDetected(intent, *failed, err))
		return result, nil
	}

	intent.MarkCompleted()
	e.updateIntent(ctx, intent, log)
	e.metrics.RecordTransition(ctx, string(key.Kind), string(result.Outcome))
	e.publish(ctx, log, reconciliation.NewTransitionReconciled(key, deltas, result.BalanceDelta))
	log.Info("Transition reconciled",
		zap.Int("stock_movements", len(movements)),
		zap.String("balance_delta", result.BalanceDelta.String()))
	return result, nil
}

// TransitionHistory returns the guard records of an order
func (e *Engine) TransitionHistory(ctx context.Context, orderID int64) ([]*reconciliation.TransitionRecord, error) {
	return e.guard.History(ctx, orderID)
}

// Adjustments returns the committed returns of an order
func (e *Engine) Adjustments(ctx context.Context, orderID int64) ([]*reconciliation.AdjustmentRecord, error) {
	return e.returns.Adjustments(ctx, orderID)
}

// withOrder locks the order, loads it and checks the expected version
func (e *Engine) withOrder(ctx context.Context, orderID int64, expectedVersion int, fn func(o *order.Order) error) error {
	if orderID <= 0 {
		return shared.NewValidationError("INVALID_ORDER", "order id must be positive")
	}
	unlock, err := e.lockOrder(ctx, orderID)
	if err != nil {
		return err
	}
	defer unlock()

	o, err := e.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := o.Validate(); err != nil {
		return err
	}
	if expectedVersion > 0 && o.Version != expectedVersion {
		return shared.ErrConcurrencyConflict.
			WithDetail("order_id", orderID).
			WithDetail("expected_version", expectedVersion).
			WithDetail("current_version", o.Version)
	}
	return fn(o)
}

// commitFailed reports an order-store failure after the ledgers were
// reconciled. The intent stays completed and the guard stays marked, so
// retrying the same edit does not touch the ledgers again.
func (e *Engine) commitFailed(result *Result, err error) error {
	e.logger.Error("Ledgers reconciled but order update failed",
		zap.String("transition", result.Transition.String()),
		zap.Error(err))
	return fmt.Errorf("update order %d after reconciling %s: %w", result.Transition.OrderID, result.Transition, err)
}

func (e *Engine) updateIntent(ctx context.Context, intent *reconciliation.Intent, log *zap.Logger) {
	if err := e.intents.Update(ctx, intent); err != nil {
		log.Error("Failed to update intent", zap.String("status", string(intent.Status)), zap.Error(err))
	}
}

func (e *Engine) publish(ctx context.Context, log *zap.Logger, events ...shared.DomainEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, events...); err != nil {
		log.Warn("Failed to publish reconciliation event", zap.Error(err))
	}
}

func validateStatus(o *order.Order, to order.Status) error {
	if to == o.Status {
		if !to.IsValid() {
			return order.ValidateStatusTransition(o.Status, to)
		}
		return nil
	}
	return order.ValidateStatusTransition(o.Status, to)
}

// IsAlreadyApplied reports whether err says the transition was already reconciled
func IsAlreadyApplied(err error) bool {
	return errors.Is(err, shared.ErrAlreadyApplied)
}

// lockOrder takes the order's lock, waiting at most lockWait
func (e *Engine) lockOrder(ctx context.Context, orderID int64) (func(), error) {
	if e.lockWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.lockWait)
		defer cancel()
	}
	return e.locker.Lock(ctx, orderID)
}
