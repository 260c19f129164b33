package ledger

import (
	"context"
	"fmt"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/receivable"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BalanceLedger applies signed changes to customer receivables through the
// Receivables Service and journals every applied transaction locally.
//
// ApplyDelta reads the latest balance before writing, but two concurrent
// calls for the same customer are not serialized here; callers hold the
// per-order lock and the Receivables Service is told which balance was read.
type BalanceLedger struct {
	receivables receivable.ReceivablesService
	journal     receivable.TransactionJournal
	logger      *zap.Logger
}

// NewBalanceLedger creates a new BalanceLedger
func NewBalanceLedger(receivables receivable.ReceivablesService, journal receivable.TransactionJournal, logger *zap.Logger) *BalanceLedger {
	return &BalanceLedger{
		receivables: receivables,
		journal:     journal,
		logger:      logger,
	}
}

// ApplyDelta changes a customer's balance by a signed amount
func (l *BalanceLedger) ApplyDelta(ctx context.Context, customerID int64, amount decimal.Decimal, txType receivable.TransactionType, description string, ref order.Ref, opts ...Option) (*receivable.BalanceTransaction, error) {
	if customerID <= 0 {
		return nil, shared.NewValidationError("INVALID_CUSTOMER", "customer id must be positive")
	}
	if amount.IsZero() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "balance delta cannot be zero")
	}
	if !txType.IsValid() {
		return nil, shared.NewValidationError("INVALID_TRANSACTION_TYPE", fmt.Sprintf("unknown transaction type %q", txType))
	}
	o := collect(opts)

	current, err := l.receivables.GetCustomerBalance(ctx, customerID)
	if err != nil {
		return nil, err
	}

	remote, err := l.receivables.ApplyBalanceDelta(ctx, receivable.DeltaRequest{
		CustomerID:      customerID,
		Amount:          amount,
		Type:            txType,
		Description:     description,
		OrderRef:        ref,
		IdempotencyKey:  o.idempotencyKey,
		ExpectedBalance: current.CurrentBalance,
	})
	if err != nil {
		return nil, err
	}

	if !remote.PreviousBalance.Equal(current.CurrentBalance) {
		l.logger.Warn("Customer balance changed between read and write",
			zap.Int64("customer_id", customerID),
			zap.String("read_balance", current.CurrentBalance.String()),
			zap.String("previous_balance", remote.PreviousBalance.String()))
	}

	tx := remote.ToDomain()
	if tx.CustomerID == 0 {
		tx.CustomerID = customerID
	}
	if tx.OrderRef.IsZero() {
		tx.WithOrderRef(ref)
	}
	if tx.Type == "" {
		tx.Type = txType
	}
	if tx.Description == "" {
		tx.WithDescription(description)
	}
	if o.intentID != nil {
		tx.WithIntent(*o.intentID)
	}

	// The remote change is committed; a lost journal row is logged, not returned.
	if err := l.journal.Save(ctx, tx); err != nil {
		l.logger.Error("Failed to journal balance transaction",
			zap.Int64("customer_id", customerID),
			zap.String("amount", amount.String()),
			zap.Int64("order_id", ref.OrderID),
			zap.Error(err))
	}
	return tx, nil
}

// GetBalance returns the customer's current balance
func (l *BalanceLedger) GetBalance(ctx context.Context, customerID int64) (*receivable.CustomerBalance, error) {
	return l.receivables.GetCustomerBalance(ctx, customerID)
}

// History returns the customer's transactions from the Receivables Service, newest first
func (l *BalanceLedger) History(ctx context.Context, customerID int64, page shared.Page) ([]*receivable.BalanceTransaction, error) {
	remote, err := l.receivables.GetHistory(ctx, customerID, page.Normalize())
	if err != nil {
		return nil, err
	}
	out := make([]*receivable.BalanceTransaction, len(remote))
	for i, r := range remote {
		out[i] = r.ToDomain()
	}
	return out, nil
}

// Journal returns the locally journaled transactions of a customer
func (l *BalanceLedger) Journal(ctx context.Context, customerID int64, page shared.Page) ([]*receivable.BalanceTransaction, int64, error) {
	return l.journal.FindByCustomer(ctx, customerID, page.Normalize())
}
