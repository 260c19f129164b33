package reconciliation

import (
	"context"

	"github.com/erp/order-reconciler/internal/application/ledger"
	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/receivable"
	"github.com/erp/order-reconciler/internal/domain/stock"
	"github.com/shopspring/decimal"
)

// StockLedger is the part of the stock ledger client the coordinators use
type StockLedger interface {
	ValidateAvailability(ctx context.Context, productID int64, requested decimal.Decimal) (*ledger.Availability, error)
	ApplyDelta(ctx context.Context, productID int64, quantity decimal.Decimal, reason stock.Reason, ref order.Ref, opts ...ledger.Option) (*stock.Movement, error)
	RecordMovement(ctx context.Context, productID int64, quantity decimal.Decimal, reason stock.Reason, ref order.Ref, opts ...ledger.Option) (*stock.Movement, error)
}

// BalanceLedger is the part of the balance ledger client the coordinators use
type BalanceLedger interface {
	ApplyDelta(ctx context.Context, customerID int64, amount decimal.Decimal, txType receivable.TransactionType, description string, ref order.Ref, opts ...ledger.Option) (*receivable.BalanceTransaction, error)
}

// OrderLocker serializes edits and returns per order id. The returned
// unlock func must be called exactly once.
type OrderLocker interface {
	Lock(ctx context.Context, orderID int64) (unlock func(), err error)
}

// Metrics receives reconciliation counters. A nil Metrics is allowed.
type Metrics interface {
	RecordTransition(ctx context.Context, kind string, outcome string)
	RecordPartialFailure(ctx context.Context, kind string)
	RecordReturn(ctx context.Context, refund decimal.Decimal)
	RecordIntentDead(ctx context.Context)
}

type noopMetrics struct{}

func (noopMetrics) RecordTransition(context.Context, string, string) {}
func (noopMetrics) RecordPartialFailure(context.Context, string)     {}
func (noopMetrics) RecordReturn(context.Context, decimal.Decimal)    {}
func (noopMetrics) RecordIntentDead(context.Context)                 {}

var (
	_ StockLedger   = (*ledger.StockLedger)(nil)
	_ BalanceLedger = (*ledger.BalanceLedger)(nil)
)
