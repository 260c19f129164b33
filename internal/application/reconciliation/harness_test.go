package reconciliation

import (
	"testing"
	"time"

	"github.com/erp/order-reconciler/internal/application/ledger"
	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/infrastructure/cache"
	"github.com/erp/order-reconciler/internal/testutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type harness struct {
	inventory   *testutil.FakeInventory
	receivables *testutil.FakeReceivables
	orders      *testutil.FakeOrders
	intents     *testutil.IntentRepository
	movements   *testutil.MovementRepository
	journal     *testutil.TransactionJournal
	adjustments *testutil.AdjustmentRepository
	store       *cache.InMemoryTransitionStore
	publisher   *testutil.RecordingPublisher
	metrics     *testutil.RecordingMetrics
	engine      *Engine
	job         *Job
}

func newHarness(t *testing.T, orders ...*order.Order) *harness {
	t.Helper()
	logger := zap.NewNop()

	h := &harness{
		inventory:   testutil.NewFakeInventory(),
		receivables: testutil.NewFakeReceivables(),
		intents:     testutil.NewIntentRepository(),
		movements:   testutil.NewMovementRepository(),
		journal:     testutil.NewTransactionJournal(),
		adjustments: testutil.NewAdjustmentRepository(),
		store:       cache.NewInMemoryTransitionStore(0),
		publisher:   testutil.NewRecordingPublisher(),
		metrics:     testutil.NewRecordingMetrics(),
	}
	h.orders = testutil.NewFakeOrders(h.inventory, orders...)
	t.Cleanup(func() { _ = h.store.Close() })

	stockLedger := ledger.NewStockLedger(h.inventory, h.movements, logger)
	balanceLedger := ledger.NewBalanceLedger(h.receivables, h.journal, logger)

	returns := NewReturnProcessor(h.orders, stockLedger, h.adjustments, logger)
	returns.SetEventPublisher(h.publisher)
	returns.SetMetrics(h.metrics)

	h.engine = NewEngine(
		h.orders,
		NewGuard(h.store),
		NewStockCoordinator(stockLedger, logger),
		NewBalanceCoordinator(balanceLedger),
		returns,
		h.intents,
		cache.NewInMemoryOrderLocker(),
		logger,
	)
	h.engine.SetEventPublisher(h.publisher)
	h.engine.SetMetrics(h.metrics)

	h.job = NewJob(h.engine, h.intents, h.movements, h.journal, JobConfig{
		BatchSize:  10,
		Interval:   time.Hour,
		StaleAfter: time.Minute,
	}, logger)
	return h
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// riceOrder is order 9: three units of product 5 at 300, total 900
func riceOrder(status order.Status, method order.PaymentMethod, customerID *int64) *order.Order {
	return &order.Order{
		ID:            9,
		OrderNumber:   "ORD-0009",
		CustomerID:    customerID,
		Status:        status,
		PaymentMethod: method,
		Items: []order.Item{
			{ProductID: 5, ProductName: "Rice 5kg", Quantity: dec(3), UnitPrice: dec(300)},
		},
		Subtotal: dec(900),
		Total:    dec(900),
		Version:  1,
	}
}

// mixedOrder is order 11 with two products: 3 x product 5 and 2 x product 6
func mixedOrder(status order.Status, method order.PaymentMethod, customerID *int64) *order.Order {
	return &order.Order{
		ID:            11,
		OrderNumber:   "ORD-0011",
		CustomerID:    customerID,
		Status:        status,
		PaymentMethod: method,
		Items: []order.Item{
			{ProductID: 5, ProductName: "Rice 5kg", Quantity: dec(3), UnitPrice: dec(200)},
			{ProductID: 6, ProductName: "Soy Sauce", Quantity: dec(2), UnitPrice: dec(150)},
		},
		Subtotal: dec(900),
		Total:    dec(900),
		Version:  1,
	}
}
