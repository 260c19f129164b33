// Package testutil provides in-memory fakes of the external services and
// repositories for tests.
package testutil

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/receivable"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/domain/stock"
	"github.com/shopspring/decimal"
)

// FakeOrders is a stateful in-memory Order Service.
type FakeOrders struct {
	mu        sync.Mutex
	orders    map[int64]*order.Order
	inventory *FakeInventory
	adjusts   []order.AdjustRequest
	updates   int
	err       error
	adjustErr error
}

// NewFakeOrders creates a fake Order Service. When inventory is set, a
// committed return restocks it.
func NewFakeOrders(inventory *FakeInventory, orders ...*order.Order) *FakeOrders {
	f := &FakeOrders{orders: make(map[int64]*order.Order), inventory: inventory}
	for _, o := range orders {
		f.Put(o)
	}
	return f
}

// Put stores a copy of o
func (f *FakeOrders) Put(o *order.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = cloneOrder(o)
}

// Get returns a copy of the stored order
func (f *FakeOrders) Get(id int64) *order.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		return cloneOrder(o)
	}
	return nil
}

// SetError makes every update fail with err
func (f *FakeOrders) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// SetAdjustError makes AdjustOrder fail with err
func (f *FakeOrders) SetAdjustError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adjustErr = err
}

// Adjustments returns the AdjustOrder requests received
func (f *FakeOrders) Adjustments() []order.AdjustRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]order.AdjustRequest, len(f.adjusts))
	copy(out, f.adjusts)
	return out
}

// UpdateCount returns the number of committed order updates
func (f *FakeOrders) UpdateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

// GetOrder implements order.Service
func (f *FakeOrders) GetOrder(_ context.Context, id int64) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, shared.NewNotFoundError("order", id)
	}
	return cloneOrder(o), nil
}

// UpdateStatus implements order.Service
func (f *FakeOrders) UpdateStatus(_ context.Context, id int64, status order.Status, expectedVersion int) (*order.Order, error) {
	return f.update(id, expectedVersion, func(o *order.Order) { o.Status = status })
}

// UpdatePaymentMethod implements order.Service
func (f *FakeOrders) UpdatePaymentMethod(_ context.Context, id int64, method order.PaymentMethod, expectedVersion int) (*order.Order, error) {
	return f.update(id, expectedVersion, func(o *order.Order) { o.PaymentMethod = method })
}

// UpdateCustomer implements order.Service
func (f *FakeOrders) UpdateCustomer(_ context.Context, id int64, customerID *int64, expectedVersion int) (*order.Order, error) {
	return f.update(id, expectedVersion, func(o *order.Order) {
		if customerID == nil {
			o.CustomerID = nil
			return
		}
		o.CustomerID = order.Int64Ptr(*customerID)
	})
}

// AdjustOrder implements order.Service
func (f *FakeOrders) AdjustOrder(ctx context.Context, id int64, req order.AdjustRequest) (*order.AdjustResult, error) {
	f.mu.Lock()
	if f.adjustErr != nil {
		err := f.adjustErr
		f.mu.Unlock()
		return nil, err
	}
	o, ok := f.orders[id]
	if !ok {
		f.mu.Unlock()
		return nil, shared.NewNotFoundError("order", id)
	}
	f.adjusts = append(f.adjusts, req)
	o.Total = o.Total.Sub(req.RefundAmount)
	o.Version++
	out := cloneOrder(o)
	f.mu.Unlock()

	if req.RestockItems && f.inventory != nil {
		for _, l := range req.Items {
			f.inventory.adjust(l.ProductID, l.ReturnedQuantity)
		}
	}
	return &order.AdjustResult{Order: out, Restocked: req.RestockItems}, nil
}

func (f *FakeOrders) update(id int64, expectedVersion int, fn func(o *order.Order)) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, shared.NewNotFoundError("order", id)
	}
	if expectedVersion > 0 && o.Version != expectedVersion {
		return nil, shared.ErrConcurrencyConflict
	}
	fn(o)
	o.Version++
	f.updates++
	return cloneOrder(o), nil
}

func cloneOrder(o *order.Order) *order.Order {
	c := *o
	c.Items = append([]order.Item(nil), o.Items...)
	if o.CustomerID != nil {
		c.CustomerID = order.Int64Ptr(*o.CustomerID)
	}
	return &c
}

// FakeInventory is a stateful in-memory Inventory Service. Requests that
// repeat an idempotency key return the first result without applying again.
type FakeInventory struct {
	mu       sync.Mutex
	products map[int64]*stock.Product
	failOn   map[int64]error
	seen     map[string]*stock.DeltaResult
	calls    []stock.DeltaRequest

	failAfter    int
	failAfterErr error
}

// NewFakeInventory creates a fake Inventory Service
func NewFakeInventory() *FakeInventory {
	return &FakeInventory{
		products: make(map[int64]*stock.Product),
		failOn:   make(map[int64]error),
		seen:     make(map[string]*stock.DeltaResult),
	}
}

// SetStock sets a product's stock
func (f *FakeInventory) SetStock(productID int64, qty decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[productID] = &stock.Product{ID: productID, Name: "Product " + strconv.FormatInt(productID, 10), Stock: qty}
}

// Stock returns a product's stock
func (f *FakeInventory) Stock(productID int64) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.products[productID]; ok {
		return p.Stock
	}
	return decimal.Zero
}

// FailOn makes deltas of productID fail with err; nil clears it
func (f *FakeInventory) FailOn(productID int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failOn, productID)
		return
	}
	f.failOn[productID] = err
}

// FailAfter lets the next n delta requests through and fails every later
// one with err; nil clears it
func (f *FakeInventory) FailAfter(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAfter = len(f.calls) + n
	f.failAfterErr = err
}

// Calls returns the delta requests received, including failed ones
func (f *FakeInventory) Calls() []stock.DeltaRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stock.DeltaRequest, len(f.calls))
	copy(out, f.calls)
	return out
}

// GetProduct implements stock.InventoryService
func (f *FakeInventory) GetProduct(_ context.Context, productID int64) (*stock.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return nil, shared.NewNotFoundError("product", productID)
	}
	c := *p
	return &c, nil
}

// ApplyStockDelta implements stock.InventoryService
func (f *FakeInventory) ApplyStockDelta(_ context.Context, req stock.DeltaRequest) (*stock.DeltaResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if req.IdempotencyKey != "" {
		if res, ok := f.seen[req.IdempotencyKey]; ok {
			return res, nil
		}
	}
	if err, ok := f.failOn[req.ProductID]; ok {
		return nil, err
	}
	if f.failAfterErr != nil && len(f.calls) > f.failAfter {
		return nil, f.failAfterErr
	}
	p, ok := f.products[req.ProductID]
	if !ok {
		return nil, shared.NewNotFoundError("product", req.ProductID)
	}
	next := p.Stock.Add(req.Quantity)
	if next.IsNegative() {
		return nil, shared.ErrInsufficientStock.WithDetail("product_id", req.ProductID)
	}
	res := &stock.DeltaResult{PreviousStock: p.Stock, NewStock: next}
	p.Stock = next
	if req.IdempotencyKey != "" {
		f.seen[req.IdempotencyKey] = res
	}
	return res, nil
}

func (f *FakeInventory) adjust(productID int64, qty decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.products[productID]; ok {
		p.Stock = p.Stock.Add(qty)
	}
}

// FakeReceivables is a stateful in-memory Receivables Service. Requests
// that repeat an idempotency key return the first transaction.
type FakeReceivables struct {
	mu       sync.Mutex
	balances map[int64]decimal.Decimal
	history  map[int64][]*receivable.RemoteTransaction
	seen     map[string]*receivable.RemoteTransaction
	failOn   map[int64]error
	failures int
	failErr  error
	calls    []receivable.DeltaRequest
	seq      int
}

// NewFakeReceivables creates a fake Receivables Service
func NewFakeReceivables() *FakeReceivables {
	return &FakeReceivables{
		balances: make(map[int64]decimal.Decimal),
		history:  make(map[int64][]*receivable.RemoteTransaction),
		seen:     make(map[string]*receivable.RemoteTransaction),
		failOn:   make(map[int64]error),
	}
}

// SetBalance sets a customer's balance
func (f *FakeReceivables) SetBalance(customerID int64, amount decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[customerID] = amount
}

// Balance returns a customer's balance
func (f *FakeReceivables) Balance(customerID int64) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[customerID]
}

// FailOn makes deltas of customerID fail with err; nil clears it
func (f *FakeReceivables) FailOn(customerID int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failOn, customerID)
		return
	}
	f.failOn[customerID] = err
}

// FailNext makes the next n deltas fail with err
func (f *FakeReceivables) FailNext(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
	f.failErr = err
}

// Calls returns the delta requests received, including failed ones
func (f *FakeReceivables) Calls() []receivable.DeltaRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]receivable.DeltaRequest, len(f.calls))
	copy(out, f.calls)
	return out
}

// GetCustomerBalance implements receivable.ReceivablesService
func (f *FakeReceivables) GetCustomerBalance(_ context.Context, customerID int64) (*receivable.CustomerBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &receivable.CustomerBalance{CustomerID: customerID, CurrentBalance: f.balances[customerID]}, nil
}

// ApplyBalanceDelta implements receivable.ReceivablesService
func (f *FakeReceivables) ApplyBalanceDelta(_ context.Context, req receivable.DeltaRequest) (*receivable.RemoteTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if req.IdempotencyKey != "" {
		if tx, ok := f.seen[req.IdempotencyKey]; ok {
			return tx, nil
		}
	}
	if f.failures > 0 {
		f.failures--
		return nil, f.failErr
	}
	if err, ok := f.failOn[req.CustomerID]; ok {
		return nil, err
	}
	f.seq++
	prev := f.balances[req.CustomerID]
	next := prev.Add(req.Amount)
	f.balances[req.CustomerID] = next
	tx := &receivable.RemoteTransaction{
		ID:              fmt.Sprintf("tx-%d", f.seq),
		CustomerID:      req.CustomerID,
		OrderID:         req.OrderRef.OrderID,
		OrderNumber:     req.OrderRef.OrderNumber,
		Amount:          req.Amount,
		Type:            req.Type,
		PreviousBalance: prev,
		NewBalance:      next,
		Description:     req.Description,
		CreatedAt:       time.Now(),
	}
	f.history[req.CustomerID] = append(f.history[req.CustomerID], tx)
	if req.IdempotencyKey != "" {
		f.seen[req.IdempotencyKey] = tx
	}
	return tx, nil
}

// GetHistory implements receivable.ReceivablesService
func (f *FakeReceivables) GetHistory(_ context.Context, customerID int64, page shared.Page) ([]*receivable.RemoteTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src := f.history[customerID]
	all := make([]*receivable.RemoteTransaction, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		all = append(all, src[i])
	}
	return paginate(all, page.Normalize()), nil
}

func paginate[T any](items []T, page shared.Page) []T {
	if page.Offset >= len(items) {
		return nil
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}
