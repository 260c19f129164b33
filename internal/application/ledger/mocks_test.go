package ledger

import (
	"context"

	"github.com/erp/order-reconciler/internal/domain/receivable"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockInventoryService is a mock implementation of stock.InventoryService
type MockInventoryService struct {
	mock.Mock
}

func (m *MockInventoryService) GetProduct(ctx context.Context, productID int64) (*stock.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stock.Product), args.Error(1)
}

func (m *MockInventoryService) ApplyStockDelta(ctx context.Context, req stock.DeltaRequest) (*stock.DeltaResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stock.DeltaResult), args.Error(1)
}

// MockMovementRepository is a mock implementation of stock.MovementRepository
type MockMovementRepository struct {
	mock.Mock
}

func (m *MockMovementRepository) Save(ctx context.Context, mv *stock.Movement) error {
	args := m.Called(ctx, mv)
	return args.Error(0)
}

func (m *MockMovementRepository) FindByProduct(ctx context.Context, productID int64, page shared.Page) ([]*stock.Movement, int64, error) {
	args := m.Called(ctx, productID, page)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*stock.Movement), args.Get(1).(int64), args.Error(2)
}

func (m *MockMovementRepository) FindByIntent(ctx context.Context, intentID uuid.UUID) ([]*stock.Movement, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*stock.Movement), args.Error(1)
}

func (m *MockMovementRepository) FindByOrder(ctx context.Context, orderID int64) ([]*stock.Movement, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*stock.Movement), args.Error(1)
}

// MockReceivablesService is a mock implementation of receivable.ReceivablesService
type MockReceivablesService struct {
	mock.Mock
}

func (m *MockReceivablesService) GetCustomerBalance(ctx context.Context, customerID int64) (*receivable.CustomerBalance, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*receivable.CustomerBalance), args.Error(1)
}

func (m *MockReceivablesService) ApplyBalanceDelta(ctx context.Context, req receivable.DeltaRequest) (*receivable.RemoteTransaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*receivable.RemoteTransaction), args.Error(1)
}

func (m *MockReceivablesService) GetHistory(ctx context.Context, customerID int64, page shared.Page) ([]*receivable.RemoteTransaction, error) {
	args := m.Called(ctx, customerID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*receivable.RemoteTransaction), args.Error(1)
}

// MockTransactionJournal is a mock implementation of receivable.TransactionJournal
type MockTransactionJournal struct {
	mock.Mock
}

func (m *MockTransactionJournal) Save(ctx context.Context, tx *receivable.BalanceTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionJournal) FindByCustomer(ctx context.Context, customerID int64, page shared.Page) ([]*receivable.BalanceTransaction, int64, error) {
	args := m.Called(ctx, customerID, page)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*receivable.BalanceTransaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionJournal) FindByIntent(ctx context.Context, intentID uuid.UUID) ([]*receivable.BalanceTransaction, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*receivable.BalanceTransaction), args.Error(1)
}
