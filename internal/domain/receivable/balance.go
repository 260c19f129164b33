package receivable

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the type of balance transaction
type TransactionType string

const (
	// TypeCredit records debt created for the customer (balance increase)
	TypeCredit TransactionType = "credit"
	// TypeDebit records debt cleared for the customer (balance decrease)
	TypeDebit TransactionType = "debit"
	// TypeAdjustment records an operator correction in either direction
	TypeAdjustment TransactionType = "adjustment"
)

// String returns the string representation of TransactionType
func (t TransactionType) String() string {
	return string(t)
}

// IsValid returns true if the transaction type is valid
func (t TransactionType) IsValid() bool {
	switch t {
	case TypeCredit, TypeDebit, TypeAdjustment:
		return true
	}
	return false
}

// TypeForDelta picks credit for positive and debit for negative deltas
func TypeForDelta(delta decimal.Decimal) TransactionType {
	if delta.IsNegative() {
		return TypeDebit
	}
	return TypeCredit
}

// CustomerBalance is the materialized receivable of one customer
type CustomerBalance struct {
	CustomerID     int64           `json:"customer_id"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
}

// AvailableCredit returns credit limit minus current balance
func (b *CustomerBalance) AvailableCredit() decimal.Decimal {
	return b.CreditLimit.Sub(b.CurrentBalance)
}

// BalanceTransaction is an immutable record of a signed change to a
// customer's balance. currentBalance always equals the running sum of
// these amounts for the customer.
type BalanceTransaction struct {
	shared.BaseEntity
	// RemoteID is the id assigned by the Receivables Service
	RemoteID        string
	CustomerID      int64
	OrderRef        order.Ref
	Amount          decimal.Decimal
	Type            TransactionType
	PreviousBalance decimal.Decimal
	NewBalance      decimal.Decimal
	Description     string
	IntentID        *uuid.UUID
	TransactionDate time.Time
}

// NewBalanceTransaction creates a balance transaction
func NewBalanceTransaction(customerID int64, amount decimal.Decimal, txType TransactionType, previous, next decimal.Decimal) (*BalanceTransaction, error) {
	if customerID <= 0 {
		return nil, shared.NewValidationError("INVALID_CUSTOMER", "customer id must be positive")
	}
	if amount.IsZero() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "transaction amount cannot be zero")
	}
	if !txType.IsValid() {
		return nil, shared.NewValidationError("INVALID_TRANSACTION_TYPE", fmt.Sprintf("unknown transaction type %q", txType))
	}
	if !previous.Add(amount).Equal(next) {
		return nil, shared.NewValidationError("INVALID_BALANCE",
			fmt.Sprintf("new balance %s does not equal %s + %s", next, previous, amount))
	}
	base := shared.NewBaseEntity()
	return &BalanceTransaction{
		BaseEntity:      base,
		CustomerID:      customerID,
		Amount:          amount,
		Type:            txType,
		PreviousBalance: previous,
		NewBalance:      next,
		TransactionDate: base.CreatedAt,
	}, nil
}

// WithOrderRef sets the order the transaction belongs to
func (t *BalanceTransaction) WithOrderRef(ref order.Ref) *BalanceTransaction {
	t.OrderRef = ref
	return t
}

// WithDescription sets the description
func (t *BalanceTransaction) WithDescription(desc string) *BalanceTransaction {
	t.Description = desc
	return t
}

// WithIntent links the transaction to a reconciliation intent
func (t *BalanceTransaction) WithIntent(id uuid.UUID) *BalanceTransaction {
	t.IntentID = &id
	return t
}

// WithRemoteID records the id assigned by the Receivables Service
func (t *BalanceTransaction) WithRemoteID(id string) *BalanceTransaction {
	t.RemoteID = id
	return t
}

// DeltaRequest is a signed balance change sent to the Receivables Service
type DeltaRequest struct {
	CustomerID     int64
	Amount         decimal.Decimal
	Type           TransactionType
	Description    string
	OrderRef       order.Ref
	IdempotencyKey string
	// ExpectedBalance is the balance the caller read before writing
	ExpectedBalance decimal.Decimal
}

// RemoteTransaction is the transaction as reported by the Receivables Service
type RemoteTransaction struct {
	ID              string          `json:"id"`
	CustomerID      int64           `json:"customer_id"`
	OrderID         int64           `json:"order_id,omitempty"`
	OrderNumber     string          `json:"order_number,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Type            TransactionType `json:"type"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	Description     string          `json:"description"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ToDomain converts a remote transaction into a journal entry
func (r *RemoteTransaction) ToDomain() *BalanceTransaction {
	tx := &BalanceTransaction{
		BaseEntity:      shared.NewBaseEntity(),
		RemoteID:        r.ID,
		CustomerID:      r.CustomerID,
		OrderRef:        order.Ref{OrderID: r.OrderID, OrderNumber: r.OrderNumber},
		Amount:          r.Amount,
		Type:            r.Type,
		PreviousBalance: r.PreviousBalance,
		NewBalance:      r.NewBalance,
		Description:     r.Description,
		TransactionDate: r.CreatedAt,
	}
	if tx.TransactionDate.IsZero() {
		tx.TransactionDate = tx.CreatedAt
	}
	return tx
}

// ReceivablesService is the external Receivables Service
type ReceivablesService interface {
	// GetCustomerBalance loads the customer's current balance
	GetCustomerBalance(ctx context.Context, customerID int64) (*CustomerBalance, error)
	// ApplyBalanceDelta changes the customer's balance by a signed amount
	ApplyBalanceDelta(ctx context.Context, req DeltaRequest) (*RemoteTransaction, error)
	// GetHistory lists the customer's transactions, newest first
	GetHistory(ctx context.Context, customerID int64, page shared.Page) ([]*RemoteTransaction, error)
}

// TransactionJournal is the local append-only copy of applied balance transactions
type TransactionJournal interface {
	// Save appends a transaction
	Save(ctx context.Context, tx *BalanceTransaction) error
	// FindByCustomer lists transactions of a customer, newest first
	FindByCustomer(ctx context.Context, customerID int64, page shared.Page) ([]*BalanceTransaction, int64, error)
	// FindByIntent lists transactions recorded for a reconciliation intent
	FindByIntent(ctx context.Context, intentID uuid.UUID) ([]*BalanceTransaction, error)
}
