package dto

import (
	"time"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/receivable"
	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UpdateStatusRequest is the body of PUT /orders/:id/status
type UpdateStatusRequest struct {
	Status          string `json:"status" binding:"required,oneof=pending completed credit cancelled"`
	Confirm         bool   `json:"confirm"`
	ExpectedVersion int    `json:"expected_version" binding:"gte=0"`
}

// UpdatePaymentMethodRequest is the body of PUT /orders/:id/payment-method
type UpdatePaymentMethodRequest struct {
	PaymentMethod   string `json:"payment_method" binding:"required,oneof=cash credit card bank_transfer"`
	ExpectedVersion int    `json:"expected_version" binding:"gte=0"`
}

// UpdateCustomerRequest is the body of PUT /orders/:id/customer.
// A null customer_id detaches the order from its customer.
type UpdateCustomerRequest struct {
	CustomerID      *int64 `json:"customer_id" binding:"omitempty,gt=0"`
	ExpectedVersion int    `json:"expected_version" binding:"gte=0"`
}

// EditOrderRequest is the body of PATCH /orders/:id
type EditOrderRequest struct {
	Status          *string `json:"status" binding:"omitempty,oneof=pending completed credit cancelled"`
	PaymentMethod   *string `json:"payment_method" binding:"omitempty,oneof=cash credit card bank_transfer"`
	Confirm         bool    `json:"confirm"`
	ExpectedVersion int     `json:"expected_version" binding:"gte=0"`
}

// StatusPtr converts the optional status
func (r EditOrderRequest) StatusPtr() *order.Status {
	if r.Status == nil {
		return nil
	}
	s := order.Status(*r.Status)
	return &s
}

// PaymentMethodPtr converts the optional payment method
func (r EditOrderRequest) PaymentMethodPtr() *order.PaymentMethod {
	if r.PaymentMethod == nil {
		return nil
	}
	m := order.PaymentMethod(*r.PaymentMethod)
	return &m
}

// ReturnItemInput is one line of a return request
type ReturnItemInput struct {
	ProductID      int64           `json:"product_id" binding:"required,gt=0"`
	ReturnQuantity decimal.Decimal `json:"return_quantity"`
	Reason         string          `json:"reason" binding:"max=500"`
}

// ProcessReturnRequest is the body of POST /orders/:id/returns
type ProcessReturnRequest struct {
	Items []ReturnItemInput `json:"items" binding:"required,min=1,dive"`
	Notes string            `json:"notes" binding:"max=1000"`
}

// MovementResponse is a stock journal entry
type MovementResponse struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     int64           `json:"product_id"`
	QuantityDelta decimal.Decimal `json:"quantity_delta"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Reason        stock.Reason    `json:"reason"`
	Notes         string          `json:"notes,omitempty"`
	OrderRef      order.Ref       `json:"order_ref"`
	IntentID      *uuid.UUID      `json:"intent_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ToMovementResponses converts stock movements
func ToMovementResponses(movements []*stock.Movement) []MovementResponse {
	out := make([]MovementResponse, len(movements))
	for i, m := range movements {
		out[i] = MovementResponse{
			ID:            m.ID,
			ProductID:     m.ProductID,
			QuantityDelta: m.QuantityDelta,
			BalanceBefore: m.BalanceBefore,
			BalanceAfter:  m.BalanceAfter,
			Reason:        m.Reason,
			Notes:         m.Notes,
			OrderRef:      m.OrderRef,
			IntentID:      m.IntentID,
			CreatedAt:     m.CreatedAt,
		}
	}
	return out
}

// BalanceTransactionResponse is a customer balance journal entry
type BalanceTransactionResponse struct {
	ID              uuid.UUID                  `json:"id"`
	RemoteID        string                     `json:"remote_id,omitempty"`
	CustomerID      int64                      `json:"customer_id"`
	OrderRef        order.Ref                  `json:"order_ref"`
	Amount          decimal.Decimal            `json:"amount"`
	Type            receivable.TransactionType `json:"type"`
	PreviousBalance decimal.Decimal            `json:"previous_balance"`
	NewBalance      decimal.Decimal            `json:"new_balance"`
	Description     string                     `json:"description,omitempty"`
	IntentID        *uuid.UUID                 `json:"intent_id,omitempty"`
	TransactionDate time.Time                  `json:"transaction_date"`
}

// ToBalanceTransactionResponses converts balance transactions
func ToBalanceTransactionResponses(txs []*receivable.BalanceTransaction) []BalanceTransactionResponse {
	out := make([]BalanceTransactionResponse, len(txs))
	for i, t := range txs {
		out[i] = BalanceTransactionResponse{
			ID:              t.ID,
			RemoteID:        t.RemoteID,
			CustomerID:      t.CustomerID,
			OrderRef:        t.OrderRef,
			Amount:          t.Amount,
			Type:            t.Type,
			PreviousBalance: t.PreviousBalance,
			NewBalance:      t.NewBalance,
			Description:     t.Description,
			IntentID:        t.IntentID,
			TransactionDate: t.TransactionDate,
		}
	}
	return out
}

// AdjustmentResponse is a committed return
type AdjustmentResponse struct {
	ID           uuid.UUID                     `json:"id"`
	OrderRef     order.Ref                     `json:"order_ref"`
	Lines        []reconciliation.ReturnedLine `json:"lines"`
	RefundAmount decimal.Decimal               `json:"refund_amount"`
	Restocked    bool                          `json:"restocked"`
	Notes        string                        `json:"notes,omitempty"`
	CreatedAt    time.Time                     `json:"created_at"`
}

// ToAdjustmentResponses converts adjustment records
func ToAdjustmentResponses(records []*reconciliation.AdjustmentRecord) []AdjustmentResponse {
	out := make([]AdjustmentResponse, len(records))
	for i, r := range records {
		out[i] = AdjustmentResponse{
			ID:           r.ID,
			OrderRef:     r.OrderRef,
			Lines:        r.Lines,
			RefundAmount: r.RefundAmount,
			Restocked:    r.Restocked,
			Notes:        r.Notes,
			CreatedAt:    r.CreatedAt,
		}
	}
	return out
}

// IntentResponse is a reconciliation intent as shown to operators
type IntentResponse struct {
	ID             uuid.UUID                     `json:"id"`
	Transition     reconciliation.TransitionKey  `json:"transition"`
	OrderRef       order.Ref                     `json:"order_ref"`
	StockDeltas    []reconciliation.ProductDelta `json:"stock_deltas,omitempty"`
	BalanceSteps   []reconciliation.BalanceStep  `json:"balance_steps,omitempty"`
	BalanceApplied int                           `json:"balance_applied"`
	Status         reconciliation.IntentStatus   `json:"status"`
	Attempts       int                           `json:"attempts"`
	MaxAttempts    int                           `json:"max_attempts"`
	LastError      string                        `json:"last_error,omitempty"`
	NextRetryAt    *time.Time                    `json:"next_retry_at,omitempty"`
	CompletedAt    *time.Time                    `json:"completed_at,omitempty"`
	CreatedAt      time.Time                     `json:"created_at"`
	UpdatedAt      time.Time                     `json:"updated_at"`
}

// ToIntentResponse converts an intent
func ToIntentResponse(i *reconciliation.Intent) IntentResponse {
	return IntentResponse{
		ID:             i.ID,
		Transition:     i.Key,
		OrderRef:       i.OrderRef,
		StockDeltas:    i.StockDeltas,
		BalanceSteps:   i.BalanceSteps,
		BalanceApplied: i.BalanceApplied,
		Status:         i.Status,
		Attempts:       i.Attempts,
		MaxAttempts:    i.MaxAttempts,
		LastError:      i.LastError,
		NextRetryAt:    i.NextRetryAt,
		CompletedAt:    i.CompletedAt,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

// ToIntentResponses converts intents
func ToIntentResponses(intents []*reconciliation.Intent) []IntentResponse {
	out := make([]IntentResponse, len(intents))
	for i, in := range intents {
		out[i] = ToIntentResponse(in)
	}
	return out
}

// StockResponse is the current stock of a product
type StockResponse struct {
	ProductID    int64           `json:"product_id"`
	CurrentStock decimal.Decimal `json:"current_stock"`
}
