package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/erp/order-reconciler/internal/domain/receivable"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ReceivablesClient talks to the Receivables Service
type ReceivablesClient struct {
	c *Client
}

// NewReceivablesClient creates a Receivables Service client
func NewReceivablesClient(c *Client) *ReceivablesClient {
	return &ReceivablesClient{c: c}
}

type balanceDeltaBody struct {
	Amount          decimal.Decimal            `json:"amount"`
	Type            receivable.TransactionType `json:"type"`
	Description     string                     `json:"description,omitempty"`
	OrderID         int64                      `json:"order_id,omitempty"`
	OrderNumber     string                     `json:"order_number,omitempty"`
	ExpectedBalance decimal.Decimal            `json:"expected_balance"`
}

// GetCustomerBalance loads the customer's current balance
func (r *ReceivablesClient) GetCustomerBalance(ctx context.Context, customerID int64) (*receivable.CustomerBalance, error) {
	var out receivable.CustomerBalance
	err := r.c.do(ctx, request{
		method:   http.MethodGet,
		path:     idPath("/api/v1/customers/%d/balance", customerID),
		resource: "customer",
		id:       customerID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ApplyBalanceDelta changes the customer's balance by a signed amount
func (r *ReceivablesClient) ApplyBalanceDelta(ctx context.Context, req receivable.DeltaRequest) (*receivable.RemoteTransaction, error) {
	var out receivable.RemoteTransaction
	err := r.c.do(ctx, request{
		method: http.MethodPost,
		path:   idPath("/api/v1/customers/%d/balance/transactions", req.CustomerID),
		body: balanceDeltaBody{
			Amount:          req.Amount,
			Type:            req.Type,
			Description:     req.Description,
			OrderID:         req.OrderRef.OrderID,
			OrderNumber:     req.OrderRef.OrderNumber,
			ExpectedBalance: req.ExpectedBalance,
		},
		idempotencyKey: req.IdempotencyKey,
		resource:       "customer",
		id:             req.CustomerID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetHistory lists the customer's transactions, newest first
func (r *ReceivablesClient) GetHistory(ctx context.Context, customerID int64, page shared.Page) ([]*receivable.RemoteTransaction, error) {
	page = page.Normalize()
	var out []*receivable.RemoteTransaction
	err := r.c.do(ctx, request{
		method: http.MethodGet,
		path:   idPath("/api/v1/customers/%d/balance/transactions", customerID),
		query: url.Values{
			"limit":  {strconv.Itoa(page.Limit)},
			"offset": {strconv.Itoa(page.Offset)},
		},
		resource: "customer",
		id:       customerID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

var _ receivable.ReceivablesService = (*ReceivablesClient)(nil)
