package order

import (
	"context"

	"github.com/shopspring/decimal"
)

// ReturnLine is one line of a combined return request sent to the Order Service
type ReturnLine struct {
	ProductID        int64           `json:"product_id"`
	ReturnedQuantity decimal.Decimal `json:"returned_quantity"`
	Reason           string          `json:"reason,omitempty"`
}

// AdjustRequest is the combined restock and refund request for a return.
// The Order Service applies it atomically: either both the restock and the
// refund are committed or neither is.
type AdjustRequest struct {
	Items        []ReturnLine    `json:"items"`
	Reason       string          `json:"reason"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	RestockItems bool            `json:"restock_items"`
}

// AdjustResult is what the Order Service reports after committing a return
type AdjustResult struct {
	Order     *Order `json:"order"`
	Restocked bool   `json:"restocked"`
}

// Service is the external Order Service.
// expectedVersion of 0 means the caller does not require a version match.
type Service interface {
	// GetOrder loads an order by id
	GetOrder(ctx context.Context, id int64) (*Order, error)

	// UpdateStatus changes the order status
	UpdateStatus(ctx context.Context, id int64, status Status, expectedVersion int) (*Order, error)

	// UpdatePaymentMethod changes how the order is settled
	UpdatePaymentMethod(ctx context.Context, id int64, method PaymentMethod, expectedVersion int) (*Order, error)

	// UpdateCustomer reassigns the order to another customer (nil detaches it)
	UpdateCustomer(ctx context.Context, id int64, customerID *int64, expectedVersion int) (*Order, error)

	// AdjustOrder commits a return: restock plus refund in one request
	AdjustOrder(ctx context.Context, id int64, req AdjustRequest) (*AdjustResult, error)
}
