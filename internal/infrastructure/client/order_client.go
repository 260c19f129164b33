package client

import (
	"context"
	"net/http"

	"github.com/erp/order-reconciler/internal/domain/order"
)

// OrderClient talks to the Order Service
type OrderClient struct {
	c *Client
}

// NewOrderClient creates an Order Service client
func NewOrderClient(c *Client) *OrderClient {
	return &OrderClient{c: c}
}

type statusBody struct {
	Status order.Status `json:"status"`
}

type paymentMethodBody struct {
	PaymentMethod order.PaymentMethod `json:"payment_method"`
}

type customerBody struct {
	CustomerID *int64 `json:"customer_id"`
}

// GetOrder loads an order by id
func (o *OrderClient) GetOrder(ctx context.Context, id int64) (*order.Order, error) {
	var out order.Order
	err := o.c.do(ctx, request{
		method:   http.MethodGet,
		path:     idPath("/api/v1/orders/%d", id),
		resource: "order",
		id:       id,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus changes the order status
func (o *OrderClient) UpdateStatus(ctx context.Context, id int64, status order.Status, expectedVersion int) (*order.Order, error) {
	return o.update(ctx, id, "/api/v1/orders/%d/status", statusBody{Status: status}, expectedVersion)
}

// UpdatePaymentMethod changes how the order is settled
func (o *OrderClient) UpdatePaymentMethod(ctx context.Context, id int64, method order.PaymentMethod, expectedVersion int) (*order.Order, error) {
	return o.update(ctx, id, "/api/v1/orders/%d/payment-method", paymentMethodBody{PaymentMethod: method}, expectedVersion)
}

// UpdateCustomer reassigns the order to another customer
func (o *OrderClient) UpdateCustomer(ctx context.Context, id int64, customerID *int64, expectedVersion int) (*order.Order, error) {
	return o.update(ctx, id, "/api/v1/orders/%d/customer", customerBody{CustomerID: customerID}, expectedVersion)
}

// AdjustOrder commits a return in one request
func (o *OrderClient) AdjustOrder(ctx context.Context, id int64, req order.AdjustRequest) (*order.AdjustResult, error) {
	var out order.AdjustResult
	err := o.c.do(ctx, request{
		method:   http.MethodPost,
		path:     idPath("/api/v1/orders/%d/adjustments", id),
		body:     req,
		resource: "order",
		id:       id,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (o *OrderClient) update(ctx context.Context, id int64, format string, body any, expectedVersion int) (*order.Order, error) {
	var out order.Order
	err := o.c.do(ctx, request{
		method:   http.MethodPut,
		path:     idPath(format, id),
		body:     body,
		version:  expectedVersion,
		resource: "order",
		id:       id,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

var _ order.Service = (*OrderClient)(nil)
