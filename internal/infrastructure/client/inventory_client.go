package client

import (
	"context"
	"net/http"

	"github.com/erp/order-reconciler/internal/domain/stock"
	"github.com/shopspring/decimal"
)

// InventoryClient talks to the Inventory Service
type InventoryClient struct {
	c *Client
}

// NewInventoryClient creates an Inventory Service client
func NewInventoryClient(c *Client) *InventoryClient {
	return &InventoryClient{c: c}
}

type stockDeltaBody struct {
	Quantity    decimal.Decimal `json:"quantity"`
	Notes       string          `json:"notes,omitempty"`
	OrderID     int64           `json:"order_id,omitempty"`
	OrderNumber string          `json:"order_number,omitempty"`
}

// GetProduct loads a product with its current stock
func (i *InventoryClient) GetProduct(ctx context.Context, productID int64) (*stock.Product, error) {
	var out stock.Product
	err := i.c.do(ctx, request{
		method:   http.MethodGet,
		path:     idPath("/api/v1/products/%d", productID),
		resource: "product",
		id:       productID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ApplyStockDelta changes stock by a signed quantity
func (i *InventoryClient) ApplyStockDelta(ctx context.Context, req stock.DeltaRequest) (*stock.DeltaResult, error) {
	var out stock.DeltaResult
	err := i.c.do(ctx, request{
		method: http.MethodPost,
		path:   idPath("/api/v1/products/%d/stock-adjustments", req.ProductID),
		body: stockDeltaBody{
			Quantity:    req.Quantity,
			Notes:       req.Notes,
			OrderID:     req.OrderRef.OrderID,
			OrderNumber: req.OrderRef.OrderNumber,
		},
		idempotencyKey: req.IdempotencyKey,
		resource:       "product",
		id:             req.ProductID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

var _ stock.InventoryService = (*InventoryClient)(nil)
