package stock

import (
	"context"

	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/shopspring/decimal"
)

// Product is the inventory view of a product
type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	SKU   string          `json:"sku,omitempty"`
	Stock decimal.Decimal `json:"stock"`
}

// DeltaRequest is a signed stock change sent to the Inventory Service
type DeltaRequest struct {
	ProductID      int64
	Quantity       decimal.Decimal
	Notes          string
	OrderRef       order.Ref
	IdempotencyKey string
}

// DeltaResult is what the Inventory Service reports after applying a delta
type DeltaResult struct {
	PreviousStock decimal.Decimal `json:"previous_stock"`
	NewStock      decimal.Decimal `json:"new_stock"`
}

// InventoryService is the external Inventory Service
type InventoryService interface {
	// GetProduct loads a product with its current stock
	GetProduct(ctx context.Context, productID int64) (*Product, error)
	// ApplyStockDelta changes stock by a signed quantity
	ApplyStockDelta(ctx context.Context, req DeltaRequest) (*DeltaResult, error)
}
