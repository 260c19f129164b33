package handler

import (
	"context"

	"github.com/erp/order-reconciler/internal/domain/receivable"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/domain/stock"
	"github.com/erp/order-reconciler/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// BalanceReader reads customer balances and their journals
type BalanceReader interface {
	GetBalance(ctx context.Context, customerID int64) (*receivable.CustomerBalance, error)
	History(ctx context.Context, customerID int64, page shared.Page) ([]*receivable.BalanceTransaction, error)
	Journal(ctx context.Context, customerID int64, page shared.Page) ([]*receivable.BalanceTransaction, int64, error)
}

// StockReader reads product stock and its movement journal
type StockReader interface {
	CurrentStock(ctx context.Context, productID int64) (decimal.Decimal, error)
	Movements(ctx context.Context, productID int64, page shared.Page) ([]*stock.Movement, int64, error)
}

// LedgerHandler exposes the balance and stock ledgers read-only
type LedgerHandler struct {
	BaseHandler
	balances BalanceReader
	stock    StockReader
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(balances BalanceReader, stock StockReader) *LedgerHandler {
	return &LedgerHandler{balances: balances, stock: stock}
}

// RegisterRoutes registers the ledger routes on rg
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/customers/:id/balance", h.GetBalance)
	rg.GET("/customers/:id/balance/history", h.BalanceHistory)
	rg.GET("/products/:id/stock", h.GetStock)
	rg.GET("/products/:id/movements", h.ListMovements)
}

// GetBalance handles GET /customers/:id/balance
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.BadRequest(c, "Customer id must be a positive integer")
		return
	}
	balance, err := h.balances.GetBalance(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// BalanceHistory handles GET /customers/:id/balance/history.
// source=journal reads the transactions this service journaled instead
// of the Receivables Service history.
func (h *LedgerHandler) BalanceHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.BadRequest(c, "Customer id must be a positive integer")
		return
	}
	page, err := pageFrom(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	switch c.DefaultQuery("source", "remote") {
	case "journal":
		txs, total, err := h.balances.Journal(c.Request.Context(), id, page)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.SuccessWithMeta(c, dto.ToBalanceTransactionResponses(txs), total, page)
	case "remote":
		txs, err := h.balances.History(c.Request.Context(), id, page)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, dto.ToBalanceTransactionResponses(txs))
	default:
		h.BadRequest(c, "source must be remote or journal")
	}
}

// GetStock handles GET /products/:id/stock
func (h *LedgerHandler) GetStock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.BadRequest(c, "Product id must be a positive integer")
		return
	}
	qty, err := h.stock.CurrentStock(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.StockResponse{ProductID: id, CurrentStock: qty})
}

// ListMovements handles GET /products/:id/movements
func (h *LedgerHandler) ListMovements(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.BadRequest(c, "Product id must be a positive integer")
		return
	}
	page, err := pageFrom(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	movements, total, err := h.stock.Movements(c.Request.Context(), id, page)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, dto.ToMovementResponses(movements), total, page)
}
