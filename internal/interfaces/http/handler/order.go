package handler

import (
	"context"
	"net/http"

	reconapp "github.com/erp/order-reconciler/internal/application/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/order"
	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// OrderReconciler is the part of the engine the order endpoints drive
type OrderReconciler interface {
	UpdateStatus(ctx context.Context, req reconapp.StatusChange) (*reconapp.Result, error)
	UpdatePaymentMethod(ctx context.Context, req reconapp.PaymentMethodChange) (*reconapp.Result, error)
	UpdateCustomer(ctx context.Context, req reconapp.CustomerChange) (*reconapp.Result, error)
	Edit(ctx context.Context, req reconapp.Edit) (*reconapp.Result, error)
	ProcessReturn(ctx context.Context, orderID int64, returns []reconapp.ItemReturn, notes string) (*reconapp.ReturnResult, error)
	TransitionHistory(ctx context.Context, orderID int64) ([]*reconciliation.TransitionRecord, error)
	Adjustments(ctx context.Context, orderID int64) ([]*reconciliation.AdjustmentRecord, error)
}

// OrderHandler handles order edits that need stock and balance reconciliation
type OrderHandler struct {
	BaseHandler
	engine OrderReconciler
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(engine OrderReconciler) *OrderHandler {
	return &OrderHandler{engine: engine}
}

// RegisterRoutes registers the order routes on rg
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/orders")
	orders.PUT("/:id/status", h.UpdateStatus)
	orders.PUT("/:id/payment-method", h.UpdatePaymentMethod)
	orders.PUT("/:id/customer", h.UpdateCustomer)
	orders.PATCH("/:id", h.Edit)
	orders.POST("/:id/returns", h.ProcessReturn)
	orders.GET("/:id/returns", h.ListReturns)
	orders.GET("/:id/transitions", h.ListTransitions)
}

func (h *OrderHandler) orderID(c *gin.Context) (int64, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		h.BadRequest(c, "Order id must be a positive integer")
	}
	return id, ok
}

func (h *OrderHandler) version(c *gin.Context, fromBody int) (int, bool) {
	v, ok := expectedVersion(c, fromBody)
	if !ok {
		h.BadRequest(c, "If-Match must carry a non-negative order version")
	}
	return v, ok
}

// UpdateStatus handles PUT /orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	version, ok := h.version(c, req.ExpectedVersion)
	if !ok {
		return
	}

	result, err := h.engine.UpdateStatus(c.Request.Context(), reconapp.StatusChange{
		OrderID:         id,
		To:              order.Status(req.Status),
		Confirm:         req.Confirm,
		ExpectedVersion: version,
	})
	h.respond(c, result, err)
}

// UpdatePaymentMethod handles PUT /orders/:id/payment-method
func (h *OrderHandler) UpdatePaymentMethod(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	var req dto.UpdatePaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	version, ok := h.version(c, req.ExpectedVersion)
	if !ok {
		return
	}

	result, err := h.engine.UpdatePaymentMethod(c.Request.Context(), reconapp.PaymentMethodChange{
		OrderID:         id,
		To:              order.PaymentMethod(req.PaymentMethod),
		ExpectedVersion: version,
	})
	h.respond(c, result, err)
}

// UpdateCustomer handles PUT /orders/:id/customer
func (h *OrderHandler) UpdateCustomer(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	var req dto.UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	version, ok := h.version(c, req.ExpectedVersion)
	if !ok {
		return
	}

	result, err := h.engine.UpdateCustomer(c.Request.Context(), reconapp.CustomerChange{
		OrderID:         id,
		To:              req.CustomerID,
		ExpectedVersion: version,
	})
	h.respond(c, result, err)
}

// Edit handles PATCH /orders/:id
func (h *OrderHandler) Edit(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	var req dto.EditOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	version, ok := h.version(c, req.ExpectedVersion)
	if !ok {
		return
	}
	if req.Status == nil && req.PaymentMethod == nil {
		h.BadRequest(c, "Either status or payment_method must be set")
		return
	}

	result, err := h.engine.Edit(c.Request.Context(), reconapp.Edit{
		OrderID:         id,
		Status:          req.StatusPtr(),
		PaymentMethod:   req.PaymentMethodPtr(),
		Confirm:         req.Confirm,
		ExpectedVersion: version,
	})
	h.respond(c, result, err)
}

// respond writes a reconciliation result. A pending confirmation answers 428.
func (h *OrderHandler) respond(c *gin.Context, result *reconapp.Result, err error) {
	if err != nil {
		h.HandleError(c, err)
		return
	}
	switch result.Outcome {
	case reconapp.OutcomeConfirmationRequired:
		resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeConfirmationRequired,
			"This transition moves stock; resend with confirm=true", getRequestID(c))
		resp.Data = result
		c.JSON(http.StatusPreconditionRequired, resp)
	default:
		h.Result(c, result)
	}
}

// ProcessReturn handles POST /orders/:id/returns
func (h *OrderHandler) ProcessReturn(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	var req dto.ProcessReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	items := make([]reconapp.ItemReturn, len(req.Items))
	for i, it := range req.Items {
		items[i] = reconapp.ItemReturn{
			ProductID:      it.ProductID,
			ReturnQuantity: it.ReturnQuantity,
			Reason:         it.Reason,
		}
	}

	result, err := h.engine.ProcessReturn(c.Request.Context(), id, items, req.Notes)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// ListReturns handles GET /orders/:id/returns
func (h *OrderHandler) ListReturns(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	records, err := h.engine.Adjustments(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToAdjustmentResponses(records))
}

// ListTransitions handles GET /orders/:id/transitions
func (h *OrderHandler) ListTransitions(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	records, err := h.engine.TransitionHistory(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if records == nil {
		records = []*reconciliation.TransitionRecord{}
	}
	h.Success(c, records)
}
