package handler

import (
	"context"

	reconapp "github.com/erp/order-reconciler/internal/application/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// IntentService is the operator view of reconciliation intents
type IntentService interface {
	ListIntents(ctx context.Context, status reconciliation.IntentStatus, page shared.Page) ([]*reconciliation.Intent, int64, error)
	GetIntent(ctx context.Context, id uuid.UUID) (*reconciliation.Intent, error)
	IntentCounts(ctx context.Context) (map[reconciliation.IntentStatus]int64, error)
	RetryIntent(ctx context.Context, id uuid.UUID) (*reconapp.Result, error)
}

// IntentHandler lets operators inspect and retry partially applied transitions
type IntentHandler struct {
	BaseHandler
	intents IntentService
}

// NewIntentHandler creates a new IntentHandler
func NewIntentHandler(intents IntentService) *IntentHandler {
	return &IntentHandler{intents: intents}
}

// RegisterRoutes registers the intent routes on rg
func (h *IntentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	intents := rg.Group("/reconciliation/intents")
	intents.GET("", h.List)
	intents.GET("/stats", h.Stats)
	intents.GET("/:id", h.Get)
	intents.POST("/:id/retry", h.Retry)
}

// List handles GET /reconciliation/intents?status=
func (h *IntentHandler) List(c *gin.Context) {
	page, err := pageFrom(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	status := reconciliation.IntentStatus(c.Query("status"))
	intents, total, err := h.intents.ListIntents(c.Request.Context(), status, page)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, dto.ToIntentResponses(intents), total, page)
}

// Stats handles GET /reconciliation/intents/stats
func (h *IntentHandler) Stats(c *gin.Context) {
	counts, err := h.intents.IntentCounts(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, counts)
}

// Get handles GET /reconciliation/intents/:id
func (h *IntentHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Intent id must be a UUID")
		return
	}
	intent, err := h.intents.GetIntent(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToIntentResponse(intent))
}

// Retry handles POST /reconciliation/intents/:id/retry. A retry that fails
// again still answers 200 with the partial failure in the body.
func (h *IntentHandler) Retry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Intent id must be a UUID")
		return
	}
	result, err := h.intents.RetryIntent(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Result(c, result)
}
