package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	orderapp "github.com/orderflow/backend/internal/application/order"
	"github.com/orderflow/backend/internal/interfaces/http/middleware"
)

// IdempotencyKeyHeader carries the client-supplied key for action dispatch
const IdempotencyKeyHeader = "Idempotency-Key"

// OrderHandler handles order API endpoints: registration, reads, the
// audit trail, and the lifecycle actions
type OrderHandler struct {
	BaseHandler
	orderService  *orderapp.OrderService
	actionService *orderapp.ActionService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService *orderapp.OrderService, actionService *orderapp.ActionService) *OrderHandler {
	return &OrderHandler{
		orderService:  orderService,
		actionService: actionService,
	}
}

// RegisterRoutes registers all order routes
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/orders")
	{
		orders.POST("", h.Create)
		orders.GET("", h.List)
		orders.GET("/:id", h.Get)
		orders.GET("/:id/audit", h.AuditTrail)

		actions := orders.Group("/:id/actions")
		{
			actions.POST("/execute-purchase", h.ExecutePurchase)
			actions.POST("/cancel-purchase", h.CancelPurchase)
			actions.POST("/send-to-forwarder", h.SendToForwarder)
			actions.POST("/retry", h.Retry)
		}
	}
}

// Create registers a new order
func (h *OrderHandler) Create(c *gin.Context) {
	var req orderapp.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	resp, err := h.orderService.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Get returns a single order
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	resp, err := h.orderService.GetByID(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List returns orders with filtering and pagination
func (h *OrderHandler) List(c *gin.Context) {
	var filter orderapp.OrderListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.orderService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// AuditTrail returns the order's audit entries, oldest first
func (h *OrderHandler) AuditTrail(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	trail, err := h.orderService.GetAuditTrail(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, trail)
}

// ExecutePurchase dispatches the purchase stage
func (h *OrderHandler) ExecutePurchase(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	var req orderapp.ExecutePurchaseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}

	outcome, err := h.actionService.ExecutePurchase(c.Request.Context(), orderID, c.GetHeader(IdempotencyKeyHeader), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	writeOutcome(c, outcome)
}

// CancelPurchase aborts an in-flight purchase
func (h *OrderHandler) CancelPurchase(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	var req orderapp.CancelPurchaseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}

	outcome, err := h.actionService.CancelPurchase(c.Request.Context(), orderID, c.GetHeader(IdempotencyKeyHeader), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	writeOutcome(c, outcome)
}

// SendToForwarder dispatches the forwarding stage
func (h *OrderHandler) SendToForwarder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	var req orderapp.SendToForwarderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	outcome, err := h.actionService.SendToForwarder(c.Request.Context(), orderID, c.GetHeader(IdempotencyKeyHeader), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	writeOutcome(c, outcome)
}

// Retry resurrects an order from MANUAL_REVIEW or FAILED to PENDING
func (h *OrderHandler) Retry(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	var req orderapp.RetryOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}

	outcome, err := h.actionService.RetryOrder(c.Request.Context(), orderID, c.GetHeader(IdempotencyKeyHeader), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	writeOutcome(c, outcome)
}

// writeOutcome replays the dispatcher's exact body and status code.
// Cached and fresh responses must be byte-identical, so the handler never
// re-renders them.
func writeOutcome(c *gin.Context, outcome *orderapp.ActionOutcome) {
	c.Data(outcome.StatusCode, "application/json; charset=utf-8", outcome.Body)
}
