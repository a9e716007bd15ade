package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderflow/backend/internal/domain/audit"
	"github.com/orderflow/backend/internal/domain/order"
)

// ==================== Order DTOs ====================

// CreateOrderRequest represents a request to register a marketplace order
type CreateOrderRequest struct {
	Platform         string          `json:"platform" binding:"required,min=1,max=50"`
	PlatformOrderRef string          `json:"platform_order_ref" binding:"required,min=1,max=100"`
	Qty              int             `json:"qty" binding:"required,min=1"`
	UnitPrice        decimal.Decimal `json:"unit_price" binding:"required"`
	Currency         string          `json:"currency"`
	Meta             map[string]any  `json:"meta"`
}

// OrderListFilter represents filter options for the order list
type OrderListFilter struct {
	Platform string `form:"platform"`
	Status   string `form:"status"`
	Search   string `form:"search"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID               uuid.UUID       `json:"id"`
	Platform         string          `json:"platform"`
	PlatformOrderRef string          `json:"platform_order_ref"`
	Qty              int             `json:"qty"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	SupplierID       string          `json:"supplier_id,omitempty"`
	SupplierOrderID  string          `json:"supplier_order_id,omitempty"`
	SupplierStatus   string          `json:"supplier_status,omitempty"`
	ForwarderID      string          `json:"forwarder_id,omitempty"`
	ForwarderJobID   string          `json:"forwarder_job_id,omitempty"`
	ForwarderStatus  string          `json:"forwarder_status,omitempty"`
	Meta             map[string]any  `json:"meta,omitempty"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ToOrderResponse converts a domain order to its response representation
func ToOrderResponse(o *order.Order) OrderResponse {
	return OrderResponse{
		ID:               o.ID,
		Platform:         o.Platform,
		PlatformOrderRef: o.PlatformOrderRef,
		Qty:              o.Qty,
		UnitPrice:        o.UnitPrice,
		Currency:         o.Currency,
		Status:           string(o.Status),
		SupplierID:       o.SupplierID,
		SupplierOrderID:  o.SupplierOrderID,
		SupplierStatus:   o.SupplierStatus,
		ForwarderID:      o.ForwarderID,
		ForwarderJobID:   o.ForwarderJobID,
		ForwarderStatus:  o.ForwarderStatus,
		Meta:             o.Meta,
		Version:          o.Version,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

// ToOrderResponses converts a slice of domain orders
func ToOrderResponses(orders []order.Order) []OrderResponse {
	responses := make([]OrderResponse, len(orders))
	for i := range orders {
		responses[i] = ToOrderResponse(&orders[i])
	}
	return responses
}

// ==================== Action DTOs ====================

// ExecutePurchaseRequest carries the action-specific body for the
// execute-purchase action. The fields are opaque to the pipeline and are
// forwarded into the order's meta bag.
type ExecutePurchaseRequest struct {
	PaymentMethod    string         `json:"payment_method"`
	Constraints      map[string]any `json:"constraints"`
	SupplierOverride string         `json:"supplier_override"`
}

// CancelPurchaseRequest carries the cancel-purchase action body
type CancelPurchaseRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// SendToForwarderRequest carries the send-to-forwarder action body
type SendToForwarderRequest struct {
	ForwarderID string         `json:"forwarder_id" binding:"required,min=1,max=100"`
	Options     map[string]any `json:"options"`
}

// RetryOrderRequest carries the admin retry action body
type RetryOrderRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// ActionAcceptedResponse is the body returned (and cached) for an
// accepted action
type ActionAcceptedResponse struct {
	OrderID uuid.UUID `json:"order_id"`
	Action  string    `json:"action"`
	Status  string    `json:"status"`
	JobID   string    `json:"job_id,omitempty"`
}

// ActionErrorResponse is the body returned (and, for deterministic
// rejections, cached) when an action is refused
type ActionErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ActionOutcome is what the dispatcher hands back to the HTTP layer: a
// status code plus the exact body to write. Replayed marks an idempotent
// cache hit served without re-executing the action.
type ActionOutcome struct {
	StatusCode int
	Body       []byte
	Replayed   bool
}

// ==================== Audit DTOs ====================

// AuditEntryResponse represents one audit trail entry
type AuditEntryResponse struct {
	ID        uuid.UUID      `json:"id"`
	OrderID   *uuid.UUID     `json:"order_id,omitempty"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Meta      map[string]any `json:"meta,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ToAuditEntryResponses converts domain audit entries
func ToAuditEntryResponses(entries []*audit.Entry) []AuditEntryResponse {
	responses := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		responses[i] = AuditEntryResponse{
			ID:        e.ID,
			OrderID:   e.OrderID,
			Actor:     string(e.Actor),
			Action:    e.Action,
			Meta:      e.GetMeta(),
			Timestamp: e.CreatedAt,
		}
	}
	return responses
}

// ==================== Webhook DTOs ====================

// SupplierWebhookRequest is the supplier callback payload
type SupplierWebhookRequest struct {
	Event           string         `json:"event" binding:"required"`
	SupplierOrderID string         `json:"supplier_order_id" binding:"required"`
	Status          string         `json:"status"`
	Data            map[string]any `json:"data"`
}

// ForwarderWebhookRequest is the forwarder callback payload
type ForwarderWebhookRequest struct {
	Event          string         `json:"event" binding:"required"`
	ForwarderJobID string         `json:"forwarder_job_id" binding:"required"`
	Status         string         `json:"status"`
	Data           map[string]any `json:"data"`
}

// WebhookResult reports what a webhook delivery did
type WebhookResult struct {
	OrderID uuid.UUID `json:"order_id"`
	Status  string    `json:"status"`
	Changed bool      `json:"changed"`
}
