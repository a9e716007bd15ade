package handler

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	orderapp "github.com/orderflow/backend/internal/application/order"
	"github.com/orderflow/backend/internal/infrastructure/fulfillment"
	"github.com/orderflow/backend/internal/interfaces/http/dto"
)

// SignatureHeader carries the hex HMAC-SHA256 digest of the raw body
const SignatureHeader = "X-Webhook-Signature"

// WebhookHandler ingests supplier and forwarder callbacks. Signatures are
// verified over the raw body before the payload is trusted.
type WebhookHandler struct {
	BaseHandler
	webhookService    *orderapp.WebhookService
	supplierVerifier  *fulfillment.SignatureVerifier
	forwarderVerifier *fulfillment.SignatureVerifier
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(
	webhookService *orderapp.WebhookService,
	supplierVerifier *fulfillment.SignatureVerifier,
	forwarderVerifier *fulfillment.SignatureVerifier,
) *WebhookHandler {
	return &WebhookHandler{
		webhookService:    webhookService,
		supplierVerifier:  supplierVerifier,
		forwarderVerifier: forwarderVerifier,
	}
}

// RegisterRoutes registers the webhook routes
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	webhooks := rg.Group("/webhooks")
	{
		webhooks.POST("/supplier", h.Supplier)
		webhooks.POST("/forwarder", h.Forwarder)
	}
}

// Supplier handles supplier callbacks
func (h *WebhookHandler) Supplier(c *gin.Context) {
	body, ok := h.verifiedBody(c, h.supplierVerifier)
	if !ok {
		return
	}

	var req orderapp.SupplierWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.BadRequest(c, "Invalid webhook payload")
		return
	}
	if req.Event == "" || req.SupplierOrderID == "" {
		h.BadRequest(c, "event and supplier_order_id are required")
		return
	}

	result, err := h.webhookService.HandleSupplierEvent(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Forwarder handles forwarder callbacks
func (h *WebhookHandler) Forwarder(c *gin.Context) {
	body, ok := h.verifiedBody(c, h.forwarderVerifier)
	if !ok {
		return
	}

	var req orderapp.ForwarderWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.BadRequest(c, "Invalid webhook payload")
		return
	}
	if req.Event == "" || req.ForwarderJobID == "" {
		h.BadRequest(c, "event and forwarder_job_id are required")
		return
	}

	result, err := h.webhookService.HandleForwarderEvent(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// verifiedBody reads the raw body and checks its signature. The body is
// restored on the request so later middleware can still observe it.
func (h *WebhookHandler) verifiedBody(c *gin.Context, verifier *fulfillment.SignatureVerifier) ([]byte, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return nil, false
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	if err := verifier.Verify(body, c.GetHeader(SignatureHeader)); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeInvalidSignature), dto.ErrCodeInvalidSignature, err.Error())
		return nil, false
	}
	return body, true
}
