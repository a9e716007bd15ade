package order

import (
	"context"

	"go.uber.org/zap"

	"github.com/orderflow/backend/internal/domain/order"
	"github.com/orderflow/backend/internal/domain/shared"
)

// Supplier webhook events
const (
	SupplierEventConfirmed  = "order.confirmed"
	SupplierEventShipped    = "order.shipped"
	SupplierEventCancelled  = "order.cancelled"
	SupplierEventOutOfStock = "order.out_of_stock"
)

// Forwarder webhook events
const (
	ForwarderEventReceived  = "job.received"
	ForwarderEventInTransit = "job.in_transit"
	ForwarderEventDelivered = "job.delivered"
	ForwarderEventFailed    = "job.failed"
)

// ErrUnknownEvent rejects a webhook with an unrecognized event field
var ErrUnknownEvent = shared.NewDomainError("UNKNOWN_EVENT", "Unrecognized webhook event")

// WebhookService applies external supplier and forwarder callbacks to
// orders. Lookup is by the stage-specific external reference, never the
// internal id. A delivery that finds the order already at the event's
// target state is acknowledged without mutation or audit noise.
type WebhookService struct {
	orderRepo order.Repository
	logger    *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(orderRepo order.Repository, logger *zap.Logger) *WebhookService {
	return &WebhookService{
		orderRepo: orderRepo,
		logger:    logger,
	}
}

// HandleSupplierEvent applies a supplier callback
func (s *WebhookService) HandleSupplierEvent(ctx context.Context, req SupplierWebhookRequest) (*WebhookResult, error) {
	found, err := s.orderRepo.FindBySupplierOrderID(ctx, req.SupplierOrderID)
	if err != nil {
		return nil, err
	}

	var changed bool
	updated, err := s.orderRepo.UpdateTransactional(ctx, found.ID, func(o *order.Order) error {
		var applyErr error
		switch req.Event {
		case SupplierEventConfirmed:
			changed, applyErr = o.ApplySupplierConfirmed(req.Status)
		case SupplierEventShipped:
			changed, applyErr = o.ApplySupplierShipped(req.Data)
		case SupplierEventCancelled:
			changed, applyErr = o.ApplySupplierCancelled(metaReason(req.Data))
		case SupplierEventOutOfStock:
			changed, applyErr = o.ApplySupplierOutOfStock(metaReason(req.Data))
		default:
			return ErrUnknownEvent
		}
		return applyErr
	})
	if err != nil {
		return nil, err
	}

	s.logWebhook("supplier", req.Event, updated, changed)
	return &WebhookResult{OrderID: updated.ID, Status: string(updated.Status), Changed: changed}, nil
}

// HandleForwarderEvent applies a forwarder callback
func (s *WebhookService) HandleForwarderEvent(ctx context.Context, req ForwarderWebhookRequest) (*WebhookResult, error) {
	found, err := s.orderRepo.FindByForwarderJobID(ctx, req.ForwarderJobID)
	if err != nil {
		return nil, err
	}

	var changed bool
	updated, err := s.orderRepo.UpdateTransactional(ctx, found.ID, func(o *order.Order) error {
		var applyErr error
		switch req.Event {
		case ForwarderEventReceived:
			changed, applyErr = o.ApplyForwarderReceived(req.ForwarderJobID)
		case ForwarderEventInTransit:
			changed, applyErr = o.ApplyForwarderInTransit(metaString(req.Data, "tracking_number"))
		case ForwarderEventDelivered:
			changed, applyErr = o.ApplyDelivered()
		case ForwarderEventFailed:
			changed, applyErr = o.ApplyForwarderFailed(metaReason(req.Data))
		default:
			return ErrUnknownEvent
		}
		return applyErr
	})
	if err != nil {
		return nil, err
	}

	s.logWebhook("forwarder", req.Event, updated, changed)
	return &WebhookResult{OrderID: updated.ID, Status: string(updated.Status), Changed: changed}, nil
}

func (s *WebhookService) logWebhook(source, event string, o *order.Order, changed bool) {
	s.logger.Info("Webhook applied",
		zap.String("source", source),
		zap.String("event", event),
		zap.String("order_id", o.ID.String()),
		zap.String("status", string(o.Status)),
		zap.Bool("changed", changed),
	)
}

func metaReason(data map[string]any) string {
	return metaString(data, "reason")
}

func metaString(data map[string]any, key string) string {
	if v, ok := data[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
