package order

import (
	"time"

	"github.com/orderflow/backend/internal/domain/audit"
)

// Webhook-applied mutations. Each returns (changed, err): a redelivered
// event that observes its effect already applied is a no-op with no audit
// entry rather than an error, so upstream retries stay harmless.

// ApplySupplierConfirmed records the supplier acknowledging the order
func (o *Order) ApplySupplierConfirmed(supplierStatus string) (bool, error) {
	if o.Status == StatusOrderedSupplier {
		return false, nil // duplicate delivery
	}
	if o.Status != StatusSupplierOrdering {
		return false, o.invalidStatus([]Status{StatusSupplierOrdering})
	}
	o.Status = StatusOrderedSupplier
	if supplierStatus == "" {
		supplierStatus = "confirmed"
	}
	o.SupplierStatus = supplierStatus
	o.Touch()
	o.record(audit.ActorWebhook, ActionSupplierConfirmed, map[string]any{
		"supplier_status": supplierStatus,
		"status":          string(o.Status),
	})
	return true, nil
}

// ApplySupplierShipped records the supplier shipping the goods, which
// unlocks forwarding with buyer shipping info attached
func (o *Order) ApplySupplierShipped(buyerInfo map[string]any) (bool, error) {
	if o.Status == StatusBuyerInfoSet {
		return false, nil
	}
	if o.Status != StatusOrderedSupplier {
		return false, o.invalidStatus([]Status{StatusOrderedSupplier})
	}
	o.Status = StatusBuyerInfoSet
	o.SupplierStatus = "shipped"
	for k, v := range buyerInfo {
		o.SetMeta(k, v)
	}
	o.Touch()
	o.record(audit.ActorWebhook, ActionSupplierShipped, map[string]any{
		"status": string(o.Status),
	})
	return true, nil
}

// ApplySupplierCancelled records the supplier rejecting the order, which
// is fatal for the pipeline
func (o *Order) ApplySupplierCancelled(reason string) (bool, error) {
	if o.Status == StatusFailed {
		return false, nil
	}
	if o.Status != StatusSupplierOrdering {
		return false, o.invalidStatus([]Status{StatusSupplierOrdering})
	}
	o.Status = StatusFailed
	o.SupplierStatus = "cancelled"
	o.SetMeta("failure_reason", reason)
	o.SetMeta("failed_at", time.Now().Format(time.RFC3339))
	o.record(audit.ActorWebhook, ActionSupplierCancelled, map[string]any{
		"reason": reason,
		"status": string(o.Status),
	})
	return true, nil
}

// ApplySupplierOutOfStock parks the order for a human to pick an
// alternative supplier
func (o *Order) ApplySupplierOutOfStock(reason string) (bool, error) {
	if o.Status == StatusManualReview {
		return false, nil
	}
	if o.Status != StatusSupplierOrdering {
		return false, o.invalidStatus([]Status{StatusSupplierOrdering})
	}
	o.Status = StatusManualReview
	o.SupplierStatus = "out_of_stock"
	if reason != "" {
		o.SetMeta("failure_reason", reason)
	}
	o.Touch()
	o.record(audit.ActorWebhook, ActionSupplierOutOfStock, map[string]any{
		"reason": reason,
		"status": string(o.Status),
	})
	return true, nil
}

// ApplyForwarderReceived records the forwarder acknowledging the job
func (o *Order) ApplyForwarderReceived(forwarderJobID string) (bool, error) {
	if o.Status == StatusSentToForwarder {
		return false, nil
	}
	if o.Status != StatusForwarderSending {
		return false, o.invalidStatus([]Status{StatusForwarderSending})
	}
	o.Status = StatusSentToForwarder
	if forwarderJobID != "" {
		o.ForwarderJobID = forwarderJobID
	}
	o.ForwarderStatus = "received"
	o.Touch()
	o.record(audit.ActorWebhook, ActionForwarderReceived, map[string]any{
		"forwarder_job_id": o.ForwarderJobID,
		"status":           string(o.Status),
	})
	return true, nil
}

// ApplyForwarderInTransit updates shipment progress without a status
// transition; the order stays in SENT_TO_FORWARDER
func (o *Order) ApplyForwarderInTransit(trackingNumber string) (bool, error) {
	if o.ForwarderStatus == "in_transit" && (trackingNumber == "" || o.MetaString("tracking_number") == trackingNumber) {
		return false, nil
	}
	if o.Status != StatusSentToForwarder {
		return false, o.invalidStatus([]Status{StatusSentToForwarder})
	}
	o.ForwarderStatus = "in_transit"
	if trackingNumber != "" {
		o.SetMeta("tracking_number", trackingNumber)
	}
	o.Touch()
	o.record(audit.ActorWebhook, ActionForwarderInTransit, map[string]any{
		"tracking_number": o.MetaString("tracking_number"),
		"status":          string(o.Status),
	})
	return true, nil
}

// ApplyForwarderFailed records the forwarder rejecting the dispatch, which
// is terminal for automated handling
func (o *Order) ApplyForwarderFailed(reason string) (bool, error) {
	if o.Status == StatusFailed {
		return false, nil
	}
	if o.Status != StatusForwarderSending {
		return false, o.invalidStatus([]Status{StatusForwarderSending})
	}
	o.Status = StatusFailed
	o.ForwarderStatus = "failed"
	o.SetMeta("failure_reason", reason)
	o.SetMeta("failed_at", time.Now().Format(time.RFC3339))
	o.record(audit.ActorWebhook, ActionForwarderFailed, map[string]any{
		"reason": reason,
		"status": string(o.Status),
	})
	return true, nil
}

// ApplyDelivered completes the order
func (o *Order) ApplyDelivered() (bool, error) {
	if o.Status == StatusDone {
		return false, nil
	}
	if o.Status != StatusSentToForwarder {
		return false, o.invalidStatus([]Status{StatusSentToForwarder})
	}
	o.Status = StatusDone
	o.ForwarderStatus = "delivered"
	o.SetMeta("delivered_at", time.Now().Format(time.RFC3339))
	o.record(audit.ActorWebhook, ActionOrderDelivered, map[string]any{
		"status": string(o.Status),
	})
	return true, nil
}
