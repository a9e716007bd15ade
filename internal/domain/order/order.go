package order

import (
	"fmt"
	"time"

	"github.com/orderflow/backend/internal/domain/audit"
	"github.com/orderflow/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle status of an order
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusSupplierOrdering Status = "SUPPLIER_ORDERING"
	StatusOrderedSupplier  Status = "ORDERED_SUPPLIER"
	StatusBuyerInfoSet     Status = "BUYER_INFO_SET"
	StatusForwarderSending Status = "FORWARDER_SENDING"
	StatusSentToForwarder  Status = "SENT_TO_FORWARDER"
	StatusManualReview     Status = "MANUAL_REVIEW"
	StatusRetrying         Status = "RETRYING"
	StatusFailed           Status = "FAILED"
	StatusDone             Status = "DONE"
)

// IsValid checks if the status is a known Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSupplierOrdering, StatusOrderedSupplier,
		StatusBuyerInfoSet, StatusForwarderSending, StatusSentToForwarder,
		StatusManualReview, StatusRetrying, StatusFailed, StatusDone:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether the status ends the pipeline. FAILED is terminal
// except for an explicit human retry action; DONE is strictly terminal.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusSupplierOrdering
	case StatusSupplierOrdering:
		return target == StatusOrderedSupplier || target == StatusRetrying ||
			target == StatusManualReview || target == StatusFailed
	case StatusRetrying:
		return target == StatusSupplierOrdering || target == StatusForwarderSending
	case StatusOrderedSupplier:
		return target == StatusBuyerInfoSet || target == StatusForwarderSending
	case StatusBuyerInfoSet:
		return target == StatusForwarderSending
	case StatusForwarderSending:
		return target == StatusSentToForwarder || target == StatusRetrying ||
			target == StatusManualReview || target == StatusFailed
	case StatusSentToForwarder:
		return target == StatusDone
	case StatusManualReview:
		return target == StatusSupplierOrdering || target == StatusPending
	case StatusFailed:
		return target == StatusPending // manual resurrection only
	case StatusDone:
		return false
	}
	return false
}

// Allowed source sets per caller-facing action
var (
	ExecutePurchaseSources = []Status{StatusPending, StatusManualReview}
	CancelPurchaseSources  = []Status{StatusSupplierOrdering}
	SendToForwarderSources = []Status{StatusOrderedSupplier, StatusBuyerInfoSet}
	RetrySources           = []Status{StatusManualReview, StatusFailed}
)

// StatusIn reports whether s is a member of the set
func StatusIn(s Status, set []Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

// Stage identifies which asynchronous pipeline stage a job belongs to
type Stage string

const (
	StagePurchase Stage = "purchase"
	StageForward  Stage = "forward"
)

// InFlightStatus returns the status an order holds while an attempt for
// this stage is executing
func (st Stage) InFlightStatus() Status {
	if st == StageForward {
		return StatusForwarderSending
	}
	return StatusSupplierOrdering
}

// Audit action names. The ordered per-order sequence of these actions must
// replay into a valid path through the status transitions above.
const (
	ActionOrderCreated           = "order_created"
	ActionExecutePurchase        = "execute_purchase"
	ActionCancelPurchase         = "cancel_purchase"
	ActionSendToForwarder        = "send_to_forwarder"
	ActionRetryRequested         = "retry_requested"
	ActionPurchaseAttemptStarted = "purchase_attempt_started"
	ActionPurchaseCompleted      = "purchase_completed"
	ActionPurchaseRetryScheduled = "purchase_retry_scheduled"
	ActionPurchaseFailed         = "purchase_failed"
	ActionForwardAttemptStarted  = "forward_attempt_started"
	ActionForwardCompleted       = "forward_completed"
	ActionForwardRetryScheduled  = "forward_retry_scheduled"
	ActionForwardFailed          = "forward_failed"
	ActionOrderFailed            = "order_failed"
	ActionSupplierConfirmed      = "supplier_order_confirmed"
	ActionSupplierShipped        = "supplier_order_shipped"
	ActionSupplierCancelled      = "supplier_order_cancelled"
	ActionSupplierOutOfStock     = "supplier_out_of_stock"
	ActionForwarderReceived      = "forwarder_job_received"
	ActionForwarderInTransit     = "forwarder_in_transit"
	ActionForwarderFailed        = "forwarder_job_failed"
	ActionOrderDelivered         = "order_delivered"
)

// Order is the aggregate root of the fulfillment pipeline. Its status is
// mutated only through the methods below, each of which validates the
// current status against the transition's allowed source set and records
// exactly one audit entry for the accepted change.
type Order struct {
	shared.BaseAggregateRoot
	audit.Recorder `gorm:"-"`

	Platform         string
	PlatformOrderRef string
	Qty              int
	UnitPrice        decimal.Decimal
	Currency         string

	Status         Status
	IdempotencyKey string // key that most recently transitioned the order

	SupplierID      string
	SupplierOrderID string
	SupplierStatus  string

	ForwarderID     string
	ForwarderJobID  string
	ForwarderStatus string

	// Meta is an open bag for stage-specific detail: job ids, retry
	// counters, failure reasons, tracking numbers, opaque action payloads.
	Meta map[string]any
}

// New creates an order in PENDING for a marketplace order reference
func New(platform, platformOrderRef string, qty int, unitPrice decimal.Decimal, currency string) (*Order, error) {
	if platform == "" {
		return nil, shared.NewDomainError("INVALID_PLATFORM", "Platform cannot be empty")
	}
	if platformOrderRef == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_REF", "Platform order reference cannot be empty")
	}
	if qty <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}
	if currency == "" {
		currency = "USD"
	}

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Platform:          platform,
		PlatformOrderRef:  platformOrderRef,
		Qty:               qty,
		UnitPrice:         unitPrice,
		Currency:          currency,
		Status:            StatusPending,
		Meta:              make(map[string]any),
	}
	o.record(audit.ActorSystem, ActionOrderCreated, map[string]any{
		"platform":           platform,
		"platform_order_ref": platformOrderRef,
	})
	return o, nil
}

// SetMeta writes a single meta key and stamps the order as modified
func (o *Order) SetMeta(key string, value any) {
	if o.Meta == nil {
		o.Meta = make(map[string]any)
	}
	o.Meta[key] = value
	o.Touch()
}

// MetaString reads a meta value as string, returning "" when absent
func (o *Order) MetaString(key string) string {
	if v, ok := o.Meta[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// BeginPurchase moves the order into SUPPLIER_ORDERING on behalf of a user
// action. jobID is the executor job generated for the asynchronous purchase
// attempt; actionMeta carries the opaque action body (payment method etc.).
func (o *Order) BeginPurchase(idempotencyKey, jobID string, actionMeta map[string]any) error {
	if err := o.guard(ExecutePurchaseSources); err != nil {
		return err
	}
	o.Status = StatusSupplierOrdering
	o.IdempotencyKey = idempotencyKey
	o.SetMeta("purchase_job_id", jobID)
	o.SetMeta("purchase_attempts", 0)
	for k, v := range actionMeta {
		o.SetMeta(k, v)
	}
	o.record(audit.ActorUser, ActionExecutePurchase, map[string]any{
		"job_id": jobID,
		"status": string(o.Status),
	})
	return nil
}

// CancelPurchase aborts a pending purchase and parks the order for review
func (o *Order) CancelPurchase(idempotencyKey, reason string) error {
	if err := o.guard(CancelPurchaseSources); err != nil {
		return err
	}
	o.Status = StatusManualReview
	o.IdempotencyKey = idempotencyKey
	if reason != "" {
		o.SetMeta("cancel_reason", reason)
	}
	o.Touch()
	o.record(audit.ActorUser, ActionCancelPurchase, map[string]any{
		"reason": reason,
		"status": string(o.Status),
	})
	return nil
}

// ResumeAttempt restores the stage's in-flight status for a retried attempt
func (o *Order) ResumeAttempt(stage Stage, retryCount int) error {
	if o.Status != StatusRetrying {
		return o.invalidStatus([]Status{StatusRetrying})
	}
	o.Status = stage.InFlightStatus()
	o.Touch()
	action := ActionPurchaseAttemptStarted
	if stage == StageForward {
		action = ActionForwardAttemptStarted
	}
	o.record(audit.ActorSystem, action, map[string]any{
		"retry_count": retryCount,
		"status":      string(o.Status),
	})
	return nil
}

// CompletePurchase records a successful supplier placement
func (o *Order) CompletePurchase(supplierOrderID string, attempts int) error {
	if o.Status != StatusSupplierOrdering {
		return o.invalidStatus([]Status{StatusSupplierOrdering})
	}
	now := time.Now()
	o.Status = StatusOrderedSupplier
	o.SupplierOrderID = supplierOrderID
	o.SupplierStatus = "ordered"
	o.SetMeta("purchase_attempts", attempts)
	o.SetMeta("purchase_completed_at", now.Format(time.RFC3339))
	o.record(audit.ActorSystem, ActionPurchaseCompleted, map[string]any{
		"supplier_order_id": supplierOrderID,
		"attempts":          attempts,
		"status":            string(o.Status),
	})
	return nil
}

// SchedulePurchaseRetry parks the order in RETRYING until the next attempt
func (o *Order) SchedulePurchaseRetry(retryCount int, reason string) error {
	if o.Status != StatusSupplierOrdering {
		return o.invalidStatus([]Status{StatusSupplierOrdering})
	}
	o.scheduleRetry(StagePurchase, retryCount, reason)
	return nil
}

// MarkPurchaseFailed exhausts the purchase stage into MANUAL_REVIEW
func (o *Order) MarkPurchaseFailed(reason string, totalAttempts int) error {
	if o.Status != StatusSupplierOrdering {
		return o.invalidStatus([]Status{StatusSupplierOrdering})
	}
	o.failStage(StagePurchase, reason, totalAttempts)
	return nil
}

// BeginForwarding moves the order into FORWARDER_SENDING on behalf of a
// user action
func (o *Order) BeginForwarding(idempotencyKey, forwarderID, jobID string, actionMeta map[string]any) error {
	if err := o.guard(SendToForwarderSources); err != nil {
		return err
	}
	if forwarderID == "" {
		return shared.NewDomainError("INVALID_FORWARDER", "Forwarder ID cannot be empty")
	}
	o.Status = StatusForwarderSending
	o.IdempotencyKey = idempotencyKey
	o.ForwarderID = forwarderID
	o.SetMeta("forward_job_id", jobID)
	o.SetMeta("forward_attempts", 0)
	for k, v := range actionMeta {
		o.SetMeta(k, v)
	}
	o.record(audit.ActorUser, ActionSendToForwarder, map[string]any{
		"forwarder_id": forwarderID,
		"job_id":       jobID,
		"status":       string(o.Status),
	})
	return nil
}

// CompleteForwarding records a successful hand-off to the forwarder
func (o *Order) CompleteForwarding(forwarderJobID, trackingNumber string, attempts int) error {
	if o.Status != StatusForwarderSending {
		return o.invalidStatus([]Status{StatusForwarderSending})
	}
	now := time.Now()
	o.Status = StatusSentToForwarder
	o.ForwarderJobID = forwarderJobID
	o.ForwarderStatus = "received"
	o.SetMeta("tracking_number", trackingNumber)
	o.SetMeta("forward_attempts", attempts)
	o.SetMeta("forward_completed_at", now.Format(time.RFC3339))
	o.record(audit.ActorSystem, ActionForwardCompleted, map[string]any{
		"forwarder_job_id": forwarderJobID,
		"tracking_number":  trackingNumber,
		"attempts":         attempts,
		"status":           string(o.Status),
	})
	return nil
}

// ScheduleForwardRetry parks the order in RETRYING until the next attempt
func (o *Order) ScheduleForwardRetry(retryCount int, reason string) error {
	if o.Status != StatusForwarderSending {
		return o.invalidStatus([]Status{StatusForwarderSending})
	}
	o.scheduleRetry(StageForward, retryCount, reason)
	return nil
}

// MarkForwardFailed exhausts the forward stage into MANUAL_REVIEW
func (o *Order) MarkForwardFailed(reason string, totalAttempts int) error {
	if o.Status != StatusForwarderSending {
		return o.invalidStatus([]Status{StatusForwarderSending})
	}
	o.failStage(StageForward, reason, totalAttempts)
	return nil
}

// Fail records an unrecoverable failure. Unlike retry exhaustion this is
// terminal without human re-entry, so it is reserved for the fatal path.
func (o *Order) Fail(reason string) error {
	if !o.Status.CanTransitionTo(StatusFailed) {
		return o.invalidStatus([]Status{StatusSupplierOrdering, StatusForwarderSending})
	}
	o.Status = StatusFailed
	o.SetMeta("failure_reason", reason)
	o.SetMeta("failed_at", time.Now().Format(time.RFC3339))
	o.record(audit.ActorSystem, ActionOrderFailed, map[string]any{
		"failure_reason": reason,
		"status":         string(o.Status),
	})
	return nil
}

// RequestRetry resurrects a parked or failed order back to PENDING
func (o *Order) RequestRetry(idempotencyKey, reason string) error {
	if err := o.guard(RetrySources); err != nil {
		return err
	}
	o.Status = StatusPending
	o.IdempotencyKey = idempotencyKey
	if reason != "" {
		o.SetMeta("retry_reason", reason)
	}
	o.Touch()
	o.record(audit.ActorUser, ActionRetryRequested, map[string]any{
		"reason": reason,
		"status": string(o.Status),
	})
	return nil
}

func (o *Order) scheduleRetry(stage Stage, retryCount int, reason string) {
	now := time.Now()
	o.Status = StatusRetrying
	o.SetMeta(string(stage)+"_retry_count", retryCount)
	o.SetMeta("last_retry_at", now.Format(time.RFC3339))
	o.SetMeta("last_failure_reason", reason)
	action := ActionPurchaseRetryScheduled
	if stage == StageForward {
		action = ActionForwardRetryScheduled
	}
	o.record(audit.ActorSystem, action, map[string]any{
		"retry_count": retryCount,
		"reason":      reason,
		"status":      string(o.Status),
	})
}

func (o *Order) failStage(stage Stage, reason string, totalAttempts int) {
	now := time.Now()
	o.Status = StatusManualReview
	o.SetMeta("failure_reason", reason)
	o.SetMeta("failed_at", now.Format(time.RFC3339))
	o.SetMeta("total_attempts", totalAttempts)
	action := ActionPurchaseFailed
	if stage == StageForward {
		action = ActionForwardFailed
	}
	o.record(audit.ActorSystem, action, map[string]any{
		"failure_reason": reason,
		"total_attempts": totalAttempts,
		"status":         string(o.Status),
	})
}

// guard rejects the mutation unless the current status is in the allowed
// source set. Callers must run this check against the latest committed row.
func (o *Order) guard(sources []Status) error {
	if !StatusIn(o.Status, sources) {
		return o.invalidStatus(sources)
	}
	return nil
}

func (o *Order) invalidStatus(allowed []Status) error {
	return shared.NewDomainError("INVALID_STATUS",
		fmt.Sprintf("Order status is %s, allowed: %v", o.Status, allowed))
}

func (o *Order) record(actor audit.Actor, action string, meta map[string]any) {
	entry, err := audit.NewEntry(o.ID, actor, action, meta)
	if err != nil {
		// only possible with an empty action/actor, which is a programming error
		return
	}
	o.Record(entry)
}
