package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderflow/backend/internal/domain/order"
	"github.com/orderflow/backend/internal/domain/shared"
	"github.com/orderflow/backend/internal/infrastructure/scheduler"
)

// JobScheduler hands a delayed job to the executor pool
type JobScheduler interface {
	Schedule(job *scheduler.Job) error
}

// ActionConfig holds action dispatch timing configuration
type ActionConfig struct {
	// InitialDelay is how long after dispatch the first attempt runs
	InitialDelay time.Duration
	// IdempotencyTTL is how long cached action responses live
	IdempotencyTTL time.Duration
}

// DefaultActionConfig returns default action dispatch configuration
func DefaultActionConfig() ActionConfig {
	return ActionConfig{
		InitialDelay:   time.Second,
		IdempotencyTTL: 24 * time.Hour,
	}
}

// ActionService is the synchronous dispatch layer for order actions.
// Every action claims an idempotency key first: a repeated key replays
// the cached response verbatim and performs no further work, so client
// retries can never double-dispatch a job or double-write an audit entry.
type ActionService struct {
	orderRepo   order.Repository
	idempotency shared.IdempotencyStore
	scheduler   JobScheduler
	config      ActionConfig
	logger      *zap.Logger
}

// NewActionService creates a new ActionService
func NewActionService(
	orderRepo order.Repository,
	idempotency shared.IdempotencyStore,
	jobScheduler JobScheduler,
	config ActionConfig,
	logger *zap.Logger,
) *ActionService {
	if config.InitialDelay <= 0 {
		config.InitialDelay = DefaultActionConfig().InitialDelay
	}
	if config.IdempotencyTTL <= 0 {
		config.IdempotencyTTL = DefaultActionConfig().IdempotencyTTL
	}
	return &ActionService{
		orderRepo:   orderRepo,
		idempotency: idempotency,
		scheduler:   jobScheduler,
		config:      config,
		logger:      logger,
	}
}

// ExecutePurchase dispatches the purchase stage for an order. On accept
// it enqueues exactly one purchase job and returns 202 with the job id.
func (s *ActionService) ExecutePurchase(ctx context.Context, orderID uuid.UUID, idempotencyKey string, req ExecutePurchaseRequest) (*ActionOutcome, error) {
	job := scheduler.NewJob(scheduler.JobKindPurchase, orderID, 0, s.config.InitialDelay)
	actionMeta := map[string]any{}
	if req.PaymentMethod != "" {
		actionMeta["payment_method"] = req.PaymentMethod
	}
	if len(req.Constraints) > 0 {
		actionMeta["constraints"] = req.Constraints
	}
	if req.SupplierOverride != "" {
		actionMeta["supplier_override"] = req.SupplierOverride
	}

	return s.dispatch(ctx, orderID, idempotencyKey, "execute-purchase", http.StatusAccepted, job,
		func(o *order.Order) error {
			return o.BeginPurchase(idempotencyKey, job.ID.String(), actionMeta)
		})
}

// CancelPurchase aborts a purchase that has not completed yet, parking
// the order in MANUAL_REVIEW. No job is enqueued.
func (s *ActionService) CancelPurchase(ctx context.Context, orderID uuid.UUID, idempotencyKey string, req CancelPurchaseRequest) (*ActionOutcome, error) {
	return s.dispatch(ctx, orderID, idempotencyKey, "cancel-purchase", http.StatusOK, nil,
		func(o *order.Order) error {
			return o.CancelPurchase(idempotencyKey, req.Reason)
		})
}

// SendToForwarder dispatches the forwarding stage for an order. On
// accept it enqueues exactly one forward job and returns 202.
func (s *ActionService) SendToForwarder(ctx context.Context, orderID uuid.UUID, idempotencyKey string, req SendToForwarderRequest) (*ActionOutcome, error) {
	job := scheduler.NewJob(scheduler.JobKindForward, orderID, 0, s.config.InitialDelay)
	actionMeta := map[string]any{}
	if len(req.Options) > 0 {
		actionMeta["forward_options"] = req.Options
	}

	return s.dispatch(ctx, orderID, idempotencyKey, "send-to-forwarder", http.StatusAccepted, job,
		func(o *order.Order) error {
			return o.BeginForwarding(idempotencyKey, req.ForwarderID, job.ID.String(), actionMeta)
		})
}

// RetryOrder resurrects an order from MANUAL_REVIEW or FAILED back to
// PENDING so a human can re-enter the pipeline.
func (s *ActionService) RetryOrder(ctx context.Context, orderID uuid.UUID, idempotencyKey string, req RetryOrderRequest) (*ActionOutcome, error) {
	return s.dispatch(ctx, orderID, idempotencyKey, "retry", http.StatusOK, nil,
		func(o *order.Order) error {
			return o.RequestRetry(idempotencyKey, req.Reason)
		})
}

// dispatch runs the shared action algorithm: validate the key, claim it,
// apply the transition atomically, enqueue the job if any, then cache and
// return the response. Deterministic rejections (unknown order, wrong
// status) are cached too so a repeated key replays them; transient
// conflicts are not.
func (s *ActionService) dispatch(
	ctx context.Context,
	orderID uuid.UUID,
	idempotencyKey string,
	action string,
	successCode int,
	job *scheduler.Job,
	mutate func(o *order.Order) error,
) (*ActionOutcome, error) {
	if err := shared.ValidateIdempotencyKey(idempotencyKey); err != nil {
		var domainErr *shared.DomainError
		errors.As(err, &domainErr)
		return errorOutcome(http.StatusBadRequest, domainErr.Code, domainErr.Message), nil
	}

	cached, found, err := s.idempotency.Claim(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if found {
		s.logger.Info("Idempotent replay",
			zap.String("order_id", orderID.String()),
			zap.String("action", action),
			zap.String("idempotency_key", idempotencyKey),
		)
		return &ActionOutcome{
			StatusCode: cached.StatusCode,
			Body:       cached.Response,
			Replayed:   true,
		}, nil
	}

	updated, err := s.orderRepo.UpdateTransactional(ctx, orderID, mutate)
	if err != nil {
		return s.rejectOutcome(ctx, orderID, idempotencyKey, action, err)
	}

	if job != nil {
		if err := s.scheduler.Schedule(job); err != nil {
			// the transition is already committed; surface the stall loudly
			// so the order can be re-dispatched via the retry action
			s.logger.Error("Failed to schedule job after accepted action",
				zap.String("order_id", orderID.String()),
				zap.String("action", action),
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
		}
	}

	response := ActionAcceptedResponse{
		OrderID: orderID,
		Action:  action,
		Status:  string(updated.Status),
	}
	if job != nil {
		response.JobID = job.ID.String()
	}
	body, err := json.Marshal(response)
	if err != nil {
		return nil, err
	}

	s.cache(ctx, idempotencyKey, body, successCode)

	s.logger.Info("Action accepted",
		zap.String("order_id", orderID.String()),
		zap.String("action", action),
		zap.String("status", response.Status),
		zap.String("job_id", response.JobID),
	)
	return &ActionOutcome{StatusCode: successCode, Body: body}, nil
}

// rejectOutcome translates a transition error into an HTTP outcome.
// ORDER_NOT_FOUND and INVALID_STATUS are deterministic for a given call
// and get cached under the key; concurrency conflicts may succeed on a
// fresh key and are returned uncached.
func (s *ActionService) rejectOutcome(ctx context.Context, orderID uuid.UUID, idempotencyKey, action string, err error) (*ActionOutcome, error) {
	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		return nil, err
	}

	s.logger.Warn("Action rejected",
		zap.String("order_id", orderID.String()),
		zap.String("action", action),
		zap.String("code", domainErr.Code),
		zap.String("message", domainErr.Message),
	)

	switch domainErr.Code {
	case shared.ErrOrderNotFound.Code:
		outcome := errorOutcome(http.StatusNotFound, domainErr.Code, domainErr.Message)
		s.cache(ctx, idempotencyKey, outcome.Body, outcome.StatusCode)
		return outcome, nil
	case shared.ErrConcurrencyConflict.Code:
		return errorOutcome(http.StatusConflict, domainErr.Code, domainErr.Message), nil
	default:
		outcome := errorOutcome(http.StatusBadRequest, domainErr.Code, domainErr.Message)
		s.cache(ctx, idempotencyKey, outcome.Body, outcome.StatusCode)
		return outcome, nil
	}
}

func (s *ActionService) cache(ctx context.Context, key string, body []byte, statusCode int) {
	if _, err := s.idempotency.Store(ctx, key, body, statusCode, s.config.IdempotencyTTL); err != nil {
		s.logger.Error("Failed to cache action response",
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
	}
}

func errorOutcome(statusCode int, code, message string) *ActionOutcome {
	body, _ := json.Marshal(ActionErrorResponse{Code: code, Message: message})
	return &ActionOutcome{StatusCode: statusCode, Body: body}
}
