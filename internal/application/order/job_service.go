package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/orderflow/backend/internal/domain/order"
	"github.com/orderflow/backend/internal/domain/shared"
	"github.com/orderflow/backend/internal/infrastructure/scheduler"
)

// errStaleJob aborts an attempt whose order was already moved by another
// actor. The transaction rolls back and the attempt exits silently.
var errStaleJob = errors.New("job is stale for current order status")

// RetryPolicy bounds the per-stage attempt loop
type RetryPolicy struct {
	// MaxAttempts is the total attempts per stage including the first
	MaxAttempts int
	// Delay is the fixed wait before each retry attempt
	Delay time.Duration
}

// DefaultRetryPolicy returns the default bounded retry policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       30 * time.Second,
	}
}

// JobService executes purchase and forward jobs against the external
// clients. Each attempt is one Execute call; a failed retryable attempt
// parks the order in RETRYING and schedules a fresh job with an
// incremented retry count, so the executor itself never loops.
type JobService struct {
	orderRepo order.Repository
	supplier  order.SupplierClient
	forwarder order.ForwarderClient
	scheduler JobScheduler
	policy    RetryPolicy
	logger    *zap.Logger
}

// NewJobService creates a new JobService
func NewJobService(
	orderRepo order.Repository,
	supplier order.SupplierClient,
	forwarder order.ForwarderClient,
	jobScheduler JobScheduler,
	policy RetryPolicy,
	logger *zap.Logger,
) *JobService {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultRetryPolicy().MaxAttempts
	}
	if policy.Delay <= 0 {
		policy.Delay = DefaultRetryPolicy().Delay
	}
	return &JobService{
		orderRepo: orderRepo,
		supplier:  supplier,
		forwarder: forwarder,
		scheduler: jobScheduler,
		policy:    policy,
		logger:    logger,
	}
}

// Execute runs a single job attempt. Implements scheduler.JobExecutor.
func (s *JobService) Execute(ctx context.Context, job *scheduler.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
			s.failFatally(job, err.Error())
		}
	}()

	stage := order.StagePurchase
	if job.Kind == scheduler.JobKindForward {
		stage = order.StageForward
	}

	o, err := s.claimAttempt(ctx, job, stage)
	if err != nil {
		if errors.Is(err, errStaleJob) {
			return nil
		}
		return err
	}

	switch stage {
	case order.StageForward:
		return s.runForward(ctx, job, o)
	default:
		return s.runPurchase(ctx, job, o)
	}
}

// claimAttempt re-loads the order and verifies it is still expecting this
// attempt. The first attempt expects the stage's in-flight status set by
// the dispatcher; a retry expects RETRYING and transitions back to the
// in-flight status before the external call.
func (s *JobService) claimAttempt(ctx context.Context, job *scheduler.Job, stage order.Stage) (*order.Order, error) {
	if job.RetryCount == 0 {
		o, err := s.orderRepo.FindByID(ctx, job.OrderID)
		if err != nil {
			return nil, err
		}
		if o.Status != stage.InFlightStatus() {
			s.logStale(job, string(o.Status), string(stage.InFlightStatus()))
			return nil, errStaleJob
		}
		return o, nil
	}

	o, err := s.orderRepo.UpdateTransactional(ctx, job.OrderID, func(o *order.Order) error {
		if o.Status != order.StatusRetrying {
			return errStaleJob
		}
		return o.ResumeAttempt(stage, job.RetryCount)
	})
	if err != nil {
		if errors.Is(err, errStaleJob) {
			s.logStale(job, "", string(order.StatusRetrying))
			return nil, errStaleJob
		}
		return nil, err
	}
	return o, nil
}

func (s *JobService) runPurchase(ctx context.Context, job *scheduler.Job, o *order.Order) error {
	supplierOrderID, callErr := s.supplier.PlaceOrder(ctx, o)
	if callErr != nil {
		return s.handleFailure(ctx, job, order.StagePurchase, callErr)
	}

	_, err := s.orderRepo.UpdateTransactional(ctx, job.OrderID, func(o *order.Order) error {
		if o.Status != order.StatusSupplierOrdering {
			return errStaleJob
		}
		return o.CompletePurchase(supplierOrderID, job.RetryCount+1)
	})
	if errors.Is(err, errStaleJob) {
		s.logStale(job, "", string(order.StatusSupplierOrdering))
		return nil
	}
	return err
}

func (s *JobService) runForward(ctx context.Context, job *scheduler.Job, o *order.Order) error {
	trackingNumber, callErr := s.forwarder.Dispatch(ctx, o, o.ForwarderID)
	if callErr != nil {
		return s.handleFailure(ctx, job, order.StageForward, callErr)
	}

	forwarderJobID := fmt.Sprintf("FJ-%s", job.ID.String()[:8])
	_, err := s.orderRepo.UpdateTransactional(ctx, job.OrderID, func(o *order.Order) error {
		if o.Status != order.StatusForwarderSending {
			return errStaleJob
		}
		return o.CompleteForwarding(forwarderJobID, trackingNumber, job.RetryCount+1)
	})
	if errors.Is(err, errStaleJob) {
		s.logStale(job, "", string(order.StatusForwarderSending))
		return nil
	}
	return err
}

// handleFailure applies the bounded retry policy to a failed attempt
func (s *JobService) handleFailure(ctx context.Context, job *scheduler.Job, stage order.Stage, callErr error) error {
	attempt := job.RetryCount + 1
	inFlight := stage.InFlightStatus()

	if attempt >= s.policy.MaxAttempts {
		_, err := s.orderRepo.UpdateTransactional(ctx, job.OrderID, func(o *order.Order) error {
			if o.Status != inFlight {
				return errStaleJob
			}
			if stage == order.StageForward {
				return o.MarkForwardFailed(callErr.Error(), attempt)
			}
			return o.MarkPurchaseFailed(callErr.Error(), attempt)
		})
		if errors.Is(err, errStaleJob) {
			s.logStale(job, "", string(inFlight))
			return nil
		}
		if err != nil {
			return err
		}
		s.logger.Warn("Attempts exhausted, order parked for manual review",
			zap.String("order_id", job.OrderID.String()),
			zap.String("stage", string(stage)),
			zap.Int("total_attempts", attempt),
			zap.Error(callErr),
		)
		return callErr
	}

	nextRetry := job.RetryCount + 1
	_, err := s.orderRepo.UpdateTransactional(ctx, job.OrderID, func(o *order.Order) error {
		if o.Status != inFlight {
			return errStaleJob
		}
		if stage == order.StageForward {
			return o.ScheduleForwardRetry(nextRetry, callErr.Error())
		}
		return o.SchedulePurchaseRetry(nextRetry, callErr.Error())
	})
	if errors.Is(err, errStaleJob) {
		s.logStale(job, "", string(inFlight))
		return nil
	}
	if err != nil {
		return err
	}

	next := scheduler.NewJob(job.Kind, job.OrderID, nextRetry, s.policy.Delay)
	if scheduleErr := s.scheduler.Schedule(next); scheduleErr != nil {
		s.logger.Error("Failed to schedule retry job",
			zap.String("order_id", job.OrderID.String()),
			zap.String("stage", string(stage)),
			zap.Int("retry_count", nextRetry),
			zap.Error(scheduleErr),
		)
		return scheduleErr
	}

	s.logger.Info("Retry scheduled",
		zap.String("order_id", job.OrderID.String()),
		zap.String("stage", string(stage)),
		zap.Int("retry_count", nextRetry),
		zap.Duration("delay", s.policy.Delay),
		zap.Error(callErr),
	)
	return callErr
}

// failFatally is the panic path: best-effort move to FAILED, outside the
// normal retry bookkeeping. A fresh context is used because the attempt's
// context may already be dead.
func (s *JobService) failFatally(job *scheduler.Job, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.orderRepo.UpdateTransactional(ctx, job.OrderID, func(o *order.Order) error {
		return o.Fail(reason)
	})
	if err != nil && !errors.Is(err, shared.ErrOrderNotFound) {
		s.logger.Error("Failed to mark order as failed after panic",
			zap.String("order_id", job.OrderID.String()),
			zap.Error(err),
		)
	}
}

func (s *JobService) logStale(job *scheduler.Job, current, expected string) {
	s.logger.Warn("Stale job attempt skipped",
		zap.String("job_id", job.ID.String()),
		zap.String("order_id", job.OrderID.String()),
		zap.String("kind", string(job.Kind)),
		zap.Int("retry_count", job.RetryCount),
		zap.String("current_status", current),
		zap.String("expected_status", expected),
	)
}

var _ scheduler.JobExecutor = (*JobService)(nil)
