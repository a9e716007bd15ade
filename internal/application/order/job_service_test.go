package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/orderflow/backend/internal/domain/order"
	"github.com/orderflow/backend/internal/infrastructure/scheduler"
)

func newJobFixture(t *testing.T) (*JobService, *MockOrderRepository, *MockSupplierClient, *MockForwarderClient, *fakeScheduler) {
	t.Helper()
	repo := new(MockOrderRepository)
	supplier := new(MockSupplierClient)
	forwarder := new(MockForwarderClient)
	sched := &fakeScheduler{}
	svc := NewJobService(repo, supplier, forwarder, sched, RetryPolicy{
		MaxAttempts: 3,
		Delay:       30 * time.Second,
	}, zap.NewNop())
	return svc, repo, supplier, forwarder, sched
}

func TestJobService_ExecutePurchase(t *testing.T) {
	t.Run("first attempt succeeds", func(t *testing.T) {
		svc, repo, supplier, _, sched := newJobFixture(t)
		o := orderInStatus(t, order.StatusSupplierOrdering)
		repo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		repo.On("UpdateTransactional", mock.Anything, o.ID).Return(o, nil)
		supplier.On("PlaceOrder", mock.Anything, o).Return("SUP-AB12CD34", nil)

		job := scheduler.NewJob(scheduler.JobKindPurchase, o.ID, 0, 0)
		require.NoError(t, svc.Execute(context.Background(), job))

		assert.Equal(t, order.StatusOrderedSupplier, o.Status)
		assert.Equal(t, "SUP-AB12CD34", o.SupplierOrderID)
		assert.Equal(t, "ordered", o.SupplierStatus)
		assert.Empty(t, sched.jobs())
	})

	t.Run("stale first attempt is a no-op", func(t *testing.T) {
		svc, repo, supplier, _, _ := newJobFixture(t)
		o := orderInStatus(t, order.StatusDone)
		repo.On("FindByID", mock.Anything, o.ID).Return(o, nil)

		job := scheduler.NewJob(scheduler.JobKindPurchase, o.ID, 0, 0)
		require.NoError(t, svc.Execute(context.Background(), job))

		assert.Equal(t, order.StatusDone, o.Status)
		supplier.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "UpdateTransactional", mock.Anything, mock.Anything)
	})

	t.Run("retryable failure parks in RETRYING and schedules a fresh job", func(t *testing.T) {
		svc, repo, supplier, _, sched := newJobFixture(t)
		o := orderInStatus(t, order.StatusSupplierOrdering)
		repo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		repo.On("UpdateTransactional", mock.Anything, o.ID).Return(o, nil)
		supplier.On("PlaceOrder", mock.Anything, o).Return("", assert.AnError)

		job := scheduler.NewJob(scheduler.JobKindPurchase, o.ID, 0, 0)
		err := svc.Execute(context.Background(), job)
		assert.ErrorIs(t, err, assert.AnError)

		assert.Equal(t, order.StatusRetrying, o.Status)
		jobs := sched.jobs()
		require.Len(t, jobs, 1)
		assert.Equal(t, scheduler.JobKindPurchase, jobs[0].Kind)
		assert.Equal(t, 1, jobs[0].RetryCount)
		assert.NotEqual(t, job.ID, jobs[0].ID)
		// fixed 30s delay before the next attempt
		assert.WithinDuration(t, time.Now().Add(30*time.Second), jobs[0].RunAt, time.Second)
	})

	t.Run("retry attempt resumes from RETRYING and succeeds", func(t *testing.T) {
		svc, repo, supplier, _, sched := newJobFixture(t)
		o := orderInStatus(t, order.StatusRetrying)
		repo.On("UpdateTransactional", mock.Anything, o.ID).Return(o, nil)
		supplier.On("PlaceOrder", mock.Anything, o).Return("SUP-RETRY01", nil)

		job := scheduler.NewJob(scheduler.JobKindPurchase, o.ID, 1, 0)
		require.NoError(t, svc.Execute(context.Background(), job))

		assert.Equal(t, order.StatusOrderedSupplier, o.Status)
		assert.Equal(t, "SUP-RETRY01", o.SupplierOrderID)
		assert.Equal(t, 2, o.Meta["purchase_attempts"])
		assert.Empty(t, sched.jobs())
	})

	t.Run("exhausted attempts park in MANUAL_REVIEW", func(t *testing.T) {
		svc, repo, supplier, _, sched := newJobFixture(t)
		o := orderInStatus(t, order.StatusRetrying)
		repo.On("UpdateTransactional", mock.Anything, o.ID).Return(o, nil)
		supplier.On("PlaceOrder", mock.Anything, o).Return("", assert.AnError)

		// third and final attempt
		job := scheduler.NewJob(scheduler.JobKindPurchase, o.ID, 2, 0)
		err := svc.Execute(context.Background(), job)
		assert.ErrorIs(t, err, assert.AnError)

		assert.Equal(t, order.StatusManualReview, o.Status)
		assert.Equal(t, 3, o.Meta["total_attempts"])
		assert.Empty(t, sched.jobs())
	})

	t.Run("stale retry attempt is a no-op", func(t *testing.T) {
		svc, repo, supplier, _, _ := newJobFixture(t)
		o := orderInStatus(t, order.StatusManualReview)
		repo.On("UpdateTransactional", mock.Anything, o.ID).Return(o, nil)

		job := scheduler.NewJob(scheduler.JobKindPurchase, o.ID, 1, 0)
		require.NoError(t, svc.Execute(context.Background(), job))

		assert.Equal(t, order.StatusManualReview, o.Status)
		supplier.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
	})

	t.Run("panic moves the order to FAILED", func(t *testing.T) {
		svc, repo, supplier, _, _ := newJobFixture(t)
		o := orderInStatus(t, order.StatusSupplierOrdering)
		repo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		repo.On("UpdateTransactional", mock.Anything, o.ID).Return(o, nil)
		supplier.On("PlaceOrder", mock.Anything, o).Panic("supplier adapter bug")

		job := scheduler.NewJob(scheduler.JobKindPurchase, o.ID, 0, 0)
		err := svc.Execute(context.Background(), job)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "job panicked")
		assert.Equal(t, order.StatusFailed, o.Status)
	})
}

func TestJobService_ExecuteForward(t *testing.T) {
	t.Run("first attempt succeeds", func(t *testing.T) {
		svc, repo, _, forwarder, sched := newJobFixture(t)
		o := orderInStatus(t, order.StatusForwarderSending)
		o.ForwarderID = "fwd-eu-1"
		repo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		repo.On("UpdateTransactional", mock.Anything, o.ID).Return(o, nil)
		forwarder.On("Dispatch", mock.Anything, o, "fwd-eu-1").Return("TRK-XY98ZW76", nil)

		job := scheduler.NewJob(scheduler.JobKindForward, o.ID, 0, 0)
		require.NoError(t, svc.Execute(context.Background(), job))

		assert.Equal(t, order.StatusSentToForwarder, o.Status)
		assert.NotEmpty(t, o.ForwarderJobID)
		assert.Equal(t, "TRK-XY98ZW76", o.MetaString("tracking_number"))
		assert.Empty(t, sched.jobs())
	})

	t.Run("retryable failure schedules a forward retry", func(t *testing.T) {
		svc, repo, _, forwarder, sched := newJobFixture(t)
		o := orderInStatus(t, order.StatusForwarderSending)
		o.ForwarderID = "fwd-eu-1"
		repo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		repo.On("UpdateTransactional", mock.Anything, o.ID).Return(o, nil)
		forwarder.On("Dispatch", mock.Anything, o, "fwd-eu-1").Return("", assert.AnError)

		job := scheduler.NewJob(scheduler.JobKindForward, o.ID, 0, 0)
		err := svc.Execute(context.Background(), job)
		assert.ErrorIs(t, err, assert.AnError)

		assert.Equal(t, order.StatusRetrying, o.Status)
		jobs := sched.jobs()
		require.Len(t, jobs, 1)
		assert.Equal(t, scheduler.JobKindForward, jobs[0].Kind)
		assert.Equal(t, 1, jobs[0].RetryCount)
	})

	t.Run("full retry cycle ends in MANUAL_REVIEW after three attempts", func(t *testing.T) {
		svc, repo, _, forwarder, sched := newJobFixture(t)
		o := orderInStatus(t, order.StatusForwarderSending)
		o.ForwarderID = "fwd-eu-1"
		repo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		repo.On("UpdateTransactional", mock.Anything, o.ID).Return(o, nil)
		forwarder.On("Dispatch", mock.Anything, o, "fwd-eu-1").Return("", assert.AnError)

		job := scheduler.NewJob(scheduler.JobKindForward, o.ID, 0, 0)
		for {
			_ = svc.Execute(context.Background(), job)
			jobs := sched.jobs()
			if len(jobs) == 0 || jobs[len(jobs)-1] == job {
				break
			}
			job = jobs[len(jobs)-1]
		}

		assert.Equal(t, order.StatusManualReview, o.Status)
		assert.Equal(t, 3, o.Meta["total_attempts"])
		assert.Len(t, sched.jobs(), 2)
	})
}
