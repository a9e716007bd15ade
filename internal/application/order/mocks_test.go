package order

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/orderflow/backend/internal/domain/audit"
	"github.com/orderflow/backend/internal/domain/order"
	"github.com/orderflow/backend/internal/domain/shared"
	"github.com/orderflow/backend/internal/infrastructure/scheduler"
)

// MockOrderRepository is a mock implementation of order.Repository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindBySupplierOrderID(ctx context.Context, supplierOrderID string) (*order.Order, error) {
	args := m.Called(ctx, supplierOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByForwarderJobID(ctx context.Context, forwarderJobID string) (*order.Order, error) {
	args := m.Called(ctx, forwarderJobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]order.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) Update(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

// UpdateTransactional applies fn to the order configured for the call,
// mirroring the real repository's load-mutate-persist contract
func (m *MockOrderRepository) UpdateTransactional(ctx context.Context, id uuid.UUID, fn func(o *order.Order) error) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	o := args.Get(0).(*order.Order)
	if err := fn(o); err != nil {
		return nil, err
	}
	return o, args.Error(1)
}

// MockAuditRepository is a mock implementation of audit.Repository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Append(ctx context.Context, entries ...*audit.Entry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockAuditRepository) AppendInTx(ctx context.Context, txProvider interface{}, entries ...*audit.Entry) error {
	args := m.Called(ctx, txProvider, entries)
	return args.Error(0)
}

func (m *MockAuditRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*audit.Entry, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Entry), args.Error(1)
}

func (m *MockAuditRepository) CountByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(int64), args.Error(1)
}

// MockSupplierClient is a mock implementation of order.SupplierClient
type MockSupplierClient struct {
	mock.Mock
}

func (m *MockSupplierClient) PlaceOrder(ctx context.Context, o *order.Order) (string, error) {
	args := m.Called(ctx, o)
	return args.String(0), args.Error(1)
}

// MockForwarderClient is a mock implementation of order.ForwarderClient
type MockForwarderClient struct {
	mock.Mock
}

func (m *MockForwarderClient) Dispatch(ctx context.Context, o *order.Order, forwarderID string) (string, error) {
	args := m.Called(ctx, o, forwarderID)
	return args.String(0), args.Error(1)
}

// fakeScheduler records scheduled jobs instead of running them
type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []*scheduler.Job
	err       error
}

func (f *fakeScheduler) Schedule(job *scheduler.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.scheduled = append(f.scheduled, job)
	return nil
}

func (f *fakeScheduler) jobs() []*scheduler.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*scheduler.Job, len(f.scheduled))
	copy(out, f.scheduled)
	return out
}

// orderInStatus builds an order parked at the given status with a clean
// audit buffer
func orderInStatus(t *testing.T, status order.Status) *order.Order {
	t.Helper()
	o, err := order.New("taobao", "TB-9001", 3, decimal.NewFromFloat(24.50), "CNY")
	require.NoError(t, err)
	o.Status = status
	o.ClearPending()
	return o
}
