package order

import (
	"context"

	"github.com/google/uuid"
	"github.com/orderflow/backend/internal/domain/shared"
)

// Repository defines persistence for orders. Create and Update persist the
// aggregate together with its pending audit entries in one transaction;
// Update enforces optimistic locking on the aggregate version.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindBySupplierOrderID(ctx context.Context, supplierOrderID string) (*Order, error)
	FindByForwarderJobID(ctx context.Context, forwarderJobID string) (*Order, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Order, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)
	Create(ctx context.Context, o *Order) error
	Update(ctx context.Context, o *Order) error

	// UpdateTransactional loads the order under a row lock, applies fn and
	// persists the result plus any audit entries fn recorded, all in one
	// transaction. An error from fn rolls everything back. This is the
	// check-then-set primitive: fn always sees the latest committed row.
	UpdateTransactional(ctx context.Context, id uuid.UUID, fn func(o *Order) error) (*Order, error)
}

// SupplierClient places purchase orders with an external supplier
type SupplierClient interface {
	PlaceOrder(ctx context.Context, o *Order) (supplierOrderID string, err error)
}

// ForwarderClient dispatches fulfillment jobs to an external forwarder
type ForwarderClient interface {
	Dispatch(ctx context.Context, o *Order, forwarderID string) (trackingNumber string, err error)
}
