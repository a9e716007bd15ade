package audit

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for audit trail persistence.
// The trail is append-only; there are no update or delete operations.
type Repository interface {
	// Append persists one or more entries
	Append(ctx context.Context, entries ...*Entry) error
	// AppendInTx persists entries within an existing transaction.
	// The txProvider is a *gorm.DB transaction handle.
	AppendInTx(ctx context.Context, txProvider interface{}, entries ...*Entry) error
	// ListByOrder returns all entries for an order, oldest first
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Entry, error)
	// CountByOrder returns the number of entries recorded for an order
	CountByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
}
