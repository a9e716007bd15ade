package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/orderflow/backend/internal/domain/order"
	"github.com/orderflow/backend/internal/domain/shared"
	"github.com/orderflow/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements order.Repository using GORM.
// Every mutation persists the aggregate together with its buffered audit
// entries in one transaction, so the trail never drifts from the row.
type GormOrderRepository struct {
	db    *gorm.DB
	audit *GormAuditRepository
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db, audit: NewGormAuditRepository(db)}
}

// FindByID finds an order by its ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindBySupplierOrderID finds the order holding the supplier's reference.
// Suppliers call back with their own identifier, not the internal one.
func (r *GormOrderRepository) FindBySupplierOrderID(ctx context.Context, supplierOrderID string) (*order.Order, error) {
	return r.findByExternalRef(ctx, "supplier_order_id = ?", supplierOrderID)
}

// FindByForwarderJobID finds the order holding the forwarder's job reference
func (r *GormOrderRepository) FindByForwarderJobID(ctx context.Context, forwarderJobID string) (*order.Order, error) {
	return r.findByExternalRef(ctx, "forwarder_job_id = ?", forwarderJobID)
}

func (r *GormOrderRepository) findByExternalRef(ctx context.Context, cond string, ref string) (*order.Order, error) {
	if ref == "" {
		return nil, shared.ErrOrderNotFound
	}
	var model models.OrderModel
	if err := r.db.WithContext(ctx).Where(cond, ref).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindAll finds orders with filtering and pagination
func (r *GormOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]order.Order, error) {
	var modelRows []models.OrderModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.OrderModel{}), filter)

	if err := query.Find(&modelRows).Error; err != nil {
		return nil, err
	}

	orders := make([]order.Order, 0, len(modelRows))
	for i := range modelRows {
		o, err := modelRows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

// Count counts orders matching the filter
func (r *GormOrderRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&models.OrderModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create persists a new order and its pending audit entries
func (r *GormOrderRepository) Create(ctx context.Context, o *order.Order) error {
	var model models.OrderModel
	if err := model.FromDomain(o); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if err := r.audit.AppendInTx(ctx, tx, o.Pending()...); err != nil {
			return err
		}
		o.ClearPending()
		return nil
	})
}

// Update saves the order with optimistic locking (version check) and
// appends the pending audit entries in the same transaction
func (r *GormOrderRepository) Update(ctx context.Context, o *order.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.updateLocked(ctx, tx, o); err != nil {
			return err
		}
		if err := r.audit.AppendInTx(ctx, tx, o.Pending()...); err != nil {
			return err
		}
		o.ClearPending()
		return nil
	})
}

// UpdateTransactional loads the order under a row lock, applies fn and
// persists the result plus any audit entries fn recorded, all in one
// transaction. fn always observes the latest committed row, which makes
// check-then-set transitions safe against concurrent writers.
func (r *GormOrderRepository) UpdateTransactional(ctx context.Context, id uuid.UUID, fn func(o *order.Order) error) (*order.Order, error) {
	var result *order.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// sqlite (tests) has no row locks; the version check in
		// updateLocked still guards the write there
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var model models.OrderModel
		if err := q.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrOrderNotFound
			}
			return err
		}

		o, err := model.ToDomain()
		if err != nil {
			return err
		}

		if err := fn(o); err != nil {
			return err
		}

		if err := r.updateLocked(ctx, tx, o); err != nil {
			return err
		}
		if err := r.audit.AppendInTx(ctx, tx, o.Pending()...); err != nil {
			return err
		}
		o.ClearPending()
		result = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// updateLocked writes the order row guarded by the version the caller read
func (r *GormOrderRepository) updateLocked(ctx context.Context, tx *gorm.DB, o *order.Order) error {
	currentVersion := o.Version
	o.Version++
	o.UpdatedAt = time.Now()

	var model models.OrderModel
	if err := model.FromDomain(o); err != nil {
		o.Version = currentVersion
		return err
	}

	result := tx.Model(&models.OrderModel{}).
		Where("id = ? AND version = ?", o.ID, currentVersion).
		Updates(map[string]interface{}{
			"status":            model.Status,
			"idempotency_key":   model.IdempotencyKey,
			"supplier_id":       model.SupplierID,
			"supplier_order_id": model.SupplierOrderID,
			"supplier_status":   model.SupplierStatus,
			"forwarder_id":      model.ForwarderID,
			"forwarder_job_id":  model.ForwarderJobID,
			"forwarder_status":  model.ForwarderStatus,
			"meta":              model.Meta,
			"version":           o.Version,
			"updated_at":        o.UpdatedAt,
		})

	if result.Error != nil {
		o.Version = currentVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		o.Version = currentVersion
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// applyFilter applies filter options including pagination and ordering
func (r *GormOrderRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	// Apply pagination
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	// Apply ordering
	orderBy := ValidateSortField(filter.OrderBy, OrderSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	return query.Order(orderBy + " " + orderDir)
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormOrderRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "platform":
			query = query.Where("platform = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		case "statuses":
			if statuses, ok := value.([]string); ok && len(statuses) > 0 {
				query = query.Where("status IN ?", statuses)
			}
		case "supplier_id":
			query = query.Where("supplier_id = ?", value)
		case "forwarder_id":
			query = query.Where("forwarder_id = ?", value)
		case "start_date":
			if t, ok := value.(time.Time); ok {
				query = query.Where("created_at >= ?", t)
			}
		case "end_date":
			if t, ok := value.(time.Time); ok {
				query = query.Where("created_at <= ?", t)
			}
		}
	}
	return query
}

// Ensure GormOrderRepository implements order.Repository
var _ order.Repository = (*GormOrderRepository)(nil)
