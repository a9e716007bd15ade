package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/orderflow/backend/internal/domain/audit"
	"github.com/orderflow/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAuditRepository implements audit.Repository using GORM.
// Entries are append-only rows; nothing here updates or deletes.
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Append persists one or more entries
func (r *GormAuditRepository) Append(ctx context.Context, entries ...*audit.Entry) error {
	return r.AppendInTx(ctx, r.db.WithContext(ctx), entries...)
}

// AppendInTx persists entries within an existing transaction
func (r *GormAuditRepository) AppendInTx(ctx context.Context, txProvider interface{}, entries ...*audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, ok := txProvider.(*gorm.DB)
	if !ok {
		return fmt.Errorf("audit repository requires a *gorm.DB transaction, got %T", txProvider)
	}

	modelRows := make([]models.AuditEntryModel, len(entries))
	for i, e := range entries {
		if err := modelRows[i].FromDomain(e); err != nil {
			return err
		}
	}
	return tx.Create(&modelRows).Error
}

// ListByOrder returns all entries for an order, oldest first
func (r *GormAuditRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*audit.Entry, error) {
	var modelRows []models.AuditEntryModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&modelRows).Error; err != nil {
		return nil, err
	}

	entries := make([]*audit.Entry, 0, len(modelRows))
	for i := range modelRows {
		e, err := modelRows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// CountByOrder returns the number of entries recorded for an order
func (r *GormAuditRepository) CountByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.AuditEntryModel{}).
		Where("order_id = ?", orderID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormAuditRepository implements audit.Repository
var _ audit.Repository = (*GormAuditRepository)(nil)
