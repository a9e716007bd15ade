package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/orderflow/backend/internal/domain/audit"
)

// AuditEntryModel is the persistence model for audit log entries.
// Rows are append-only: never updated or deleted.
type AuditEntryModel struct {
	BaseModel
	OrderID *uuid.UUID `gorm:"type:uuid;index"`
	Actor   string     `gorm:"type:varchar(16);not null"`
	Action  string     `gorm:"type:varchar(64);not null;index"`
	Meta    []byte     `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (AuditEntryModel) TableName() string {
	return "audit_entries"
}

// ToDomain converts the persistence model to a domain audit entry
func (m *AuditEntryModel) ToDomain() (*audit.Entry, error) {
	var meta map[string]any
	if len(m.Meta) > 0 {
		if err := json.Unmarshal(m.Meta, &meta); err != nil {
			return nil, fmt.Errorf("failed to decode audit meta: %w", err)
		}
	}
	return &audit.Entry{
		BaseEntity: m.BaseModel.ToDomain(),
		OrderID:    m.OrderID,
		Actor:      audit.Actor(m.Actor),
		Action:     m.Action,
		Meta:       meta,
	}, nil
}

// FromDomain populates the persistence model from a domain audit entry
func (m *AuditEntryModel) FromDomain(e *audit.Entry) error {
	var meta []byte
	if e.Meta != nil {
		encoded, err := json.Marshal(e.Meta)
		if err != nil {
			return fmt.Errorf("failed to encode audit meta: %w", err)
		}
		meta = encoded
	}
	m.FromDomainBaseEntity(e.BaseEntity)
	m.OrderID = e.OrderID
	m.Actor = string(e.Actor)
	m.Action = e.Action
	m.Meta = meta
	return nil
}
