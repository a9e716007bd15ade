package models

import (
	"encoding/json"
	"fmt"

	"github.com/orderflow/backend/internal/domain/order"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for orders
type OrderModel struct {
	AggregateModel
	Platform         string          `gorm:"type:varchar(64);not null;index:idx_orders_platform_ref,priority:1"`
	PlatformOrderRef string          `gorm:"type:varchar(128);not null;index:idx_orders_platform_ref,priority:2"`
	Qty              int             `gorm:"not null"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency         string          `gorm:"type:varchar(8);not null"`
	Status           string          `gorm:"type:varchar(32);not null;index"`
	IdempotencyKey   string          `gorm:"type:varchar(255)"`
	SupplierID       string          `gorm:"type:varchar(64)"`
	SupplierOrderID  string          `gorm:"type:varchar(128);index"`
	SupplierStatus   string          `gorm:"type:varchar(32)"`
	ForwarderID      string          `gorm:"type:varchar(64)"`
	ForwarderJobID   string          `gorm:"type:varchar(128);index"`
	ForwarderStatus  string          `gorm:"type:varchar(32)"`
	Meta             []byte          `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() (*order.Order, error) {
	meta := make(map[string]any)
	if len(m.Meta) > 0 {
		if err := json.Unmarshal(m.Meta, &meta); err != nil {
			return nil, fmt.Errorf("failed to decode order meta: %w", err)
		}
	}
	return &order.Order{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Platform:          m.Platform,
		PlatformOrderRef:  m.PlatformOrderRef,
		Qty:               m.Qty,
		UnitPrice:         m.UnitPrice,
		Currency:          m.Currency,
		Status:            order.Status(m.Status),
		IdempotencyKey:    m.IdempotencyKey,
		SupplierID:        m.SupplierID,
		SupplierOrderID:   m.SupplierOrderID,
		SupplierStatus:    m.SupplierStatus,
		ForwarderID:       m.ForwarderID,
		ForwarderJobID:    m.ForwarderJobID,
		ForwarderStatus:   m.ForwarderStatus,
		Meta:              meta,
	}, nil
}

// FromDomain populates the persistence model from a domain Order
func (m *OrderModel) FromDomain(o *order.Order) error {
	meta, err := json.Marshal(o.Meta)
	if err != nil {
		return fmt.Errorf("failed to encode order meta: %w", err)
	}
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.Platform = o.Platform
	m.PlatformOrderRef = o.PlatformOrderRef
	m.Qty = o.Qty
	m.UnitPrice = o.UnitPrice
	m.Currency = o.Currency
	m.Status = string(o.Status)
	m.IdempotencyKey = o.IdempotencyKey
	m.SupplierID = o.SupplierID
	m.SupplierOrderID = o.SupplierOrderID
	m.SupplierStatus = o.SupplierStatus
	m.ForwarderID = o.ForwarderID
	m.ForwarderJobID = o.ForwarderJobID
	m.ForwarderStatus = o.ForwarderStatus
	m.Meta = meta
	return nil
}
