package audit

import (
	"maps"

	"github.com/google/uuid"

	"github.com/orderflow/backend/internal/domain/shared"
)

// Actor identifies who caused an audited event
type Actor string

const (
	ActorSystem  Actor = "system"
	ActorUser    Actor = "user"
	ActorWebhook Actor = "webhook"
)

// IsValid checks if the actor is a known Actor
func (a Actor) IsValid() bool {
	switch a {
	case ActorSystem, ActorUser, ActorWebhook:
		return true
	}
	return false
}

// Entry is an immutable audit fact. Entries are append-only: they are never
// updated or deleted, and the ordered sequence of entries for an order must
// replay into a valid path through the order state machine.
type Entry struct {
	shared.BaseEntity
	OrderID *uuid.UUID     // nil for system-wide events
	Actor   Actor
	Action  string         // transition or event name, e.g. "execute_purchase"
	Meta    map[string]any // event-specific payload
}

// NewEntry creates an audit entry for an order-scoped event
func NewEntry(orderID uuid.UUID, actor Actor, action string, meta map[string]any) (*Entry, error) {
	if action == "" {
		return nil, shared.NewDomainError("INVALID_ACTION", "Audit action cannot be empty")
	}
	if !actor.IsValid() {
		return nil, shared.NewDomainError("INVALID_ACTOR", "Invalid audit actor")
	}
	id := orderID
	return &Entry{
		BaseEntity: shared.NewBaseEntity(),
		OrderID:    &id,
		Actor:      actor,
		Action:     action,
		Meta:       meta,
	}, nil
}

// NewSystemEntry creates an audit entry not bound to any order
func NewSystemEntry(action string, meta map[string]any) (*Entry, error) {
	if action == "" {
		return nil, shared.NewDomainError("INVALID_ACTION", "Audit action cannot be empty")
	}
	return &Entry{
		BaseEntity: shared.NewBaseEntity(),
		Actor:      ActorSystem,
		Action:     action,
		Meta:       meta,
	}, nil
}

// GetMeta returns a copy of the event payload
func (e *Entry) GetMeta() map[string]any {
	if e.Meta == nil {
		return make(map[string]any)
	}
	result := make(map[string]any, len(e.Meta))
	maps.Copy(result, e.Meta)
	return result
}
