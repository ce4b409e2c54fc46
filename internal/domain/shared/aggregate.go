package shared

import (
	"github.com/google/uuid"
)

// TenantAggregateRoot is the embedded base for dealer-scoped aggregates.
// TenantID carries the owning dealer, Version backs optimistic locking,
// and pending domain events accumulate until the application layer
// publishes them after a successful save.
type TenantAggregateRoot struct {
	BaseEntity
	Version      int           `gorm:"not null;default:1"`
	TenantID     uuid.UUID     `gorm:"type:uuid;not null;index"`
	domainEvents []DomainEvent `gorm:"-"`
}

// NewTenantAggregateRoot creates an aggregate root owned by the given dealer.
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	return TenantAggregateRoot{
		BaseEntity: NewBaseEntity(),
		Version:    1,
		TenantID:   tenantID,
	}
}

// AddDomainEvent queues an event for publication.
func (a *TenantAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns the events queued since the last clear.
func (a *TenantAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents drops the queued events, called after publication.
func (a *TenantAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}
