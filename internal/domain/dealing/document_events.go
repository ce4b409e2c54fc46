package dealing

import (
	"github.com/dealerdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Event type constants
const (
	EventTypeDocumentIssued = "SalesDocumentIssued"
	EventTypeDocumentVoided = "SalesDocumentVoided"
)

// DocumentIssuedEvent is raised when a sales document is issued
type DocumentIssuedEvent struct {
	shared.BaseDomainEvent
	DocumentID     uuid.UUID    `json:"document_id"`
	DocumentType   DocumentType `json:"document_type"`
	DocumentNumber int64        `json:"document_number"`
	DealID         *uuid.UUID   `json:"deal_id,omitempty"`
}

// NewDocumentIssuedEvent creates a new DocumentIssuedEvent
func NewDocumentIssuedEvent(doc *SalesDocument) *DocumentIssuedEvent {
	return &DocumentIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentIssued, AggregateTypeSalesDocument, doc.ID, doc.TenantID),
		DocumentID:      doc.ID,
		DocumentType:    doc.Type,
		DocumentNumber:  doc.DocumentNumber,
		DealID:          doc.DealID,
	}
}

// EventType returns the event type name
func (e *DocumentIssuedEvent) EventType() string {
	return EventTypeDocumentIssued
}

// DocumentVoidedEvent is raised when a sales document is voided
type DocumentVoidedEvent struct {
	shared.BaseDomainEvent
	DocumentID     uuid.UUID    `json:"document_id"`
	DocumentType   DocumentType `json:"document_type"`
	DocumentNumber int64        `json:"document_number"`
	VoidReason     string       `json:"void_reason"`
}

// NewDocumentVoidedEvent creates a new DocumentVoidedEvent
func NewDocumentVoidedEvent(doc *SalesDocument) *DocumentVoidedEvent {
	return &DocumentVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentVoided, AggregateTypeSalesDocument, doc.ID, doc.TenantID),
		DocumentID:      doc.ID,
		DocumentType:    doc.Type,
		DocumentNumber:  doc.DocumentNumber,
		VoidReason:      doc.VoidReason,
	}
}

// EventType returns the event type name
func (e *DocumentVoidedEvent) EventType() string {
	return EventTypeDocumentVoided
}
