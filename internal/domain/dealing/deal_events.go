package dealing

import (
	"time"

	"github.com/dealerdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeDeal          = "Deal"
	AggregateTypeSalesDocument = "SalesDocument"
)

// Event type constants
const (
	EventTypeDealCreated         = "DealCreated"
	EventTypeDealDepositTaken    = "DealDepositTaken"
	EventTypeDealInvoiced        = "DealInvoiced"
	EventTypeDealDelivered       = "DealDelivered"
	EventTypeDealCompleted       = "DealCompleted"
	EventTypeDealCancelled       = "DealCancelled"
	EventTypeDealPaymentRecorded = "DealPaymentRecorded"
)

// DealCreatedEvent is raised when a new deal is opened
type DealCreatedEvent struct {
	shared.BaseDomainEvent
	DealID     uuid.UUID `json:"deal_id"`
	DealNumber int64     `json:"deal_number"`
	VehicleID  uuid.UUID `json:"vehicle_id"`
	SaleType   SaleType  `json:"sale_type"`
}

// NewDealCreatedEvent creates a new DealCreatedEvent
func NewDealCreatedEvent(deal *Deal) *DealCreatedEvent {
	return &DealCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDealCreated, AggregateTypeDeal, deal.ID, deal.TenantID),
		DealID:          deal.ID,
		DealNumber:      deal.DealNumber,
		VehicleID:       deal.VehicleID,
		SaleType:        deal.SaleType,
	}
}

// EventType returns the event type name
func (e *DealCreatedEvent) EventType() string {
	return EventTypeDealCreated
}

// DealDepositTakenEvent is raised when a deal moves to DEPOSIT_TAKEN
type DealDepositTakenEvent struct {
	shared.BaseDomainEvent
	DealID       uuid.UUID       `json:"deal_id"`
	DealNumber   int64           `json:"deal_number"`
	DepositPaid  decimal.Decimal `json:"deposit_paid"`
	DepositTaken time.Time       `json:"deposit_taken_at"`
}

// NewDealDepositTakenEvent creates a new DealDepositTakenEvent
func NewDealDepositTakenEvent(deal *Deal) *DealDepositTakenEvent {
	return &DealDepositTakenEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDealDepositTaken, AggregateTypeDeal, deal.ID, deal.TenantID),
		DealID:          deal.ID,
		DealNumber:      deal.DealNumber,
		DepositPaid:     deal.TotalDepositPaid(),
		DepositTaken:    *deal.DepositTakenAt,
	}
}

// EventType returns the event type name
func (e *DealDepositTakenEvent) EventType() string {
	return EventTypeDealDepositTaken
}

// DealInvoicedEvent is raised when a deal moves to INVOICED
type DealInvoicedEvent struct {
	shared.BaseDomainEvent
	DealID     uuid.UUID       `json:"deal_id"`
	DealNumber int64           `json:"deal_number"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	BalanceDue decimal.Decimal `json:"balance_due"`
}

// NewDealInvoicedEvent creates a new DealInvoicedEvent
func NewDealInvoicedEvent(deal *Deal) *DealInvoicedEvent {
	return &DealInvoicedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDealInvoiced, AggregateTypeDeal, deal.ID, deal.TenantID),
		DealID:          deal.ID,
		DealNumber:      deal.DealNumber,
		GrandTotal:      deal.GrandTotal(),
		BalanceDue:      deal.BalanceDue(),
	}
}

// EventType returns the event type name
func (e *DealInvoicedEvent) EventType() string {
	return EventTypeDealInvoiced
}

// DealDeliveredEvent is raised when a deal moves to DELIVERED.
// Handlers use it to flip the vehicle's sale status.
type DealDeliveredEvent struct {
	shared.BaseDomainEvent
	DealID     uuid.UUID `json:"deal_id"`
	DealNumber int64     `json:"deal_number"`
	VehicleID  uuid.UUID `json:"vehicle_id"`
}

// NewDealDeliveredEvent creates a new DealDeliveredEvent
func NewDealDeliveredEvent(deal *Deal) *DealDeliveredEvent {
	return &DealDeliveredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDealDelivered, AggregateTypeDeal, deal.ID, deal.TenantID),
		DealID:          deal.ID,
		DealNumber:      deal.DealNumber,
		VehicleID:       deal.VehicleID,
	}
}

// EventType returns the event type name
func (e *DealDeliveredEvent) EventType() string {
	return EventTypeDealDelivered
}

// DealCompletedEvent is raised when a deal moves to COMPLETED
type DealCompletedEvent struct {
	shared.BaseDomainEvent
	DealID     uuid.UUID `json:"deal_id"`
	DealNumber int64     `json:"deal_number"`
}

// NewDealCompletedEvent creates a new DealCompletedEvent
func NewDealCompletedEvent(deal *Deal) *DealCompletedEvent {
	return &DealCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDealCompleted, AggregateTypeDeal, deal.ID, deal.TenantID),
		DealID:          deal.ID,
		DealNumber:      deal.DealNumber,
	}
}

// EventType returns the event type name
func (e *DealCompletedEvent) EventType() string {
	return EventTypeDealCompleted
}

// DealCancelledEvent is raised when a deal is cancelled
type DealCancelledEvent struct {
	shared.BaseDomainEvent
	DealID       uuid.UUID `json:"deal_id"`
	DealNumber   int64     `json:"deal_number"`
	VehicleID    uuid.UUID `json:"vehicle_id"`
	CancelReason string    `json:"cancel_reason"`
	WasDelivered bool      `json:"was_delivered"`
}

// NewDealCancelledEvent creates a new DealCancelledEvent
func NewDealCancelledEvent(deal *Deal) *DealCancelledEvent {
	return &DealCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDealCancelled, AggregateTypeDeal, deal.ID, deal.TenantID),
		DealID:          deal.ID,
		DealNumber:      deal.DealNumber,
		VehicleID:       deal.VehicleID,
		CancelReason:    deal.CancelReason,
		WasDelivered:    deal.DeliveredAt != nil,
	}
}

// EventType returns the event type name
func (e *DealCancelledEvent) EventType() string {
	return EventTypeDealCancelled
}

// DealPaymentRecordedEvent is raised when a payment is added to a deal
type DealPaymentRecordedEvent struct {
	shared.BaseDomainEvent
	DealID    uuid.UUID       `json:"deal_id"`
	PaymentID uuid.UUID       `json:"payment_id"`
	Kind      PaymentKind     `json:"kind"`
	Method    PaymentMethod   `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
}

// NewDealPaymentRecordedEvent creates a new DealPaymentRecordedEvent
func NewDealPaymentRecordedEvent(deal *Deal, payment *Payment) *DealPaymentRecordedEvent {
	return &DealPaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDealPaymentRecorded, AggregateTypeDeal, deal.ID, deal.TenantID),
		DealID:          deal.ID,
		PaymentID:       payment.ID,
		Kind:            payment.Kind,
		Method:          payment.Method,
		Amount:          payment.Amount,
	}
}

// EventType returns the event type name
func (e *DealPaymentRecordedEvent) EventType() string {
	return EventTypeDealPaymentRecorded
}
