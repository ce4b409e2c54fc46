package dealing

import (
	"fmt"
	"time"

	"github.com/dealerdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DealStatus represents the lifecycle status of a deal
type DealStatus string

const (
	DealStatusDraft        DealStatus = "DRAFT"
	DealStatusDepositTaken DealStatus = "DEPOSIT_TAKEN"
	DealStatusInvoiced     DealStatus = "INVOICED"
	DealStatusDelivered    DealStatus = "DELIVERED"
	DealStatusCompleted    DealStatus = "COMPLETED"
	DealStatusCancelled    DealStatus = "CANCELLED"
)

// IsValid checks if the status is a valid DealStatus
func (s DealStatus) IsValid() bool {
	switch s {
	case DealStatusDraft, DealStatusDepositTaken, DealStatusInvoiced,
		DealStatusDelivered, DealStatusCompleted, DealStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of DealStatus
func (s DealStatus) String() string {
	return string(s)
}

// IsTerminal returns true for statuses that permit no further transitions
func (s DealStatus) IsTerminal() bool {
	return s == DealStatusCompleted || s == DealStatusCancelled
}

// CanTransitionTo checks if the status can transition to the target status
func (s DealStatus) CanTransitionTo(target DealStatus) bool {
	switch s {
	case DealStatusDraft:
		return target == DealStatusDepositTaken || target == DealStatusInvoiced || target == DealStatusCancelled
	case DealStatusDepositTaken:
		return target == DealStatusInvoiced || target == DealStatusCancelled
	case DealStatusInvoiced:
		return target == DealStatusDelivered || target == DealStatusCancelled
	case DealStatusDelivered:
		return target == DealStatusCompleted || target == DealStatusCancelled
	case DealStatusCompleted, DealStatusCancelled:
		return false
	}
	return false
}

// SaleType classifies who the vehicle is being sold to
type SaleType string

const (
	SaleTypeRetail SaleType = "RETAIL"
	SaleTypeTrade  SaleType = "TRADE"
	SaleTypeExport SaleType = "EXPORT"
)

// IsValid checks if the sale type is valid
func (t SaleType) IsValid() bool {
	switch t {
	case SaleTypeRetail, SaleTypeTrade, SaleTypeExport:
		return true
	}
	return false
}

// String returns the string representation of SaleType
func (t SaleType) String() string {
	return string(t)
}

// BuyerUse classifies how a retail buyer uses the vehicle
type BuyerUse string

const (
	BuyerUsePersonal BuyerUse = "PERSONAL"
	BuyerUseBusiness BuyerUse = "BUSINESS"
)

// IsValid checks if the buyer use is valid
func (u BuyerUse) IsValid() bool {
	return u == BuyerUsePersonal || u == BuyerUseBusiness
}

// NormalizeBuyerUse maps legacy buyerType values onto BuyerUse.
// Older records carry CONSUMER/BUSINESS where newer ones carry
// PERSONAL/BUSINESS; both spellings are accepted.
func NormalizeBuyerUse(raw string) (BuyerUse, error) {
	switch raw {
	case "CONSUMER", string(BuyerUsePersonal):
		return BuyerUsePersonal, nil
	case string(BuyerUseBusiness):
		return BuyerUseBusiness, nil
	}
	return "", shared.NewDomainError("VALIDATION_ERROR", "Unknown buyer use: "+raw)
}

// SaleChannel classifies where a retail sale was concluded
type SaleChannel string

const (
	SaleChannelInPerson SaleChannel = "IN_PERSON"
	SaleChannelDistance SaleChannel = "DISTANCE"
)

// IsValid checks if the sale channel is valid
func (c SaleChannel) IsValid() bool {
	return c == SaleChannelInPerson || c == SaleChannelDistance
}

// PaymentType classifies how the deal as a whole is being funded
type PaymentType string

const (
	PaymentTypeCash         PaymentType = "CASH"
	PaymentTypeCard         PaymentType = "CARD"
	PaymentTypeFinance      PaymentType = "FINANCE"
	PaymentTypeBankTransfer PaymentType = "BANK_TRANSFER"
	PaymentTypeMixed        PaymentType = "MIXED"
)

// IsValid checks if the payment type is valid
func (t PaymentType) IsValid() bool {
	switch t {
	case PaymentTypeCash, PaymentTypeCard, PaymentTypeFinance, PaymentTypeBankTransfer, PaymentTypeMixed:
		return true
	}
	return false
}

// PaymentKind classifies an individual payment line
type PaymentKind string

const (
	PaymentKindDeposit PaymentKind = "DEPOSIT"
	PaymentKindBalance PaymentKind = "BALANCE"
	PaymentKindOther   PaymentKind = "OTHER"
)

// IsValid checks if the payment kind is valid
func (k PaymentKind) IsValid() bool {
	switch k {
	case PaymentKindDeposit, PaymentKindBalance, PaymentKindOther:
		return true
	}
	return false
}

// PaymentMethod is the instrument used for an individual payment line
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodFinance      PaymentMethod = "FINANCE"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodFinance:
		return true
	}
	return false
}

// RequestStatus is the lifecycle status of a sales-prep request
type RequestStatus string

const (
	RequestStatusRequested  RequestStatus = "REQUESTED"
	RequestStatusInProgress RequestStatus = "IN_PROGRESS"
	RequestStatusDone       RequestStatus = "DONE"
	RequestStatusCancelled  RequestStatus = "CANCELLED"
)

// IsValid checks if the request status is valid
func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestStatusRequested, RequestStatusInProgress, RequestStatusDone, RequestStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo checks the sales-request lifecycle
func (s RequestStatus) CanTransitionTo(target RequestStatus) bool {
	switch s {
	case RequestStatusRequested:
		return target == RequestStatusInProgress || target == RequestStatusDone || target == RequestStatusCancelled
	case RequestStatusInProgress:
		return target == RequestStatusDone || target == RequestStatusCancelled
	case RequestStatusDone, RequestStatusCancelled:
		return false
	}
	return false
}

// Payment is a money movement recorded against a deal.
// Payments are never deleted; refunds flip IsRefunded so the audit
// trail survives cancellation.
type Payment struct {
	ID         uuid.UUID
	DealID     uuid.UUID
	Kind       PaymentKind
	Method     PaymentMethod
	Amount     decimal.Decimal
	Reference  string
	PaidAt     time.Time
	IsRefunded bool
	RefundedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName returns the table name for GORM
func (Payment) TableName() string {
	return "deal_payments"
}

// NewPayment creates a payment line for a deal
func NewPayment(dealID uuid.UUID, kind PaymentKind, method PaymentMethod, amount decimal.Decimal, reference string, paidAt time.Time) (*Payment, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Unknown payment kind: "+string(kind))
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Unknown payment method: "+string(method))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("COMPUTATION_ERROR", "Payment amount must be positive")
	}
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	now := time.Now()
	return &Payment{
		ID:        uuid.New(),
		DealID:    dealID,
		Kind:      kind,
		Method:    method,
		Amount:    amount.Round(2),
		Reference: reference,
		PaidAt:    paidAt,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// MarkRefunded flags the payment as refunded
func (p *Payment) MarkRefunded() error {
	if p.IsRefunded {
		return shared.NewDomainError("INVALID_STATE", "Payment is already refunded")
	}
	now := time.Now()
	p.IsRefunded = true
	p.RefundedAt = &now
	p.UpdatedAt = now
	return nil
}

// AddOn is an extra product or service sold with the vehicle
type AddOn struct {
	ID           uuid.UUID
	DealID       uuid.UUID
	Name         string
	Quantity     int
	UnitPriceNet decimal.Decimal
	VATTreatment VATTreatment
	VATRate      decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for GORM
func (AddOn) TableName() string {
	return "deal_add_ons"
}

// NewAddOn creates an add-on line for a deal
func NewAddOn(dealID uuid.UUID, name string, quantity int, unitPriceNet decimal.Decimal, treatment VATTreatment, rate decimal.Decimal) (*AddOn, error) {
	if name == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Add-on name cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Add-on quantity must be positive")
	}
	if unitPriceNet.IsNegative() {
		return nil, shared.NewDomainError("COMPUTATION_ERROR", "Add-on unit price cannot be negative")
	}
	if !treatment.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Unknown VAT treatment: "+string(treatment))
	}
	if rate.IsNegative() {
		return nil, shared.NewDomainError("COMPUTATION_ERROR", "VAT rate cannot be negative")
	}

	now := time.Now()
	return &AddOn{
		ID:           uuid.New(),
		DealID:       dealID,
		Name:         name,
		Quantity:     quantity,
		UnitPriceNet: unitPriceNet.Round(2),
		VATTreatment: treatment,
		VATRate:      rate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NetTotal returns quantity x unit net price for the line
func (a *AddOn) NetTotal() decimal.Decimal {
	return a.UnitPriceNet.Mul(decimal.NewFromInt(int64(a.Quantity))).Round(2)
}

// VATTotal returns the VAT owed on the line under its treatment
func (a *AddOn) VATTotal() decimal.Decimal {
	vat, err := LineVAT(a.NetTotal(), a.VATTreatment, a.VATRate)
	if err != nil {
		return decimal.Zero
	}
	return vat
}

// SalesRequest is an ad-hoc sales-prep work item attached to a deal
type SalesRequest struct {
	ID          uuid.UUID
	DealID      uuid.UUID
	Title       string
	Description string
	Status      RequestStatus
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the table name for GORM
func (SalesRequest) TableName() string {
	return "deal_requests"
}

// NewSalesRequest creates a sales-prep request in REQUESTED status
func NewSalesRequest(dealID uuid.UUID, title, description string) (*SalesRequest, error) {
	if title == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Request title cannot be empty")
	}
	now := time.Now()
	return &SalesRequest{
		ID:          uuid.New(),
		DealID:      dealID,
		Title:       title,
		Description: description,
		Status:      RequestStatusRequested,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Transition moves the request through its lifecycle
func (r *SalesRequest) Transition(target RequestStatus) error {
	if !target.IsValid() {
		return shared.NewDomainError("VALIDATION_ERROR", "Unknown request status: "+string(target))
	}
	if !r.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot move request from %s to %s", r.Status, target))
	}
	now := time.Now()
	r.Status = target
	if target == RequestStatusDone {
		r.CompletedAt = &now
	}
	r.UpdatedAt = now
	return nil
}

// VehiclePricing is the snapshot of the vehicle's price taken at deal time.
// Under MARGIN and NO_VAT only the gross is meaningful; under VAT_QUALIFYING
// the gross is the sum of net and VAT.
type VehiclePricing struct {
	Scheme    VATScheme
	Rate      decimal.Decimal
	Net       decimal.Decimal
	VATAmount decimal.Decimal
	Gross     decimal.Decimal
}

// IsSet returns true once a scheme has been chosen
func (p VehiclePricing) IsSet() bool {
	return p.Scheme != ""
}

// NewVehiclePricing builds a validated pricing snapshot from the gross
// (MARGIN/NO_VAT) or the net (VAT_QUALIFYING), deriving the rest through
// the VAT calculator.
func NewVehiclePricing(scheme VATScheme, rate, amount decimal.Decimal) (VehiclePricing, error) {
	if !scheme.IsValid() {
		return VehiclePricing{}, shared.NewDomainError("VALIDATION_ERROR", "Unknown VAT scheme: "+string(scheme))
	}
	if rate.IsZero() {
		rate = DefaultVATRate
	}

	switch scheme {
	case VATSchemeQualifying:
		breakdown, err := GrossFromNet(amount, VATTreatmentStandard, rate)
		if err != nil {
			return VehiclePricing{}, err
		}
		return VehiclePricing{
			Scheme:    scheme,
			Rate:      rate,
			Net:       breakdown.Net,
			VATAmount: breakdown.VAT,
			Gross:     breakdown.Gross,
		}, nil
	default:
		breakdown, err := NetFromGross(amount, VATTreatmentNoVAT, rate)
		if err != nil {
			return VehiclePricing{}, err
		}
		return VehiclePricing{
			Scheme: scheme,
			Rate:   rate,
			Gross:  breakdown.Gross,
		}, nil
	}
}

// PartExchange records a traded-in vehicle: the allowance granted against the
// purchase price and any outstanding finance the dealer settles on it.
type PartExchange struct {
	Allowance  decimal.Decimal
	Settlement decimal.Decimal
}

// Equity is the net value the customer brings: allowance minus settlement
func (px PartExchange) Equity() decimal.Decimal {
	return px.Allowance.Sub(px.Settlement)
}

// Delivery records the agreed vehicle handover terms
type Delivery struct {
	Free   bool
	Amount decimal.Decimal
}

// Charge returns the amount actually charged for delivery
func (d Delivery) Charge() decimal.Decimal {
	if d.Free {
		return decimal.Zero
	}
	return d.Amount
}

// Deal is the aggregate root for a vehicle sale attempt.
// It owns its payments, add-ons and sales requests, references the vehicle
// and customer by id, and derives every monetary total at read time.
type Deal struct {
	shared.TenantAggregateRoot
	DealNumber int64
	VehicleID  uuid.UUID
	CustomerID *uuid.UUID

	SaleType    SaleType
	BuyerUse    BuyerUse
	SaleChannel SaleChannel
	PaymentType PaymentType

	Pricing      VehiclePricing `gorm:"embedded;embeddedPrefix:pricing_"`
	PartExchange PartExchange   `gorm:"embedded;embeddedPrefix:px_"`
	Delivery     Delivery       `gorm:"embedded;embeddedPrefix:delivery_"`

	Payments []Payment      `gorm:"foreignKey:DealID"`
	AddOns   []AddOn        `gorm:"foreignKey:DealID"`
	Requests []SalesRequest `gorm:"foreignKey:DealID"`

	Status         DealStatus
	DepositTakenAt *time.Time
	InvoicedAt     *time.Time
	DeliveredAt    *time.Time
	CompletedAt    *time.Time
	CancelledAt    *time.Time
	CancelReason   string
}

// NewDeal creates a deal in DRAFT status
func NewDeal(dealerID uuid.UUID, dealNumber int64, vehicleID uuid.UUID, saleType SaleType, paymentType PaymentType) (*Deal, error) {
	if dealNumber <= 0 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Deal number must be positive")
	}
	if vehicleID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Vehicle ID cannot be empty")
	}
	if !saleType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Unknown sale type: "+string(saleType))
	}
	if !paymentType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Unknown payment type: "+string(paymentType))
	}

	deal := &Deal{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(dealerID),
		DealNumber:          dealNumber,
		VehicleID:           vehicleID,
		SaleType:            saleType,
		PaymentType:         paymentType,
		Payments:            make([]Payment, 0),
		AddOns:              make([]AddOn, 0),
		Requests:            make([]SalesRequest, 0),
		Status:              DealStatusDraft,
	}

	deal.AddDomainEvent(NewDealCreatedEvent(deal))

	return deal, nil
}

// TableName returns the table name for GORM
func (Deal) TableName() string {
	return "deals"
}

// DealerID returns the owning dealer's id
func (d *Deal) DealerID() uuid.UUID {
	return d.TenantID
}

// CanModifyFinancials reports whether payments, add-ons, pricing and
// part-exchange may still change. Completed and cancelled deals are
// read-only for money.
func (d *Deal) CanModifyFinancials() bool {
	return !d.Status.IsTerminal()
}

// SetCustomer attaches the buying contact
func (d *Deal) SetCustomer(customerID uuid.UUID) error {
	if customerID == uuid.Nil {
		return shared.NewDomainError("VALIDATION_ERROR", "Customer ID cannot be empty")
	}
	d.CustomerID = &customerID
	d.UpdatedAt = time.Now()
	return nil
}

// SetRetailClassification records buyer use and sale channel.
// Both only apply to retail deals.
func (d *Deal) SetRetailClassification(buyerUse BuyerUse, channel SaleChannel) error {
	if d.SaleType != SaleTypeRetail {
		return shared.NewDomainError("VALIDATION_ERROR", "Buyer use and sale channel apply to retail deals only")
	}
	if !buyerUse.IsValid() {
		return shared.NewDomainError("VALIDATION_ERROR", "Unknown buyer use: "+string(buyerUse))
	}
	if !channel.IsValid() {
		return shared.NewDomainError("VALIDATION_ERROR", "Unknown sale channel: "+string(channel))
	}
	d.BuyerUse = buyerUse
	d.SaleChannel = channel
	d.UpdatedAt = time.Now()
	return nil
}

// SetPricing records the vehicle pricing snapshot
func (d *Deal) SetPricing(pricing VehiclePricing) error {
	if !d.CanModifyFinancials() {
		return shared.NewDomainError("INVALID_STATE", "Cannot change pricing on a "+string(d.Status)+" deal")
	}
	if !pricing.IsSet() {
		return shared.NewDomainError("VALIDATION_ERROR", "VAT scheme is required")
	}
	d.Pricing = pricing
	d.UpdatedAt = time.Now()
	return nil
}

// SetPartExchange records the traded-in vehicle's allowance and settlement
func (d *Deal) SetPartExchange(allowance, settlement decimal.Decimal) error {
	if !d.CanModifyFinancials() {
		return shared.NewDomainError("INVALID_STATE", "Cannot change part-exchange on a "+string(d.Status)+" deal")
	}
	if allowance.IsNegative() || settlement.IsNegative() {
		return shared.NewDomainError("COMPUTATION_ERROR", "Part-exchange amounts cannot be negative")
	}
	d.PartExchange = PartExchange{Allowance: allowance.Round(2), Settlement: settlement.Round(2)}
	d.UpdatedAt = time.Now()
	return nil
}

// SetDelivery records the delivery terms
func (d *Deal) SetDelivery(free bool, amount decimal.Decimal) error {
	if !d.CanModifyFinancials() {
		return shared.NewDomainError("INVALID_STATE", "Cannot change delivery on a "+string(d.Status)+" deal")
	}
	if amount.IsNegative() {
		return shared.NewDomainError("COMPUTATION_ERROR", "Delivery amount cannot be negative")
	}
	d.Delivery = Delivery{Free: free, Amount: amount.Round(2)}
	d.UpdatedAt = time.Now()
	return nil
}

// AddPayment records a payment against the deal
func (d *Deal) AddPayment(kind PaymentKind, method PaymentMethod, amount decimal.Decimal, reference string, paidAt time.Time) (*Payment, error) {
	if !d.CanModifyFinancials() {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot add payments to a "+string(d.Status)+" deal")
	}

	payment, err := NewPayment(d.ID, kind, method, amount, reference, paidAt)
	if err != nil {
		return nil, err
	}

	d.Payments = append(d.Payments, *payment)
	d.UpdatedAt = time.Now()
	d.AddDomainEvent(NewDealPaymentRecordedEvent(d, payment))

	return payment, nil
}

// RefundPayment flags a payment as refunded. Refunds stay legal on cancelled
// deals so deposits can be returned after the sale falls through.
func (d *Deal) RefundPayment(paymentID uuid.UUID) error {
	if d.Status == DealStatusCompleted {
		return shared.NewDomainError("INVALID_STATE", "Cannot refund payments on a completed deal")
	}
	for idx := range d.Payments {
		if d.Payments[idx].ID == paymentID {
			if err := d.Payments[idx].MarkRefunded(); err != nil {
				return err
			}
			d.UpdatedAt = time.Now()
			return nil
		}
	}
	return shared.NewDomainError("NOT_FOUND", "Payment not found")
}

// AddAddOn records an add-on line against the deal
func (d *Deal) AddAddOn(name string, quantity int, unitPriceNet decimal.Decimal, treatment VATTreatment, rate decimal.Decimal) (*AddOn, error) {
	if !d.CanModifyFinancials() {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot add add-ons to a "+string(d.Status)+" deal")
	}

	addOn, err := NewAddOn(d.ID, name, quantity, unitPriceNet, treatment, rate)
	if err != nil {
		return nil, err
	}

	d.AddOns = append(d.AddOns, *addOn)
	d.UpdatedAt = time.Now()

	return addOn, nil
}

// RemoveAddOn removes an add-on line
func (d *Deal) RemoveAddOn(addOnID uuid.UUID) error {
	if !d.CanModifyFinancials() {
		return shared.NewDomainError("INVALID_STATE", "Cannot remove add-ons from a "+string(d.Status)+" deal")
	}
	for idx, addOn := range d.AddOns {
		if addOn.ID == addOnID {
			d.AddOns = append(d.AddOns[:idx], d.AddOns[idx+1:]...)
			d.UpdatedAt = time.Now()
			return nil
		}
	}
	return shared.NewDomainError("NOT_FOUND", "Add-on not found")
}

// AddRequest attaches a sales-prep work item
func (d *Deal) AddRequest(title, description string) (*SalesRequest, error) {
	if d.Status.IsTerminal() {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot add requests to a "+string(d.Status)+" deal")
	}

	request, err := NewSalesRequest(d.ID, title, description)
	if err != nil {
		return nil, err
	}

	d.Requests = append(d.Requests, *request)
	d.UpdatedAt = time.Now()

	return request, nil
}

// TransitionRequest moves a sales-prep request through its lifecycle
func (d *Deal) TransitionRequest(requestID uuid.UUID, target RequestStatus) error {
	for idx := range d.Requests {
		if d.Requests[idx].ID == requestID {
			if err := d.Requests[idx].Transition(target); err != nil {
				return err
			}
			d.UpdatedAt = time.Now()
			return nil
		}
	}
	return shared.NewDomainError("NOT_FOUND", "Sales request not found")
}

// GetPayment returns a payment by id
func (d *Deal) GetPayment(paymentID uuid.UUID) *Payment {
	for idx := range d.Payments {
		if d.Payments[idx].ID == paymentID {
			return &d.Payments[idx]
		}
	}
	return nil
}

// TotalDepositPaid sums non-refunded DEPOSIT payments
func (d *Deal) TotalDepositPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range d.Payments {
		if p.Kind == PaymentKindDeposit && !p.IsRefunded {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// TotalPaid sums all non-refunded payments
func (d *Deal) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range d.Payments {
		if !p.IsRefunded {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// AddOnsNetTotal sums net line totals over the add-ons
func (d *Deal) AddOnsNetTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range d.AddOns {
		total = total.Add(a.NetTotal())
	}
	return total
}

// AddOnsVATTotal sums per-line VAT over the add-ons
func (d *Deal) AddOnsVATTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range d.AddOns {
		total = total.Add(a.VATTotal())
	}
	return total
}

// GrandTotal is the gross vehicle price plus add-ons (net and VAT) plus any
// delivery charge
func (d *Deal) GrandTotal() decimal.Decimal {
	return d.Pricing.Gross.
		Add(d.AddOnsNetTotal()).
		Add(d.AddOnsVATTotal()).
		Add(d.Delivery.Charge())
}

// BalanceDue is the grand total less payments received and part-exchange
// equity
func (d *Deal) BalanceDue() decimal.Decimal {
	return d.GrandTotal().
		Sub(d.TotalPaid()).
		Sub(d.PartExchange.Equity())
}

// TakeDeposit transitions DRAFT -> DEPOSIT_TAKEN.
// At least one non-refunded deposit payment must be on record.
func (d *Deal) TakeDeposit() error {
	if !d.Status.CanTransitionTo(DealStatusDepositTaken) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot take deposit on a %s deal", d.Status))
	}
	if d.TotalDepositPaid().LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("VALIDATION_ERROR", "A non-refunded deposit payment is required")
	}

	now := time.Now()
	d.Status = DealStatusDepositTaken
	d.DepositTakenAt = &now
	d.UpdatedAt = now

	d.AddDomainEvent(NewDealDepositTakenEvent(d))

	return nil
}

// MarkInvoiced transitions the deal to INVOICED. The caller is responsible for
// issuing the invoice document in the same unit of work.
func (d *Deal) MarkInvoiced() error {
	if !d.Status.CanTransitionTo(DealStatusInvoiced) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot invoice a %s deal", d.Status))
	}
	if !d.Pricing.IsSet() {
		return shared.NewDomainError("VALIDATION_ERROR", "VAT scheme and vehicle price must be set before invoicing")
	}
	if d.Pricing.Gross.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("VALIDATION_ERROR", "Vehicle price must be set before invoicing")
	}

	now := time.Now()
	d.Status = DealStatusInvoiced
	d.InvoicedAt = &now
	d.UpdatedAt = now

	d.AddDomainEvent(NewDealInvoicedEvent(d))

	return nil
}

// MarkDelivered transitions INVOICED -> DELIVERED. The caller must verify an
// issued, non-void invoice document exists before calling.
func (d *Deal) MarkDelivered() error {
	if !d.Status.CanTransitionTo(DealStatusDelivered) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot deliver a %s deal", d.Status))
	}

	now := time.Now()
	d.Status = DealStatusDelivered
	d.DeliveredAt = &now
	d.UpdatedAt = now

	d.AddDomainEvent(NewDealDeliveredEvent(d))

	return nil
}

// Complete transitions DELIVERED -> COMPLETED. Financial lines become
// read-only from here on.
func (d *Deal) Complete() error {
	if !d.Status.CanTransitionTo(DealStatusCompleted) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete a %s deal", d.Status))
	}

	now := time.Now()
	d.Status = DealStatusCompleted
	d.CompletedAt = &now
	d.UpdatedAt = now

	d.AddDomainEvent(NewDealCompletedEvent(d))

	return nil
}

// Cancel moves any non-terminal deal to CANCELLED. Payments and issued
// documents are retained; refunds are handled through RefundPayment.
func (d *Deal) Cancel(reason string) error {
	if !d.Status.CanTransitionTo(DealStatusCancelled) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel a %s deal", d.Status))
	}
	if reason == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Cancel reason is required")
	}

	now := time.Now()
	d.Status = DealStatusCancelled
	d.CancelledAt = &now
	d.CancelReason = reason
	d.UpdatedAt = now

	d.AddDomainEvent(NewDealCancelledEvent(d))

	return nil
}

// IsDraft returns true if the deal is in draft status
func (d *Deal) IsDraft() bool {
	return d.Status == DealStatusDraft
}

// IsCancelled returns true if the deal is cancelled
func (d *Deal) IsCancelled() bool {
	return d.Status == DealStatusCancelled
}

// IsTerminal returns true if the deal is completed or cancelled
func (d *Deal) IsTerminal() bool {
	return d.Status.IsTerminal()
}
