package dealing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dealerdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DocumentType identifies the kind of sales document
type DocumentType string

const (
	DocumentTypeDepositReceipt  DocumentType = "DEPOSIT_RECEIPT"
	DocumentTypeInvoice         DocumentType = "INVOICE"
	DocumentTypeSelfBillInvoice DocumentType = "SELF_BILL_INVOICE"
	DocumentTypePaymentReceipt  DocumentType = "PAYMENT_RECEIPT"
)

// IsValid checks if the document type is valid
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypeDepositReceipt, DocumentTypeInvoice, DocumentTypeSelfBillInvoice, DocumentTypePaymentReceipt:
		return true
	}
	return false
}

// String returns the string representation of DocumentType
func (t DocumentType) String() string {
	return string(t)
}

// SequenceKind returns the per-dealer sequence this document type draws
// numbers from. Each type has its own gapless counter.
func (t DocumentType) SequenceKind() string {
	return string(t)
}

// SequenceKindDeal is the per-dealer counter deal numbers draw from
const SequenceKindDeal = "deal"

// DocumentStatus is the lifecycle status of a sales document
type DocumentStatus string

const (
	DocumentStatusDraft  DocumentStatus = "DRAFT"
	DocumentStatusIssued DocumentStatus = "ISSUED"
	DocumentStatusVoid   DocumentStatus = "VOID"
)

// IsValid checks if the document status is valid
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusDraft, DocumentStatusIssued, DocumentStatusVoid:
		return true
	}
	return false
}

// VehicleFacts is the frozen description of a vehicle
type VehicleFacts struct {
	VehicleID    uuid.UUID `json:"vehicle_id"`
	Registration string    `json:"registration"`
	VIN          string    `json:"vin"`
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	Derivative   string    `json:"derivative,omitempty"`
	Mileage      int       `json:"mileage"`
	FirstRegAt   *string   `json:"first_registered_at,omitempty"`
}

// PartyFacts is the frozen identity and address of a customer or invoicee
type PartyFacts struct {
	ContactID *uuid.UUID `json:"contact_id,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Address   string     `json:"address,omitempty"`
	Postcode  string     `json:"postcode,omitempty"`
	VATNumber string     `json:"vat_number,omitempty"`
}

// DealerFacts is the frozen identity of the issuing (or self-billing) dealer
type DealerFacts struct {
	DealerID      uuid.UUID `json:"dealer_id"`
	Name          string    `json:"name"`
	Address       string    `json:"address,omitempty"`
	Postcode      string    `json:"postcode,omitempty"`
	VATNumber     string    `json:"vat_number,omitempty"`
	CompanyNumber string    `json:"company_number,omitempty"`
}

// PricingFacts is the frozen vehicle pricing under its VAT scheme
type PricingFacts struct {
	Scheme    VATScheme       `json:"scheme"`
	Rate      decimal.Decimal `json:"rate"`
	Net       decimal.Decimal `json:"net"`
	VATAmount decimal.Decimal `json:"vat_amount"`
	Gross     decimal.Decimal `json:"gross"`
}

// AddOnLine is a frozen add-on line
type AddOnLine struct {
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitPriceNet decimal.Decimal `json:"unit_price_net"`
	VATTreatment VATTreatment    `json:"vat_treatment"`
	VATRate      decimal.Decimal `json:"vat_rate"`
	NetTotal     decimal.Decimal `json:"net_total"`
	VATTotal     decimal.Decimal `json:"vat_total"`
}

// PaymentLine is a frozen payment line
type PaymentLine struct {
	PaymentID  uuid.UUID       `json:"payment_id"`
	Kind       PaymentKind     `json:"kind"`
	Method     PaymentMethod   `json:"method"`
	Amount     decimal.Decimal `json:"amount"`
	Reference  string          `json:"reference,omitempty"`
	PaidAt     time.Time       `json:"paid_at"`
	IsRefunded bool            `json:"is_refunded"`
}

// PartExchangeFacts is the frozen part-exchange position
type PartExchangeFacts struct {
	Allowance  decimal.Decimal `json:"allowance"`
	Settlement decimal.Decimal `json:"settlement"`
	Equity     decimal.Decimal `json:"equity"`
}

// DeliveryFacts is the frozen delivery terms
type DeliveryFacts struct {
	Free   bool            `json:"free"`
	Charge decimal.Decimal `json:"charge"`
}

// FinanceFacts is the frozen finance arrangement, when the deal is funded
// through a lender
type FinanceFacts struct {
	Lender        string          `json:"lender"`
	AgreementRef  string          `json:"agreement_ref,omitempty"`
	AmountFunded  decimal.Decimal `json:"amount_funded"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
}

// TotalsFacts is the frozen set of derived totals at issuance time
type TotalsFacts struct {
	AddOnsNetTotal   decimal.Decimal `json:"add_ons_net_total"`
	AddOnsVATTotal   decimal.Decimal `json:"add_ons_vat_total"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
	TotalDepositPaid decimal.Decimal `json:"total_deposit_paid"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	BalanceDue       decimal.Decimal `json:"balance_due"`
}

// DepositReceiptData is the snapshot payload for a deposit receipt
type DepositReceiptData struct {
	DealNumber int64         `json:"deal_number"`
	Vehicle    VehicleFacts  `json:"vehicle"`
	Customer   PartyFacts    `json:"customer"`
	Dealer     DealerFacts   `json:"dealer"`
	Deposits   []PaymentLine `json:"deposits"`
	Totals     TotalsFacts   `json:"totals"`
	Terms      string        `json:"terms,omitempty"`
}

// InvoiceData is the snapshot payload for a sales invoice
type InvoiceData struct {
	DealNumber   int64             `json:"deal_number"`
	SaleType     SaleType          `json:"sale_type"`
	Vehicle      VehicleFacts      `json:"vehicle"`
	Customer     PartyFacts        `json:"customer"`
	Invoicee     *PartyFacts       `json:"invoicee,omitempty"`
	Dealer       DealerFacts       `json:"dealer"`
	Pricing      PricingFacts      `json:"pricing"`
	AddOns       []AddOnLine       `json:"add_ons"`
	Delivery     DeliveryFacts     `json:"delivery"`
	PartExchange PartExchangeFacts `json:"part_exchange"`
	Finance      *FinanceFacts     `json:"finance,omitempty"`
	Payments     []PaymentLine     `json:"payments"`
	Totals       TotalsFacts       `json:"totals"`
	Terms        string            `json:"terms,omitempty"`
}

// SelfBillInvoiceData is the snapshot payload for a self-billing invoice
// raised by the dealer against a vehicle purchase
type SelfBillInvoiceData struct {
	Vehicle       VehicleFacts    `json:"vehicle"`
	Seller        PartyFacts      `json:"seller"`
	Dealer        DealerFacts     `json:"dealer"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	Settlement    decimal.Decimal `json:"settlement"`
	PurchasedAt   time.Time       `json:"purchased_at"`
	Terms         string          `json:"terms,omitempty"`
}

// PaymentReceiptData is the snapshot payload for a payment receipt
type PaymentReceiptData struct {
	DealNumber int64        `json:"deal_number"`
	Vehicle    VehicleFacts `json:"vehicle"`
	Customer   PartyFacts   `json:"customer"`
	Dealer     DealerFacts  `json:"dealer"`
	Payment    PaymentLine  `json:"payment"`
	Totals     TotalsFacts  `json:"totals"`
	Terms      string       `json:"terms,omitempty"`
}

// SalesDocument is an immutable point-in-time financial document. Once issued
// the snapshot and number never change; voiding with a reason is the only
// legal mutation, and a corrected document is a new document with a new
// number.
type SalesDocument struct {
	shared.TenantAggregateRoot
	Type           DocumentType
	DocumentNumber int64
	Status         DocumentStatus
	DealID         *uuid.UUID
	VehicleID      *uuid.UUID
	Snapshot       datatypes.JSON
	IssuedAt       *time.Time
	VoidedAt       *time.Time
	VoidReason     string
}

// TableName returns the table name for GORM
func (SalesDocument) TableName() string {
	return "sales_documents"
}

// DealerID returns the owning dealer's id
func (doc *SalesDocument) DealerID() uuid.UUID {
	return doc.TenantID
}

// IsIssued returns true for issued, non-void documents
func (doc *SalesDocument) IsIssued() bool {
	return doc.Status == DocumentStatusIssued
}

// IsVoid returns true for voided documents
func (doc *SalesDocument) IsVoid() bool {
	return doc.Status == DocumentStatusVoid
}

// Void marks an issued document void. The snapshot and document number are
// untouched and the number is never reused.
func (doc *SalesDocument) Void(reason string) error {
	if doc.Status != DocumentStatusIssued {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot void a %s document", doc.Status))
	}
	if reason == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Void reason is required")
	}

	now := time.Now()
	doc.Status = DocumentStatusVoid
	doc.VoidedAt = &now
	doc.VoidReason = reason
	doc.UpdatedAt = now

	doc.AddDomainEvent(NewDocumentVoidedEvent(doc))

	return nil
}

// DecodeDepositReceipt decodes the snapshot of a DEPOSIT_RECEIPT document
func (doc *SalesDocument) DecodeDepositReceipt() (*DepositReceiptData, error) {
	if doc.Type != DocumentTypeDepositReceipt {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Document is not a deposit receipt")
	}
	var data DepositReceiptData
	if err := json.Unmarshal(doc.Snapshot, &data); err != nil {
		return nil, fmt.Errorf("decode deposit receipt snapshot: %w", err)
	}
	return &data, nil
}

// DecodeInvoice decodes the snapshot of an INVOICE document
func (doc *SalesDocument) DecodeInvoice() (*InvoiceData, error) {
	if doc.Type != DocumentTypeInvoice {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Document is not an invoice")
	}
	var data InvoiceData
	if err := json.Unmarshal(doc.Snapshot, &data); err != nil {
		return nil, fmt.Errorf("decode invoice snapshot: %w", err)
	}
	return &data, nil
}

// DecodeSelfBillInvoice decodes the snapshot of a SELF_BILL_INVOICE document
func (doc *SalesDocument) DecodeSelfBillInvoice() (*SelfBillInvoiceData, error) {
	if doc.Type != DocumentTypeSelfBillInvoice {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Document is not a self-bill invoice")
	}
	var data SelfBillInvoiceData
	if err := json.Unmarshal(doc.Snapshot, &data); err != nil {
		return nil, fmt.Errorf("decode self-bill invoice snapshot: %w", err)
	}
	return &data, nil
}

// DecodePaymentReceipt decodes the snapshot of a PAYMENT_RECEIPT document
func (doc *SalesDocument) DecodePaymentReceipt() (*PaymentReceiptData, error) {
	if doc.Type != DocumentTypePaymentReceipt {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Document is not a payment receipt")
	}
	var data PaymentReceiptData
	if err := json.Unmarshal(doc.Snapshot, &data); err != nil {
		return nil, fmt.Errorf("decode payment receipt snapshot: %w", err)
	}
	return &data, nil
}

// IssueContext carries the collaborator facts a snapshot needs: the vehicle
// and party records referenced by id on the deal, the dealer's own details
// and the legal terms text in force.
type IssueContext struct {
	Vehicle  VehicleFacts
	Customer PartyFacts
	Invoicee *PartyFacts
	Dealer   DealerFacts
	Finance  *FinanceFacts
	Terms    string
}

// dealTotals freezes the deal's derived totals at this instant
func dealTotals(deal *Deal) TotalsFacts {
	return TotalsFacts{
		AddOnsNetTotal:   deal.AddOnsNetTotal(),
		AddOnsVATTotal:   deal.AddOnsVATTotal(),
		GrandTotal:       deal.GrandTotal(),
		TotalDepositPaid: deal.TotalDepositPaid(),
		TotalPaid:        deal.TotalPaid(),
		BalanceDue:       deal.BalanceDue(),
	}
}

// copyPaymentLines value-copies the deal's payments into frozen lines
func copyPaymentLines(payments []Payment) []PaymentLine {
	lines := make([]PaymentLine, 0, len(payments))
	for _, p := range payments {
		lines = append(lines, PaymentLine{
			PaymentID:  p.ID,
			Kind:       p.Kind,
			Method:     p.Method,
			Amount:     p.Amount,
			Reference:  p.Reference,
			PaidAt:     p.PaidAt,
			IsRefunded: p.IsRefunded,
		})
	}
	return lines
}

// copyAddOnLines value-copies the deal's add-ons into frozen lines
func copyAddOnLines(addOns []AddOn) []AddOnLine {
	lines := make([]AddOnLine, 0, len(addOns))
	for _, a := range addOns {
		lines = append(lines, AddOnLine{
			Name:         a.Name,
			Quantity:     a.Quantity,
			UnitPriceNet: a.UnitPriceNet,
			VATTreatment: a.VATTreatment,
			VATRate:      a.VATRate,
			NetTotal:     a.NetTotal(),
			VATTotal:     a.VATTotal(),
		})
	}
	return lines
}

// newIssuedDocument builds the common shell of an issued document
func newIssuedDocument(dealerID uuid.UUID, docType DocumentType, number int64, payload any) (*SalesDocument, error) {
	if number <= 0 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Document number must be positive")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s snapshot: %w", docType, err)
	}

	now := time.Now()
	doc := &SalesDocument{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(dealerID),
		Type:                docType,
		DocumentNumber:      number,
		Status:              DocumentStatusIssued,
		Snapshot:            datatypes.JSON(raw),
		IssuedAt:            &now,
	}
	return doc, nil
}

// IssueDepositReceipt captures a deposit receipt from the deal at this
// instant. At least one non-refunded deposit payment must exist.
func IssueDepositReceipt(deal *Deal, number int64, ctx IssueContext) (*SalesDocument, error) {
	if deal.TotalDepositPaid().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "A non-refunded deposit payment is required for a deposit receipt")
	}
	if ctx.Customer.Name == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Customer facts are required for a deposit receipt")
	}

	deposits := make([]PaymentLine, 0)
	for _, line := range copyPaymentLines(deal.Payments) {
		if line.Kind == PaymentKindDeposit && !line.IsRefunded {
			deposits = append(deposits, line)
		}
	}

	data := DepositReceiptData{
		DealNumber: deal.DealNumber,
		Vehicle:    ctx.Vehicle,
		Customer:   ctx.Customer,
		Dealer:     ctx.Dealer,
		Deposits:   deposits,
		Totals:     dealTotals(deal),
		Terms:      ctx.Terms,
	}

	doc, err := newIssuedDocument(deal.TenantID, DocumentTypeDepositReceipt, number, data)
	if err != nil {
		return nil, err
	}
	doc.DealID = &deal.ID
	doc.VehicleID = &deal.VehicleID
	doc.AddDomainEvent(NewDocumentIssuedEvent(doc))
	return doc, nil
}

// IssueInvoice captures a sales invoice from the deal at this instant.
// Pricing must carry a VAT scheme and a positive gross.
func IssueInvoice(deal *Deal, number int64, ctx IssueContext) (*SalesDocument, error) {
	if !deal.Pricing.IsSet() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "VAT scheme and vehicle price are required for an invoice")
	}
	if deal.Pricing.Gross.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Vehicle price is required for an invoice")
	}
	if ctx.Customer.Name == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Customer facts are required for an invoice")
	}

	data := InvoiceData{
		DealNumber: deal.DealNumber,
		SaleType:   deal.SaleType,
		Vehicle:    ctx.Vehicle,
		Customer:   ctx.Customer,
		Invoicee:   ctx.Invoicee,
		Dealer:     ctx.Dealer,
		Pricing: PricingFacts{
			Scheme:    deal.Pricing.Scheme,
			Rate:      deal.Pricing.Rate,
			Net:       deal.Pricing.Net,
			VATAmount: deal.Pricing.VATAmount,
			Gross:     deal.Pricing.Gross,
		},
		AddOns: copyAddOnLines(deal.AddOns),
		Delivery: DeliveryFacts{
			Free:   deal.Delivery.Free,
			Charge: deal.Delivery.Charge(),
		},
		PartExchange: PartExchangeFacts{
			Allowance:  deal.PartExchange.Allowance,
			Settlement: deal.PartExchange.Settlement,
			Equity:     deal.PartExchange.Equity(),
		},
		Finance:  ctx.Finance,
		Payments: copyPaymentLines(deal.Payments),
		Totals:   dealTotals(deal),
		Terms:    ctx.Terms,
	}

	doc, err := newIssuedDocument(deal.TenantID, DocumentTypeInvoice, number, data)
	if err != nil {
		return nil, err
	}
	doc.DealID = &deal.ID
	doc.VehicleID = &deal.VehicleID
	doc.AddDomainEvent(NewDocumentIssuedEvent(doc))
	return doc, nil
}

// VehiclePurchase carries the facts of a vehicle bought in by the dealer,
// the source for a self-billing invoice. There is no deal behind it.
type VehiclePurchase struct {
	Vehicle       VehicleFacts
	Seller        PartyFacts
	PurchasePrice decimal.Decimal
	Settlement    decimal.Decimal
	PurchasedAt   time.Time
}

// IssueSelfBillInvoice captures a self-billing invoice from a vehicle
// purchase at this instant
func IssueSelfBillInvoice(dealerID uuid.UUID, purchase VehiclePurchase, number int64, dealer DealerFacts, terms string) (*SalesDocument, error) {
	if purchase.Vehicle.VehicleID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Vehicle facts are required for a self-bill invoice")
	}
	if purchase.Seller.Name == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Seller facts are required for a self-bill invoice")
	}
	if purchase.PurchasePrice.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("COMPUTATION_ERROR", "Purchase price must be positive")
	}
	if purchase.Settlement.IsNegative() {
		return nil, shared.NewDomainError("COMPUTATION_ERROR", "Settlement cannot be negative")
	}
	if purchase.PurchasedAt.IsZero() {
		purchase.PurchasedAt = time.Now()
	}

	data := SelfBillInvoiceData{
		Vehicle:       purchase.Vehicle,
		Seller:        purchase.Seller,
		Dealer:        dealer,
		PurchasePrice: purchase.PurchasePrice.Round(2),
		Settlement:    purchase.Settlement.Round(2),
		PurchasedAt:   purchase.PurchasedAt,
		Terms:         terms,
	}

	doc, err := newIssuedDocument(dealerID, DocumentTypeSelfBillInvoice, number, data)
	if err != nil {
		return nil, err
	}
	vehicleID := purchase.Vehicle.VehicleID
	doc.VehicleID = &vehicleID
	doc.AddDomainEvent(NewDocumentIssuedEvent(doc))
	return doc, nil
}

// IssuePaymentReceipt captures a receipt for one payment on the deal
func IssuePaymentReceipt(deal *Deal, paymentID uuid.UUID, number int64, ctx IssueContext) (*SalesDocument, error) {
	payment := deal.GetPayment(paymentID)
	if payment == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Payment not found")
	}
	if payment.IsRefunded {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Cannot issue a receipt for a refunded payment")
	}
	if ctx.Customer.Name == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Customer facts are required for a payment receipt")
	}

	data := PaymentReceiptData{
		DealNumber: deal.DealNumber,
		Vehicle:    ctx.Vehicle,
		Customer:   ctx.Customer,
		Dealer:     ctx.Dealer,
		Payment: PaymentLine{
			PaymentID:  payment.ID,
			Kind:       payment.Kind,
			Method:     payment.Method,
			Amount:     payment.Amount,
			Reference:  payment.Reference,
			PaidAt:     payment.PaidAt,
			IsRefunded: payment.IsRefunded,
		},
		Totals: dealTotals(deal),
		Terms:  ctx.Terms,
	}

	doc, err := newIssuedDocument(deal.TenantID, DocumentTypePaymentReceipt, number, data)
	if err != nil {
		return nil, err
	}
	doc.DealID = &deal.ID
	doc.VehicleID = &deal.VehicleID
	doc.AddDomainEvent(NewDocumentIssuedEvent(doc))
	return doc, nil
}
