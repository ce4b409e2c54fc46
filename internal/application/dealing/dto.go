package dealing

import (
	"encoding/json"
	"time"

	"github.com/dealerdesk/backend/internal/domain/dealing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateDealRequest carries the fields needed to open a deal
type CreateDealRequest struct {
	VehicleID   uuid.UUID
	CustomerID  *uuid.UUID
	SaleType    dealing.SaleType
	PaymentType dealing.PaymentType
	BuyerUse    string
	SaleChannel dealing.SaleChannel
}

// SetPricingRequest carries a vehicle pricing change
type SetPricingRequest struct {
	Scheme dealing.VATScheme
	Rate   decimal.Decimal
	// Amount is the net for VAT_QUALIFYING deals and the gross otherwise
	Amount decimal.Decimal
}

// SetPartExchangeRequest carries a part-exchange change
type SetPartExchangeRequest struct {
	Allowance  decimal.Decimal
	Settlement decimal.Decimal
}

// SetDeliveryRequest carries a delivery terms change
type SetDeliveryRequest struct {
	Free   bool
	Amount decimal.Decimal
}

// AddPaymentRequest carries a new payment line
type AddPaymentRequest struct {
	Kind      dealing.PaymentKind
	Method    dealing.PaymentMethod
	Amount    decimal.Decimal
	Reference string
	PaidAt    time.Time
}

// AddAddOnRequest carries a new add-on line
type AddAddOnRequest struct {
	Name         string
	Quantity     int
	UnitPriceNet decimal.Decimal
	VATTreatment dealing.VATTreatment
	VATRate      decimal.Decimal
}

// AddRequestRequest carries a new sales-prep work item
type AddRequestRequest struct {
	Title       string
	Description string
}

// CancelDealRequest carries a cancellation
type CancelDealRequest struct {
	Reason string
}

// DealListFilter carries list filtering options
type DealListFilter struct {
	Page      int
	PageSize  int
	OrderBy   string
	OrderDir  string
	Status    *dealing.DealStatus
	VehicleID *uuid.UUID
}

// PaymentResponse represents a payment line in responses
type PaymentResponse struct {
	ID         uuid.UUID             `json:"id"`
	Kind       dealing.PaymentKind   `json:"kind"`
	Method     dealing.PaymentMethod `json:"method"`
	Amount     decimal.Decimal       `json:"amount"`
	Reference  string                `json:"reference,omitempty"`
	PaidAt     time.Time             `json:"paid_at"`
	IsRefunded bool                  `json:"is_refunded"`
	RefundedAt *time.Time            `json:"refunded_at,omitempty"`
}

// AddOnResponse represents an add-on line in responses
type AddOnResponse struct {
	ID           uuid.UUID            `json:"id"`
	Name         string               `json:"name"`
	Quantity     int                  `json:"quantity"`
	UnitPriceNet decimal.Decimal      `json:"unit_price_net"`
	VATTreatment dealing.VATTreatment `json:"vat_treatment"`
	VATRate      decimal.Decimal      `json:"vat_rate"`
	NetTotal     decimal.Decimal      `json:"net_total"`
	VATTotal     decimal.Decimal      `json:"vat_total"`
}

// SalesRequestResponse represents a sales-prep work item in responses
type SalesRequestResponse struct {
	ID          uuid.UUID             `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description,omitempty"`
	Status      dealing.RequestStatus `json:"status"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

// TotalsResponse carries the read-time derived totals of a deal
type TotalsResponse struct {
	TotalDepositPaid decimal.Decimal `json:"total_deposit_paid"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	AddOnsNetTotal   decimal.Decimal `json:"add_ons_net_total"`
	AddOnsVATTotal   decimal.Decimal `json:"add_ons_vat_total"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
	BalanceDue       decimal.Decimal `json:"balance_due"`
}

// DealResponse represents a deal in API responses
type DealResponse struct {
	ID             uuid.UUID              `json:"id"`
	DealerID       uuid.UUID              `json:"dealer_id"`
	DealNumber     int64                  `json:"deal_number"`
	VehicleID      uuid.UUID              `json:"vehicle_id"`
	CustomerID     *uuid.UUID             `json:"customer_id,omitempty"`
	SaleType       dealing.SaleType       `json:"sale_type"`
	BuyerUse       dealing.BuyerUse       `json:"buyer_use,omitempty"`
	SaleChannel    dealing.SaleChannel    `json:"sale_channel,omitempty"`
	PaymentType    dealing.PaymentType    `json:"payment_type"`
	VATScheme      dealing.VATScheme      `json:"vat_scheme,omitempty"`
	VATRate        decimal.Decimal        `json:"vat_rate"`
	VehicleNet     decimal.Decimal        `json:"vehicle_price_net"`
	VehicleVAT     decimal.Decimal        `json:"vehicle_vat_amount"`
	VehicleGross   decimal.Decimal        `json:"vehicle_price_gross"`
	PXAllowance    decimal.Decimal        `json:"part_exchange_allowance"`
	PXSettlement   decimal.Decimal        `json:"part_exchange_settlement"`
	DeliveryFree   bool                   `json:"delivery_free"`
	DeliveryAmount decimal.Decimal        `json:"delivery_amount"`
	Payments       []PaymentResponse      `json:"payments"`
	AddOns         []AddOnResponse        `json:"add_ons"`
	Requests       []SalesRequestResponse `json:"requests"`
	Totals         TotalsResponse         `json:"totals"`
	Status         dealing.DealStatus     `json:"status"`
	DepositTakenAt *time.Time             `json:"deposit_taken_at,omitempty"`
	InvoicedAt     *time.Time             `json:"invoiced_at,omitempty"`
	DeliveredAt    *time.Time             `json:"delivered_at,omitempty"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty"`
	CancelledAt    *time.Time             `json:"cancelled_at,omitempty"`
	CancelReason   string                 `json:"cancel_reason,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	Version        int                    `json:"version"`
}

// DocumentResponse represents a sales document in API responses
type DocumentResponse struct {
	ID             uuid.UUID              `json:"id"`
	DealerID       uuid.UUID              `json:"dealer_id"`
	Type           dealing.DocumentType   `json:"type"`
	DocumentNumber int64                  `json:"document_number"`
	Status         dealing.DocumentStatus `json:"status"`
	DealID         *uuid.UUID             `json:"deal_id,omitempty"`
	VehicleID      *uuid.UUID             `json:"vehicle_id,omitempty"`
	Snapshot       any                    `json:"snapshot"`
	IssuedAt       *time.Time             `json:"issued_at,omitempty"`
	VoidedAt       *time.Time             `json:"voided_at,omitempty"`
	VoidReason     string                 `json:"void_reason,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// ShareLinkResponse carries a freshly minted share link. The raw token
// appears here once and is never recoverable afterwards.
type ShareLinkResponse struct {
	DocumentID uuid.UUID  `json:"document_id"`
	Token      string     `json:"token"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// DealStatusSummary is a per-status deal count for a dealer
type DealStatusSummary struct {
	Draft        int64 `json:"draft"`
	DepositTaken int64 `json:"deposit_taken"`
	Invoiced     int64 `json:"invoiced"`
	Delivered    int64 `json:"delivered"`
	Completed    int64 `json:"completed"`
	Cancelled    int64 `json:"cancelled"`
	Total        int64 `json:"total"`
}

// ToDealResponse maps a deal aggregate to its response shape
func ToDealResponse(deal *dealing.Deal) DealResponse {
	payments := make([]PaymentResponse, 0, len(deal.Payments))
	for _, p := range deal.Payments {
		payments = append(payments, PaymentResponse{
			ID:         p.ID,
			Kind:       p.Kind,
			Method:     p.Method,
			Amount:     p.Amount,
			Reference:  p.Reference,
			PaidAt:     p.PaidAt,
			IsRefunded: p.IsRefunded,
			RefundedAt: p.RefundedAt,
		})
	}

	addOns := make([]AddOnResponse, 0, len(deal.AddOns))
	for _, a := range deal.AddOns {
		addOns = append(addOns, AddOnResponse{
			ID:           a.ID,
			Name:         a.Name,
			Quantity:     a.Quantity,
			UnitPriceNet: a.UnitPriceNet,
			VATTreatment: a.VATTreatment,
			VATRate:      a.VATRate,
			NetTotal:     a.NetTotal(),
			VATTotal:     a.VATTotal(),
		})
	}

	requests := make([]SalesRequestResponse, 0, len(deal.Requests))
	for _, r := range deal.Requests {
		requests = append(requests, SalesRequestResponse{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Status:      r.Status,
			CompletedAt: r.CompletedAt,
			CreatedAt:   r.CreatedAt,
		})
	}

	return DealResponse{
		ID:             deal.ID,
		DealerID:       deal.DealerID(),
		DealNumber:     deal.DealNumber,
		VehicleID:      deal.VehicleID,
		CustomerID:     deal.CustomerID,
		SaleType:       deal.SaleType,
		BuyerUse:       deal.BuyerUse,
		SaleChannel:    deal.SaleChannel,
		PaymentType:    deal.PaymentType,
		VATScheme:      deal.Pricing.Scheme,
		VATRate:        deal.Pricing.Rate,
		VehicleNet:     deal.Pricing.Net,
		VehicleVAT:     deal.Pricing.VATAmount,
		VehicleGross:   deal.Pricing.Gross,
		PXAllowance:    deal.PartExchange.Allowance,
		PXSettlement:   deal.PartExchange.Settlement,
		DeliveryFree:   deal.Delivery.Free,
		DeliveryAmount: deal.Delivery.Amount,
		Payments:       payments,
		AddOns:         addOns,
		Requests:       requests,
		Totals: TotalsResponse{
			TotalDepositPaid: deal.TotalDepositPaid(),
			TotalPaid:        deal.TotalPaid(),
			AddOnsNetTotal:   deal.AddOnsNetTotal(),
			AddOnsVATTotal:   deal.AddOnsVATTotal(),
			GrandTotal:       deal.GrandTotal(),
			BalanceDue:       deal.BalanceDue(),
		},
		Status:         deal.Status,
		DepositTakenAt: deal.DepositTakenAt,
		InvoicedAt:     deal.InvoicedAt,
		DeliveredAt:    deal.DeliveredAt,
		CompletedAt:    deal.CompletedAt,
		CancelledAt:    deal.CancelledAt,
		CancelReason:   deal.CancelReason,
		CreatedAt:      deal.CreatedAt,
		UpdatedAt:      deal.UpdatedAt,
		Version:        deal.Version,
	}
}

// ToDealResponses maps a slice of deals
func ToDealResponses(deals []dealing.Deal) []DealResponse {
	responses := make([]DealResponse, 0, len(deals))
	for idx := range deals {
		responses = append(responses, ToDealResponse(&deals[idx]))
	}
	return responses
}

// ToDocumentResponse maps a sales document to its response shape. The
// snapshot is decoded into its type-specific payload.
func ToDocumentResponse(doc *dealing.SalesDocument) DocumentResponse {
	var snapshot any
	var decodeErr error
	switch doc.Type {
	case dealing.DocumentTypeDepositReceipt:
		snapshot, decodeErr = doc.DecodeDepositReceipt()
	case dealing.DocumentTypeInvoice:
		snapshot, decodeErr = doc.DecodeInvoice()
	case dealing.DocumentTypeSelfBillInvoice:
		snapshot, decodeErr = doc.DecodeSelfBillInvoice()
	case dealing.DocumentTypePaymentReceipt:
		snapshot, decodeErr = doc.DecodePaymentReceipt()
	}
	if decodeErr != nil {
		// A payload that no longer decodes into its typed shape is still
		// the document of record; expose the stored JSON verbatim rather
		// than an empty snapshot
		snapshot = json.RawMessage(doc.Snapshot)
	}

	return DocumentResponse{
		ID:             doc.ID,
		DealerID:       doc.DealerID(),
		Type:           doc.Type,
		DocumentNumber: doc.DocumentNumber,
		Status:         doc.Status,
		DealID:         doc.DealID,
		VehicleID:      doc.VehicleID,
		Snapshot:       snapshot,
		IssuedAt:       doc.IssuedAt,
		VoidedAt:       doc.VoidedAt,
		VoidReason:     doc.VoidReason,
		CreatedAt:      doc.CreatedAt,
	}
}

// ToDocumentResponses maps a slice of documents
func ToDocumentResponses(docs []dealing.SalesDocument) []DocumentResponse {
	responses := make([]DocumentResponse, 0, len(docs))
	for idx := range docs {
		responses = append(responses, ToDocumentResponse(&docs[idx]))
	}
	return responses
}
