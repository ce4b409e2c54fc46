package handler

import (
	"strconv"
	"time"

	dealingapp "github.com/dealerdesk/backend/internal/application/dealing"
	"github.com/dealerdesk/backend/internal/domain/dealing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DealHandler handles deal-related API endpoints
type DealHandler struct {
	BaseHandler
	dealService *dealingapp.DealService
}

// NewDealHandler creates a new DealHandler
func NewDealHandler(dealService *dealingapp.DealService) *DealHandler {
	return &DealHandler{
		dealService: dealService,
	}
}

// CreateDealRequest represents a request to open a new deal
type CreateDealRequest struct {
	VehicleID   string  `json:"vehicle_id" binding:"required,uuid"`
	CustomerID  *string `json:"customer_id" binding:"omitempty,uuid"`
	SaleType    string  `json:"sale_type" binding:"required"`
	PaymentType string  `json:"payment_type" binding:"required"`
	BuyerUse    string  `json:"buyer_use"`
	SaleChannel string  `json:"sale_channel"`
}

// SetCustomerRequest attaches a customer to a deal
type SetCustomerRequest struct {
	CustomerID string `json:"customer_id" binding:"required,uuid"`
}

// SetClassificationRequest records buyer use and sale channel
type SetClassificationRequest struct {
	BuyerUse    string `json:"buyer_use" binding:"required"`
	SaleChannel string `json:"sale_channel" binding:"required"`
}

// SetPricingRequest records the vehicle price under a VAT scheme.
// Amount is the net for VAT_QUALIFYING deals and the gross otherwise;
// the derived figures are never accepted from the client.
type SetPricingRequest struct {
	Scheme string  `json:"scheme" binding:"required"`
	Rate   float64 `json:"rate" binding:"omitempty,gte=0"`
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// SetPartExchangeRequest records part-exchange figures
type SetPartExchangeRequest struct {
	Allowance  float64 `json:"allowance" binding:"gte=0"`
	Settlement float64 `json:"settlement" binding:"gte=0"`
}

// SetDeliveryRequest records delivery terms
type SetDeliveryRequest struct {
	Free   bool    `json:"free"`
	Amount float64 `json:"amount" binding:"gte=0"`
}

// AddPaymentRequest records a payment against a deal
type AddPaymentRequest struct {
	Kind      string     `json:"kind" binding:"required"`
	Method    string     `json:"method" binding:"required"`
	Amount    float64    `json:"amount" binding:"required,gt=0"`
	Reference string     `json:"reference" binding:"max=100"`
	PaidAt    *time.Time `json:"paid_at"`
}

// AddAddOnRequest records an add-on line
type AddAddOnRequest struct {
	Name         string  `json:"name" binding:"required,min=1,max=200"`
	Quantity     int     `json:"quantity" binding:"required,gt=0"`
	UnitPriceNet float64 `json:"unit_price_net" binding:"gte=0"`
	VATTreatment string  `json:"vat_treatment" binding:"required"`
	VATRate      float64 `json:"vat_rate" binding:"omitempty,gte=0"`
}

// AddDealRequestRequest records a sales-prep work item
type AddDealRequestRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=200"`
	Description string `json:"description" binding:"max=2000"`
}

// TransitionDealRequestRequest moves a work item between statuses
type TransitionDealRequestRequest struct {
	Status string `json:"status" binding:"required"`
}

// CancelDealRequest cancels a deal
type CancelDealRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// Create opens a new deal in DRAFT status
func (h *DealHandler) Create(c *gin.Context) {
	dealerID, err := requestDealerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid dealer ID")
		return
	}

	var req CreateDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	vehicleID, err := uuid.Parse(req.VehicleID)
	if err != nil {
		h.BadRequest(c, "Invalid vehicle ID format")
		return
	}

	appReq := dealingapp.CreateDealRequest{
		VehicleID:   vehicleID,
		SaleType:    dealing.SaleType(req.SaleType),
		PaymentType: dealing.PaymentType(req.PaymentType),
		BuyerUse:    req.BuyerUse,
		SaleChannel: dealing.SaleChannel(req.SaleChannel),
	}

	if req.CustomerID != nil && *req.CustomerID != "" {
		customerID, err := uuid.Parse(*req.CustomerID)
		if err != nil {
			h.BadRequest(c, "Invalid customer ID format")
			return
		}
		appReq.CustomerID = &customerID
	}

	deal, err := h.dealService.Create(c.Request.Context(), dealerID, appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, deal)
}

// GetByID retrieves a deal by ID
func (h *DealHandler) GetByID(c *gin.Context) {
	dealerID, dealID, ok := h.dealScope(c)
	if !ok {
		return
	}

	deal, err := h.dealService.GetByID(c.Request.Context(), dealerID, dealID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, deal)
}

// GetByNumber retrieves a deal by its dealer-scoped number
func (h *DealHandler) GetByNumber(c *gin.Context) {
	dealerID, err := requestDealerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid dealer ID")
		return
	}

	number, err := strconv.ParseInt(c.Param("number"), 10, 64)
	if err != nil || number <= 0 {
		h.BadRequest(c, "Invalid deal number")
		return
	}

	deal, err := h.dealService.GetByDealNumber(c.Request.Context(), dealerID, number)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, deal)
}

// List retrieves deals with filtering and pagination
func (h *DealHandler) List(c *gin.Context) {
	dealerID, err := requestDealerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid dealer ID")
		return
	}

	filter := dealingapp.DealListFilter{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 20),
		OrderBy:  c.Query("order_by"),
		OrderDir: c.Query("order_dir"),
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := dealing.DealStatus(statusStr)
		if !status.IsValid() {
			h.BadRequest(c, "Invalid status filter")
			return
		}
		filter.Status = &status
	}

	if vehicleStr := c.Query("vehicle_id"); vehicleStr != "" {
		vehicleID, err := uuid.Parse(vehicleStr)
		if err != nil {
			h.BadRequest(c, "Invalid vehicle ID format")
			return
		}
		filter.VehicleID = &vehicleID
	}

	deals, total, err := h.dealService.List(c.Request.Context(), dealerID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, deals, total, filter.Page, filter.PageSize)
}

// StatusSummary returns per-status deal counts
func (h *DealHandler) StatusSummary(c *gin.Context) {
	dealerID, err := requestDealerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid dealer ID")
		return
	}

	summary, err := h.dealService.StatusSummary(c.Request.Context(), dealerID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, summary)
}

// SetCustomer attaches a customer to the deal
func (h *DealHandler) SetCustomer(c *gin.Context) {
	dealerID, dealID, ok := h.dealScope(c)
	if !ok {
		return
	}

	var req SetCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		h.BadRequest(c, "Invalid customer ID format")
		return
	}

	deal, err := h.dealService.SetCustomer(c.Request.Context(), dealerID, dealID, customerID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, deal)
}

// SetClassification records buyer use and sale channel
func (h *DealHandler) SetClassification(c *gin.Context) {
	dealerID, dealID, ok := h.dealScope(c)
	if !ok {
		return
	}

	var req SetClassificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	deal, err := h.dealService.SetClassification(c.Request.Context(), dealerID, dealID, req.BuyerUse, dealing.SaleChannel(req.SaleChannel))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, deal)
}

// SetPricing records the vehicle price under a VAT scheme
func (h *DealHandler) SetPricing(c *gin.Context) {
	dealerID, dealID, ok := h.dealScope(c)
	if !ok {
		return
	}

	var req SetPricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	deal, err := h.dealService.SetPricing(c.Request.Context(), dealerID, dealID, dealingapp.SetPricingRequest{
		Scheme: dealing.VATScheme(req.Scheme),
		Rate:   toDecimal(req.Rate),
		Amount: toDecimal(req.Amount),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, deal)
}

// SetPartExchange records part-exchange allowance and settlement
func (h *DealHandler) SetPartExchange(c *gin.Context) {
	dealerID, dealID, ok := h.dealScope(c)
	if !ok {
		return
	}

	var req SetPartExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	deal, err := h.dealService.SetPartExchange(c.Request.Context(), dealerID, dealID, dealingapp.SetPartExchangeRequest{
		Allowance:  toDecimal(req.Allowance),
		Settlement: toDecimal(req.Settlement),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, deal)
}

// SetDelivery records delivery terms
func (h *DealHandler) SetDelivery(c *gin.Context) {
	dealerID, dealID, ok := h.dealScope(c)
	if !ok {
		return
	}

	var req SetDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	deal, err := h.dealService.SetDelivery(c.Request.Context(), dealerID, dealID, dealingapp.SetDeliveryRequest{
		Free:   req.Free,
		Amount: toDecimal(req.Amount),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, deal)
}

// AddPayment records a payment line
func (h *DealHandler) AddPayment(c *gin.Context) {
	dealerID, dealID, ok := h.dealScope(c)
	if !ok {
		return
	}

	var req AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	appReq := dealingapp.AddPaymentRequest{
		Kind:      dealing.PaymentKind(req.Kind),
		Method:    dealing.PaymentMethod(req.Method),
		Amount:    toDecimal(req.Amount),
		Reference: req.Reference,
	}
	if req.PaidAt != nil {
		appReq.PaidAt = *req.PaidAt
	}

	deal, err := h.dealService.AddPayment(c.Request.Context(), dealerID, dealID, appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, deal)
}

// RefundPayment flags a payment as refunded
func (h *DealHandler) RefundPayment(c *gin.Context) {
	dealerID, dealID, ok := h.dealScope(c)
	if !ok {
		return
	}

	paymentID, err := uuid.Parse(c.Param("paymentId"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	deal, err := h.dealService.RefundPayment(c.Request.Context(), dealerID, dealID, paymentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, deal)
}

// AddAddOn records an add-on line
func (h *DealHandler) AddAddOn(c *gin.Context) {
	dealerID, dealID, ok := h.dealScope(c)
	if !ok {
		return
	}

	var req AddAddOnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	deal, err := h.dealService.AddAddOn(c.Request.Context(), dealerID, dealID, dealingapp.AddAddOnRequest{
		Name:         req.Name,
		Quantity:     req.Quantity,
		UnitPriceNet: toDecimal(req.UnitPriceNet),
		VATTreatment: dealing.VATTreatment(req.VATTreatment),
		VATRate:      toDecimal(req.VATRate),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, deal)
}

// RemoveAddOn removes an add-on line
func (h *DealHandler) RemoveAddOn(c *gin.Context) {
	dealerID, dealID, ok := h.dealScope(c)
	if !ok {
		return
	}

	addOnID, err := uuid.Parse(c.Param("addOnId"))
	if err != nil {
		h.BadRequest(c, "Invalid add-on ID format")
		return
	}

	deal, err := h.dealService.RemoveAddOn(c.Request.Context(), dealerID, dealID, addOnID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, deal)
}

// AddRequest records a sales-prep work item
func (h *DealHandler) AddRequest(c *gin.Context) {
	dealerID, dealID, ok := h.dealScope(c)
	if !ok {
		return
	}

	var req AddDealRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	deal, err := h.dealService.AddRequest(c.Request.Context(), dealerID, dealID, dealingapp.AddRequestRequest{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, deal)
}

// TransitionRequest moves a work item between statuses
func (h *DealHandler) TransitionRequest(c *gin.Context) {
	dealerID, dealID, ok := h.dealScope(c)
	if !ok {
		return
	}

	requestID, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		h.BadRequest(c, "Invalid request ID format")
		return
	}

	var req TransitionDealRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	deal, err := h.dealService.TransitionRequest(c.Request.Context(), dealerID, dealID, requestID, dealing.RequestStatus(req.Status))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, deal)
}

// TakeDeposit moves the deal to DEPOSIT_TAKEN
func (h *DealHandler) TakeDeposit(c *gin.Context) {
	dealerID, dealID, ok := h.dealScope(c)
	if !ok {
		return
	}

	deal, err := h.dealService.TakeDeposit(c.Request.Context(), dealerID, dealID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, deal)
}

// Invoice moves the deal to INVOICED and issues the invoice document
func (h *DealHandler) Invoice(c *gin.Context) {
	dealerID, dealID, ok := h.dealScope(c)
	if !ok {
		return
	}

	deal, doc, err := h.dealService.Invoice(c.Request.Context(), dealerID, dealID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, gin.H{
		"deal":     deal,
		"document": doc,
	})
}

// Deliver moves the deal to DELIVERED
func (h *DealHandler) Deliver(c *gin.Context) {
	dealerID, dealID, ok := h.dealScope(c)
	if !ok {
		return
	}

	deal, err := h.dealService.MarkDelivered(c.Request.Context(), dealerID, dealID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, deal)
}

// Complete moves the deal to COMPLETED
func (h *DealHandler) Complete(c *gin.Context) {
	dealerID, dealID, ok := h.dealScope(c)
	if !ok {
		return
	}

	deal, err := h.dealService.Complete(c.Request.Context(), dealerID, dealID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, deal)
}

// Cancel cancels the deal
func (h *DealHandler) Cancel(c *gin.Context) {
	dealerID, dealID, ok := h.dealScope(c)
	if !ok {
		return
	}

	var req CancelDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	deal, err := h.dealService.Cancel(c.Request.Context(), dealerID, dealID, dealingapp.CancelDealRequest{
		Reason: req.Reason,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, deal)
}

// dealScope extracts the dealer and deal ids common to every deal route
func (h *DealHandler) dealScope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	dealerID, err := requestDealerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid dealer ID")
		return uuid.Nil, uuid.Nil, false
	}

	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid deal ID format")
		return uuid.Nil, uuid.Nil, false
	}

	return dealerID, dealID, true
}

// parseIntQuery reads an integer query parameter with a fallback
func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
