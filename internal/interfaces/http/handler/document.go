package handler

import (
	"time"

	dealingapp "github.com/dealerdesk/backend/internal/application/dealing"
	"github.com/dealerdesk/backend/internal/domain/dealing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentHandler handles sales document API endpoints
type DocumentHandler struct {
	BaseHandler
	documentService *dealingapp.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documentService *dealingapp.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
	}
}

// IssuePaymentReceiptRequest names the payment the receipt covers
type IssuePaymentReceiptRequest struct {
	PaymentID string `json:"payment_id" binding:"required,uuid"`
}

// SelfBillVehicleRequest carries vehicle details for a self-bill invoice
type SelfBillVehicleRequest struct {
	VehicleID    string `json:"vehicle_id" binding:"required,uuid"`
	Registration string `json:"registration" binding:"required,max=20"`
	VIN          string `json:"vin" binding:"max=30"`
	Make         string `json:"make" binding:"required,max=100"`
	Model        string `json:"model" binding:"required,max=100"`
	Derivative   string `json:"derivative" binding:"max=200"`
	Mileage      int    `json:"mileage" binding:"gte=0"`
}

// SelfBillSellerRequest carries seller details for a self-bill invoice
type SelfBillSellerRequest struct {
	ContactID *string `json:"contact_id" binding:"omitempty,uuid"`
	Name      string  `json:"name" binding:"required,max=200"`
	Email     string  `json:"email" binding:"omitempty,email"`
	Phone     string  `json:"phone" binding:"max=30"`
	Address   string  `json:"address" binding:"max=500"`
	Postcode  string  `json:"postcode" binding:"max=20"`
	VATNumber string  `json:"vat_number" binding:"max=30"`
}

// IssueSelfBillRequest issues a self-bill purchase invoice
type IssueSelfBillRequest struct {
	Vehicle       SelfBillVehicleRequest `json:"vehicle" binding:"required"`
	Seller        SelfBillSellerRequest  `json:"seller" binding:"required"`
	PurchasePrice float64                `json:"purchase_price" binding:"required,gt=0"`
	Settlement    float64                `json:"settlement" binding:"gte=0"`
	PurchasedAt   *time.Time             `json:"purchased_at"`
	Terms         string                 `json:"terms" binding:"max=2000"`
}

// VoidDocumentRequest voids an issued document
type VoidDocumentRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// CreateShareLinkRequest mints a share link for a document
type CreateShareLinkRequest struct {
	TTLHours *int `json:"ttl_hours" binding:"omitempty,gt=0"`
}

// GetByID retrieves a document by ID
func (h *DocumentHandler) GetByID(c *gin.Context) {
	dealerID, docID, ok := h.documentScope(c)
	if !ok {
		return
	}

	doc, err := h.documentService.GetByID(c.Request.Context(), dealerID, docID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, doc)
}

// List retrieves documents with filtering and pagination
func (h *DocumentHandler) List(c *gin.Context) {
	dealerID, err := requestDealerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid dealer ID")
		return
	}

	filter := dealingapp.DocumentListFilter{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 20),
	}

	if typeStr := c.Query("type"); typeStr != "" {
		docType := dealing.DocumentType(typeStr)
		filter.Type = &docType
	}
	if statusStr := c.Query("status"); statusStr != "" {
		docStatus := dealing.DocumentStatus(statusStr)
		filter.Status = &docStatus
	}
	if dealStr := c.Query("deal_id"); dealStr != "" {
		dealID, err := uuid.Parse(dealStr)
		if err != nil {
			h.BadRequest(c, "Invalid deal ID format")
			return
		}
		filter.DealID = &dealID
	}

	docs, total, err := h.documentService.List(c.Request.Context(), dealerID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, docs, total, filter.Page, filter.PageSize)
}

// ListByDeal retrieves all documents issued against a deal
func (h *DocumentHandler) ListByDeal(c *gin.Context) {
	dealerID, err := requestDealerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid dealer ID")
		return
	}

	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid deal ID format")
		return
	}

	docs, err := h.documentService.ListByDeal(c.Request.Context(), dealerID, dealID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, docs)
}

// IssueDepositReceipt issues a deposit receipt for a deal
func (h *DocumentHandler) IssueDepositReceipt(c *gin.Context) {
	dealerID, err := requestDealerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid dealer ID")
		return
	}

	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid deal ID format")
		return
	}

	doc, err := h.documentService.IssueDepositReceipt(c.Request.Context(), dealerID, dealID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, doc)
}

// IssuePaymentReceipt issues a payment receipt for a specific payment
func (h *DocumentHandler) IssuePaymentReceipt(c *gin.Context) {
	dealerID, err := requestDealerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid dealer ID")
		return
	}

	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid deal ID format")
		return
	}

	var req IssuePaymentReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	paymentID, err := uuid.Parse(req.PaymentID)
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	doc, err := h.documentService.IssuePaymentReceipt(c.Request.Context(), dealerID, dealID, paymentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, doc)
}

// IssueSelfBill issues a self-bill purchase invoice, outside any deal
func (h *DocumentHandler) IssueSelfBill(c *gin.Context) {
	dealerID, err := requestDealerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid dealer ID")
		return
	}

	var req IssueSelfBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	vehicleID, err := uuid.Parse(req.Vehicle.VehicleID)
	if err != nil {
		h.BadRequest(c, "Invalid vehicle ID format")
		return
	}

	seller := dealing.PartyFacts{
		Name:      req.Seller.Name,
		Email:     req.Seller.Email,
		Phone:     req.Seller.Phone,
		Address:   req.Seller.Address,
		Postcode:  req.Seller.Postcode,
		VATNumber: req.Seller.VATNumber,
	}
	if req.Seller.ContactID != nil && *req.Seller.ContactID != "" {
		contactID, err := uuid.Parse(*req.Seller.ContactID)
		if err != nil {
			h.BadRequest(c, "Invalid contact ID format")
			return
		}
		seller.ContactID = &contactID
	}

	purchasedAt := time.Now()
	if req.PurchasedAt != nil {
		purchasedAt = *req.PurchasedAt
	}

	doc, err := h.documentService.IssueSelfBillInvoice(c.Request.Context(), dealerID, dealingapp.IssueSelfBillRequest{
		Vehicle: dealing.VehicleFacts{
			VehicleID:    vehicleID,
			Registration: req.Vehicle.Registration,
			VIN:          req.Vehicle.VIN,
			Make:         req.Vehicle.Make,
			Model:        req.Vehicle.Model,
			Derivative:   req.Vehicle.Derivative,
			Mileage:      req.Vehicle.Mileage,
		},
		Seller:        seller,
		PurchasePrice: toDecimal(req.PurchasePrice),
		Settlement:    toDecimal(req.Settlement),
		PurchasedAt:   purchasedAt,
		Terms:         req.Terms,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, doc)
}

// Void voids an issued document, keeping it on record
func (h *DocumentHandler) Void(c *gin.Context) {
	dealerID, docID, ok := h.documentScope(c)
	if !ok {
		return
	}

	var req VoidDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	doc, err := h.documentService.Void(c.Request.Context(), dealerID, docID, dealingapp.VoidDocumentRequest{
		Reason: req.Reason,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, doc)
}

// CreateShareLink mints an unguessable share token for a document.
// The raw token is only ever returned here; the server stores its hash.
func (h *DocumentHandler) CreateShareLink(c *gin.Context) {
	dealerID, docID, ok := h.documentScope(c)
	if !ok {
		return
	}

	var req CreateShareLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	appReq := dealingapp.CreateShareLinkRequest{}
	if req.TTLHours != nil {
		ttl := time.Duration(*req.TTLHours) * time.Hour
		appReq.TTL = &ttl
	}

	link, err := h.documentService.CreateShareLink(c.Request.Context(), dealerID, docID, appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, link)
}

func (h *DocumentHandler) documentScope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	dealerID, err := requestDealerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid dealer ID")
		return uuid.Nil, uuid.Nil, false
	}

	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return uuid.Nil, uuid.Nil, false
	}

	return dealerID, docID, true
}
