package dealing

import (
	"context"
	"errors"

	"github.com/dealerdesk/backend/internal/domain/dealing"
	"github.com/dealerdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// maxConflictAttempts bounds how often a write is retried after losing
// an optimistic-lock race before the conflict surfaces to the caller
const maxConflictAttempts = 3

// DealService handles deal lifecycle and financial operations
type DealService struct {
	dealRepo       dealing.DealRepository
	docRepo        dealing.SalesDocumentRepository
	sequences      dealing.SequenceAllocator
	txManager      TransactionManager
	facts          FactsProvider
	eventPublisher shared.EventPublisher
}

// NewDealService creates a new DealService
func NewDealService(
	dealRepo dealing.DealRepository,
	docRepo dealing.SalesDocumentRepository,
	sequences dealing.SequenceAllocator,
	txManager TransactionManager,
	facts FactsProvider,
) *DealService {
	return &DealService{
		dealRepo:  dealRepo,
		docRepo:   docRepo,
		sequences: sequences,
		txManager: txManager,
		facts:     facts,
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *DealService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// publishEvents hands the aggregate's pending events to the bus. Handler
// failures never fail the operation that raised them.
func (s *DealService) publishEvents(ctx context.Context, deal *dealing.Deal) {
	if s.eventPublisher == nil {
		return
	}
	for _, event := range deal.GetDomainEvents() {
		_ = s.eventPublisher.Publish(ctx, event)
	}
	deal.ClearDomainEvents()
}

// Create opens a new deal in DRAFT status, allocating its dealer-scoped
// deal number
func (s *DealService) Create(ctx context.Context, dealerID uuid.UUID, req CreateDealRequest) (*DealResponse, error) {
	dealNumber, err := s.sequences.Next(ctx, dealerID, dealing.SequenceKindDeal)
	if err != nil {
		return nil, err
	}

	deal, err := dealing.NewDeal(dealerID, dealNumber, req.VehicleID, req.SaleType, req.PaymentType)
	if err != nil {
		return nil, err
	}

	if req.CustomerID != nil {
		if err := deal.SetCustomer(*req.CustomerID); err != nil {
			return nil, err
		}
	}

	if req.BuyerUse != "" || req.SaleChannel != "" {
		buyerUse := dealing.BuyerUsePersonal
		if req.BuyerUse != "" {
			buyerUse, err = dealing.NormalizeBuyerUse(req.BuyerUse)
			if err != nil {
				return nil, err
			}
		}
		channel := req.SaleChannel
		if channel == "" {
			channel = dealing.SaleChannelInPerson
		}
		if err := deal.SetRetailClassification(buyerUse, channel); err != nil {
			return nil, err
		}
	}

	if err := s.dealRepo.Save(ctx, deal); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, deal)

	response := ToDealResponse(deal)
	return &response, nil
}

// GetByID retrieves a deal by ID
func (s *DealService) GetByID(ctx context.Context, dealerID, dealID uuid.UUID) (*DealResponse, error) {
	deal, err := s.dealRepo.FindByIDForDealer(ctx, dealerID, dealID)
	if err != nil {
		return nil, err
	}
	response := ToDealResponse(deal)
	return &response, nil
}

// GetByDealNumber retrieves a deal by its dealer-scoped number
func (s *DealService) GetByDealNumber(ctx context.Context, dealerID uuid.UUID, dealNumber int64) (*DealResponse, error) {
	deal, err := s.dealRepo.FindByDealNumber(ctx, dealerID, dealNumber)
	if err != nil {
		return nil, err
	}
	response := ToDealResponse(deal)
	return &response, nil
}

// List retrieves deals with filtering and pagination
func (s *DealService) List(ctx context.Context, dealerID uuid.UUID, filter DealListFilter) ([]DealResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "created_at"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	domainFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Filters:  make(map[string]interface{}),
	}
	if filter.Status != nil {
		domainFilter.Filters["status"] = string(*filter.Status)
	}
	if filter.VehicleID != nil {
		domainFilter.Filters["vehicle_id"] = *filter.VehicleID
	}

	deals, err := s.dealRepo.FindAllForDealer(ctx, dealerID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.dealRepo.CountForDealer(ctx, dealerID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	return ToDealResponses(deals), total, nil
}

// ListByVehicle retrieves deals referencing a vehicle
func (s *DealService) ListByVehicle(ctx context.Context, dealerID, vehicleID uuid.UUID, filter DealListFilter) ([]DealResponse, int64, error) {
	filter.VehicleID = &vehicleID
	return s.List(ctx, dealerID, filter)
}

// StatusSummary returns per-status deal counts for a dealer
func (s *DealService) StatusSummary(ctx context.Context, dealerID uuid.UUID) (*DealStatusSummary, error) {
	summary := &DealStatusSummary{}
	counts := []struct {
		status dealing.DealStatus
		target *int64
	}{
		{dealing.DealStatusDraft, &summary.Draft},
		{dealing.DealStatusDepositTaken, &summary.DepositTaken},
		{dealing.DealStatusInvoiced, &summary.Invoiced},
		{dealing.DealStatusDelivered, &summary.Delivered},
		{dealing.DealStatusCompleted, &summary.Completed},
		{dealing.DealStatusCancelled, &summary.Cancelled},
	}
	for _, c := range counts {
		n, err := s.dealRepo.CountByStatus(ctx, dealerID, c.status)
		if err != nil {
			return nil, err
		}
		*c.target = n
		summary.Total += n
	}
	return summary, nil
}

// SetCustomer attaches a customer to the deal
func (s *DealService) SetCustomer(ctx context.Context, dealerID, dealID, customerID uuid.UUID) (*DealResponse, error) {
	return s.mutate(ctx, dealerID, dealID, func(deal *dealing.Deal) error {
		return deal.SetCustomer(customerID)
	})
}

// SetClassification records buyer use and sale channel
func (s *DealService) SetClassification(ctx context.Context, dealerID, dealID uuid.UUID, rawBuyerUse string, channel dealing.SaleChannel) (*DealResponse, error) {
	buyerUse, err := dealing.NormalizeBuyerUse(rawBuyerUse)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, dealerID, dealID, func(deal *dealing.Deal) error {
		return deal.SetRetailClassification(buyerUse, channel)
	})
}

// SetPricing records the vehicle price under a VAT scheme. The net, VAT
// and gross are derived here, never accepted from the caller.
func (s *DealService) SetPricing(ctx context.Context, dealerID, dealID uuid.UUID, req SetPricingRequest) (*DealResponse, error) {
	pricing, err := dealing.NewVehiclePricing(req.Scheme, req.Rate, req.Amount)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, dealerID, dealID, func(deal *dealing.Deal) error {
		return deal.SetPricing(pricing)
	})
}

// SetPartExchange records part-exchange allowance and settlement
func (s *DealService) SetPartExchange(ctx context.Context, dealerID, dealID uuid.UUID, req SetPartExchangeRequest) (*DealResponse, error) {
	return s.mutate(ctx, dealerID, dealID, func(deal *dealing.Deal) error {
		return deal.SetPartExchange(req.Allowance, req.Settlement)
	})
}

// SetDelivery records delivery terms
func (s *DealService) SetDelivery(ctx context.Context, dealerID, dealID uuid.UUID, req SetDeliveryRequest) (*DealResponse, error) {
	return s.mutate(ctx, dealerID, dealID, func(deal *dealing.Deal) error {
		return deal.SetDelivery(req.Free, req.Amount)
	})
}

// AddPayment records a payment against the deal
func (s *DealService) AddPayment(ctx context.Context, dealerID, dealID uuid.UUID, req AddPaymentRequest) (*DealResponse, error) {
	return s.mutate(ctx, dealerID, dealID, func(deal *dealing.Deal) error {
		_, err := deal.AddPayment(req.Kind, req.Method, req.Amount, req.Reference, req.PaidAt)
		return err
	})
}

// RefundPayment flags a payment as refunded. The row is kept for the
// audit trail; only the totals stop counting it.
func (s *DealService) RefundPayment(ctx context.Context, dealerID, dealID, paymentID uuid.UUID) (*DealResponse, error) {
	return s.mutate(ctx, dealerID, dealID, func(deal *dealing.Deal) error {
		return deal.RefundPayment(paymentID)
	})
}

// AddAddOn records an add-on line on the deal
func (s *DealService) AddAddOn(ctx context.Context, dealerID, dealID uuid.UUID, req AddAddOnRequest) (*DealResponse, error) {
	return s.mutate(ctx, dealerID, dealID, func(deal *dealing.Deal) error {
		_, err := deal.AddAddOn(req.Name, req.Quantity, req.UnitPriceNet, req.VATTreatment, req.VATRate)
		return err
	})
}

// RemoveAddOn removes an add-on line from the deal
func (s *DealService) RemoveAddOn(ctx context.Context, dealerID, dealID, addOnID uuid.UUID) (*DealResponse, error) {
	return s.mutate(ctx, dealerID, dealID, func(deal *dealing.Deal) error {
		return deal.RemoveAddOn(addOnID)
	})
}

// AddRequest records a sales-prep work item on the deal
func (s *DealService) AddRequest(ctx context.Context, dealerID, dealID uuid.UUID, req AddRequestRequest) (*DealResponse, error) {
	return s.mutate(ctx, dealerID, dealID, func(deal *dealing.Deal) error {
		_, err := deal.AddRequest(req.Title, req.Description)
		return err
	})
}

// TransitionRequest moves a sales-prep work item between statuses
func (s *DealService) TransitionRequest(ctx context.Context, dealerID, dealID, requestID uuid.UUID, target dealing.RequestStatus) (*DealResponse, error) {
	return s.mutate(ctx, dealerID, dealID, func(deal *dealing.Deal) error {
		return deal.TransitionRequest(requestID, target)
	})
}

// TakeDeposit moves the deal to DEPOSIT_TAKEN
func (s *DealService) TakeDeposit(ctx context.Context, dealerID, dealID uuid.UUID) (*DealResponse, error) {
	return s.mutate(ctx, dealerID, dealID, func(deal *dealing.Deal) error {
		return deal.TakeDeposit()
	})
}

// Invoice moves the deal to INVOICED and issues the invoice document in
// the same transaction. Either both land or neither does.
func (s *DealService) Invoice(ctx context.Context, dealerID, dealID uuid.UUID) (*DealResponse, *DocumentResponse, error) {
	deal, err := s.dealRepo.FindByIDForDealer(ctx, dealerID, dealID)
	if err != nil {
		return nil, nil, err
	}

	issueCtx, err := s.buildIssueContext(ctx, deal)
	if err != nil {
		return nil, nil, err
	}

	if err := deal.MarkInvoiced(); err != nil {
		return nil, nil, err
	}

	var doc *dealing.SalesDocument
	err = s.txManager.Transaction(func(tx *gorm.DB) error {
		number, err := s.sequences.NextTx(tx, dealerID, dealing.DocumentTypeInvoice.SequenceKind())
		if err != nil {
			return err
		}
		doc, err = dealing.IssueInvoice(deal, number, issueCtx)
		if err != nil {
			return err
		}
		if err := s.docRepo.SaveTx(tx, doc); err != nil {
			return err
		}
		return s.dealRepo.SaveTx(tx, deal)
	})
	if err != nil {
		return nil, nil, err
	}

	s.publishEvents(ctx, deal)
	if s.eventPublisher != nil {
		for _, event := range doc.GetDomainEvents() {
			_ = s.eventPublisher.Publish(ctx, event)
		}
		doc.ClearDomainEvents()
	}

	dealResponse := ToDealResponse(deal)
	docResponse := ToDocumentResponse(doc)
	return &dealResponse, &docResponse, nil
}

// MarkDelivered moves the deal to DELIVERED. An issued, non-void
// invoice must exist.
func (s *DealService) MarkDelivered(ctx context.Context, dealerID, dealID uuid.UUID) (*DealResponse, error) {
	hasInvoice, err := s.docRepo.HasIssuedInvoiceForDeal(ctx, dealerID, dealID)
	if err != nil {
		return nil, err
	}
	if !hasInvoice {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot mark delivered without an issued invoice")
	}
	return s.mutate(ctx, dealerID, dealID, func(deal *dealing.Deal) error {
		return deal.MarkDelivered()
	})
}

// Complete moves the deal to COMPLETED
func (s *DealService) Complete(ctx context.Context, dealerID, dealID uuid.UUID) (*DealResponse, error) {
	return s.mutate(ctx, dealerID, dealID, func(deal *dealing.Deal) error {
		return deal.Complete()
	})
}

// Cancel cancels the deal from any non-terminal status. Payments,
// add-ons and issued documents are retained.
func (s *DealService) Cancel(ctx context.Context, dealerID, dealID uuid.UUID, req CancelDealRequest) (*DealResponse, error) {
	return s.mutate(ctx, dealerID, dealID, func(deal *dealing.Deal) error {
		return deal.Cancel(req.Reason)
	})
}

// mutate loads, applies and saves a deal with optimistic locking, then
// publishes whatever events the mutation raised. Losing the version
// race to a concurrent writer re-loads the deal and re-applies the
// mutation, up to maxConflictAttempts times, before the conflict
// surfaces.
func (s *DealService) mutate(ctx context.Context, dealerID, dealID uuid.UUID, fn func(deal *dealing.Deal) error) (*DealResponse, error) {
	var deal *dealing.Deal
	for attempt := 1; ; attempt++ {
		var err error
		deal, err = s.dealRepo.FindByIDForDealer(ctx, dealerID, dealID)
		if err != nil {
			return nil, err
		}

		if err := fn(deal); err != nil {
			return nil, err
		}

		err = s.dealRepo.SaveWithLock(ctx, deal)
		if err == nil {
			break
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) || attempt >= maxConflictAttempts {
			return nil, err
		}
	}

	s.publishEvents(ctx, deal)

	response := ToDealResponse(deal)
	return &response, nil
}

// buildIssueContext resolves the facts frozen into a document snapshot
func (s *DealService) buildIssueContext(ctx context.Context, deal *dealing.Deal) (dealing.IssueContext, error) {
	var issueCtx dealing.IssueContext

	vehicle, err := s.facts.VehicleFacts(ctx, deal.DealerID(), deal.VehicleID)
	if err != nil {
		return issueCtx, err
	}
	issueCtx.Vehicle = vehicle

	if deal.CustomerID != nil {
		customer, err := s.facts.CustomerFacts(ctx, deal.DealerID(), *deal.CustomerID)
		if err != nil {
			return issueCtx, err
		}
		issueCtx.Customer = customer
	}

	dealer, err := s.facts.DealerFacts(ctx, deal.DealerID())
	if err != nil {
		return issueCtx, err
	}
	issueCtx.Dealer = dealer

	return issueCtx, nil
}
