package dealing

import (
	"context"
	"errors"
	"time"

	"github.com/dealerdesk/backend/internal/domain/dealing"
	"github.com/dealerdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// IssueSelfBillRequest carries the facts of a vehicle bought in from a
// private seller
type IssueSelfBillRequest struct {
	Vehicle       dealing.VehicleFacts
	Seller        dealing.PartyFacts
	PurchasePrice decimal.Decimal
	Settlement    decimal.Decimal
	PurchasedAt   time.Time
	Terms         string
}

// VoidDocumentRequest carries a void
type VoidDocumentRequest struct {
	Reason string
}

// CreateShareLinkRequest carries share link options
type CreateShareLinkRequest struct {
	TTL *time.Duration
}

// DocumentListFilter carries document list filtering options
type DocumentListFilter struct {
	Page     int
	PageSize int
	Type     *dealing.DocumentType
	Status   *dealing.DocumentStatus
	DealID   *uuid.UUID
}

// DocumentService handles sales document issuance, voiding and sharing
type DocumentService struct {
	docRepo        dealing.SalesDocumentRepository
	dealRepo       dealing.DealRepository
	shareRepo      dealing.ShareLinkRepository
	sequences      dealing.SequenceAllocator
	txManager      TransactionManager
	facts          FactsProvider
	eventPublisher shared.EventPublisher
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	docRepo dealing.SalesDocumentRepository,
	dealRepo dealing.DealRepository,
	shareRepo dealing.ShareLinkRepository,
	sequences dealing.SequenceAllocator,
	txManager TransactionManager,
	facts FactsProvider,
) *DocumentService {
	return &DocumentService{
		docRepo:   docRepo,
		dealRepo:  dealRepo,
		shareRepo: shareRepo,
		sequences: sequences,
		txManager: txManager,
		facts:     facts,
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *DocumentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *DocumentService) publishEvents(ctx context.Context, doc *dealing.SalesDocument) {
	if s.eventPublisher == nil {
		return
	}
	for _, event := range doc.GetDomainEvents() {
		_ = s.eventPublisher.Publish(ctx, event)
	}
	doc.ClearDomainEvents()
}

// GetByID retrieves a document by ID
func (s *DocumentService) GetByID(ctx context.Context, dealerID, docID uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.docRepo.FindByIDForDealer(ctx, dealerID, docID)
	if err != nil {
		return nil, err
	}
	response := ToDocumentResponse(doc)
	return &response, nil
}

// List retrieves documents with filtering and pagination
func (s *DocumentService) List(ctx context.Context, dealerID uuid.UUID, filter DocumentListFilter) ([]DocumentResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	domainFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  "created_at",
		OrderDir: "desc",
		Filters:  make(map[string]interface{}),
	}
	if filter.Type != nil {
		domainFilter.Filters["type"] = string(*filter.Type)
	}
	if filter.Status != nil {
		domainFilter.Filters["status"] = string(*filter.Status)
	}
	if filter.DealID != nil {
		domainFilter.Filters["deal_id"] = *filter.DealID
	}

	docs, err := s.docRepo.FindAllForDealer(ctx, dealerID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.docRepo.CountForDealer(ctx, dealerID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	return ToDocumentResponses(docs), total, nil
}

// ListByDeal retrieves the documents issued against a deal
func (s *DocumentService) ListByDeal(ctx context.Context, dealerID, dealID uuid.UUID) ([]DocumentResponse, error) {
	docs, err := s.docRepo.FindByDeal(ctx, dealerID, dealID)
	if err != nil {
		return nil, err
	}
	return ToDocumentResponses(docs), nil
}

// IssueDepositReceipt issues a deposit receipt against a deal
func (s *DocumentService) IssueDepositReceipt(ctx context.Context, dealerID, dealID uuid.UUID) (*DocumentResponse, error) {
	return s.issueForDeal(ctx, dealerID, dealID, dealing.DocumentTypeDepositReceipt,
		func(deal *dealing.Deal, number int64, issueCtx dealing.IssueContext) (*dealing.SalesDocument, error) {
			return dealing.IssueDepositReceipt(deal, number, issueCtx)
		})
}

// IssuePaymentReceipt issues a receipt for a single payment on a deal
func (s *DocumentService) IssuePaymentReceipt(ctx context.Context, dealerID, dealID, paymentID uuid.UUID) (*DocumentResponse, error) {
	return s.issueForDeal(ctx, dealerID, dealID, dealing.DocumentTypePaymentReceipt,
		func(deal *dealing.Deal, number int64, issueCtx dealing.IssueContext) (*dealing.SalesDocument, error) {
			return dealing.IssuePaymentReceipt(deal, paymentID, number, issueCtx)
		})
}

// IssueSelfBillInvoice issues a self-billing invoice for a vehicle
// bought in from a private seller. No deal is involved.
func (s *DocumentService) IssueSelfBillInvoice(ctx context.Context, dealerID uuid.UUID, req IssueSelfBillRequest) (*DocumentResponse, error) {
	dealerFacts, err := s.facts.DealerFacts(ctx, dealerID)
	if err != nil {
		return nil, err
	}

	purchase := dealing.VehiclePurchase{
		Vehicle:       req.Vehicle,
		Seller:        req.Seller,
		PurchasePrice: req.PurchasePrice,
		Settlement:    req.Settlement,
		PurchasedAt:   req.PurchasedAt,
	}

	var doc *dealing.SalesDocument
	err = s.txManager.Transaction(func(tx *gorm.DB) error {
		number, err := s.sequences.NextTx(tx, dealerID, dealing.DocumentTypeSelfBillInvoice.SequenceKind())
		if err != nil {
			return err
		}
		doc, err = dealing.IssueSelfBillInvoice(dealerID, purchase, number, dealerFacts, req.Terms)
		if err != nil {
			return err
		}
		return s.docRepo.SaveTx(tx, doc)
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, doc)

	response := ToDocumentResponse(doc)
	return &response, nil
}

// Void voids an issued document. The number and snapshot survive; the
// document only stops being effective. Losing a write race re-loads
// the document and re-applies the void, up to maxConflictAttempts
// times.
func (s *DocumentService) Void(ctx context.Context, dealerID, docID uuid.UUID, req VoidDocumentRequest) (*DocumentResponse, error) {
	var doc *dealing.SalesDocument
	for attempt := 1; ; attempt++ {
		var err error
		doc, err = s.docRepo.FindByIDForDealer(ctx, dealerID, docID)
		if err != nil {
			return nil, err
		}

		if err := doc.Void(req.Reason); err != nil {
			return nil, err
		}

		err = s.docRepo.Save(ctx, doc)
		if err == nil {
			break
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) || attempt >= maxConflictAttempts {
			return nil, err
		}
	}

	// A void document should stop being reachable through old links
	if err := s.shareRepo.DeleteForDocument(ctx, dealerID, docID); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, doc)

	response := ToDocumentResponse(doc)
	return &response, nil
}

// CreateShareLink mints a share link for an issued document. The raw
// token is returned exactly once; only its hash is stored.
func (s *DocumentService) CreateShareLink(ctx context.Context, dealerID, docID uuid.UUID, req CreateShareLinkRequest) (*ShareLinkResponse, error) {
	doc, err := s.docRepo.FindByIDForDealer(ctx, dealerID, docID)
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if req.TTL != nil {
		t := time.Now().Add(*req.TTL)
		expiresAt = &t
	}

	link, rawToken, err := dealing.NewDocumentShareLink(doc, expiresAt)
	if err != nil {
		return nil, err
	}

	if err := s.shareRepo.Save(ctx, link); err != nil {
		return nil, err
	}

	return &ShareLinkResponse{
		DocumentID: doc.ID,
		Token:      rawToken,
		ExpiresAt:  expiresAt,
	}, nil
}

// ResolveShareToken returns the document behind a presented token. The
// lookup goes through the token hash and never reveals which check
// failed. Used by the unauthenticated shared-document endpoint.
func (s *DocumentService) ResolveShareToken(ctx context.Context, rawToken string) (*DocumentResponse, error) {
	link, err := s.shareRepo.FindByTokenHash(ctx, dealing.HashShareToken(rawToken))
	if err != nil {
		return nil, shared.ErrNotFound
	}
	if !link.Matches(rawToken) || link.IsExpired(time.Now()) {
		return nil, shared.ErrNotFound
	}

	doc, err := s.docRepo.FindByIDForDealer(ctx, link.DealerID, link.DocumentID)
	if err != nil {
		return nil, shared.ErrNotFound
	}
	if !doc.IsIssued() {
		return nil, shared.ErrNotFound
	}

	response := ToDocumentResponse(doc)
	return &response, nil
}

// issueForDeal loads the deal, resolves facts, allocates a number from
// the type's own sequence and saves the document in one transaction
func (s *DocumentService) issueForDeal(
	ctx context.Context,
	dealerID, dealID uuid.UUID,
	docType dealing.DocumentType,
	issue func(deal *dealing.Deal, number int64, issueCtx dealing.IssueContext) (*dealing.SalesDocument, error),
) (*DocumentResponse, error) {
	deal, err := s.dealRepo.FindByIDForDealer(ctx, dealerID, dealID)
	if err != nil {
		return nil, err
	}

	issueCtx, err := s.buildIssueContext(ctx, deal)
	if err != nil {
		return nil, err
	}

	var doc *dealing.SalesDocument
	err = s.txManager.Transaction(func(tx *gorm.DB) error {
		number, err := s.sequences.NextTx(tx, dealerID, docType.SequenceKind())
		if err != nil {
			return err
		}
		doc, err = issue(deal, number, issueCtx)
		if err != nil {
			return err
		}
		return s.docRepo.SaveTx(tx, doc)
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, doc)

	response := ToDocumentResponse(doc)
	return &response, nil
}

func (s *DocumentService) buildIssueContext(ctx context.Context, deal *dealing.Deal) (dealing.IssueContext, error) {
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
