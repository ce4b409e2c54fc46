package dealing

import (
	"context"

	"github.com/dealerdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DealRepository defines the interface for deal persistence.
// Every read and write is dealer-scoped: cross-tenant access is a security
// invariant, enforced at the query, not at the UI.
type DealRepository interface {
	// FindByIDForDealer finds a deal by ID within a dealer
	FindByIDForDealer(ctx context.Context, dealerID, id uuid.UUID) (*Deal, error)

	// FindByDealNumber finds a deal by its sequential number within a dealer
	FindByDealNumber(ctx context.Context, dealerID uuid.UUID, dealNumber int64) (*Deal, error)

	// FindAllForDealer finds all deals for a dealer with filtering
	FindAllForDealer(ctx context.Context, dealerID uuid.UUID, filter shared.Filter) ([]Deal, error)

	// FindByVehicle finds deals referencing a vehicle
	FindByVehicle(ctx context.Context, dealerID, vehicleID uuid.UUID, filter shared.Filter) ([]Deal, error)

	// Save creates or updates a deal together with its lines
	Save(ctx context.Context, deal *Deal) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, deal *Deal) error

	// SaveTx saves a deal within an existing transaction
	SaveTx(tx *gorm.DB, deal *Deal) error

	// CountForDealer counts deals for a dealer with optional filters
	CountForDealer(ctx context.Context, dealerID uuid.UUID, filter shared.Filter) (int64, error)

	// CountByStatus counts deals by status for a dealer
	CountByStatus(ctx context.Context, dealerID uuid.UUID, status DealStatus) (int64, error)
}

// SalesDocumentRepository defines the interface for sales document persistence
type SalesDocumentRepository interface {
	// FindByIDForDealer finds a document by ID within a dealer
	FindByIDForDealer(ctx context.Context, dealerID, id uuid.UUID) (*SalesDocument, error)

	// FindAllForDealer finds documents for a dealer with filtering
	FindAllForDealer(ctx context.Context, dealerID uuid.UUID, filter shared.Filter) ([]SalesDocument, error)

	// FindByDeal finds documents issued against a deal
	FindByDeal(ctx context.Context, dealerID, dealID uuid.UUID) ([]SalesDocument, error)

	// HasIssuedInvoiceForDeal reports whether an issued, non-void INVOICE
	// exists against the deal
	HasIssuedInvoiceForDeal(ctx context.Context, dealerID, dealID uuid.UUID) (bool, error)

	// Save creates or updates a document
	Save(ctx context.Context, doc *SalesDocument) error

	// SaveTx saves a document within an existing transaction
	SaveTx(tx *gorm.DB, doc *SalesDocument) error

	// CountForDealer counts documents for a dealer with optional filters
	CountForDealer(ctx context.Context, dealerID uuid.UUID, filter shared.Filter) (int64, error)
}

// SequenceAllocator issues strictly increasing numbers unique within
// (dealer, kind), safe under concurrent callers. Implementations must use an
// atomic increment at the storage layer; read-then-write is racy.
type SequenceAllocator interface {
	// Next returns the next number for the dealer and kind
	Next(ctx context.Context, dealerID uuid.UUID, kind string) (int64, error)

	// NextTx returns the next number within an existing transaction
	NextTx(tx *gorm.DB, dealerID uuid.UUID, kind string) (int64, error)
}

// ShareLinkRepository defines the interface for document share link
// persistence. Only token hashes are ever stored.
type ShareLinkRepository interface {
	// Save persists a share link
	Save(ctx context.Context, link *DocumentShareLink) error

	// FindByTokenHash resolves a link by the hash of a presented token
	FindByTokenHash(ctx context.Context, tokenHash string) (*DocumentShareLink, error)

	// DeleteForDocument removes the links of a document
	DeleteForDocument(ctx context.Context, dealerID, documentID uuid.UUID) error
}
