package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/dealerdesk/backend/internal/domain/dealing"
	"github.com/dealerdesk/backend/internal/domain/shared"
	"github.com/dealerdesk/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSalesDocumentRepository implements SalesDocumentRepository using GORM
type GormSalesDocumentRepository struct {
	db *gorm.DB
}

// NewGormSalesDocumentRepository creates a new GormSalesDocumentRepository
func NewGormSalesDocumentRepository(db *gorm.DB) *GormSalesDocumentRepository {
	return &GormSalesDocumentRepository{db: db}
}

// FindByIDForDealer finds a document by ID within a dealer
func (r *GormSalesDocumentRepository) FindByIDForDealer(ctx context.Context, dealerID, id uuid.UUID) (*dealing.SalesDocument, error) {
	var doc dealing.SalesDocument
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", dealerID, id).
		First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// FindAllForDealer finds documents for a dealer with filtering
func (r *GormSalesDocumentRepository) FindAllForDealer(ctx context.Context, dealerID uuid.UUID, filter shared.Filter) ([]dealing.SalesDocument, error) {
	var docs []dealing.SalesDocument
	query := r.db.WithContext(ctx).Model(&dealing.SalesDocument{}).Scopes(tenant.TenantScope(dealerID))
	query = r.applyFilters(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}
	orderBy := ValidateSortField(filter.OrderBy, DocumentSortFields, "created_at")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))

	if err := query.Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// FindByDeal finds documents issued against a deal
func (r *GormSalesDocumentRepository) FindByDeal(ctx context.Context, dealerID, dealID uuid.UUID) ([]dealing.SalesDocument, error) {
	var docs []dealing.SalesDocument
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND deal_id = ?", dealerID, dealID).
		Order("created_at ASC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// HasIssuedInvoiceForDeal reports whether an issued, non-void INVOICE
// exists against the deal
func (r *GormSalesDocumentRepository) HasIssuedInvoiceForDeal(ctx context.Context, dealerID, dealID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&dealing.SalesDocument{}).
		Where("tenant_id = ? AND deal_id = ? AND type = ? AND status = ?",
			dealerID, dealID, dealing.DocumentTypeInvoice, dealing.DocumentStatusIssued).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a document
func (r *GormSalesDocumentRepository) Save(ctx context.Context, doc *dealing.SalesDocument) error {
	return r.db.WithContext(ctx).Save(doc).Error
}

// SaveTx saves a document within an existing transaction
func (r *GormSalesDocumentRepository) SaveTx(tx *gorm.DB, doc *dealing.SalesDocument) error {
	if tx == nil {
		tx = r.db
	}
	return tx.Save(doc).Error
}

// CountForDealer counts documents for a dealer with optional filters
func (r *GormSalesDocumentRepository) CountForDealer(ctx context.Context, dealerID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&dealing.SalesDocument{}).Scopes(tenant.TenantScope(dealerID))
	query = r.applyFilters(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormSalesDocumentRepository) applyFilters(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "type":
			query = query.Where("type = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		case "deal_id":
			query = query.Where("deal_id = ?", value)
		case "vehicle_id":
			query = query.Where("vehicle_id = ?", value)
		case "start_date":
			if t, ok := value.(time.Time); ok {
				query = query.Where("created_at >= ?", t)
			}
		case "end_date":
			if t, ok := value.(time.Time); ok {
				query = query.Where("created_at <= ?", t)
			}
		}
	}
	return query
}
