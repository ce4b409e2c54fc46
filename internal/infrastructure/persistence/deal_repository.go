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

// GormDealRepository implements DealRepository using GORM
type GormDealRepository struct {
	db *gorm.DB
}

// NewGormDealRepository creates a new GormDealRepository
func NewGormDealRepository(db *gorm.DB) *GormDealRepository {
	return &GormDealRepository{db: db}
}

// FindByIDForDealer finds a deal by ID within a dealer
func (r *GormDealRepository) FindByIDForDealer(ctx context.Context, dealerID, id uuid.UUID) (*dealing.Deal, error) {
	var deal dealing.Deal
	if err := r.db.WithContext(ctx).
		Preload("Payments").
		Preload("AddOns").
		Preload("Requests").
		Where("tenant_id = ? AND id = ?", dealerID, id).
		First(&deal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &deal, nil
}

// FindByDealNumber finds a deal by its sequential number within a dealer
func (r *GormDealRepository) FindByDealNumber(ctx context.Context, dealerID uuid.UUID, dealNumber int64) (*dealing.Deal, error) {
	var deal dealing.Deal
	if err := r.db.WithContext(ctx).
		Preload("Payments").
		Preload("AddOns").
		Preload("Requests").
		Where("tenant_id = ? AND deal_number = ?", dealerID, dealNumber).
		First(&deal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &deal, nil
}

// FindAllForDealer finds all deals for a dealer with filtering
func (r *GormDealRepository) FindAllForDealer(ctx context.Context, dealerID uuid.UUID, filter shared.Filter) ([]dealing.Deal, error) {
	var deals []dealing.Deal
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&dealing.Deal{}).
			Preload("Payments").
			Preload("AddOns").
			Preload("Requests").
			Scopes(tenant.TenantScope(dealerID)),
		filter,
	)

	if err := query.Find(&deals).Error; err != nil {
		return nil, err
	}
	return deals, nil
}

// FindByVehicle finds deals referencing a vehicle
func (r *GormDealRepository) FindByVehicle(ctx context.Context, dealerID, vehicleID uuid.UUID, filter shared.Filter) ([]dealing.Deal, error) {
	var deals []dealing.Deal
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&dealing.Deal{}).
			Preload("Payments").
			Preload("AddOns").
			Preload("Requests").
			Where("tenant_id = ? AND vehicle_id = ?", dealerID, vehicleID),
		filter,
	)

	if err := query.Find(&deals).Error; err != nil {
		return nil, err
	}
	return deals, nil
}

// Save creates or updates a deal together with its lines
func (r *GormDealRepository) Save(ctx context.Context, deal *dealing.Deal) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.saveTx(tx, deal)
	})
}

// SaveTx saves a deal within an existing transaction
func (r *GormDealRepository) SaveTx(tx *gorm.DB, deal *dealing.Deal) error {
	if tx == nil {
		tx = r.db
	}
	return r.saveTx(tx, deal)
}

func (r *GormDealRepository) saveTx(tx *gorm.DB, deal *dealing.Deal) error {
	if err := tx.Omit("Payments", "AddOns", "Requests").Save(deal).Error; err != nil {
		return err
	}
	return r.saveLines(tx, deal)
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormDealRepository) SaveWithLock(ctx context.Context, deal *dealing.Deal) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Take, not Scan: a deleted deal must come back as not-found,
		// not as a phantom version 0 conflict
		var current struct{ Version int }
		if err := tx.Model(&dealing.Deal{}).
			Where("id = ?", deal.ID).
			Select("version").
			Take(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		currentVersion := current.Version

		if currentVersion != deal.Version {
			return shared.ErrConcurrencyConflict
		}

		deal.Version++
		deal.UpdatedAt = time.Now()

		result := tx.Model(&dealing.Deal{}).
			Where("id = ? AND version = ?", deal.ID, currentVersion).
			Updates(map[string]interface{}{
				"customer_id":        deal.CustomerID,
				"sale_type":          deal.SaleType,
				"buyer_use":          deal.BuyerUse,
				"sale_channel":       deal.SaleChannel,
				"payment_type":       deal.PaymentType,
				"pricing_scheme":     deal.Pricing.Scheme,
				"pricing_rate":       deal.Pricing.Rate,
				"pricing_net":        deal.Pricing.Net,
				"pricing_vat_amount": deal.Pricing.VATAmount,
				"pricing_gross":      deal.Pricing.Gross,
				"px_allowance":       deal.PartExchange.Allowance,
				"px_settlement":      deal.PartExchange.Settlement,
				"delivery_free":      deal.Delivery.Free,
				"delivery_amount":    deal.Delivery.Amount,
				"status":             deal.Status,
				"deposit_taken_at":   deal.DepositTakenAt,
				"invoiced_at":        deal.InvoicedAt,
				"delivered_at":       deal.DeliveredAt,
				"completed_at":       deal.CompletedAt,
				"cancelled_at":       deal.CancelledAt,
				"cancel_reason":      deal.CancelReason,
				"version":            deal.Version,
				"updated_at":         deal.UpdatedAt,
			})

		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}

		return r.saveLines(tx, deal)
	})
}

// saveLines reconciles the deal's owned lines: rows missing from the
// aggregate are deleted, the rest are upserted
func (r *GormDealRepository) saveLines(tx *gorm.DB, deal *dealing.Deal) error {
	if deal.ID == uuid.Nil {
		return nil
	}

	paymentIDs := make([]uuid.UUID, len(deal.Payments))
	for i := range deal.Payments {
		paymentIDs[i] = deal.Payments[i].ID
	}
	if err := deleteMissingLines(tx, &dealing.Payment{}, deal.ID, paymentIDs); err != nil {
		return err
	}
	for i := range deal.Payments {
		deal.Payments[i].DealID = deal.ID
		if err := tx.Save(&deal.Payments[i]).Error; err != nil {
			return err
		}
	}

	addOnIDs := make([]uuid.UUID, len(deal.AddOns))
	for i := range deal.AddOns {
		addOnIDs[i] = deal.AddOns[i].ID
	}
	if err := deleteMissingLines(tx, &dealing.AddOn{}, deal.ID, addOnIDs); err != nil {
		return err
	}
	for i := range deal.AddOns {
		deal.AddOns[i].DealID = deal.ID
		if err := tx.Save(&deal.AddOns[i]).Error; err != nil {
			return err
		}
	}

	requestIDs := make([]uuid.UUID, len(deal.Requests))
	for i := range deal.Requests {
		requestIDs[i] = deal.Requests[i].ID
	}
	if err := deleteMissingLines(tx, &dealing.SalesRequest{}, deal.ID, requestIDs); err != nil {
		return err
	}
	for i := range deal.Requests {
		deal.Requests[i].DealID = deal.ID
		if err := tx.Save(&deal.Requests[i]).Error; err != nil {
			return err
		}
	}

	return nil
}

func deleteMissingLines(tx *gorm.DB, model interface{}, dealID uuid.UUID, keepIDs []uuid.UUID) error {
	if len(keepIDs) > 0 {
		return tx.Where("deal_id = ? AND id NOT IN ?", dealID, keepIDs).Delete(model).Error
	}
	return tx.Where("deal_id = ?", dealID).Delete(model).Error
}

// CountForDealer counts deals for a dealer with optional filters
func (r *GormDealRepository) CountForDealer(ctx context.Context, dealerID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&dealing.Deal{}).Scopes(tenant.TenantScope(dealerID))
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByStatus counts deals by status for a dealer
func (r *GormDealRepository) CountByStatus(ctx context.Context, dealerID uuid.UUID, status dealing.DealStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&dealing.Deal{}).
		Where("tenant_id = ? AND status = ?", dealerID, status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter options to the query
func (r *GormDealRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, DealSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormDealRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "statuses":
			if statuses, ok := value.([]string); ok && len(statuses) > 0 {
				query = query.Where("status IN ?", statuses)
			}
		case "vehicle_id":
			query = query.Where("vehicle_id = ?", value)
		case "customer_id":
			query = query.Where("customer_id = ?", value)
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
