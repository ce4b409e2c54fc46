package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/dealerdesk/backend/internal/domain/dealing"
	"github.com/dealerdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VehicleRecord is the master-data row a deal's vehicle facts are read from
type VehicleRecord struct {
	ID                uuid.UUID  `gorm:"type:uuid;primary_key"`
	DealerID          uuid.UUID  `gorm:"type:uuid;not null;index"`
	Registration      string     `gorm:"size:20;not null"`
	VIN               string     `gorm:"size:30"`
	Make              string     `gorm:"size:100;not null"`
	Model             string     `gorm:"size:100;not null"`
	Derivative        string     `gorm:"size:200"`
	Mileage           int        `gorm:"not null;default:0"`
	FirstRegisteredAt *time.Time
	SaleStatus        string    `gorm:"size:20;not null;default:'AVAILABLE'"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

func (VehicleRecord) TableName() string {
	return "vehicles"
}

// ContactRecord is the master-data row customer facts are read from
type ContactRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	DealerID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"size:200;not null"`
	Email     string    `gorm:"size:255"`
	Phone     string    `gorm:"size:30"`
	Address   string    `gorm:"size:500"`
	Postcode  string    `gorm:"size:20"`
	VATNumber string    `gorm:"size:30"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (ContactRecord) TableName() string {
	return "contacts"
}

// DealerRecord holds the letterhead details frozen into issued documents
type DealerRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	Name          string    `gorm:"size:200;not null"`
	Address       string    `gorm:"size:500"`
	Postcode      string    `gorm:"size:20"`
	VATNumber     string    `gorm:"size:30"`
	CompanyNumber string    `gorm:"size:30"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (DealerRecord) TableName() string {
	return "dealers"
}

// Vehicle sale statuses tracked on the master-data row
const (
	VehicleSaleStatusAvailable = "AVAILABLE"
	VehicleSaleStatusSold      = "SOLD"
)

// GormFactsProvider reads document facts from the master-data tables
type GormFactsProvider struct {
	db *gorm.DB
}

// NewGormFactsProvider creates a new GormFactsProvider
func NewGormFactsProvider(db *gorm.DB) *GormFactsProvider {
	return &GormFactsProvider{db: db}
}

// VehicleFacts returns the frozen description of a vehicle
func (p *GormFactsProvider) VehicleFacts(ctx context.Context, dealerID, vehicleID uuid.UUID) (dealing.VehicleFacts, error) {
	var record VehicleRecord
	err := p.db.WithContext(ctx).
		Where("id = ? AND dealer_id = ?", vehicleID, dealerID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dealing.VehicleFacts{}, shared.ErrNotFound
		}
		return dealing.VehicleFacts{}, err
	}

	facts := dealing.VehicleFacts{
		VehicleID:    record.ID,
		Registration: record.Registration,
		VIN:          record.VIN,
		Make:         record.Make,
		Model:        record.Model,
		Derivative:   record.Derivative,
		Mileage:      record.Mileage,
	}
	if record.FirstRegisteredAt != nil {
		firstReg := record.FirstRegisteredAt.Format("2006-01-02")
		facts.FirstRegAt = &firstReg
	}
	return facts, nil
}

// CustomerFacts returns the frozen description of a customer
func (p *GormFactsProvider) CustomerFacts(ctx context.Context, dealerID, customerID uuid.UUID) (dealing.PartyFacts, error) {
	var record ContactRecord
	err := p.db.WithContext(ctx).
		Where("id = ? AND dealer_id = ?", customerID, dealerID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dealing.PartyFacts{}, shared.ErrNotFound
		}
		return dealing.PartyFacts{}, err
	}

	contactID := record.ID
	return dealing.PartyFacts{
		ContactID: &contactID,
		Name:      record.Name,
		Email:     record.Email,
		Phone:     record.Phone,
		Address:   record.Address,
		Postcode:  record.Postcode,
		VATNumber: record.VATNumber,
	}, nil
}

// DealerFacts returns the issuing dealer's letterhead details
func (p *GormFactsProvider) DealerFacts(ctx context.Context, dealerID uuid.UUID) (dealing.DealerFacts, error) {
	var record DealerRecord
	err := p.db.WithContext(ctx).
		Where("id = ?", dealerID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dealing.DealerFacts{}, shared.ErrNotFound
		}
		return dealing.DealerFacts{}, err
	}

	return dealing.DealerFacts{
		DealerID:      record.ID,
		Name:          record.Name,
		Address:       record.Address,
		Postcode:      record.Postcode,
		VATNumber:     record.VATNumber,
		CompanyNumber: record.CompanyNumber,
	}, nil
}

// GormVehicleSaleMarker flips the sale status on the vehicle master-data
// row. Invoked from event handlers, so errors are reported back to the
// handler for logging rather than failing the originating transition.
type GormVehicleSaleMarker struct {
	db *gorm.DB
}

// NewGormVehicleSaleMarker creates a new GormVehicleSaleMarker
func NewGormVehicleSaleMarker(db *gorm.DB) *GormVehicleSaleMarker {
	return &GormVehicleSaleMarker{db: db}
}

// MarkSold flags a vehicle as sold
func (m *GormVehicleSaleMarker) MarkSold(ctx context.Context, dealerID, vehicleID uuid.UUID) error {
	return m.setSaleStatus(ctx, dealerID, vehicleID, VehicleSaleStatusSold)
}

// MarkAvailable returns a vehicle to the available pool
func (m *GormVehicleSaleMarker) MarkAvailable(ctx context.Context, dealerID, vehicleID uuid.UUID) error {
	return m.setSaleStatus(ctx, dealerID, vehicleID, VehicleSaleStatusAvailable)
}

func (m *GormVehicleSaleMarker) setSaleStatus(ctx context.Context, dealerID, vehicleID uuid.UUID, status string) error {
	result := m.db.WithContext(ctx).
		Model(&VehicleRecord{}).
		Where("id = ? AND dealer_id = ?", vehicleID, dealerID).
		Updates(map[string]interface{}{
			"sale_status": status,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
