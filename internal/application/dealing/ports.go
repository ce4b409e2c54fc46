package dealing

import (
	"context"

	"github.com/dealerdesk/backend/internal/domain/dealing"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionManager runs a function inside a database transaction.
// Implemented by the persistence layer.
type TransactionManager interface {
	Transaction(fn func(tx *gorm.DB) error) error
}

// FactsProvider resolves the current vehicle, party and dealer details
// that get frozen into document snapshots. Implemented against whatever
// master-data store the deployment uses.
type FactsProvider interface {
	// VehicleFacts returns the frozen description of a vehicle
	VehicleFacts(ctx context.Context, dealerID, vehicleID uuid.UUID) (dealing.VehicleFacts, error)

	// CustomerFacts returns the frozen description of a customer
	CustomerFacts(ctx context.Context, dealerID, customerID uuid.UUID) (dealing.PartyFacts, error)

	// DealerFacts returns the issuing dealer's letterhead details
	DealerFacts(ctx context.Context, dealerID uuid.UUID) (dealing.DealerFacts, error)
}

// VehicleSaleMarker flags a vehicle's sale status in the inventory
// system. Called from event handlers; failures are logged, never
// propagated into the deal transition that raised them.
type VehicleSaleMarker interface {
	MarkSold(ctx context.Context, dealerID, vehicleID uuid.UUID) error
	MarkAvailable(ctx context.Context, dealerID, vehicleID uuid.UUID) error
}
