package dealing

import (
	"context"
	"fmt"

	"github.com/dealerdesk/backend/internal/domain/dealing"
	"github.com/dealerdesk/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DealDeliveredHandler handles DealDeliveredEvent and flags the vehicle
// as sold in the inventory system. Failures here are logged and retried
// by staff; they never roll back the delivery itself.
type DealDeliveredHandler struct {
	marker VehicleSaleMarker
	logger *zap.Logger
}

// NewDealDeliveredHandler creates a new handler for deal delivered events
func NewDealDeliveredHandler(marker VehicleSaleMarker, logger *zap.Logger) *DealDeliveredHandler {
	return &DealDeliveredHandler{
		marker: marker,
		logger: logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *DealDeliveredHandler) EventTypes() []string {
	return []string{dealing.EventTypeDealDelivered}
}

// Handle flags the delivered deal's vehicle as sold
func (h *DealDeliveredHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	deliveredEvent, ok := event.(*dealing.DealDeliveredEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			dealing.EventTypeDealDelivered, event.EventType())
	}

	if err := h.marker.MarkSold(ctx, deliveredEvent.TenantID(), deliveredEvent.VehicleID); err != nil {
		h.logger.Error("failed to mark vehicle as sold",
			zap.String("deal_id", deliveredEvent.DealID.String()),
			zap.String("vehicle_id", deliveredEvent.VehicleID.String()),
			zap.Error(err),
		)
		return err
	}

	h.logger.Info("marked vehicle as sold",
		zap.String("deal_id", deliveredEvent.DealID.String()),
		zap.Int64("deal_number", deliveredEvent.DealNumber),
		zap.String("vehicle_id", deliveredEvent.VehicleID.String()),
	)
	return nil
}
