package dealing

import (
	"context"
	"fmt"

	"github.com/dealerdesk/backend/internal/domain/dealing"
	"github.com/dealerdesk/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DealCancelledHandler handles DealCancelledEvent and returns the
// vehicle to the available pool when a delivered deal is unwound.
type DealCancelledHandler struct {
	marker VehicleSaleMarker
	logger *zap.Logger
}

// NewDealCancelledHandler creates a new handler for deal cancelled events
func NewDealCancelledHandler(marker VehicleSaleMarker, logger *zap.Logger) *DealCancelledHandler {
	return &DealCancelledHandler{
		marker: marker,
		logger: logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *DealCancelledHandler) EventTypes() []string {
	return []string{dealing.EventTypeDealCancelled}
}

// Handle flags the cancelled deal's vehicle as available again. Deals
// cancelled before delivery never took the vehicle off the pool, so
// there is nothing to undo for them.
func (h *DealCancelledHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	cancelledEvent, ok := event.(*dealing.DealCancelledEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			dealing.EventTypeDealCancelled, event.EventType())
	}

	if !cancelledEvent.WasDelivered {
		return nil
	}

	if err := h.marker.MarkAvailable(ctx, cancelledEvent.TenantID(), cancelledEvent.VehicleID); err != nil {
		h.logger.Error("failed to mark vehicle as available",
			zap.String("deal_id", cancelledEvent.DealID.String()),
			zap.String("vehicle_id", cancelledEvent.VehicleID.String()),
			zap.Error(err),
		)
		return err
	}

	h.logger.Info("marked vehicle as available",
		zap.String("deal_id", cancelledEvent.DealID.String()),
		zap.Int64("deal_number", cancelledEvent.DealNumber),
		zap.String("vehicle_id", cancelledEvent.VehicleID.String()),
	)
	return nil
}
