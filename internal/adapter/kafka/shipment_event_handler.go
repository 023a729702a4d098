package kafka

import (
	"context"
	"errors"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/logging"
	"github.com/aq2208/gorder-store/internal/usecase"
)

type ShipmentApplier interface {
	ApplyShipmentEvent(ctx context.Context, msg usecase.ShipmentEventMsg) error
}

// ShipmentEventHandler maps carrier events (delivered, returned) onto orders.
type ShipmentEventHandler struct {
	Orders ShipmentApplier
}

func NewShipmentEventHandler(orders ShipmentApplier) *ShipmentEventHandler {
	return &ShipmentEventHandler{Orders: orders}
}

// Handle swallows errors that a retry cannot fix so the offset moves on.
func (h *ShipmentEventHandler) Handle(ctx context.Context, ev usecase.ShipmentEventMsg) error {
	err := h.Orders.ApplyShipmentEvent(ctx, ev)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidTransition):
		logging.FromCtx(ctx).Warn("shipment event skipped", "order_id", ev.OrderID, "event", ev.Event, "err", err)
		return nil
	default:
		return err
	}
}
