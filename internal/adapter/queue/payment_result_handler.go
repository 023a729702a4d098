package queue

import (
	"context"
	"errors"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/logging"
	"github.com/aq2208/gorder-store/internal/usecase"
)

type PaymentRecorder interface {
	RecordPayment(ctx context.Context, msg usecase.PaymentResultMsg) error
}

// PaymentResultHandler applies payment gateway results to orders.
type PaymentResultHandler struct {
	Orders PaymentRecorder
}

func NewPaymentResultHandler(orders PaymentRecorder) *PaymentResultHandler {
	return &PaymentResultHandler{Orders: orders}
}

// HandlePaymentResult is used with JSONHandler[usecase.PaymentResultMsg].
// A result for an order whose payment is already settled is a redelivery and is acked.
func (h *PaymentResultHandler) HandlePaymentResult(ctx context.Context, msg usecase.PaymentResultMsg) error {
	err := h.Orders.RecordPayment(ctx, msg)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidTransition):
		logging.FromCtx(ctx).Info("payment result already applied", "order_id", msg.OrderID, "status", msg.Status)
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrValidation):
		return Permanent(err)
	default:
		return err
	}
}
