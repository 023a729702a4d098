package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/logging"
)

const (
	defaultCancelNote    = "Cancelled by customer"
	unrestoredNotePrefix = "Stock not restored, reconcile: "
)

var errUnchanged = errors.New("order already in requested state")

type ShipmentInput struct {
	Carrier           string
	TrackingNumber    string
	EstimatedDelivery *time.Time
}

// CancelOrder cancels a pending or confirmed order on behalf of its owner or an
// administrator and gives the ordered stock back.
func (uc *Orders) CancelOrder(ctx context.Context, p domain.Principal, id, reason string) (*domain.Order, error) {
	if p.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if strings.TrimSpace(reason) == "" {
		reason = defaultCancelNote
	}
	return uc.cancel(ctx, p, id, reason)
}

// cancel saves the cancelled status first; the versioned save guarantees only one
// caller wins, so stock is restored exactly once.
func (uc *Orders) cancel(ctx context.Context, p domain.Principal, id, note string) (*domain.Order, error) {
	var from domain.Status
	o, err := uc.mutate(ctx, id, func(o *domain.Order) error {
		if !p.CanView(o.UserID) {
			return domain.ErrNotFound
		}
		from = o.Status
		return o.Cancel(note, p.UserID, uc.now())
	})
	if err != nil {
		return nil, err
	}
	uc.metrics.StatusChanged(from, domain.StatusCancelled)
	uc.publish(ctx, EventOrderCancelled, o)

	if failed := uc.restock(ctx, o); len(failed) > 0 {
		o = uc.flagUnrestored(ctx, o, failed)
	}
	logging.FromCtx(ctx).Info("order cancelled", "order_id", o.ID, "by", p.UserID)
	return o, nil
}

// restock gives every line's quantity back and returns the products it could
// not restore.
func (uc *Orders) restock(ctx context.Context, o *domain.Order) []string {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.cfg.CompensationTimeout)
	defer cancel()

	var failed []string
	for _, it := range o.Items {
		err := uc.catalog.AdjustStock(cctx, it.ProductID, it.Quantity)
		if errors.Is(err, domain.ErrNotFound) {
			logging.FromCtx(ctx).Warn("product gone, skipping restock", "product_id", it.ProductID)
			continue
		}
		if err != nil {
			logging.FromCtx(ctx).Error("stock restore failed", "order_id", o.ID, "product_id", it.ProductID, "qty", it.Quantity, "err", err)
			failed = append(failed, fmt.Sprintf("%s x%d", it.ProductID, it.Quantity))
		}
	}
	return failed
}

// flagUnrestored leaves a system note on a cancelled order whose stock could not
// all be given back. The cancellation itself is already committed and stands.
func (uc *Orders) flagUnrestored(ctx context.Context, o *domain.Order, failed []string) *domain.Order {
	uc.metrics.RestockFailed(len(failed))
	note := unrestoredNotePrefix + strings.Join(failed, ", ")

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.cfg.CompensationTimeout)
	defer cancel()
	noted, err := uc.mutate(cctx, o.ID, func(o *domain.Order) error {
		return o.AddNote(domain.NoteSystem, note, domain.SystemActor, uc.now())
	})
	if err != nil {
		logging.FromCtx(ctx).Error("could not flag unrestored stock", "order_id", o.ID, "note", note, "err", err)
		return o
	}
	return noted
}

// UpdateStatus is the administrative status change.
func (uc *Orders) UpdateStatus(ctx context.Context, p domain.Principal, id string, to domain.Status, note string) (*domain.Order, error) {
	if !p.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if !to.Valid() {
		v := &domain.ValidationError{}
		v.Add("status", "invalid order status")
		return nil, v
	}
	if to == domain.StatusCancelled {
		return uc.cancel(ctx, p, id, note)
	}

	var from domain.Status
	o, err := uc.mutate(ctx, id, func(o *domain.Order) error {
		from = o.Status
		return o.UpdateStatus(to, note, p.UserID, uc.now())
	})
	if err != nil {
		return nil, err
	}
	uc.metrics.StatusChanged(from, to)
	uc.publish(ctx, EventOrderStatusChanged, o)
	return o, nil
}

func (uc *Orders) MarkShipped(ctx context.Context, p domain.Principal, id string, in ShipmentInput) (*domain.Order, error) {
	if !p.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	v := &domain.ValidationError{}
	if strings.TrimSpace(in.Carrier) == "" {
		v.Add("carrier", "is required")
	}
	if strings.TrimSpace(in.TrackingNumber) == "" {
		v.Add("trackingNumber", "is required")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	var from domain.Status
	o, err := uc.mutate(ctx, id, func(o *domain.Order) error {
		from = o.Status
		return o.MarkShipped(in.Carrier, in.TrackingNumber, in.EstimatedDelivery, p.UserID, uc.now())
	})
	if err != nil {
		return nil, err
	}
	uc.metrics.StatusChanged(from, domain.StatusShipped)
	uc.publish(ctx, EventOrderStatusChanged, o)
	return o, nil
}

// AddNote appends a note. Customers can only write customer notes.
func (uc *Orders) AddNote(ctx context.Context, p domain.Principal, id string, typ domain.NoteType, content string) (*domain.Order, error) {
	if p.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	switch {
	case !p.IsAdmin():
		typ = domain.NoteCustomer
	case typ == "":
		typ = domain.NoteInternal
	}
	return uc.mutate(ctx, id, func(o *domain.Order) error {
		if !p.CanView(o.UserID) {
			return domain.ErrNotFound
		}
		return o.AddNote(typ, content, p.UserID, uc.now())
	})
}

// RecordPayment applies a payment gateway result delivered by the message consumer.
func (uc *Orders) RecordPayment(ctx context.Context, msg PaymentResultMsg) error {
	if msg.OrderID == "" {
		return fmt.Errorf("%w: payment result without order id", domain.ErrValidation)
	}
	success := strings.EqualFold(msg.Status, "SUCCESS")

	var from domain.Status
	o, err := uc.mutate(ctx, msg.OrderID, func(o *domain.Order) error {
		from = o.Status
		return o.RecordPayment(success, msg.TransactionID, uc.now())
	})
	if err != nil {
		return err
	}
	if o.Status != from {
		uc.metrics.StatusChanged(from, o.Status)
		uc.publish(ctx, EventOrderStatusChanged, o)
	}
	logging.FromCtx(ctx).Info("payment recorded", "order_id", o.ID, "payment_status", o.Payment.Status)
	return nil
}

// ApplyShipmentEvent maps a carrier event onto the order. Redelivered events for an
// order already in the target state are ignored.
func (uc *Orders) ApplyShipmentEvent(ctx context.Context, msg ShipmentEventMsg) error {
	var to domain.Status
	switch strings.ToUpper(msg.Event) {
	case "DELIVERED":
		to = domain.StatusDelivered
	case "RETURNED":
		to = domain.StatusReturned
	default:
		return fmt.Errorf("%w: unknown shipment event %q", domain.ErrValidation, msg.Event)
	}

	note := "Carrier event " + strings.ToUpper(msg.Event)
	if msg.TrackingNumber != "" {
		note += ". Tracking: " + msg.TrackingNumber
	}

	var from domain.Status
	o, err := uc.mutate(ctx, msg.OrderID, func(o *domain.Order) error {
		if o.Status == to {
			return errUnchanged
		}
		from = o.Status
		return o.UpdateStatus(to, note, domain.SystemActor, uc.now())
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		return err
	}
	uc.metrics.StatusChanged(from, to)
	uc.publish(ctx, EventOrderStatusChanged, o)
	return nil
}
