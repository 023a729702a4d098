package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aq2208/gorder-store/internal/adapter/memory"
	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func place(t *testing.T, f *fixture, items ...domain.CartItem) *domain.Order {
	t.Helper()
	o, err := f.uc.PlaceOrder(context.Background(), customer, input(items...))
	require.NoError(t, err)
	return o
}

// stuckCatalog refuses to take stock back for one product.
type stuckCatalog struct {
	*memory.Catalog
	stuck string
}

func (c *stuckCatalog) AdjustStock(ctx context.Context, id string, delta int) error {
	if id == c.stuck && delta > 0 {
		return errors.New("connection reset")
	}
	return c.Catalog.AdjustStock(ctx, id, delta)
}

type countingRecorder struct {
	usecase.Recorder
	unrestored int
}

func (r *countingRecorder) RestockFailed(items int)                   { r.unrestored += items }
func (r *countingRecorder) StatusChanged(domain.Status, domain.Status) {}

func TestCancelOrder_RestockFailureKeepsCancellation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := place(t, f, line("P1", 2), line("P2", 1))

	rec := &countingRecorder{}
	uc := usecase.NewOrders(f.orders, &stuckCatalog{Catalog: f.catalog, stuck: "P2"}, f.accounts,
		usecase.OrdersConfig{}, usecase.WithRecorder(rec), usecase.WithClock(func() time.Time { return fixedNow }))

	got, err := uc.CancelOrder(ctx, customer, o.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, 3, f.catalog.Stock("P1"))
	assert.Equal(t, 4, f.catalog.Stock("P2"))
	assert.Equal(t, 1, rec.unrestored)

	require.Len(t, got.Notes, 1)
	assert.Equal(t, domain.NoteSystem, got.Notes[0].Type)
	assert.Contains(t, got.Notes[0].Content, "P2 x1")

	stored, err := f.orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Notes, 1, "the note is persisted for reconciliation")
}

func TestCancelOrder_RestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := place(t, f, line("P1", 2))
	require.Equal(t, 1, f.catalog.Stock("P1"))

	got, err := f.uc.CancelOrder(ctx, customer, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, domain.PaymentFailed, got.Payment.Status)
	last := got.StatusHistory[len(got.StatusHistory)-1]
	assert.Equal(t, "Cancelled by customer", last.Note)
	assert.Equal(t, 3, f.catalog.Stock("P1"))

	_, err = f.uc.CancelOrder(ctx, customer, o.ID, "again")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, 3, f.catalog.Stock("P1"), "second cancel must not restock")
	assert.Equal(t, []string{usecase.EventOrderPlaced, usecase.EventOrderCancelled}, f.events.types())
}

func TestCancelOrder_ShippedIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := place(t, f, line("P2", 1))
	_, err := f.uc.UpdateStatus(ctx, admin, o.ID, domain.StatusConfirmed, "")
	require.NoError(t, err)
	_, err = f.uc.MarkShipped(ctx, admin, o.ID, usecase.ShipmentInput{Carrier: "UPS", TrackingNumber: "1Z999"})
	require.NoError(t, err)

	_, err = f.uc.CancelOrder(ctx, customer, o.ID, "changed my mind")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := f.uc.GetOrder(ctx, customer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, got.Status)
	assert.Equal(t, "1Z999", got.Shipment.TrackingNumber)
	assert.Equal(t, 4, f.catalog.Stock("P2"))
}

func TestCancelOrder_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := place(t, f, line("P1", 1))

	_, err := f.uc.CancelOrder(ctx, stranger, o.ID, "")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.uc.CancelOrder(ctx, stranger, "no-such-order", "")
	require.ErrorIs(t, err, domain.ErrNotFound)

	got, err := f.uc.CancelOrder(ctx, admin, o.ID, "fraud check")
	require.NoError(t, err)
	assert.Equal(t, "admin-1", got.StatusHistory[len(got.StatusHistory)-1].UpdatedBy)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := place(t, f, line("P1", 1))

	_, err := f.uc.UpdateStatus(ctx, customer, o.ID, domain.StatusConfirmed, "")
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.uc.UpdateStatus(ctx, admin, o.ID, "lost", "")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.uc.UpdateStatus(ctx, admin, o.ID, domain.StatusDelivered, "")
	var te *domain.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.StatusPending, te.From)

	got, err := f.uc.UpdateStatus(ctx, admin, o.ID, domain.StatusConfirmed, "stock checked")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)
	assert.Len(t, got.StatusHistory, 2)

	// cancelling through the admin endpoint takes the same path as CancelOrder
	got, err = f.uc.UpdateStatus(ctx, admin, o.ID, domain.StatusCancelled, "customer called")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, 3, f.catalog.Stock("P1"))
}

func TestMarkShipped_Validation(t *testing.T) {
	f := newFixture(t)
	o := place(t, f, line("P1", 1))

	_, err := f.uc.MarkShipped(context.Background(), admin, o.ID, usecase.ShipmentInput{})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Fields, 2)

	_, err = f.uc.MarkShipped(context.Background(), admin, o.ID, usecase.ShipmentInput{Carrier: "DHL", TrackingNumber: "JD01"})
	require.ErrorIs(t, err, domain.ErrInvalidTransition, "pending orders cannot ship")
}

func TestAddNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := place(t, f, line("P1", 1))

	got, err := f.uc.AddNote(ctx, customer, o.ID, domain.NoteInternal, "  please ring twice ")
	require.NoError(t, err)
	require.Len(t, got.Notes, 1)
	assert.Equal(t, domain.NoteCustomer, got.Notes[0].Type)
	assert.Equal(t, "please ring twice", got.Notes[0].Content)

	got, err = f.uc.AddNote(ctx, admin, o.ID, "", "address verified")
	require.NoError(t, err)
	assert.Equal(t, domain.NoteInternal, got.Notes[1].Type)

	_, err = f.uc.AddNote(ctx, stranger, o.ID, "", "hi")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.uc.AddNote(ctx, customer, o.ID, "", "   ")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestRecordPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := place(t, f, line("P1", 1))

	require.NoError(t, f.uc.RecordPayment(ctx, usecase.PaymentResultMsg{OrderID: o.ID, TransactionID: "tx-1", Status: "success"}))

	got, err := f.uc.GetOrder(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)
	assert.Equal(t, domain.PaymentCompleted, got.Payment.Status)
	assert.Equal(t, "tx-1", got.Payment.TransactionID)
	assert.Equal(t, domain.SystemActor, got.StatusHistory[1].UpdatedBy)
	assert.Contains(t, f.events.types(), usecase.EventOrderStatusChanged)

	err = f.uc.RecordPayment(ctx, usecase.PaymentResultMsg{Status: "SUCCESS"})
	require.ErrorIs(t, err, domain.ErrValidation)
	err = f.uc.RecordPayment(ctx, usecase.PaymentResultMsg{OrderID: "missing", Status: "SUCCESS"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordPayment_Failure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := place(t, f, line("P1", 1))

	require.NoError(t, f.uc.RecordPayment(ctx, usecase.PaymentResultMsg{OrderID: o.ID, Status: "DECLINED"}))

	got, err := f.uc.GetOrder(ctx, customer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, domain.PaymentFailed, got.Payment.Status)
}

func TestApplyShipmentEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := place(t, f, line("P1", 1))
	_, err := f.uc.UpdateStatus(ctx, admin, o.ID, domain.StatusConfirmed, "")
	require.NoError(t, err)
	_, err = f.uc.MarkShipped(ctx, admin, o.ID, usecase.ShipmentInput{Carrier: "UPS", TrackingNumber: "1Z1"})
	require.NoError(t, err)

	msg := usecase.ShipmentEventMsg{OrderID: o.ID, TrackingNumber: "1Z1", Event: "delivered"}
	require.NoError(t, f.uc.ApplyShipmentEvent(ctx, msg))
	// redelivery is a no-op
	require.NoError(t, f.uc.ApplyShipmentEvent(ctx, msg))

	got, err := f.uc.GetOrder(ctx, customer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, got.Status)
	assert.Equal(t, domain.PaymentCompleted, got.Payment.Status)
	assert.NotNil(t, got.Shipment.DeliveredAt)
	assert.Len(t, got.StatusHistory, 4)

	err = f.uc.ApplyShipmentEvent(ctx, usecase.ShipmentEventMsg{OrderID: o.ID, Event: "LOST"})
	require.ErrorIs(t, err, domain.ErrValidation)
}
