package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
	StatusReturned   Status = "returned"
)

var AllStatuses = []Status{
	StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
	StatusDelivered, StatusCancelled, StatusRefunded, StatusReturned,
}

var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusProcessing, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusShipped, StatusCancelled, StatusRefunded},
	StatusProcessing: {StatusShipped, StatusRefunded},
	StatusShipped:    {StatusDelivered, StatusReturned, StatusRefunded},
}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusRefunded, StatusReturned:
		return true
	}
	return false
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentCreditCard   PaymentMethod = "credit_card"
	PaymentDebitCard    PaymentMethod = "debit_card"
	PaymentPayPal       PaymentMethod = "paypal"
	PaymentStripe       PaymentMethod = "stripe"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCreditCard, PaymentDebitCard, PaymentPayPal, PaymentStripe, PaymentBankTransfer:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

type NoteType string

const (
	NoteCustomer NoteType = "customer"
	NoteInternal NoteType = "internal"
	NoteSystem   NoteType = "system"
)

func (t NoteType) Valid() bool {
	return t == NoteCustomer || t == NoteInternal || t == NoteSystem
}

const maxNoteLength = 1000

type LineItem struct {
	ProductID string          `json:"product" bson:"product"`
	Name      string          `json:"name" bson:"name"`
	UnitPrice decimal.Decimal `json:"price" bson:"price"`
	Quantity  int             `json:"quantity" bson:"quantity"`
	Image     Image           `json:"image" bson:"image"`
}

func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type Address struct {
	FirstName string `json:"firstName" bson:"firstName" binding:"required"`
	LastName  string `json:"lastName" bson:"lastName" binding:"required"`
	Company   string `json:"company,omitempty" bson:"company,omitempty"`
	Address1  string `json:"address1" bson:"address1" binding:"required"`
	Address2  string `json:"address2,omitempty" bson:"address2,omitempty"`
	City      string `json:"city" bson:"city" binding:"required"`
	State     string `json:"state" bson:"state" binding:"required"`
	ZipCode   string `json:"zipCode" bson:"zipCode" binding:"required"`
	Country   string `json:"country" bson:"country" binding:"required"`
}

type Payment struct {
	Method        PaymentMethod    `json:"method" bson:"method"`
	Status        PaymentStatus    `json:"status" bson:"status"`
	TransactionID string           `json:"transactionId,omitempty" bson:"transactionId,omitempty"`
	PaidAt        *time.Time       `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
	RefundedAt    *time.Time       `json:"refundedAt,omitempty" bson:"refundedAt,omitempty"`
	RefundAmount  *decimal.Decimal `json:"refundAmount,omitempty" bson:"refundAmount,omitempty"`
}

type Shipment struct {
	Method            ShippingMethod `json:"method" bson:"method"`
	Carrier           string         `json:"carrier,omitempty" bson:"carrier,omitempty"`
	TrackingNumber    string         `json:"trackingNumber,omitempty" bson:"trackingNumber,omitempty"`
	EstimatedDelivery *time.Time     `json:"estimatedDelivery,omitempty" bson:"estimatedDelivery,omitempty"`
	ShippedAt         *time.Time     `json:"shippedAt,omitempty" bson:"shippedAt,omitempty"`
	DeliveredAt       *time.Time     `json:"deliveredAt,omitempty" bson:"deliveredAt,omitempty"`
}

type StatusChange struct {
	Status    Status    `json:"status" bson:"status"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Note      string    `json:"note,omitempty" bson:"note,omitempty"`
	UpdatedBy string    `json:"updatedBy,omitempty" bson:"updatedBy,omitempty"`
}

type Note struct {
	Type      NoteType  `json:"type" bson:"type"`
	Content   string    `json:"content" bson:"content"`
	CreatedBy string    `json:"createdBy,omitempty" bson:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

type Order struct {
	ID                  string         `json:"id" bson:"_id"`
	Number              string         `json:"orderNumber" bson:"orderNumber"`
	UserID              string         `json:"user" bson:"user"`
	Items               []LineItem     `json:"items" bson:"items"`
	ShippingAddress     Address        `json:"shippingAddress" bson:"shippingAddress"`
	BillingAddress      Address        `json:"billingAddress" bson:"billingAddress"`
	Pricing             Pricing        `json:"pricing" bson:"pricing"`
	Payment             Payment        `json:"payment" bson:"payment"`
	Shipment            Shipment       `json:"shipping" bson:"shipping"`
	Status              Status         `json:"status" bson:"status"`
	StatusHistory       []StatusChange `json:"statusHistory" bson:"statusHistory"`
	Notes               []Note         `json:"notes" bson:"notes"`
	CouponCode          string         `json:"couponCode,omitempty" bson:"couponCode,omitempty"`
	GiftMessage         string         `json:"giftMessage,omitempty" bson:"giftMessage,omitempty"`
	SpecialInstructions string         `json:"specialInstructions,omitempty" bson:"specialInstructions,omitempty"`
	CustomerEmail       string         `json:"customerEmail" bson:"customerEmail"`
	CustomerPhone       string         `json:"customerPhone,omitempty" bson:"customerPhone,omitempty"`
	CreatedAt           time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt" bson:"updatedAt"`
	Version             int64          `json:"version" bson:"version"`
}

// NewOrder builds a pending order with its status history seeded.
func NewOrder(id, userID string, items []LineItem, pricing Pricing, payment PaymentMethod, shipping ShippingMethod, now time.Time) *Order {
	return &Order{
		ID:      id,
		UserID:  userID,
		Items:   items,
		Pricing: pricing,
		Payment: Payment{Method: payment, Status: PaymentPending},
		Shipment: Shipment{
			Method: shipping,
		},
		Status:        StatusPending,
		StatusHistory: []StatusChange{{Status: StatusPending, Timestamp: now}},
		Notes:         []Note{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (o *Order) TotalItems() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

func (o *Order) CanCancel() bool {
	return o.Status == StatusPending || o.Status == StatusConfirmed
}

// Cancel moves the order to cancelled. Stock restoration is the caller's job.
func (o *Order) Cancel(note, actor string, now time.Time) error {
	if !o.CanCancel() {
		return &TransitionError{From: o.Status, To: StatusCancelled}
	}
	o.setStatus(StatusCancelled, note, actor, now)
	return nil
}

// UpdateStatus applies an administrative status change.
func (o *Order) UpdateStatus(to Status, note, actor string, now time.Time) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	if to == StatusCancelled {
		return o.Cancel(note, actor, now)
	}
	if !o.Status.CanTransitionTo(to) {
		return &TransitionError{From: o.Status, To: to}
	}
	o.setStatus(to, note, actor, now)
	return nil
}

// MarkShipped records carrier details and moves the order to shipped.
func (o *Order) MarkShipped(carrier, tracking string, eta *time.Time, actor string, now time.Time) error {
	if o.Status != StatusConfirmed && o.Status != StatusProcessing {
		return &TransitionError{From: o.Status, To: StatusShipped}
	}
	o.Shipment.Carrier = carrier
	o.Shipment.TrackingNumber = tracking
	o.Shipment.EstimatedDelivery = eta
	shippedAt := now
	o.Shipment.ShippedAt = &shippedAt
	o.setStatus(StatusShipped, fmt.Sprintf("Shipped via %s. Tracking: %s", carrier, tracking), actor, now)
	return nil
}

func (o *Order) AddNote(t NoteType, content, author string, now time.Time) error {
	content = strings.TrimSpace(content)
	v := &ValidationError{}
	if content == "" {
		v.Add("content", "note content is required")
	} else if len(content) > maxNoteLength {
		v.Add("content", fmt.Sprintf("must be at most %d characters", maxNoteLength))
	}
	if !t.Valid() {
		v.Add("type", "must be one of customer, internal, system")
	}
	if err := v.OrNil(); err != nil {
		return err
	}
	o.Notes = append(o.Notes, Note{Type: t, Content: content, CreatedBy: author, CreatedAt: now})
	o.UpdatedAt = now
	return nil
}

// RecordPayment applies a payment gateway result. A successful payment confirms a
// pending order.
func (o *Order) RecordPayment(success bool, txID string, now time.Time) error {
	if o.Payment.Status != PaymentPending && o.Payment.Status != PaymentProcessing {
		return fmt.Errorf("%w: payment already %s", ErrInvalidTransition, o.Payment.Status)
	}
	o.UpdatedAt = now
	if !success {
		o.Payment.Status = PaymentFailed
		o.Payment.TransactionID = txID
		return nil
	}
	o.Payment.Status = PaymentCompleted
	o.Payment.TransactionID = txID
	paidAt := now
	o.Payment.PaidAt = &paidAt
	if o.Status == StatusPending {
		o.setStatus(StatusConfirmed, "Payment received", SystemActor, now)
	}
	return nil
}

func (o *Order) setStatus(to Status, note, actor string, now time.Time) {
	o.Status = to
	o.StatusHistory = append(o.StatusHistory, StatusChange{
		Status:    to,
		Timestamp: now,
		Note:      note,
		UpdatedBy: actor,
	})
	o.UpdatedAt = now

	switch to {
	case StatusCancelled:
		o.Payment.Status = PaymentFailed
	case StatusDelivered:
		o.Payment.Status = PaymentCompleted
		deliveredAt := now
		o.Shipment.DeliveredAt = &deliveredAt
	case StatusRefunded:
		o.Payment.Status = PaymentRefunded
		refundedAt := now
		amount := o.Pricing.Total
		o.Payment.RefundedAt = &refundedAt
		o.Payment.RefundAmount = &amount
	}
}
