package usecase

import "time"

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
)

// Published on the order.events exchange.
type OrderEvent struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	UserID      string    `json:"userId"`
	Status      string    `json:"status"`
	Total       string    `json:"total"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Sent by the payment gateway stub on payment.result.q
type PaymentResultMsg struct {
	OrderID       string `json:"orderId"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"` // e.g. "SUCCESS"
}

// Sent by carriers on Kafka
type ShipmentEventMsg struct {
	OrderID        string    `json:"orderId"`
	TrackingNumber string    `json:"trackingNumber"`
	Event          string    `json:"event"` // DELIVERED | RETURNED
	OccurredAt     time.Time `json:"occurredAt"`
}
