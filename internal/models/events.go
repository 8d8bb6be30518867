package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated         = "ORDER_CREATED"
	EventTypeOrderConfirmed       = "ORDER_CONFIRMED"
	EventTypeOrderPaymentFailed   = "ORDER_PAYMENT_FAILED"
	EventTypeAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventTypeAppointmentCancelled = "APPOINTMENT_CANCELLED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published after the order transaction commits
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// OrderConfirmedEvent published when payment verification succeeds
type OrderConfirmedEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	UserID    int64  `json:"user_id"`
	PaymentID string `json:"payment_id,omitempty"`
	DevMode   bool   `json:"dev_mode"`
}

// OrderPaymentFailedEvent published when the customer reports a failed payment
type OrderPaymentFailedEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	UserID  int64  `json:"user_id"`
	Reason  string `json:"reason,omitempty"`
}

// AppointmentEvent published when an appointment is booked or cancelled
type AppointmentEvent struct {
	BaseEvent
	AppointmentID int64  `json:"appointment_id"`
	UserID        int64  `json:"user_id"`
	ShopID        int64  `json:"shop_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Status        string `json:"status"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	ShopID    int64           `json:"shop_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}
