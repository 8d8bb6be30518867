package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a registered customer or administrator
type User struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsAdmin      bool      `db:"is_admin" json:"is_admin"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Shop is a static reference entity owning products
type Shop struct {
	ID        int64      `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Address   NullString `db:"address" json:"address"`
	Contact   NullString `db:"contact" json:"contact"`
	Logo      NullString `db:"logo" json:"logo"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Product is a shop's listing. Products in different shops sharing a name
// are price-comparison candidates.
type Product struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description NullString      `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	ShopID      int64           `db:"shop_id" json:"shop_id"`
	ShopName    string          `db:"shop_name" json:"shop_name,omitempty"`
	ImageURL    NullString      `db:"image_url" json:"image_url"`
	Category    NullString      `db:"category" json:"category"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// ProductFilter narrows a shop's product listing
type ProductFilter struct {
	Category string
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     string
	Limit    int
	Offset   int
}

// Product listing sort keys
const (
	SortPriceLow  = "price_low"
	SortPriceHigh = "price_high"
	SortName      = "name"
)

// CartItem is the persisted cart row
type CartItem struct {
	ID        int64 `db:"id" json:"id"`
	UserID    int64 `db:"user_id" json:"user_id"`
	ProductID int64 `db:"product_id" json:"product_id"`
	ShopID    int64 `db:"shop_id" json:"shop_id"`
	Quantity  int   `db:"quantity" json:"quantity"`
}

// CartLine is a cart row joined with its product and shop
type CartLine struct {
	ID          int64           `db:"id" json:"id"`
	UserID      int64           `db:"user_id" json:"user_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	ShopID      int64           `db:"shop_id" json:"shop_id"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Price       decimal.Decimal `db:"price" json:"price"`
	ProductName string          `db:"product_name" json:"product_name"`
	ShopName    string          `db:"shop_name" json:"shop_name"`
	ImageURL    NullString      `db:"image_url" json:"image_url"`
}

// Subtotal returns price × quantity
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order represents a customer order
type Order struct {
	ID                int64           `db:"id" json:"id"`
	UserID            int64           `db:"user_id" json:"user_id"`
	TotalAmount       decimal.Decimal `db:"total_amount" json:"total_amount"`
	ShippingAddress   string          `db:"shipping_address" json:"shipping_address"`
	Phone             string          `db:"phone" json:"phone"`
	PaymentStatus     string          `db:"payment_status" json:"payment_status"`
	RazorpayOrderID   NullString      `db:"razorpay_order_id" json:"razorpay_order_id"`
	RazorpayPaymentID NullString      `db:"razorpay_payment_id" json:"razorpay_payment_id"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderSummary is an order with its latest tracking status
type OrderSummary struct {
	Order
	CurrentStatus string `db:"current_status" json:"current_status"`
}

// OrderItem represents items in an order. Price is frozen at purchase time.
type OrderItem struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"order_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	ShopID      int64           `db:"shop_id" json:"shop_id"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Price       decimal.Decimal `db:"price" json:"price"`
	ProductName string          `db:"product_name" json:"product_name,omitempty"`
	ShopName    string          `db:"shop_name" json:"shop_name,omitempty"`
}

// OrderTracking is one append-only status record
type OrderTracking struct {
	ID        int64     `db:"id" json:"id"`
	OrderID   int64     `db:"order_id" json:"order_id"`
	Status    string    `db:"status" json:"status"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OrderDetail is an order with its items and tracking history (newest first)
type OrderDetail struct {
	Order    Order           `json:"order"`
	Items    []OrderItem     `json:"items"`
	Tracking []OrderTracking `json:"tracking"`
}

// CurrentStatus returns the latest tracking status
func (d OrderDetail) CurrentStatus() string {
	if len(d.Tracking) == 0 {
		return TrackingPending
	}
	return d.Tracking[0].Status
}

// Appointment is a service booking at a shop
type Appointment struct {
	ID              int64      `db:"id" json:"id"`
	UserID          int64      `db:"user_id" json:"user_id"`
	ShopID          int64      `db:"shop_id" json:"shop_id"`
	ServiceType     string     `db:"service_type" json:"service_type"`
	AppointmentDate string     `db:"appointment_date" json:"appointment_date"`
	AppointmentTime string     `db:"appointment_time" json:"appointment_time"`
	VehicleInfo     NullString `db:"vehicle_info" json:"vehicle_info"`
	Notes           NullString `db:"notes" json:"notes"`
	Status          string     `db:"status" json:"status"`
	ShopName        string     `db:"shop_name" json:"shop_name,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Payment statuses
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Tracking statuses. Processing, shipped and delivered are representable but
// nothing in this service emits them.
const (
	TrackingPending    = "pending"
	TrackingConfirmed  = "confirmed"
	TrackingProcessing = "processing"
	TrackingShipped    = "shipped"
	TrackingDelivered  = "delivered"
	TrackingCancelled  = "cancelled"
	TrackingFailed     = "failed"
)

// Appointment statuses
const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
)
