package service

import (
	"context"
	"strings"
	"time"

	"market-service/config"
	"market-service/internal/apperr"
	"market-service/internal/models"
	"market-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DevKeyID is handed to the checkout page when payments are simulated
const DevKeyID = "rzp_test_dummy_key"

// OrderService handles order business logic
type OrderService struct {
	orders      OrderRepository
	events      Events
	payment     config.PaymentConfig
	devPayments bool
	logger      *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(orders OrderRepository, events Events, payment config.PaymentConfig, devPayments bool) *OrderService {
	return &OrderService{
		orders:      orders,
		events:      events,
		payment:     payment,
		devPayments: devPayments,
		logger:      util.GetLogger(),
	}
}

// Buyer identifies the customer placing an order
type Buyer struct {
	UserID int64
	Name   string
	Email  string
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	Address string `json:"address" form:"address"`
	Phone   string `json:"phone" form:"phone"`
}

// CheckoutSummary is the cart as shown on the checkout page
type CheckoutSummary struct {
	Items []models.CartLine `json:"cartItems"`
	Total decimal.Decimal   `json:"total"`
}

// GatewayOrder is the order as handed to the payment widget
type GatewayOrder struct {
	ID       int64           `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Minor    int64           `json:"amount_minor"`
	Currency string          `json:"currency"`
}

// CheckoutUser prefills the payment widget
type CheckoutUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CheckoutSession is returned after an order is created
type CheckoutSession struct {
	Order   GatewayOrder `json:"order"`
	KeyID   string       `json:"key_id"`
	User    CheckoutUser `json:"user"`
	DevMode bool         `json:"dev_mode"`
}

// Checkout returns the cart lines and total for the checkout page
func (s *OrderService) Checkout(ctx context.Context, userID int64) (*CheckoutSummary, error) {
	lines, err := s.orders.GetCartLines(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load cart")
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return &CheckoutSummary{Items: lines, Total: total}, nil
}

// CreateOrder turns the buyer's cart into a pending order. The order, its
// items and the first tracking row are written in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, buyer Buyer, req *CreateOrderRequest) (*CheckoutSession, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder", attribute.Int64("user_id", buyer.UserID))
	defer span.End()

	address := strings.TrimSpace(req.Address)
	phone := strings.TrimSpace(req.Phone)
	if address == "" || phone == "" {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, apperr.Validation("Address and phone number are required")
	}

	lines, err := s.orders.GetCartLines(ctx, buyer.UserID)
	if err != nil {
		return nil, apperr.Internal(util.RecordError(span, err), "failed to load cart")
	}
	if len(lines) == 0 {
		util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, apperr.Validation("Your cart is empty")
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}

	order := &models.Order{
		UserID:          buyer.UserID,
		TotalAmount:     total,
		ShippingAddress: address,
		Phone:           phone,
		PaymentStatus:   models.PaymentStatusPending,
	}

	items, err := s.orders.CreateOrderTx(ctx, order, lines)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, apperr.Internal(util.RecordError(span, err), "failed to create order")
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", buyer.UserID),
		zap.String("total", total.StringFixed(2)),
		zap.Int("items", len(items)))

	s.publishOrderCreated(ctx, order, items)

	keyID := s.payment.KeyID
	if s.devPayments {
		keyID = DevKeyID
	}
	currency := s.payment.Currency
	if currency == "" {
		currency = "INR"
	}

	return &CheckoutSession{
		Order: GatewayOrder{
			ID:       order.ID,
			Amount:   total,
			Minor:    total.Shift(2).Round(0).IntPart(),
			Currency: currency,
		},
		KeyID:   keyID,
		User:    CheckoutUser{Name: buyer.Name, Email: buyer.Email, Phone: phone},
		DevMode: s.devPayments,
	}, nil
}

func (s *OrderService) publishOrderCreated(ctx context.Context, order *models.Order, items []models.OrderItem) {
	data := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		data = append(data, models.OrderItemData{
			ProductID: item.ProductID,
			ShopID:    item.ShopID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now().UTC(),
		},
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       data,
	}

	if err := s.events.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}

// GetOrder returns an order owned by userID with its items and tracking
// history, newest first
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int64) (*models.OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder", attribute.Int64("order_id", orderID))
	defer span.End()

	order, err := loadOwnedOrder(ctx, s.orders, userID, orderID)
	if err != nil {
		return nil, err
	}

	items, err := s.orders.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, apperr.Internal(util.RecordError(span, err), "failed to load order items")
	}
	tracking, err := s.orders.GetOrderTracking(ctx, orderID)
	if err != nil {
		return nil, apperr.Internal(util.RecordError(span, err), "failed to load order tracking")
	}

	return &models.OrderDetail{Order: *order, Items: items, Tracking: tracking}, nil
}

// ListUserOrders returns the user's orders, newest first
func (s *OrderService) ListUserOrders(ctx context.Context, userID int64) ([]models.OrderSummary, error) {
	orders, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load orders")
	}
	return orders, nil
}

// AdminStats counts orders by payment status
func (s *OrderService) AdminStats(ctx context.Context) (map[string]int, error) {
	counts, err := s.orders.CountOrdersByPaymentStatus(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "failed to count orders")
	}
	for _, status := range []string{models.PaymentStatusPending, models.PaymentStatusPaid, models.PaymentStatusFailed} {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}
	return counts, nil
}

type orderReader interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
}

func loadOwnedOrder(ctx context.Context, orders orderReader, userID, orderID int64) (*models.Order, error) {
	if orderID <= 0 {
		return nil, apperr.Validation("order ID is required")
	}
	order, err := orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, classify(err, "failed to load order")
	}
	if order.UserID != userID {
		return nil, apperr.Forbidden("you do not have access to this order")
	}
	return order, nil
}
