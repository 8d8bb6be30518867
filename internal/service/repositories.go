package service

import (
	"context"
	"time"

	"market-service/internal/models"
	"market-service/internal/recommend"

	"github.com/shopspring/decimal"
)

// The store satisfies every repository below; services depend on the
// narrowest one they need.

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

type CatalogRepository interface {
	ListShops(ctx context.Context, limit, offset int) ([]models.Shop, error)
	CountShops(ctx context.Context) (int, error)
	GetShopByID(ctx context.Context, id int64) (*models.Shop, error)
	ListCategoriesByShop(ctx context.Context, shopID int64) ([]string, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	FindSimilarProducts(ctx context.Context, name string) ([]models.Product, error)
	ListShopProducts(ctx context.Context, shopID int64, f models.ProductFilter) ([]models.Product, int, error)
	ListLatestProducts(ctx context.Context, limit int) ([]models.Product, error)
}

type CartRepository interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	FindSimilarProducts(ctx context.Context, name string) ([]models.Product, error)
	FindProductInShopByName(ctx context.Context, shopID int64, name string) (*models.Product, error)
	AddCartItem(ctx context.Context, userID, productID, shopID int64, quantity int) (*models.CartItem, error)
	GetCartLines(ctx context.Context, userID int64) ([]models.CartLine, error)
	GetCartLine(ctx context.Context, userID, itemID int64) (*models.CartLine, error)
	UpdateCartItemQuantity(ctx context.Context, userID, itemID int64, quantity int) error
	SwitchCartItem(ctx context.Context, userID, itemID, productID, shopID int64) (*models.CartItem, error)
	RemoveCartItem(ctx context.Context, userID, itemID int64) error
	ClearCart(ctx context.Context, userID int64) error
	CountCartItems(ctx context.Context, userID int64) (int, error)
	CartTotal(ctx context.Context, userID int64) (decimal.Decimal, error)
}

type OrderRepository interface {
	GetCartLines(ctx context.Context, userID int64) ([]models.CartLine, error)
	CreateOrderTx(ctx context.Context, order *models.Order, lines []models.CartLine) ([]models.OrderItem, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetOrderTracking(ctx context.Context, orderID int64) ([]models.OrderTracking, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]models.OrderSummary, error)
	ConfirmPaymentTx(ctx context.Context, orderID, userID int64, gatewayOrderID, gatewayPaymentID string) (bool, error)
	MarkPaymentFailed(ctx context.Context, orderID int64) (bool, error)
	CountOrdersByPaymentStatus(ctx context.Context) (map[string]int, error)
}

type AppointmentRepository interface {
	GetShopByID(ctx context.Context, id int64) (*models.Shop, error)
	IsTimeSlotAvailable(ctx context.Context, shopID int64, date, slot string) (bool, error)
	BookedTimes(ctx context.Context, shopID int64, date string) ([]string, error)
	CreateAppointment(ctx context.Context, appt *models.Appointment) error
	GetAppointmentByID(ctx context.Context, id int64) (*models.Appointment, error)
	ListAppointmentsByUser(ctx context.Context, userID int64) ([]models.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id int64, status string) error
}

// Events publishes domain events; *broker.EventPublisher implements it
type Events interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error
	PublishOrderPaymentFailed(ctx context.Context, event *models.OrderPaymentFailedEvent) error
	PublishAppointmentBooked(ctx context.Context, event *models.AppointmentEvent) error
	PublishAppointmentCancelled(ctx context.Context, event *models.AppointmentEvent) error
}

// Recommender is the ranking service; *recommend.Client implements it
type Recommender interface {
	Home(ctx context.Context, userID int64, limit int) []recommend.Product
	Similar(ctx context.Context, productID int64, limit int) []recommend.Product
	AlsoBought(ctx context.Context, productID int64, limit int) []recommend.Product
	Complementary(ctx context.Context, productIDs []int64, limit int) []recommend.Product
	BestDeals(ctx context.Context, productIDs []int64, limit int) []recommend.Deal
	RankedShops(ctx context.Context, userID int64) []recommend.Shop
	Search(ctx context.Context, query string, userID int64, limit int) []recommend.Product
}

// PaymentGuard deduplicates and serializes payment verification;
// *redisclient.Client implements it
type PaymentGuard interface {
	CheckIdempotencyKey(ctx context.Context, key string) (bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, lockKey, token string) error
}
