package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"market-service/internal/apperr"
	"market-service/internal/models"
	"market-service/internal/recommend"
	"market-service/internal/redisclient"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory stand-in for the postgres store
type memStore struct {
	mu sync.Mutex

	nextID       int64
	users        map[int64]*models.User
	shops        map[int64]*models.Shop
	products     []models.Product
	cart         map[int64]*models.CartItem
	orders       map[int64]*models.Order
	orderItems   map[int64][]models.OrderItem
	tracking     map[int64][]models.OrderTracking
	appointments map[int64]*models.Appointment

	similarErr     map[string]error
	createOrderErr error
	confirmCalls   int
}

func newMemStore() *memStore {
	return &memStore{
		nextID:       100,
		users:        map[int64]*models.User{},
		shops:        map[int64]*models.Shop{},
		cart:         map[int64]*models.CartItem{},
		orders:       map[int64]*models.Order{},
		orderItems:   map[int64][]models.OrderItem{},
		tracking:     map[int64][]models.OrderTracking{},
		appointments: map[int64]*models.Appointment{},
		similarErr:   map[string]error{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addShop(id int64, name string) {
	m.shops[id] = &models.Shop{ID: id, Name: name}
}

func (m *memStore) addProduct(id, shopID int64, name string, price int64) {
	m.products = append(m.products, models.Product{
		ID:       id,
		ShopID:   shopID,
		ShopName: m.shops[shopID].Name,
		Name:     name,
		Price:    decimal.NewFromInt(price),
	})
}

func (m *memStore) addCartItem(userID, productID, shopID int64, qty int) int64 {
	id := m.id()
	m.cart[id] = &models.CartItem{ID: id, UserID: userID, ProductID: productID, ShopID: shopID, Quantity: qty}
	return id
}

func (m *memStore) cartFor(userID int64) []*models.CartItem {
	var items []*models.CartItem
	for _, item := range m.cart {
		if item.UserID == userID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (m *memStore) product(id int64) (models.Product, bool) {
	for _, p := range m.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

// users

func (m *memStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(user.Email) {
			return apperr.Conflict("email already registered")
		}
	}
	user.ID = m.id()
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = time.Now()
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			user := *u
			return &user, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (m *memStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		user := *u
		return &user, nil
	}
	return nil, apperr.NotFound("user not found")
}

// catalog

func (m *memStore) ListShops(_ context.Context, limit, offset int) ([]models.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shops := make([]models.Shop, 0, len(m.shops))
	for _, s := range m.shops {
		shops = append(shops, *s)
	}
	sort.Slice(shops, func(i, j int) bool { return shops[i].Name < shops[j].Name })
	if offset >= len(shops) {
		return []models.Shop{}, nil
	}
	end := offset + limit
	if end > len(shops) {
		end = len(shops)
	}
	return shops[offset:end], nil
}

func (m *memStore) CountShops(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shops), nil
}

func (m *memStore) GetShopByID(_ context.Context, id int64) (*models.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.shops[id]; ok {
		shop := *s
		return &shop, nil
	}
	return nil, apperr.NotFound("shop not found")
}

func (m *memStore) ListCategoriesByShop(context.Context, int64) ([]string, error) {
	return []string{}, nil
}

func (m *memStore) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.product(id); ok {
		return &p, nil
	}
	return nil, apperr.NotFound("product not found")
}

func (m *memStore) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := m.product(id); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) FindSimilarProducts(_ context.Context, name string) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.similarErr[name]; err != nil {
		return nil, err
	}
	var out []models.Product
	for _, p := range m.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(name)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) FindProductInShopByName(_ context.Context, shopID int64, name string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.ShopID == shopID && strings.Contains(strings.ToLower(p.Name), strings.ToLower(name)) {
			found := p
			return &found, nil
		}
	}
	return nil, apperr.NotFound("product not found in selected shop")
}

func (m *memStore) ListShopProducts(_ context.Context, shopID int64, f models.ProductFilter) ([]models.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []models.Product
	for _, p := range m.products {
		if p.ShopID == shopID {
			matched = append(matched, p)
		}
	}
	total := len(matched)
	if f.Offset >= total {
		return []models.Product{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func (m *memStore) ListLatestProducts(_ context.Context, limit int) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.products) {
		limit = len(m.products)
	}
	return append([]models.Product(nil), m.products[:limit]...), nil
}

// cart

func (m *memStore) AddCartItem(_ context.Context, userID, productID, shopID int64, quantity int) (*models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.cartFor(userID) {
		if item.ProductID == productID && item.ShopID == shopID {
			item.Quantity += quantity
			merged := *item
			return &merged, nil
		}
	}
	id := m.addCartItem(userID, productID, shopID, quantity)
	added := *m.cart[id]
	return &added, nil
}

func (m *memStore) GetCartLines(_ context.Context, userID int64) ([]models.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := []models.CartLine{}
	for _, item := range m.cartFor(userID) {
		lines = append(lines, m.line(item))
	}
	return lines, nil
}

func (m *memStore) line(item *models.CartItem) models.CartLine {
	p, _ := m.product(item.ProductID)
	return models.CartLine{
		ID:          item.ID,
		UserID:      item.UserID,
		ProductID:   item.ProductID,
		ShopID:      item.ShopID,
		Quantity:    item.Quantity,
		Price:       p.Price,
		ProductName: p.Name,
		ShopName:    p.ShopName,
	}
}

func (m *memStore) GetCartLine(_ context.Context, userID, itemID int64) (*models.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.cart[itemID]
	if !ok || item.UserID != userID {
		return nil, apperr.NotFound("cart item not found")
	}
	line := m.line(item)
	return &line, nil
}

func (m *memStore) UpdateCartItemQuantity(_ context.Context, userID, itemID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.cart[itemID]
	if !ok || item.UserID != userID {
		return apperr.NotFound("cart item not found")
	}
	item.Quantity = quantity
	return nil
}

func (m *memStore) SwitchCartItem(_ context.Context, userID, itemID, productID, shopID int64) (*models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.cart[itemID]
	if !ok || item.UserID != userID {
		return nil, apperr.NotFound("cart item not found")
	}
	for _, other := range m.cartFor(userID) {
		if other.ID != itemID && other.ProductID == productID && other.ShopID == shopID {
			other.Quantity += item.Quantity
			delete(m.cart, itemID)
			merged := *other
			return &merged, nil
		}
	}
	item.ProductID, item.ShopID = productID, shopID
	switched := *item
	return &switched, nil
}

func (m *memStore) RemoveCartItem(_ context.Context, userID, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.cart[itemID]
	if !ok || item.UserID != userID {
		return apperr.NotFound("cart item not found")
	}
	delete(m.cart, itemID)
	return nil
}

func (m *memStore) ClearCart(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.cartFor(userID) {
		delete(m.cart, item.ID)
	}
	return nil
}

func (m *memStore) CountCartItems(_ context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cartFor(userID)), nil
}

func (m *memStore) CartTotal(_ context.Context, userID int64) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, item := range m.cartFor(userID) {
		total = total.Add(m.line(item).Subtotal())
	}
	return total, nil
}

// orders

func (m *memStore) CreateOrderTx(_ context.Context, order *models.Order, lines []models.CartLine) ([]models.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createOrderErr != nil {
		return nil, m.createOrderErr
	}
	order.ID = m.id()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	stored := *order
	m.orders[order.ID] = &stored

	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.OrderItem{
			ID:        m.id(),
			OrderID:   order.ID,
			ProductID: line.ProductID,
			ShopID:    line.ShopID,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
	}
	m.orderItems[order.ID] = items
	m.appendTracking(order.ID, models.TrackingPending)
	return items, nil
}

func (m *memStore) appendTracking(orderID int64, status string) {
	row := models.OrderTracking{ID: m.id(), OrderID: orderID, Status: status, UpdatedAt: time.Now()}
	m.tracking[orderID] = append([]models.OrderTracking{row}, m.tracking[orderID]...)
}

func (m *memStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		order := *o
		return &order, nil
	}
	return nil, apperr.NotFound("order not found")
}

func (m *memStore) GetOrderItems(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OrderItem(nil), m.orderItems[orderID]...), nil
}

func (m *memStore) GetOrderTracking(_ context.Context, orderID int64) ([]models.OrderTracking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OrderTracking(nil), m.tracking[orderID]...), nil
}

func (m *memStore) ListOrdersByUser(_ context.Context, userID int64) ([]models.OrderSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.OrderSummary{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, models.OrderSummary{Order: *o, CurrentStatus: m.tracking[o.ID][0].Status})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) ConfirmPaymentTx(_ context.Context, orderID, userID int64, gatewayOrderID, gatewayPaymentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmCalls++
	order, ok := m.orders[orderID]
	if !ok || order.PaymentStatus == models.PaymentStatusPaid {
		return false, nil
	}
	order.PaymentStatus = models.PaymentStatusPaid
	order.RazorpayOrderID = models.NewNullString(gatewayOrderID)
	order.RazorpayPaymentID = models.NewNullString(gatewayPaymentID)
	m.appendTracking(orderID, models.TrackingConfirmed)
	for _, item := range m.cartFor(userID) {
		delete(m.cart, item.ID)
	}
	return true, nil
}

func (m *memStore) MarkPaymentFailed(_ context.Context, orderID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok || order.PaymentStatus != models.PaymentStatusPending {
		return false, nil
	}
	order.PaymentStatus = models.PaymentStatusFailed
	m.appendTracking(orderID, models.TrackingFailed)
	return true, nil
}

func (m *memStore) CountOrdersByPaymentStatus(context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int{}
	for _, o := range m.orders {
		counts[o.PaymentStatus]++
	}
	return counts, nil
}

// appointments

func (m *memStore) IsTimeSlotAvailable(_ context.Context, shopID int64, date, slot string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.slotTaken(shopID, date, slot), nil
}

func (m *memStore) slotTaken(shopID int64, date, slot string) bool {
	for _, a := range m.appointments {
		if a.ShopID == shopID && a.AppointmentDate == date && a.AppointmentTime == slot && a.Status != models.AppointmentCancelled {
			return true
		}
	}
	return false
}

func (m *memStore) BookedTimes(_ context.Context, shopID int64, date string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	times := []string{}
	for _, a := range m.appointments {
		if a.ShopID == shopID && a.AppointmentDate == date && a.Status != models.AppointmentCancelled {
			times = append(times, a.AppointmentTime)
		}
	}
	sort.Strings(times)
	return times, nil
}

func (m *memStore) CreateAppointment(_ context.Context, appt *models.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slotTaken(appt.ShopID, appt.AppointmentDate, appt.AppointmentTime) {
		return apperr.Conflict("this time slot is no longer available")
	}
	appt.ID = m.id()
	appt.Status = models.AppointmentPending
	stored := *appt
	m.appointments[appt.ID] = &stored
	return nil
}

func (m *memStore) GetAppointmentByID(_ context.Context, id int64) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.appointments[id]; ok {
		appt := *a
		return &appt, nil
	}
	return nil, apperr.NotFound("appointment not found")
}

func (m *memStore) ListAppointmentsByUser(_ context.Context, userID int64) ([]models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Appointment{}
	for _, a := range m.appointments {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) UpdateAppointmentStatus(_ context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return apperr.NotFound("appointment not found")
	}
	a.Status = status
	return nil
}

// recordingEvents captures published event types
type recordingEvents struct {
	mu    sync.Mutex
	types []string
	err   error
}

func (e *recordingEvents) record(eventType string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, eventType)
	return e.err
}

func (e *recordingEvents) PublishOrderCreated(_ context.Context, ev *models.OrderCreatedEvent) error {
	return e.record(ev.EventType)
}

func (e *recordingEvents) PublishOrderConfirmed(_ context.Context, ev *models.OrderConfirmedEvent) error {
	return e.record(ev.EventType)
}

func (e *recordingEvents) PublishOrderPaymentFailed(_ context.Context, ev *models.OrderPaymentFailedEvent) error {
	return e.record(ev.EventType)
}

func (e *recordingEvents) PublishAppointmentBooked(_ context.Context, ev *models.AppointmentEvent) error {
	return e.record(ev.EventType)
}

func (e *recordingEvents) PublishAppointmentCancelled(_ context.Context, ev *models.AppointmentEvent) error {
	return e.record(ev.EventType)
}

func (e *recordingEvents) published() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.types...)
}

// staticRecommender returns fixed results
type staticRecommender struct {
	home     []recommend.Product
	similar  []recommend.Product
	deals    []recommend.Deal
	searched string
}

func (r *staticRecommender) Home(context.Context, int64, int) []recommend.Product {
	if r.home == nil {
		return []recommend.Product{}
	}
	return r.home
}

func (r *staticRecommender) Similar(context.Context, int64, int) []recommend.Product {
	if r.similar == nil {
		return []recommend.Product{}
	}
	return r.similar
}

func (r *staticRecommender) AlsoBought(context.Context, int64, int) []recommend.Product {
	return []recommend.Product{}
}

func (r *staticRecommender) Complementary(context.Context, []int64, int) []recommend.Product {
	return []recommend.Product{}
}

func (r *staticRecommender) BestDeals(context.Context, []int64, int) []recommend.Deal {
	if r.deals == nil {
		return []recommend.Deal{}
	}
	return r.deals
}

func (r *staticRecommender) RankedShops(context.Context, int64) []recommend.Shop {
	return []recommend.Shop{}
}

func (r *staticRecommender) Search(_ context.Context, query string, _ int64, _ int) []recommend.Product {
	r.searched = query
	return []recommend.Product{}
}

func newTestGuard(t *testing.T) (*redisclient.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return redisclient.New(rdb), mr
}
