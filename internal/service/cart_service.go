package service

import (
	"context"
	"time"

	"market-service/config"
	"market-service/internal/apperr"
	"market-service/internal/models"
	"market-service/internal/pricing"
	"market-service/internal/recommend"
	"market-service/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CartService manages carts and prices them against other shops
type CartService struct {
	carts       CartRepository
	recommender Recommender
	parallelism int
	logger      *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(carts CartRepository, recommender Recommender, business config.BusinessConfig) *CartService {
	parallelism := business.CartLookupParallelism
	if parallelism < 1 {
		parallelism = 1
	}
	return &CartService{
		carts:       carts,
		recommender: recommender,
		parallelism: parallelism,
		logger:      util.GetLogger(),
	}
}

// CartView is the priced cart with recommendations
type CartView struct {
	pricing.Summary
	Count         int                 `json:"count"`
	Complementary []recommend.Product `json:"complementary_items"`
	BestDeals     []recommend.Deal    `json:"best_deals"`
}

// GetCart prices every line against the other shops selling it. A failed
// lookup degrades that line to no alternatives.
func (s *CartService) GetCart(ctx context.Context, userID int64) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetCart", attribute.Int64("user_id", userID))
	defer span.End()

	lines, err := s.carts.GetCartLines(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(util.RecordError(span, err), "failed to load cart")
	}

	view := &CartView{
		Summary: pricing.Summarize(lines, s.compareLines(ctx, lines)),
		Count:   len(lines),
	}

	productIDs := make([]int64, len(lines))
	for i, line := range lines {
		productIDs[i] = line.ProductID
	}

	var g errgroup.Group
	g.Go(func() error {
		view.Complementary = s.recommender.Complementary(ctx, productIDs, recommend.ComplementaryLimit)
		return nil
	})
	g.Go(func() error {
		view.BestDeals = s.recommender.BestDeals(ctx, productIDs, recommend.BestDealsLimit)
		return nil
	})
	_ = g.Wait()

	return view, nil
}

// compareLines runs one alternative lookup per line with bounded
// parallelism. Each goroutine owns its slot of the result.
func (s *CartService) compareLines(ctx context.Context, lines []models.CartLine) []pricing.Comparison {
	start := time.Now()
	defer func() {
		util.CartComparisonLatency.Observe(time.Since(start).Seconds())
	}()

	comparisons := make([]pricing.Comparison, len(lines))

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for i := range lines {
		i := i
		g.Go(func() error {
			comparisons[i] = s.compareLine(ctx, lines[i])
			return nil
		})
	}
	_ = g.Wait()

	return comparisons
}

func (s *CartService) compareLine(ctx context.Context, line models.CartLine) pricing.Comparison {
	candidates, err := s.carts.FindSimilarProducts(ctx, line.ProductName)
	if err != nil {
		util.CartLookupFailuresTotal.Inc()
		s.logger.Warn("Alternative lookup failed, showing line without alternatives",
			zap.Int64("cart_item_id", line.ID),
			zap.Int64("product_id", line.ProductID),
			zap.Error(err))
		return pricing.Empty()
	}
	return pricing.Compare(line, candidates)
}

// AddItemResult is the added line and how it compares
type AddItemResult struct {
	Item            models.CartLine    `json:"item"`
	PriceComparison pricing.Comparison `json:"priceComparison"`
}

// AddItem adds quantity of a shop's product to the cart, merging with an
// existing line for the same product and shop
func (s *CartService) AddItem(ctx context.Context, userID, productID, shopID int64, quantity int) (*AddItemResult, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if productID <= 0 || shopID <= 0 {
		return nil, apperr.Validation("product and shop are required")
	}
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return nil, apperr.Validation("quantity must be at least 1")
	}

	product, err := s.carts.GetProductByID(ctx, productID)
	if err != nil {
		return nil, classify(err, "failed to load product")
	}
	if product.ShopID != shopID {
		return nil, apperr.Validation("product is not sold by this shop")
	}

	item, err := s.carts.AddCartItem(ctx, userID, productID, shopID, quantity)
	if err != nil {
		return nil, classify(util.RecordError(span, err), "failed to add to cart")
	}

	line := models.CartLine{
		ID:          item.ID,
		UserID:      userID,
		ProductID:   product.ID,
		ShopID:      product.ShopID,
		Quantity:    item.Quantity,
		Price:       product.Price,
		ProductName: product.Name,
		ShopName:    product.ShopName,
		ImageURL:    product.ImageURL,
	}

	s.logger.Info("Cart item added",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", productID),
		zap.Int64("shop_id", shopID),
		zap.Int("quantity", item.Quantity))

	return &AddItemResult{Item: line, PriceComparison: s.compareLine(ctx, line)}, nil
}

// UpdateQuantity sets a line's quantity
func (s *CartService) UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateQuantity")
	defer span.End()

	if itemID <= 0 {
		return apperr.Validation("item ID and quantity are required")
	}
	if quantity < 1 {
		return apperr.Validation("quantity must be at least 1")
	}

	if err := s.carts.UpdateCartItemQuantity(ctx, userID, itemID, quantity); err != nil {
		return classify(util.RecordError(span, err), "failed to update cart")
	}
	return nil
}

// SwitchShop moves a line to the same-named product at another shop
func (s *CartService) SwitchShop(ctx context.Context, userID, itemID, shopID int64) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.SwitchShop")
	defer span.End()

	if itemID <= 0 || shopID <= 0 {
		return nil, apperr.Validation("item ID and shop ID are required")
	}

	line, err := s.carts.GetCartLine(ctx, userID, itemID)
	if err != nil {
		return nil, classify(err, "failed to load cart item")
	}
	if line.ShopID == shopID {
		return &models.CartItem{
			ID:        line.ID,
			UserID:    line.UserID,
			ProductID: line.ProductID,
			ShopID:    line.ShopID,
			Quantity:  line.Quantity,
		}, nil
	}

	target, err := s.carts.FindProductInShopByName(ctx, shopID, line.ProductName)
	if err != nil {
		return nil, classify(err, "failed to find product in shop")
	}

	item, err := s.carts.SwitchCartItem(ctx, userID, itemID, target.ID, target.ShopID)
	if err != nil {
		return nil, classify(util.RecordError(span, err), "failed to update shop")
	}

	s.logger.Info("Cart item switched shop",
		zap.Int64("user_id", userID),
		zap.Int64("from_shop_id", line.ShopID),
		zap.Int64("to_shop_id", shopID),
		zap.Int64("product_id", target.ID))
	return item, nil
}

// RemoveItem deletes a line from the cart
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID int64) error {
	if itemID <= 0 {
		return apperr.Validation("item ID is required")
	}
	if err := s.carts.RemoveCartItem(ctx, userID, itemID); err != nil {
		return classify(err, "failed to remove item")
	}
	return nil
}

// Clear empties the cart
func (s *CartService) Clear(ctx context.Context, userID int64) error {
	if err := s.carts.ClearCart(ctx, userID); err != nil {
		return apperr.Internal(err, "failed to clear cart")
	}
	return nil
}

// Count returns the number of lines in the cart
func (s *CartService) Count(ctx context.Context, userID int64) (int, error) {
	count, err := s.carts.CountCartItems(ctx, userID)
	if err != nil {
		return 0, apperr.Internal(err, "failed to count cart items")
	}
	return count, nil
}

// Total returns the cart total at current prices
func (s *CartService) Total(ctx context.Context, userID int64) (decimal.Decimal, error) {
	total, err := s.carts.CartTotal(ctx, userID)
	if err != nil {
		return decimal.Zero, apperr.Internal(err, "failed to compute cart total")
	}
	return total, nil
}
