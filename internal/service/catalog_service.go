package service

import (
	"context"
	"strings"

	"market-service/config"
	"market-service/internal/apperr"
	"market-service/internal/models"
	"market-service/internal/recommend"
	"market-service/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const latestProductsLimit = 8

// CatalogService serves shops, products and the recommendation-driven
// pages around them
type CatalogService struct {
	catalog     CatalogRepository
	recommender Recommender
	business    config.BusinessConfig
	logger      *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(catalog CatalogRepository, recommender Recommender, business config.BusinessConfig) *CatalogService {
	return &CatalogService{
		catalog:     catalog,
		recommender: recommender,
		business:    business,
		logger:      util.GetLogger(),
	}
}

// Pagination describes one page of a listing
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func newPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// ShopList is one page of shops
type ShopList struct {
	Shops      []models.Shop `json:"shops"`
	Pagination Pagination    `json:"pagination"`
}

// ListShops returns shops ordered by name, page is 1-based
func (s *CatalogService) ListShops(ctx context.Context, page int) (*ShopList, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListShops")
	defer span.End()

	page = normalizePage(page)
	limit := s.business.ShopsPageSize

	shops, err := s.catalog.ListShops(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, apperr.Internal(util.RecordError(span, err), "failed to load shops")
	}
	total, err := s.catalog.CountShops(ctx)
	if err != nil {
		return nil, apperr.Internal(util.RecordError(span, err), "failed to count shops")
	}

	return &ShopList{Shops: shops, Pagination: newPagination(page, limit, total)}, nil
}

// ShopDetail is a shop with one filtered page of its products
type ShopDetail struct {
	Shop       *models.Shop     `json:"shop"`
	Products   []models.Product `json:"products"`
	Categories []string         `json:"categories"`
	Pagination Pagination       `json:"pagination"`
}

// GetShop returns a shop and a filtered page of its products
func (s *CatalogService) GetShop(ctx context.Context, shopID int64, filter models.ProductFilter, page int) (*ShopDetail, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetShop")
	defer span.End()

	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, apperr.Validation("minimum price cannot exceed maximum price")
	}
	switch filter.Sort {
	case "", models.SortPriceLow, models.SortPriceHigh, models.SortName:
	default:
		return nil, apperr.Validation("unknown sort order")
	}

	shop, err := s.catalog.GetShopByID(ctx, shopID)
	if err != nil {
		return nil, classify(err, "failed to load shop")
	}

	page = normalizePage(page)
	filter.Limit = s.business.ProductsPageSize
	filter.Offset = (page - 1) * filter.Limit
	filter.Search = strings.TrimSpace(filter.Search)

	products, total, err := s.catalog.ListShopProducts(ctx, shopID, filter)
	if err != nil {
		return nil, apperr.Internal(util.RecordError(span, err), "failed to load products")
	}
	categories, err := s.catalog.ListCategoriesByShop(ctx, shopID)
	if err != nil {
		return nil, apperr.Internal(util.RecordError(span, err), "failed to load categories")
	}

	return &ShopDetail{
		Shop:       shop,
		Products:   products,
		Categories: categories,
		Pagination: newPagination(page, filter.Limit, total),
	}, nil
}

// ProductDetail is a product with its cross-shop listings and
// recommendations
type ProductDetail struct {
	Product           *models.Product     `json:"product"`
	OtherShopProducts []models.Product    `json:"other_shop_products"`
	Similar           []recommend.Product `json:"similar_products"`
	AlsoBought        []recommend.Product `json:"also_bought"`
}

// GetProduct returns a product, the same product at other shops and
// recommendations around it
func (s *CatalogService) GetProduct(ctx context.Context, productID int64) (*ProductDetail, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct")
	defer span.End()

	product, err := s.catalog.GetProductByID(ctx, productID)
	if err != nil {
		return nil, classify(err, "failed to load product")
	}

	detail := &ProductDetail{Product: product, OtherShopProducts: []models.Product{}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		similar, err := s.catalog.FindSimilarProducts(gctx, product.Name)
		if err != nil {
			return err
		}
		for _, p := range similar {
			if p.ID != product.ID {
				detail.OtherShopProducts = append(detail.OtherShopProducts, p)
			}
		}
		return nil
	})
	g.Go(func() error {
		detail.Similar = s.recommender.Similar(gctx, productID, recommend.SimilarLimit)
		return nil
	})
	g.Go(func() error {
		detail.AlsoBought = s.recommender.AlsoBought(gctx, productID, recommend.AlsoBoughtLimit)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal(util.RecordError(span, err), "failed to load product alternatives")
	}

	return detail, nil
}

// HomeFeed is the landing page content
type HomeFeed struct {
	Recommendations []recommend.Product `json:"recommendations"`
	RankedShops     []recommend.Shop    `json:"ranked_shops"`
	Latest          []models.Product    `json:"latest_products,omitempty"`
}

// Home returns the personalised landing page. userID 0 is anonymous. When
// the ranking service has nothing, the newest products fill in.
func (s *CatalogService) Home(ctx context.Context, userID int64) (*HomeFeed, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Home")
	defer span.End()

	feed := &HomeFeed{}

	var g errgroup.Group
	g.Go(func() error {
		feed.Recommendations = s.recommender.Home(ctx, userID, recommend.HomeLimit)
		return nil
	})
	g.Go(func() error {
		feed.RankedShops = s.recommender.RankedShops(ctx, userID)
		return nil
	})
	_ = g.Wait()

	if len(feed.Recommendations) == 0 {
		latest, err := s.catalog.ListLatestProducts(ctx, latestProductsLimit)
		if err != nil {
			return nil, apperr.Internal(util.RecordError(span, err), "failed to load products")
		}
		feed.Latest = latest
	}
	return feed, nil
}

// Search ranks products for a free-text query
func (s *CatalogService) Search(ctx context.Context, query string, userID int64) []recommend.Product {
	ctx, span := util.StartSpan(ctx, "CatalogService.Search")
	defer span.End()

	return s.recommender.Search(ctx, query, userID, recommend.SearchLimit)
}

// classify passes typed errors through and wraps anything else as internal
func classify(err error, message string) error {
	if apperr.As(err) != nil {
		return err
	}
	return apperr.Internal(err, message)
}
