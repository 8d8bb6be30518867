// Package recommend talks to the external ranking service. Every call is
// best effort: failures are logged and reported as an empty result.
package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"market-service/config"
	"market-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	pathHome          = "/api/recommend/home"
	pathSimilar       = "/api/product/similar"
	pathAlsoBought    = "/api/product/also-bought"
	pathComplementary = "/api/cart/complementary"
	pathBestDeals     = "/api/cart/best-deals"
	pathRankedShops   = "/api/shops/ranked"
	pathSearch        = "/api/search"

	responseBodyReadLimit int64 = 1024
)

// Default result sizes
const (
	HomeLimit          = 8
	SimilarLimit       = 5
	AlsoBoughtLimit    = 5
	ComplementaryLimit = 5
	BestDealsLimit     = 3
	SearchLimit        = 20
)

// Cache stores home feeds between calls
type Cache interface {
	CacheGet(ctx context.Context, key string) ([]byte, bool, error)
	CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error
	CacheDelete(ctx context.Context, keys ...string) error
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      Cache
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// Option configures optional client behavior
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCache enables per-user caching of the home feed
func WithCache(cache Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// NewClient creates a recommendation client
func NewClient(cfg config.RecommendConfig, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		cacheTTL:   cfg.CacheTTL,
		logger:     util.GetLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func homeCacheKey(userID int64) string {
	return fmt.Sprintf("reco:home:%d", userID)
}

// Home returns the personalised home feed. userID 0 asks for the anonymous
// popular feed.
func (c *Client) Home(ctx context.Context, userID int64, limit int) []Product {
	cacheable := c.cache != nil && userID > 0
	if cacheable {
		if cached, ok := c.cachedHome(ctx, userID); ok {
			return cached
		}
	}

	var uid *int64
	if userID > 0 {
		uid = &userID
	}
	products := call[Product](ctx, c, pathHome, map[string]interface{}{
		"user_id": uid,
		"limit":   limit,
	})

	if cacheable && len(products) > 0 {
		if data, err := json.Marshal(products); err == nil {
			if err := c.cache.CacheSet(ctx, homeCacheKey(userID), data, c.cacheTTL); err != nil {
				c.logger.Warn("Failed to cache home recommendations", zap.Int64("user_id", userID), zap.Error(err))
			}
		}
	}
	return products
}

func (c *Client) cachedHome(ctx context.Context, userID int64) ([]Product, bool) {
	data, ok, err := c.cache.CacheGet(ctx, homeCacheKey(userID))
	if err != nil {
		c.logger.Warn("Failed to read cached home recommendations", zap.Int64("user_id", userID), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, false
	}
	return products, true
}

// InvalidateHome drops the cached home feed of a user
func (c *Client) InvalidateHome(ctx context.Context, userID int64) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.CacheDelete(ctx, homeCacheKey(userID))
}

// Similar returns products similar in content to productID
func (c *Client) Similar(ctx context.Context, productID int64, limit int) []Product {
	return call[Product](ctx, c, pathSimilar, map[string]interface{}{
		"product_id": productID,
		"limit":      limit,
	})
}

// AlsoBought returns products bought in the same paid orders as productID
func (c *Client) AlsoBought(ctx context.Context, productID int64, limit int) []Product {
	return call[Product](ctx, c, pathAlsoBought, map[string]interface{}{
		"product_id": productID,
		"limit":      limit,
	})
}

// Complementary returns items frequently bought with the cart's products
func (c *Client) Complementary(ctx context.Context, productIDs []int64, limit int) []Product {
	if len(productIDs) == 0 {
		return []Product{}
	}
	return call[Product](ctx, c, pathComplementary, map[string]interface{}{
		"product_ids": productIDs,
		"limit":       limit,
	})
}

// BestDeals returns cheaper listings of the cart's products
func (c *Client) BestDeals(ctx context.Context, productIDs []int64, limit int) []Deal {
	if len(productIDs) == 0 {
		return []Deal{}
	}
	return call[Deal](ctx, c, pathBestDeals, map[string]interface{}{
		"product_ids": productIDs,
		"limit":       limit,
	})
}

// RankedShops returns all shops ordered for userID, or by popularity when 0
func (c *Client) RankedShops(ctx context.Context, userID int64) []Shop {
	var uid *int64
	if userID > 0 {
		uid = &userID
	}
	return call[Shop](ctx, c, pathRankedShops, map[string]interface{}{
		"user_id": uid,
	})
}

// Search ranks products matching query
func (c *Client) Search(ctx context.Context, query string, userID int64, limit int) []Product {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Product{}
	}

	var uid *int64
	if userID > 0 {
		uid = &userID
	}
	return call[Product](ctx, c, pathSearch, map[string]interface{}{
		"query":   query,
		"user_id": uid,
		"limit":   limit,
	})
}

// call posts payload to path and decodes a JSON array. Any failure yields
// an empty, non-nil slice.
func call[T any](ctx context.Context, c *Client, path string, payload interface{}) []T {
	ctx, span := util.StartSpan(ctx, "RecommendClient.Call", attribute.String("endpoint", path))
	defer span.End()

	start := time.Now()
	result, err := c.post(ctx, path, payload)
	util.RecommendLatency.WithLabelValues(path).Observe(time.Since(start).Seconds())

	if err != nil {
		util.RecommendRequestsTotal.WithLabelValues(path, outcome(err)).Inc()
		c.logger.Warn("Recommendation request failed",
			zap.String("endpoint", path),
			zap.Error(err))
		util.RecordError(span, err)
		return []T{}
	}

	var items []T
	if err := json.Unmarshal(result, &items); err != nil {
		util.RecommendRequestsTotal.WithLabelValues(path, "decode_error").Inc()
		c.logger.Warn("Unexpected recommendation response",
			zap.String("endpoint", path),
			zap.Error(err))
		return []T{}
	}
	if items == nil {
		items = []T{}
	}

	util.RecommendRequestsTotal.WithLabelValues(path, "ok").Inc()
	return items
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}

func outcome(err error) string {
	var se *statusError
	switch {
	case errors.As(err, &se):
		return "bad_status"
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return "timeout"
	default:
		return "error"
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
