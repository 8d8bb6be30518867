package api

import (
	"net/http"
	"strings"

	"market-service/internal/apperr"
	"market-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (h *Handler) home(c *gin.Context) {
	feed, err := h.catalog.Home(c.Request.Context(), currentSession(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"feed": feed})
}

func (h *Handler) listShops(c *gin.Context) {
	list, err := h.catalog.ListShops(c.Request.Context(), queryPage(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"shops":      list.Shops,
		"pagination": list.Pagination,
	})
}

func (h *Handler) getShop(c *gin.Context) {
	shopID, err := parseID(c.Param("id"), "shop ID")
	if err != nil {
		respondError(c, err)
		return
	}

	filter, err := productFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	detail, err := h.catalog.GetShop(c.Request.Context(), shopID, filter, queryPage(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"shop":       detail.Shop,
		"products":   detail.Products,
		"categories": detail.Categories,
		"pagination": detail.Pagination,
	})
}

func productFilter(c *gin.Context) (models.ProductFilter, error) {
	filter := models.ProductFilter{
		Category: strings.TrimSpace(c.Query("category")),
		Search:   c.Query("search"),
		Sort:     c.Query("sort"),
	}

	var err error
	if filter.MinPrice, err = queryDecimal(c, "min_price"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = queryDecimal(c, "max_price"); err != nil {
		return filter, err
	}
	return filter, nil
}

func queryDecimal(c *gin.Context, key string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return nil, apperr.Validation("invalid " + key)
	}
	return &d, nil
}

func (h *Handler) getProduct(c *gin.Context) {
	productID, err := parseID(c.Param("id"), "product ID")
	if err != nil {
		respondError(c, err)
		return
	}

	detail, err := h.catalog.GetProduct(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"product":             detail.Product,
		"other_shop_products": detail.OtherShopProducts,
		"similar_products":    detail.Similar,
		"also_bought":         detail.AlsoBought,
	})
}

func (h *Handler) search(c *gin.Context) {
	query := c.Query("q")
	results := h.catalog.Search(c.Request.Context(), query, currentSession(c).UserID)
	respond(c, http.StatusOK, gin.H{
		"query":   query,
		"results": results,
	})
}
