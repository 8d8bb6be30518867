package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type addToCartRequest struct {
	ProductID int64 `json:"product_id" form:"product_id"`
	ShopID    int64 `json:"shop_id" form:"shop_id"`
	Quantity  int   `json:"quantity" form:"quantity"`
}

type cartItemRequest struct {
	ItemID   int64 `json:"item_id" form:"item_id"`
	Quantity int   `json:"quantity" form:"quantity"`
	ShopID   int64 `json:"shop_id" form:"shop_id"`
}

func (h *Handler) getCart(c *gin.Context) {
	view, err := h.cart.GetCart(c.Request.Context(), currentSession(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"cartItems":             view.Lines,
		"cartTotal":             view.Total,
		"totalPotentialSavings": view.TotalPotentialSavings,
		"cartCount":             view.Count,
		"complementaryItems":    view.Complementary,
		"bestDeals":             view.BestDeals,
	})
}

func (h *Handler) cartCount(c *gin.Context) {
	count, err := h.cart.Count(c.Request.Context(), currentSession(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"count": count})
}

func (h *Handler) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	userID := currentSession(c).UserID

	res, err := h.cart.AddItem(ctx, userID, req.ProductID, req.ShopID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	count, err := h.cart.Count(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"message":         "item added to cart",
		"item":            res.Item,
		"priceComparison": res.PriceComparison,
		"cartCount":       count,
	})
}

func (h *Handler) updateQuantity(c *gin.Context) {
	var req cartItemRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}

	if err := h.cart.UpdateQuantity(c.Request.Context(), currentSession(c).UserID, req.ItemID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	h.respondCartTotals(c, "quantity updated")
}

func (h *Handler) updateShop(c *gin.Context) {
	var req cartItemRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}

	item, err := h.cart.SwitchShop(c.Request.Context(), currentSession(c).UserID, req.ItemID, req.ShopID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"message": "shop updated",
		"item":    item,
	})
}

func (h *Handler) removeFromCart(c *gin.Context) {
	var req cartItemRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}

	if err := h.cart.RemoveItem(c.Request.Context(), currentSession(c).UserID, req.ItemID); err != nil {
		respondError(c, err)
		return
	}
	h.respondCartTotals(c, "item removed")
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.cart.Clear(c.Request.Context(), currentSession(c).UserID); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"message":   "cart cleared",
		"cartCount": 0,
	})
}

// respondCartTotals answers a cart mutation with the new total and count
func (h *Handler) respondCartTotals(c *gin.Context, message string) {
	ctx := c.Request.Context()
	userID := currentSession(c).UserID

	total, err := h.cart.Total(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	count, err := h.cart.Count(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"message":   message,
		"cartTotal": total,
		"cartCount": count,
	})
}
