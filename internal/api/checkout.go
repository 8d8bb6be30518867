package api

import (
	"net/http"

	"market-service/internal/service"

	"github.com/gin-gonic/gin"
)

type paymentFailedRequest struct {
	OrderID int64  `json:"order_id" form:"order_id"`
	Reason  string `json:"reason" form:"reason"`
}

func (h *Handler) checkout(c *gin.Context) {
	summary, err := h.orders.Checkout(c.Request.Context(), currentSession(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	payload := gin.H{
		"cartItems": summary.Items,
		"total":     summary.Total,
	}
	if len(summary.Items) == 0 {
		payload["redirect"] = "/cart"
	}
	respond(c, http.StatusOK, payload)
}

func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}

	sess := currentSession(c)
	buyer := service.Buyer{UserID: sess.UserID, Name: sess.Name, Email: sess.Email}

	checkout, err := h.orders.CreateOrder(c.Request.Context(), buyer, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"order":    checkout.Order,
		"key_id":   checkout.KeyID,
		"user":     checkout.User,
		"dev_mode": checkout.DevMode,
	})
}

func (h *Handler) verifyPayment(c *gin.Context) {
	var req service.VerifyPaymentRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}

	res, err := h.payments.VerifyPayment(c.Request.Context(), currentSession(c).UserID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"message":      "payment verified",
		"order_id":     res.OrderID,
		"already_paid": res.AlreadyPaid,
		"redirect":     "/checkout/confirmation/" + formatID(res.OrderID),
	})
}

func (h *Handler) paymentFailed(c *gin.Context) {
	var req paymentFailedRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}

	if err := h.payments.MarkFailed(c.Request.Context(), currentSession(c).UserID, req.OrderID, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "payment marked as failed"})
}

func (h *Handler) confirmation(c *gin.Context) {
	h.orderDetail(c, c.Param("order_id"))
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListUserOrders(c.Request.Context(), currentSession(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) orderDetail(c *gin.Context, rawID string) {
	orderID, err := parseID(rawID, "order ID")
	if err != nil {
		respondError(c, err)
		return
	}

	detail, err := h.orders.GetOrder(c.Request.Context(), currentSession(c).UserID, orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"order":          detail.Order,
		"items":          detail.Items,
		"tracking":       detail.Tracking,
		"current_status": detail.CurrentStatus(),
	})
}
