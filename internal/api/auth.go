package api

import (
	"net/http"

	"market-service/internal/apperr"
	"market-service/internal/models"
	"market-service/internal/service"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// authPage sends logged-in users home
func (h *Handler) authPage(c *gin.Context) {
	if currentSession(c).Authenticated() {
		respond(c, http.StatusOK, gin.H{"authenticated": true, "redirect": "/"})
		return
	}
	respond(c, http.StatusOK, gin.H{"authenticated": false})
}

func (h *Handler) signup(c *gin.Context) {
	var req service.SignupRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}

	user, err := h.auth.Signup(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.startSession(c, user); err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, gin.H{
		"message":  "account created",
		"user":     user,
		"redirect": "/",
	})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}

	user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	redirect := currentSession(c).ReturnTo
	if redirect == "" {
		redirect = "/"
	}

	if err := h.startSession(c, user); err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"user":     user,
		"redirect": redirect,
	})
}

// startSession swaps the caller's session for a fresh authenticated one
func (h *Handler) startSession(c *gin.Context, user *models.User) error {
	sess, err := h.sessions.Regenerate(c.Request.Context(), currentSession(c), user.ID, user.Name, user.Email, user.IsAdmin)
	if err != nil {
		return apperr.Internal(err, "failed to start session")
	}
	h.setCookie(c, sess.ID, int(h.sessions.TTL().Seconds()))
	c.Set(sessionKey, sess)
	return nil
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.sessions.Destroy(c.Request.Context(), currentSession(c).ID); err != nil {
		respondError(c, apperr.Internal(err, "failed to end session"))
		return
	}
	h.setCookie(c, "", -1)

	respond(c, http.StatusOK, gin.H{"redirect": "/"})
}

func (h *Handler) profile(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentSession(c).UserID

	user, err := h.auth.GetUser(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	orders, err := h.orders.ListUserOrders(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	appointments, err := h.booking.ListUserAppointments(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"user":         user,
		"orders":       orders,
		"appointments": appointments,
	})
}

func (h *Handler) admin(c *gin.Context) {
	stats, err := h.orders.AdminStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	sess := currentSession(c)
	respond(c, http.StatusOK, gin.H{
		"user": gin.H{
			"id":       sess.UserID,
			"name":     sess.Name,
			"email":    sess.Email,
			"is_admin": sess.IsAdmin,
		},
		"orders_by_payment_status": stats,
	})
}
