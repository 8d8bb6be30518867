package api

import (
	"net/http"

	"market-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) bookingShop(c *gin.Context) {
	shopID, err := parseID(c.Param("shopId"), "shop ID")
	if err != nil {
		respondError(c, err)
		return
	}

	shop, err := h.booking.GetShop(c.Request.Context(), shopID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"shop":  shop,
		"slots": service.AllSlots(),
	})
}

func (h *Handler) availableSlots(c *gin.Context) {
	shopID, err := parseID(c.Query("shop_id"), "shop ID")
	if err != nil {
		respondError(c, err)
		return
	}

	slots, err := h.booking.GetAvailableSlots(c.Request.Context(), shopID, c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"slots": slots})
}

func (h *Handler) createAppointment(c *gin.Context) {
	var req service.BookRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}

	appt, err := h.booking.Book(c.Request.Context(), currentSession(c).UserID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{
		"message":     "appointment booked",
		"appointment": appt,
	})
}

func (h *Handler) cancelAppointment(c *gin.Context) {
	id, err := parseID(c.Param("id"), "appointment ID")
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.booking.Cancel(c.Request.Context(), currentSession(c).UserID, id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "appointment cancelled"})
}

func (h *Handler) myAppointments(c *gin.Context) {
	appts, err := h.booking.ListUserAppointments(c.Request.Context(), currentSession(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"appointments": appts})
}
