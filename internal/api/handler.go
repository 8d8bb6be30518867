package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"market-service/internal/apperr"
	"market-service/internal/service"
	"market-service/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
)

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the business services the handlers call
type Services struct {
	Auth     *service.AuthService
	Catalog  *service.CatalogService
	Cart     *service.CartService
	Orders   *service.OrderService
	Payments *service.PaymentService
	Booking  *service.BookingService
}

// Handler contains HTTP handlers
type Handler struct {
	auth     *service.AuthService
	catalog  *service.CatalogService
	cart     *service.CartService
	orders   *service.OrderService
	payments *service.PaymentService
	booking  *service.BookingService
	sessions *session.Manager
	checks   map[string]Pinger
}

// NewHandler creates a new HTTP handler. checks are pinged by /ready.
func NewHandler(svc Services, sessions *session.Manager, checks map[string]Pinger) *Handler {
	return &Handler{
		auth:     svc.Auth,
		catalog:  svc.Catalog,
		cart:     svc.Cart,
		orders:   svc.Orders,
		payments: svc.Payments,
		booking:  svc.Booking,
		sessions: sessions,
		checks:   checks,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	app := router.Group("/")
	app.Use(h.loadSession())

	app.GET("/signup", h.authPage)
	app.POST("/signup", h.signup)
	app.GET("/login", h.authPage)
	app.POST("/login", h.login)
	app.GET("/logout", h.logout)
	app.POST("/logout", h.logout)

	app.GET("/", h.home)
	app.GET("/shops", h.listShops)
	app.GET("/shops/:id", h.getShop)
	app.GET("/products/:id", h.getProduct)
	app.GET("/search", h.search)

	app.GET("/booking/shop/:shopId", h.bookingShop)
	app.GET("/booking/slots", h.availableSlots)

	auth := app.Group("/")
	auth.Use(h.requireAuth())

	cart := auth.Group("/cart")
	{
		cart.GET("", h.getCart)
		cart.GET("/count", h.cartCount)
		cart.POST("/add", h.addToCart)
		cart.POST("/update-quantity", h.updateQuantity)
		cart.POST("/update-shop", h.updateShop)
		cart.POST("/remove", h.removeFromCart)
		cart.POST("/clear", h.clearCart)
	}

	checkout := auth.Group("/checkout")
	{
		checkout.GET("", h.checkout)
		checkout.POST("/create-order", h.createOrder)
		checkout.POST("/verify-payment", h.verifyPayment)
		checkout.POST("/payment-failed", h.paymentFailed)
		checkout.GET("/confirmation/:order_id", h.confirmation)
	}

	booking := auth.Group("/booking")
	{
		booking.POST("/create", h.createAppointment)
		booking.POST("/cancel/:id", h.cancelAppointment)
		booking.GET("/my-appointments", h.myAppointments)
	}

	auth.GET("/profile", h.profile)
	auth.GET("/orders", h.listOrders)
	auth.GET("/admin", h.requireAdmin(), h.admin)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	var errs error
	status := gin.H{}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			status[name] = err.Error()
			errs = multierr.Append(errs, err)
			continue
		}
		status[name] = "ok"
	}

	if errs != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"checks": status,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": status,
		"time":   time.Now().Unix(),
	})
}

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid " + what)
	}
	return id, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func queryPage(c *gin.Context) int {
	page, _ := strconv.Atoi(c.Query("page"))
	return page
}

// bind decodes a JSON or form body
func bind(c *gin.Context, dst any) error {
	if err := c.ShouldBind(dst); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}
