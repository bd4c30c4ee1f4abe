package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ecommerce-service/internal/models"
	"ecommerce-service/internal/service"
	"ecommerce-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// userIDKey is the gin context key under which the identity middleware
// stores the acting user's id
const userIDKey = "userID"

// OrderPlacer is the order placement and query surface used by the handlers
type OrderPlacer interface {
	PlaceCOD(ctx context.Context, userID int64, req *service.PlaceOrderRequest) (*models.Order, error)
	PlaceOnline(ctx context.Context, userID int64, req *service.PlaceOrderRequest, origin string) (string, error)
	ListUserOrders(ctx context.Context, userID int64) ([]models.OrderView, error)
	ListAllOrders(ctx context.Context) ([]models.OrderView, error)
}

// WebhookProcessor reconciles payment-gateway webhook deliveries
type WebhookProcessor interface {
	HandleEvent(ctx context.Context, payload []byte, sigHeader string) error
}

// Handler contains HTTP handlers
type Handler struct {
	orders     OrderPlacer
	reconciler WebhookProcessor
}

// NewHandler creates a new HTTP handler
func NewHandler(orders OrderPlacer, reconciler WebhookProcessor) *Handler {
	return &Handler{
		orders:     orders,
		reconciler: reconciler,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	orders := router.Group("/api/order")
	{
		// The webhook carries no user context; authenticity comes from the
		// signature alone.
		orders.POST("/webhook", h.paymentWebhook)

		authed := orders.Group("", identityMiddleware())
		authed.POST("/cod", h.placeCOD)
		authed.POST("/online", h.placeOnline)
		authed.GET("/user", h.getUserOrders)
		authed.GET("/all", h.getAllOrders)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// placeCOD handles cash-on-delivery order placement
func (h *Handler) placeCOD(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid request body",
		})
		return
	}

	_, err := h.orders.PlaceCOD(c.Request.Context(), c.GetInt64(userIDKey), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Order placed successfully",
	})
}

// placeOnline handles online order placement and returns the checkout
// redirect URL
func (h *Handler) placeOnline(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid request body",
		})
		return
	}

	origin := c.GetHeader("Origin")
	if origin == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Missing Origin header",
		})
		return
	}

	url, err := h.orders.PlaceOnline(c.Request.Context(), c.GetInt64(userIDKey), &req, origin)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"url":     url,
	})
}

// paymentWebhook handles asynchronous payment-gateway events. The raw body
// is passed through untouched; signature verification is byte-sensitive.
func (h *Handler) paymentWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Failed to read request body",
		})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")

	if err := h.reconciler.HandleEvent(c.Request.Context(), payload, sigHeader); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// getUserOrders lists the acting user's placed orders
func (h *Handler) getUserOrders(c *gin.Context) {
	orders, err := h.orders.ListUserOrders(c.Request.Context(), c.GetInt64(userIDKey))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"orders":  orders,
	})
}

// getAllOrders lists every placed order (admin)
func (h *Handler) getAllOrders(c *gin.Context) {
	orders, err := h.orders.ListAllOrders(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"orders":  orders,
	})
}

// respondError maps the error taxonomy to HTTP status classes
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidOrder),
		errors.Is(err, models.ErrSignatureVerification):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrProductNotFound):
		status = http.StatusNotFound
	}

	c.JSON(status, gin.H{
		"success": false,
		"message": err.Error(),
	})
}

// identityMiddleware reads the user id injected by the upstream auth layer
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Not authorized",
			})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
