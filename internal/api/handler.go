package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"fulfillment-service/internal/service"
	"fulfillment-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orders    *service.OrderService
	engine    *service.FulfillmentEngine
	accounts  *service.AccountService
	inventory *service.InventoryService
	cache     *service.SnapshotCache
}

// NewHandler creates a new HTTP handler. cache may be nil; stock and
// balance reads then always hit the database.
func NewHandler(orders *service.OrderService, engine *service.FulfillmentEngine, accounts *service.AccountService, inventory *service.InventoryService, cache *service.SnapshotCache) *Handler {
	return &Handler{
		orders:    orders,
		engine:    engine,
		accounts:  accounts,
		inventory: inventory,
		cache:     cache,
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

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.DELETE("/orders/:id", h.deleteOrder)
		v1.POST("/orders/:id/transition", h.transitionOrder)
		v1.GET("/orders/:id/movements", h.getOrderMovements)
		v1.POST("/deposits", h.recordDeposit)
		v1.POST("/discounts", h.recordDiscount)
		v1.POST("/stock-adjustments", h.adjustStock)
		v1.GET("/options/:id/stock", h.getOptionStock)
		v1.GET("/counterparties/:id/balance", h.getBalance)
		v1.GET("/counterparties/:id/movements", h.getAccountMovements)
		v1.GET("/counterparties/:id/reconcile", h.reconcile)
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

// createOrder handles order intake
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, lines, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"lines": lines,
	})
}

// deleteOrder physically removes a still-pending order
func (h *Handler) deleteOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.orders.DeleteOrder(c.Request.Context(), orderID, actorOf(c)); err != nil {
		h.renderError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// transitionOrder moves an order to a new fulfillment status
func (h *Handler) transitionOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req service.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	req.OrderID = orderID
	if req.Actor == "" {
		req.Actor = actorOf(c)
	}

	result, err := h.engine.Transition(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// getOrderMovements lists the inventory movements an order produced
func (h *Handler) getOrderMovements(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	movements, err := h.orders.GetOrderMovements(c.Request.Context(), orderID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

// recordDeposit records an incoming counterparty payment
func (h *Handler) recordDeposit(c *gin.Context) {
	var req service.DepositRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.Actor == "" {
		req.Actor = actorOf(c)
	}

	result, err := h.accounts.RecordDeposit(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// recordDiscount reduces a counterparty's balance without a payment
func (h *Handler) recordDiscount(c *gin.Context) {
	var req service.DiscountRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.Actor == "" {
		req.Actor = actorOf(c)
	}

	result, err := h.accounts.RecordDiscount(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// adjustStock applies a manual stock correction to an option
func (h *Handler) adjustStock(c *gin.Context) {
	var req service.AdjustStockRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.Actor == "" {
		req.Actor = actorOf(c)
	}

	result, err := h.inventory.AdjustStock(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// getOptionStock returns an option's stock level, serving the Redis
// snapshot when available
func (h *Handler) getOptionStock(c *gin.Context) {
	optionID, ok := pathID(c)
	if !ok {
		return
	}

	if h.cache != nil {
		if stock, found := h.cache.CachedStock(c.Request.Context(), optionID); found {
			c.JSON(http.StatusOK, gin.H{
				"sku_option_id": optionID,
				"stock":         stock,
				"source":        "cache",
			})
			return
		}
	}

	option, err := h.inventory.GetOptionStock(c.Request.Context(), optionID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sku_option_id": option.ID,
		"stock":         option.Stock,
		"source":        "db",
	})
}

// getBalance returns a counterparty's outstanding balance, serving
// the Redis snapshot when available
func (h *Handler) getBalance(c *gin.Context) {
	counterpartyID, ok := pathID(c)
	if !ok {
		return
	}

	if h.cache != nil {
		if balance, found := h.cache.CachedBalance(c.Request.Context(), counterpartyID); found {
			c.JSON(http.StatusOK, gin.H{
				"counterparty_id": counterpartyID,
				"balance":         balance,
				"source":          "cache",
			})
			return
		}
	}

	account, err := h.accounts.GetBalance(c.Request.Context(), counterpartyID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"counterparty_id": account.ID,
		"balance":         account.OutstandingAmount,
		"source":          "db",
	})
}

// getAccountMovements lists a counterparty's recent account movements
func (h *Handler) getAccountMovements(c *gin.Context) {
	counterpartyID, ok := pathID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	movements, err := h.accounts.RecentMovements(c.Request.Context(), counterpartyID, limit)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

// reconcile compares the balance counter with the movement log
func (h *Handler) reconcile(c *gin.Context) {
	counterpartyID, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.accounts.Reconcile(c.Request.Context(), counterpartyID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// renderError maps service errors to HTTP statuses
func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrCounterpartyNotFound),
		errors.Is(err, service.ErrOptionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrIllegalTransition),
		errors.Is(err, service.ErrOrderNotDeletable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyScope),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPersistence):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		if service.IsClientError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

func actorOf(c *gin.Context) string {
	if actor := c.GetHeader("X-Actor"); actor != "" {
		return actor
	}
	return "system"
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
