package order

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"restaurant-pos/internal/httpx"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/services/settlement"
)

// Handler handles HTTP requests for the order service
type Handler struct {
	service *Service
	logger  *logger.Logger
	timeout time.Duration
}

// NewHandler creates a new order handler
func NewHandler(service *Service, log *logger.Logger, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handler{
		service: service,
		logger:  log,
		timeout: timeout,
	}
}

type addItemsRequest struct {
	Items []ItemRequest `json:"items"`
}

type statusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type couponRequest struct {
	Code string `json:"code"`
}

type discountRequest struct {
	Percent decimal.Decimal `json:"percent"`
}

type loyaltyRequest struct {
	CustomerID string `json:"customer_id"`
}

// Register mounts the order routes
func (h *Handler) Register(r gin.IRouter) {
	orders := r.Group("/orders")
	{
		orders.POST("", h.CreateOrder)
		orders.GET("/:number", h.GetOrder)
		orders.POST("/:number/items", h.AddItems)
		orders.DELETE("/:number/items/:itemID", h.VoidItem)
		orders.PUT("/:number/status", h.SetStatus)
		orders.POST("/:number/coupon", h.ApplyCoupon)
		orders.DELETE("/:number/coupon", h.RemoveCoupon)
		orders.POST("/:number/discount", h.ApplyDiscount)
		orders.DELETE("/:number/discount", h.RemoveDiscount)
		orders.POST("/:number/loyalty", h.RedeemLoyalty)
		orders.POST("/:number/payment", h.RecordPayment)
	}
}

// CreateOrder handles POST /orders
func (h *Handler) CreateOrder(c *gin.Context) {
	requestID := httpx.RequestID(c)
	actor, err := httpx.Actor(c)
	if err != nil {
		httpx.WriteError(c, h.logger, "order_creation_failed", err)
		return
	}

	var req CreateOrderRequest
	if err := httpx.BindJSON(c, &req); err != nil {
		httpx.WriteError(c, h.logger, "validation_failed", err)
		return
	}

	h.logger.Debug("order_received", "Received order creation request", requestID, map[string]interface{}{
		"tables": req.Tables,
		"items":  len(req.Items),
	})

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	order, err := h.service.CreateOrder(ctx, actor, &req, requestID)
	if err != nil {
		httpx.WriteError(c, h.logger, "order_creation_failed", err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// GetOrder handles GET /orders/:number
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.service.GetOrder(c.Request.Context(), c.Param("number"))
	if err != nil {
		httpx.WriteError(c, h.logger, "order_lookup_failed", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// AddItems handles POST /orders/:number/items
func (h *Handler) AddItems(c *gin.Context) {
	var req addItemsRequest
	h.mutate(c, "add_items_failed", &req, func(ctx context.Context, actor models.Actor, number, requestID string) (*models.Order, error) {
		return h.service.AddItems(ctx, actor, number, req.Items, requestID)
	})
}

// VoidItem handles DELETE /orders/:number/items/:itemID
func (h *Handler) VoidItem(c *gin.Context) {
	h.mutate(c, "void_item_failed", nil, func(ctx context.Context, actor models.Actor, number, requestID string) (*models.Order, error) {
		itemID, err := uuid.Parse(c.Param("itemID"))
		if err != nil {
			return nil, models.NewValidationError("itemID", "not a valid id")
		}
		return h.service.VoidItem(ctx, actor, number, itemID, requestID)
	})
}

// SetStatus handles PUT /orders/:number/status
func (h *Handler) SetStatus(c *gin.Context) {
	var req statusRequest
	h.mutate(c, "status_change_failed", &req, func(ctx context.Context, actor models.Actor, number, requestID string) (*models.Order, error) {
		return h.service.SetStatus(ctx, actor, number, req.Status, req.Notes, requestID)
	})
}

// ApplyCoupon handles POST /orders/:number/coupon
func (h *Handler) ApplyCoupon(c *gin.Context) {
	var req couponRequest
	h.mutate(c, "apply_coupon_failed", &req, func(ctx context.Context, actor models.Actor, number, requestID string) (*models.Order, error) {
		return h.service.ApplyCoupon(ctx, actor, number, req.Code, requestID)
	})
}

// RemoveCoupon handles DELETE /orders/:number/coupon
func (h *Handler) RemoveCoupon(c *gin.Context) {
	h.mutate(c, "remove_coupon_failed", nil, func(ctx context.Context, actor models.Actor, number, requestID string) (*models.Order, error) {
		return h.service.RemoveCoupon(ctx, actor, number, requestID)
	})
}

// ApplyDiscount handles POST /orders/:number/discount
func (h *Handler) ApplyDiscount(c *gin.Context) {
	var req discountRequest
	h.mutate(c, "apply_discount_failed", &req, func(ctx context.Context, actor models.Actor, number, requestID string) (*models.Order, error) {
		return h.service.ApplyDiscount(ctx, actor, number, req.Percent, requestID)
	})
}

// RemoveDiscount handles DELETE /orders/:number/discount
func (h *Handler) RemoveDiscount(c *gin.Context) {
	h.mutate(c, "remove_discount_failed", nil, func(ctx context.Context, actor models.Actor, number, requestID string) (*models.Order, error) {
		return h.service.RemoveDiscount(ctx, actor, number, requestID)
	})
}

// RedeemLoyalty handles POST /orders/:number/loyalty
func (h *Handler) RedeemLoyalty(c *gin.Context) {
	var req loyaltyRequest
	h.mutate(c, "loyalty_redemption_failed", &req, func(ctx context.Context, actor models.Actor, number, requestID string) (*models.Order, error) {
		return h.service.RedeemLoyalty(ctx, actor, number, req.CustomerID, requestID)
	})
}

// RecordPayment handles POST /orders/:number/payment
func (h *Handler) RecordPayment(c *gin.Context) {
	var req settlement.Payment
	h.mutate(c, "payment_failed", &req, func(ctx context.Context, actor models.Actor, number, requestID string) (*models.Order, error) {
		return h.service.RecordPayment(ctx, actor, number, req, requestID)
	})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck() gin.HandlerFunc {
	return httpx.Health("pos-api", func(c *gin.Context) bool {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		return h.service.HealthCheck(ctx)
	})
}

// mutate runs the common path of every order write: actor, optional body,
// timeout, error mapping and the 200 answer with the updated order.
func (h *Handler) mutate(c *gin.Context, action string, body interface{}, fn func(ctx context.Context, actor models.Actor, number, requestID string) (*models.Order, error)) {
	requestID := httpx.RequestID(c)
	actor, err := httpx.Actor(c)
	if err != nil {
		httpx.WriteError(c, h.logger, action, err)
		return
	}
	if body != nil {
		if err := httpx.BindJSON(c, body); err != nil {
			httpx.WriteError(c, h.logger, action, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	order, err := fn(ctx, actor, c.Param("number"), requestID)
	if err != nil {
		httpx.WriteError(c, h.logger, action, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
