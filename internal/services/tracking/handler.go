package tracking

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"restaurant-pos/internal/httpx"
	"restaurant-pos/internal/logger"
)

// Handler handles HTTP requests for the tracking service
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new tracking handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// Register mounts the read-only order routes
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/orders/:number/status", h.GetOrderStatus)
	r.GET("/orders/:number/history", h.GetOrderHistory)
}

// GetOrderStatus handles GET /orders/:number/status
func (h *Handler) GetOrderStatus(c *gin.Context) {
	requestID := httpx.RequestID(c)
	orderNumber := c.Param("number")

	h.logger.Debug("request_received", "Get order status request", requestID, map[string]interface{}{
		"order_number": orderNumber,
		"endpoint":     "status",
	})

	status, err := h.service.GetOrderStatus(c.Request.Context(), orderNumber, requestID)
	if err != nil {
		httpx.WriteError(c, h.logger, "db_query_failed", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetOrderHistory handles GET /orders/:number/history
func (h *Handler) GetOrderHistory(c *gin.Context) {
	requestID := httpx.RequestID(c)
	orderNumber := c.Param("number")

	h.logger.Debug("request_received", "Get order history request", requestID, map[string]interface{}{
		"order_number": orderNumber,
		"endpoint":     "history",
	})

	history, err := h.service.GetOrderHistory(c.Request.Context(), orderNumber, requestID)
	if err != nil {
		httpx.WriteError(c, h.logger, "db_query_failed", err)
		return
	}
	c.JSON(http.StatusOK, history)
}
