package split

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"restaurant-pos/internal/httpx"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/services/settlement"
)

// Handler serves split bill creation and payment
type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

type equalRequest struct {
	Count        int      `json:"count"`
	Participants []string `json:"participants"`
}

type customRequest struct {
	Assignments []Assignment `json:"assignments"`
}

// Register mounts the split routes
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/orders/:number/splits/equal", h.CreateEqual)
	r.POST("/orders/:number/splits/custom", h.CreateCustom)
	r.GET("/split-bills/:id", h.GetSplitBill)
	r.POST("/splits/:splitID/payment", h.Pay)
}

// CreateEqual handles POST /orders/:number/splits/equal
func (h *Handler) CreateEqual(c *gin.Context) {
	actor, err := httpx.Actor(c)
	if err != nil {
		httpx.WriteError(c, h.logger, "split_failed", err)
		return
	}
	var req equalRequest
	if err := httpx.BindJSON(c, &req); err != nil {
		httpx.WriteError(c, h.logger, "split_failed", err)
		return
	}

	bill, err := h.service.CreateEqualSplit(c.Request.Context(), actor, c.Param("number"), req.Count, req.Participants, httpx.RequestID(c))
	if err != nil {
		httpx.WriteError(c, h.logger, "split_failed", err)
		return
	}
	c.JSON(http.StatusCreated, bill)
}

// CreateCustom handles POST /orders/:number/splits/custom
func (h *Handler) CreateCustom(c *gin.Context) {
	actor, err := httpx.Actor(c)
	if err != nil {
		httpx.WriteError(c, h.logger, "split_failed", err)
		return
	}
	var req customRequest
	if err := httpx.BindJSON(c, &req); err != nil {
		httpx.WriteError(c, h.logger, "split_failed", err)
		return
	}

	bill, err := h.service.CreateCustomSplit(c.Request.Context(), actor, c.Param("number"), req.Assignments, httpx.RequestID(c))
	if err != nil {
		httpx.WriteError(c, h.logger, "split_failed", err)
		return
	}
	c.JSON(http.StatusCreated, bill)
}

// GetSplitBill handles GET /split-bills/:id
func (h *Handler) GetSplitBill(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpx.WriteError(c, h.logger, "split_lookup_failed", models.NewValidationError("id", "not a valid id"))
		return
	}
	bill, err := h.service.GetSplitBill(c.Request.Context(), id)
	if err != nil {
		httpx.WriteError(c, h.logger, "split_lookup_failed", err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

// Pay handles POST /splits/:splitID/payment
func (h *Handler) Pay(c *gin.Context) {
	actor, err := httpx.Actor(c)
	if err != nil {
		httpx.WriteError(c, h.logger, "split_payment_failed", err)
		return
	}
	splitID, err := uuid.Parse(c.Param("splitID"))
	if err != nil {
		httpx.WriteError(c, h.logger, "split_payment_failed", models.NewValidationError("splitID", "not a valid id"))
		return
	}
	var req settlement.Payment
	if err := httpx.BindJSON(c, &req); err != nil {
		httpx.WriteError(c, h.logger, "split_payment_failed", err)
		return
	}

	bill, err := h.service.PayForSplit(c.Request.Context(), actor, splitID, req, httpx.RequestID(c))
	if err != nil {
		httpx.WriteError(c, h.logger, "split_payment_failed", err)
		return
	}
	c.JSON(http.StatusOK, bill)
}
