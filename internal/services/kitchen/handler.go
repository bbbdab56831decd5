package kitchen

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"restaurant-pos/internal/httpx"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
)

// Handler serves the kitchen display
type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

type advanceRequest struct {
	Status string `json:"status"`
}

// Register mounts the kitchen routes
func (h *Handler) Register(r gin.IRouter) {
	tickets := r.Group("/kitchen/tickets")
	{
		tickets.GET("", h.ActiveBoard)
		tickets.GET("/:number", h.GetTicket)
		tickets.PUT("/:number/items/:itemID", h.AdvanceItem)
	}
}

// ActiveBoard handles GET /kitchen/tickets
func (h *Handler) ActiveBoard(c *gin.Context) {
	board, err := h.service.ActiveBoard(c.Request.Context())
	if err != nil {
		httpx.WriteError(c, h.logger, "board_query_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": board, "total": len(board)})
}

// GetTicket handles GET /kitchen/tickets/:number
func (h *Handler) GetTicket(c *gin.Context) {
	view, err := h.service.GetTicket(c.Request.Context(), c.Param("number"))
	if err != nil {
		httpx.WriteError(c, h.logger, "ticket_lookup_failed", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// AdvanceItem handles PUT /kitchen/tickets/:number/items/:itemID
func (h *Handler) AdvanceItem(c *gin.Context) {
	actor, err := httpx.Actor(c)
	if err != nil {
		httpx.WriteError(c, h.logger, "item_advance_failed", err)
		return
	}
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		httpx.WriteError(c, h.logger, "item_advance_failed", models.NewValidationError("itemID", "not a valid id"))
		return
	}
	var req advanceRequest
	if err := httpx.BindJSON(c, &req); err != nil {
		httpx.WriteError(c, h.logger, "item_advance_failed", err)
		return
	}

	view, err := h.service.AdvanceItem(c.Request.Context(), actor, c.Param("number"), itemID, req.Status, httpx.RequestID(c))
	if err != nil {
		httpx.WriteError(c, h.logger, "item_advance_failed", err)
		return
	}
	c.JSON(http.StatusOK, view)
}
