// Package tracking is the read side of an order's lifecycle: its current
// status and the append-only status log.
package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/store"
)

// StatusResponse summarises where an order stands
type StatusResponse struct {
	OrderNumber    string              `json:"order_number"`
	CurrentStatus  string              `json:"current_status"`
	TicketNumber   string              `json:"ticket_number,omitempty"`
	TicketStatus   models.TicketStatus `json:"ticket_status,omitempty"`
	PayableAmount  decimal.Decimal     `json:"payable_amount"`
	HasActiveSplit bool                `json:"has_active_split"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// Service provides tracking functionality
type Service struct {
	store  store.Store
	logger *logger.Logger
}

// NewService creates a new tracking service
func NewService(s store.Store, log *logger.Logger) *Service {
	return &Service{
		store:  s,
		logger: log,
	}
}

// GetOrderStatus retrieves the current status of an order and its ticket
func (s *Service) GetOrderStatus(ctx context.Context, orderNumber, requestID string) (*StatusResponse, error) {
	var resp *StatusResponse
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		order, err := tx.GetOrder(ctx, orderNumber)
		if err != nil {
			return err
		}
		resp = &StatusResponse{
			OrderNumber:    order.Number,
			CurrentStatus:  string(order.Status),
			TicketNumber:   order.TicketNumber,
			PayableAmount:  order.PayableAmount,
			HasActiveSplit: order.HasActiveSplit,
			UpdatedAt:      order.UpdatedAt,
		}
		if order.TicketNumber == "" {
			return nil
		}
		ticket, err := tx.GetTicket(ctx, order.TicketNumber)
		if err != nil {
			return err
		}
		resp.TicketStatus = ticket.Status
		return nil
	})
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("db_query_failed", "Failed to query order status", requestID, err, map[string]interface{}{
			"order_number": orderNumber,
		})
	}
	return resp, err
}

// GetOrderHistory retrieves the complete status history of an order, oldest first
func (s *Service) GetOrderHistory(ctx context.Context, orderNumber, requestID string) ([]store.StatusLogEntry, error) {
	var history []store.StatusLogEntry
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		// First check if order exists
		if _, err := tx.GetOrder(ctx, orderNumber); err != nil {
			return err
		}
		var err error
		history, err = tx.StatusHistory(ctx, orderNumber)
		return err
	})
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("db_query_failed", "Failed to query order history", requestID, err, map[string]interface{}{
				"order_number": orderNumber,
			})
		}
		return nil, err
	}
	if history == nil {
		history = []store.StatusLogEntry{}
	}
	return history, nil
}
