// Package kitchen exposes the kitchen ticket: per-item preparation
// transitions, the ticket view with live timers and the active board.
package kitchen

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"restaurant-pos/internal/events"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/store"
)

// ItemView is one kitchen-routed line item as the kitchen display shows it
type ItemView struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"name"`
	Variation string            `json:"variation"`
	AddOns    []string          `json:"add_ons,omitempty"`
	Quantity  int               `json:"quantity"`
	Extra     bool              `json:"extra"`
	Status    models.ItemStatus `json:"status"`
	StartedAt *time.Time        `json:"started_at,omitempty"`
	ReadyAt   *time.Time        `json:"ready_at,omitempty"`
	ServedAt  *time.Time        `json:"served_at,omitempty"`
	Timer     *models.ItemTimer `json:"timer,omitempty"`
}

// TicketView is a kitchen ticket with its priority computed at read time
type TicketView struct {
	Number             string              `json:"ticket_number"`
	OrderNumber        string              `json:"order_number"`
	Tables             []string            `json:"tables,omitempty"`
	Status             models.TicketStatus `json:"status"`
	Priority           models.Priority     `json:"priority"`
	WorstRatio         float64             `json:"worst_ratio"`
	Items              []ItemView          `json:"items"`
	ReadyForSettlement bool                `json:"ready_for_settlement"`
	CreatedAt          time.Time           `json:"created_at"`
}

type Service struct {
	store      store.Store
	dispatcher *events.Dispatcher
	logger     *logger.Logger
	now        func() time.Time
}

func NewService(s store.Store, d *events.Dispatcher, log *logger.Logger) *Service {
	return &Service{store: s, dispatcher: d, logger: log, now: time.Now}
}

// SetClock replaces the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// AdvanceItem moves one item of the ticket a single step forward. Items are
// addressed by id. Re-accepting a PREPARING item changes nothing.
func (s *Service) AdvanceItem(ctx context.Context, actor models.Actor, ticketNumber string, itemID uuid.UUID, status string, requestID string) (*TicketView, error) {
	to, err := models.ParseItemStatus(status)
	if err != nil {
		return nil, err
	}

	var (
		view    *TicketView
		evts    []*models.Event
		changed bool
	)
	err = store.Run(ctx, s.store, func(tx store.Tx) error {
		evts = nil
		ticket, err := tx.GetTicket(ctx, ticketNumber)
		if err != nil {
			return err
		}
		if ticket.Status.IsFrozen() {
			return fmt.Errorf("ticket %s is %s: %w", ticketNumber, ticket.Status, models.ErrInvalidState)
		}
		if !ticket.HasItem(itemID) {
			return fmt.Errorf("item %s on ticket %s: %w", itemID, ticketNumber, models.ErrNotFound)
		}

		order, err := tx.GetOrder(ctx, ticket.OrderNumber)
		if err != nil {
			return err
		}
		if err := order.EnsureMutable(); err != nil {
			return err
		}
		item, ok := order.FindItem(itemID)
		if !ok {
			return fmt.Errorf("item %s on order %s: %w", itemID, order.Number, models.ErrNotFound)
		}

		now := s.now().UTC()
		changed, err = item.Advance(to, now)
		if err != nil {
			return err
		}
		if changed {
			if err := tx.SaveOrder(ctx, order); err != nil {
				return err
			}
		}
		if changed && to == models.ItemReady {
			e := models.NewEvent(models.EventItemReady, order.Number, actor)
			e.TicketNumber = ticket.Number
			e.Tables = ticket.Tables
			e.ItemID = item.ID.String()
			e.ItemName = item.Name
			evts = append(evts, e)
		}
		view = buildView(ticket, order, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info("item_advanced", fmt.Sprintf("Item %s on ticket %s is %s", itemID, ticketNumber, to), requestID, map[string]interface{}{
			"ticket_number": ticketNumber,
			"item_id":       itemID.String(),
			"status":        string(to),
			"priority":      string(view.Priority),
			"actor":         actor.String(),
		})
	} else {
		s.logger.Debug("item_already_preparing", "Item already accepted", requestID, map[string]interface{}{
			"ticket_number": ticketNumber,
			"item_id":       itemID.String(),
		})
	}
	s.dispatcher.Publish(requestID, evts...)
	return view, nil
}

// GetTicket returns the ticket view, priority recomputed from the clock
func (s *Service) GetTicket(ctx context.Context, ticketNumber string) (*TicketView, error) {
	var view *TicketView
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		ticket, err := tx.GetTicket(ctx, ticketNumber)
		if err != nil {
			return err
		}
		order, err := tx.GetOrder(ctx, ticket.OrderNumber)
		if err != nil {
			return err
		}
		view = buildView(ticket, order, s.now())
		return nil
	})
	return view, err
}

// ActiveBoard lists tickets still in the kitchen, most urgent first and
// oldest first within a priority.
func (s *Service) ActiveBoard(ctx context.Context) ([]*TicketView, error) {
	var board []*TicketView
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		tickets, err := tx.ListActiveTickets(ctx)
		if err != nil {
			return err
		}
		now := s.now()
		board = make([]*TicketView, 0, len(tickets))
		for _, ticket := range tickets {
			order, err := tx.GetOrder(ctx, ticket.OrderNumber)
			if err != nil {
				return err
			}
			board = append(board, buildView(ticket, order, now))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(board, func(i, j int) bool {
		pi, pj := board[i].Priority.Rank(), board[j].Priority.Rank()
		if pi != pj {
			return pi > pj
		}
		return board[i].CreatedAt.Before(board[j].CreatedAt)
	})
	return board, nil
}

func buildView(ticket *models.KitchenTicket, order *models.Order, now time.Time) *TicketView {
	view := &TicketView{
		Number:      ticket.Number,
		OrderNumber: ticket.OrderNumber,
		Tables:      ticket.Tables,
		Status:      ticket.Status,
		Items:       []ItemView{},
		CreatedAt:   ticket.CreatedAt,
	}

	var routed []*models.LineItem
	served := 0
	for _, entry := range ticket.Entries {
		item, ok := order.FindItem(entry.ItemID)
		if !ok || item.Voided {
			continue
		}
		routed = append(routed, item)
		if item.Status == models.ItemServed {
			served++
		}

		addOns := make([]string, 0, len(item.AddOns))
		for _, a := range item.AddOns {
			addOns = append(addOns, a.Name)
		}
		view.Items = append(view.Items, ItemView{
			ID:        item.ID,
			Name:      item.Name,
			Variation: item.Variation.Name,
			AddOns:    addOns,
			Quantity:  item.Quantity,
			Extra:     entry.Extra,
			Status:    item.Status,
			StartedAt: item.StartedAt,
			ReadyAt:   item.ReadyAt,
			ServedAt:  item.ServedAt,
			Timer:     item.Timer(now),
		})
	}

	view.Priority, view.WorstRatio = models.TicketPriority(routed, now)
	view.ReadyForSettlement = len(routed) > 0 && served == len(routed)
	return view
}
