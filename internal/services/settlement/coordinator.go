// Package settlement enforces that an order is settled through exactly one
// path, direct payment or a split bill, and performs the final write-back to
// PAID. Cancellation also runs through here so an ACTIVE split bill and the
// kitchen ticket are frozen with the order.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/events"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/store"
)

// Payment is what a cashier submits for a direct or split payment
type Payment struct {
	Method         string          `json:"method"`
	TransactionRef string          `json:"transaction_ref"`
	Amount         decimal.Decimal `json:"amount"`
}

// Details validates the payment against the amount due and stamps it.
// A zero Amount means "exactly the amount due".
func (p Payment) Details(due decimal.Decimal, actor models.Actor, now time.Time) (models.PaymentDetails, error) {
	method, err := models.ParsePaymentMethod(p.Method)
	if err != nil {
		return models.PaymentDetails{}, err
	}
	ref := strings.TrimSpace(p.TransactionRef)
	if method != models.PaymentCash && ref == "" {
		return models.PaymentDetails{}, models.NewValidationError("transaction_ref", "required for %s payments", method)
	}
	amount := p.Amount
	if amount.IsZero() {
		amount = due
	}
	if !models.Round2(amount).Equal(models.Round2(due)) {
		return models.PaymentDetails{}, models.NewValidationError("amount", "must equal the amount due %s", due.StringFixed(2))
	}
	return models.PaymentDetails{
		Method:         method,
		TransactionRef: ref,
		Amount:         models.Round2(due),
		PaidAt:         now.UTC(),
		PaidBy:         actor.String(),
	}, nil
}

type Coordinator struct {
	store      store.Store
	dispatcher *events.Dispatcher
	logger     *logger.Logger
	now        func() time.Time
}

func NewCoordinator(s store.Store, d *events.Dispatcher, log *logger.Logger) *Coordinator {
	return &Coordinator{store: s, dispatcher: d, logger: log, now: time.Now}
}

// SetClock replaces the time source
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// EnsureSplitAllowed rejects a new split bill when the order is already on the
// direct payment path, already split, or finished.
func (c *Coordinator) EnsureSplitAllowed(order *models.Order) error {
	switch {
	case order.Status == models.StatusPaid:
		return fmt.Errorf("order %s: %w", order.Number, models.ErrAlreadySettled)
	case order.Status == models.StatusCancelled:
		return fmt.Errorf("order %s is cancelled: %w", order.Number, models.ErrInvalidState)
	case order.Payment != nil:
		return fmt.Errorf("order %s: %w", order.Number, models.ErrDirectPaymentInProgress)
	case order.HasActiveSplit:
		return fmt.Errorf("order %s has split %s: %w", order.Number, order.ActiveSplitID, models.ErrSplitInProgress)
	}
	return nil
}

// ensureDirectPaymentAllowed checks the order flag and the split bill table
// so a stale flag can never let both paths through.
func (c *Coordinator) ensureDirectPaymentAllowed(ctx context.Context, tx store.Tx, order *models.Order) error {
	switch {
	case order.Status == models.StatusPaid:
		return fmt.Errorf("order %s: %w", order.Number, models.ErrAlreadySettled)
	case order.Status == models.StatusCancelled:
		return fmt.Errorf("order %s is cancelled: %w", order.Number, models.ErrInvalidState)
	case order.HasActiveSplit:
		return fmt.Errorf("order %s: %w", order.Number, models.ErrSplitInProgress)
	}
	_, err := tx.GetActiveSplitBill(ctx, order.Number)
	if err == nil {
		return fmt.Errorf("order %s: %w", order.Number, models.ErrSplitInProgress)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	return nil
}

// RecordPayment settles an order directly.
func (c *Coordinator) RecordPayment(ctx context.Context, actor models.Actor, orderNumber string, p Payment, requestID string) (*models.Order, error) {
	var (
		result *models.Order
		evts   []*models.Event
	)
	err := store.Run(ctx, c.store, func(tx store.Tx) error {
		evts = nil
		order, err := tx.GetOrder(ctx, orderNumber)
		if err != nil {
			return err
		}
		if err := c.ensureDirectPaymentAllowed(ctx, tx, order); err != nil {
			return err
		}
		details, err := p.Details(order.PayableAmount, actor, c.now())
		if err != nil {
			return err
		}
		evts, err = c.Settle(ctx, tx, order, details, actor, "direct payment")
		if err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("order_settled", fmt.Sprintf("Order %s paid directly", orderNumber), requestID, map[string]interface{}{
		"order_number": orderNumber,
		"amount":       result.PayableAmount.StringFixed(2),
		"method":       string(result.Payment.Method),
		"actor":        actor.String(),
	})
	c.dispatcher.Publish(requestID, evts...)
	return result, nil
}

// Settle promotes the order and its ticket to PAID inside tx. Callers run it
// as the last step of their unit of work.
func (c *Coordinator) Settle(ctx context.Context, tx store.Tx, order *models.Order, payment models.PaymentDetails, actor models.Actor, notes string) ([]*models.Event, error) {
	from := order.Status
	if err := order.MarkPaid(payment); err != nil {
		return nil, err
	}
	if err := tx.SaveOrder(ctx, order); err != nil {
		return nil, err
	}
	if err := c.SyncTicket(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.AppendStatusLog(ctx, store.StatusLogEntry{
		OrderNumber: order.Number,
		Status:      string(models.StatusPaid),
		ChangedBy:   actor.String(),
		Notes:       notes,
		ChangedAt:   c.now().UTC(),
	}); err != nil {
		return nil, err
	}

	settled := models.NewEvent(models.EventOrderSettled, order.Number, actor)
	settled.TicketNumber = order.TicketNumber
	settled.Tables = order.Tables
	amount := payment.Amount
	settled.Amount = &amount
	return []*models.Event{
		models.NewStatusChangedEvent(order.Number, from, models.StatusPaid, actor),
		settled,
	}, nil
}

// Cancel moves the order to CANCELLED, supersedes any ACTIVE split bill and
// freezes the kitchen ticket, all inside tx.
func (c *Coordinator) Cancel(ctx context.Context, tx store.Tx, order *models.Order, actor models.Actor, notes string) ([]*models.Event, error) {
	from := order.Status
	if err := order.SetStatus(models.StatusCancelled); err != nil {
		return nil, err
	}

	bill, err := tx.GetActiveSplitBill(ctx, order.Number)
	switch {
	case err == nil:
		bill.Status = models.SplitBillSuperseded
		if err := tx.SaveSplitBill(ctx, bill); err != nil {
			return nil, err
		}
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}
	order.HasActiveSplit = false
	order.ActiveSplitID = ""

	if err := tx.SaveOrder(ctx, order); err != nil {
		return nil, err
	}
	if err := c.SyncTicket(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.AppendStatusLog(ctx, store.StatusLogEntry{
		OrderNumber: order.Number,
		Status:      string(models.StatusCancelled),
		ChangedBy:   actor.String(),
		Notes:       notes,
		ChangedAt:   c.now().UTC(),
	}); err != nil {
		return nil, err
	}

	cancelled := models.NewEvent(models.EventOrderCancelled, order.Number, actor)
	cancelled.TicketNumber = order.TicketNumber
	cancelled.Tables = order.Tables
	return []*models.Event{
		models.NewStatusChangedEvent(order.Number, from, models.StatusCancelled, actor),
		cancelled,
	}, nil
}

// SyncTicket mirrors the order status onto its kitchen ticket. Cancelled and
// paid tickets are frozen and left alone.
func (c *Coordinator) SyncTicket(ctx context.Context, tx store.Tx, order *models.Order) error {
	if order.TicketNumber == "" {
		return nil
	}
	ticket, err := tx.GetTicket(ctx, order.TicketNumber)
	if err != nil {
		return err
	}
	next := models.TicketStatusFor(order.Status)
	if ticket.Status.IsFrozen() || ticket.Status == next {
		return nil
	}
	ticket.Status = next
	return tx.SaveTicket(ctx, ticket)
}
