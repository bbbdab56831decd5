// Package store persists the order, kitchen ticket and split bill aggregates.
// Every write is checked against the version the caller read; a mismatch is
// reported as models.ErrConflict.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"restaurant-pos/internal/models"
)

// Sequence kinds for human readable numbers
const (
	SeqOrder  = "order"
	SeqTicket = "ticket"
)

// StatusLogEntry is one row of an order's status history
type StatusLogEntry struct {
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	ChangedBy   string    `json:"changed_by"`
	Notes       string    `json:"notes,omitempty"`
	ChangedAt   time.Time `json:"timestamp"`
}

// Tx is the unit of work handed to Store.Atomic. Reads return private copies;
// saves with Version == 0 insert, any other version must match the stored one.
// A successful save bumps the aggregate's Version in place.
type Tx interface {
	GetOrder(ctx context.Context, number string) (*models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order) error

	GetTicket(ctx context.Context, number string) (*models.KitchenTicket, error)
	GetTicketByOrder(ctx context.Context, orderNumber string) (*models.KitchenTicket, error)
	ListActiveTickets(ctx context.Context) ([]*models.KitchenTicket, error)
	SaveTicket(ctx context.Context, ticket *models.KitchenTicket) error

	GetSplitBill(ctx context.Context, id uuid.UUID) (*models.SplitBill, error)
	GetSplitBillBySplit(ctx context.Context, splitID uuid.UUID) (*models.SplitBill, error)
	GetActiveSplitBill(ctx context.Context, orderNumber string) (*models.SplitBill, error)
	SaveSplitBill(ctx context.Context, bill *models.SplitBill) error

	AppendStatusLog(ctx context.Context, entry StatusLogEntry) error
	StatusHistory(ctx context.Context, orderNumber string) ([]StatusLogEntry, error)

	NextSequence(ctx context.Context, kind string, day time.Time) (int, error)
}

// Store runs units of work atomically: either every save in fn is applied or none.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

// Run executes fn atomically and retries exactly once on a version conflict.
// fn must be safe to call twice.
func Run(ctx context.Context, s Store, fn func(tx Tx) error) error {
	err := s.Atomic(ctx, fn)
	if err == nil || !models.IsRetryable(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(err, ctxErr)
	}
	return s.Atomic(ctx, fn)
}
