package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"restaurant-pos/internal/database"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
)

const uniqueViolation = "23505"

// Postgres stores each aggregate as a JSONB document next to an
// authoritative version column.
type Postgres struct {
	db     *database.DB
	logger *logger.Logger
}

func NewPostgres(db *database.DB, log *logger.Logger) *Postgres {
	return &Postgres{db: db, logger: log}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *Postgres) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("commit: %w", models.ErrConflict)
		}
		p.logger.Error("tx_commit_failed", "Failed to commit unit of work", "", err, nil)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// scanDoc reads a (version, doc) row into v and returns the stored version.
func scanDoc(row pgx.Row, v interface{}) (int64, error) {
	var (
		version int64
		raw     []byte
	)
	if err := row.Scan(&version, &raw); err != nil {
		return 0, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return 0, fmt.Errorf("failed to decode document: %w", err)
	}
	return version, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

// writeResult turns the outcome of a versioned insert/update into store errors.
func (t *pgTx) writeResult(ctx context.Context, what string, tag pgconn.CommandTag, err error, versionSQL string, key interface{}) error {
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", what, models.ErrConflict)
		}
		return fmt.Errorf("failed to save %s: %w", what, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var stored int64
	if err := t.tx.QueryRow(ctx, versionSQL, key).Scan(&stored); err != nil {
		return notFound(err, what)
	}
	return fmt.Errorf("%s: stale version, found %d: %w", what, stored, models.ErrConflict)
}

func (t *pgTx) GetOrder(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	version, err := scanDoc(t.tx.QueryRow(ctx, database.GetOrderByNumberSQL, number), &order)
	if err != nil {
		return nil, notFound(err, "order "+number)
	}
	order.Version = version
	return &order, nil
}

func (t *pgTx) SaveOrder(ctx context.Context, order *models.Order) error {
	next := *order
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}

	var tag pgconn.CommandTag
	if order.Version == 0 {
		tag, err = t.tx.Exec(ctx, database.InsertOrderSQL,
			next.Number, string(next.Status), next.Totals.Total, next.PayableAmount,
			next.Version, doc, next.CreatedAt, next.UpdatedAt)
	} else {
		tag, err = t.tx.Exec(ctx, database.UpdateOrderSQL,
			next.Number, string(next.Status), next.Totals.Total, next.PayableAmount,
			next.Version, doc, next.UpdatedAt, order.Version)
	}
	if err := t.writeResult(ctx, "order "+order.Number, tag, err, database.OrderVersionSQL, order.Number); err != nil {
		return err
	}

	order.Version = next.Version
	order.UpdatedAt = next.UpdatedAt
	return nil
}

func (t *pgTx) GetTicket(ctx context.Context, number string) (*models.KitchenTicket, error) {
	return t.ticket(ctx, "ticket "+number, database.GetTicketByNumberSQL, number)
}

func (t *pgTx) GetTicketByOrder(ctx context.Context, orderNumber string) (*models.KitchenTicket, error) {
	return t.ticket(ctx, "ticket for order "+orderNumber, database.GetTicketByOrderSQL, orderNumber)
}

func (t *pgTx) ticket(ctx context.Context, what, sql string, key string) (*models.KitchenTicket, error) {
	var ticket models.KitchenTicket
	version, err := scanDoc(t.tx.QueryRow(ctx, sql, key), &ticket)
	if err != nil {
		return nil, notFound(err, what)
	}
	ticket.Version = version
	return &ticket, nil
}

func (t *pgTx) ListActiveTickets(ctx context.Context) ([]*models.KitchenTicket, error) {
	rows, err := t.tx.Query(ctx, database.ListActiveTicketsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*models.KitchenTicket
	for rows.Next() {
		var ticket models.KitchenTicket
		version, err := scanDoc(rows, &ticket)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		ticket.Version = version
		tickets = append(tickets, &ticket)
	}
	return tickets, rows.Err()
}

func (t *pgTx) SaveTicket(ctx context.Context, ticket *models.KitchenTicket) error {
	next := *ticket
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to encode ticket: %w", err)
	}

	var tag pgconn.CommandTag
	if ticket.Version == 0 {
		tag, err = t.tx.Exec(ctx, database.InsertTicketSQL,
			next.Number, next.OrderNumber, string(next.Status), next.Version, doc, next.CreatedAt, next.UpdatedAt)
	} else {
		tag, err = t.tx.Exec(ctx, database.UpdateTicketSQL,
			next.Number, string(next.Status), next.Version, doc, next.UpdatedAt, ticket.Version)
	}
	if err := t.writeResult(ctx, "ticket "+ticket.Number, tag, err, database.TicketVersionSQL, ticket.Number); err != nil {
		return err
	}

	ticket.Version = next.Version
	ticket.UpdatedAt = next.UpdatedAt
	return nil
}

func (t *pgTx) GetSplitBill(ctx context.Context, id uuid.UUID) (*models.SplitBill, error) {
	return t.splitBill(ctx, "split bill "+id.String(), database.GetSplitBillByIDSQL, id)
}

func (t *pgTx) GetSplitBillBySplit(ctx context.Context, splitID uuid.UUID) (*models.SplitBill, error) {
	return t.splitBill(ctx, "split "+splitID.String(), database.GetSplitBillBySplitSQL, splitID.String())
}

func (t *pgTx) GetActiveSplitBill(ctx context.Context, orderNumber string) (*models.SplitBill, error) {
	return t.splitBill(ctx, "active split for order "+orderNumber, database.GetActiveSplitBillSQL, orderNumber)
}

func (t *pgTx) splitBill(ctx context.Context, what, sql string, key interface{}) (*models.SplitBill, error) {
	var bill models.SplitBill
	version, err := scanDoc(t.tx.QueryRow(ctx, sql, key), &bill)
	if err != nil {
		return nil, notFound(err, what)
	}
	bill.Version = version
	return &bill, nil
}

func (t *pgTx) SaveSplitBill(ctx context.Context, bill *models.SplitBill) error {
	next := *bill
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to encode split bill: %w", err)
	}

	var tag pgconn.CommandTag
	if bill.Version == 0 {
		tag, err = t.tx.Exec(ctx, database.InsertSplitBillSQL,
			next.ID, next.OrderNumber, string(next.Status), next.Version, doc, next.CreatedAt, next.UpdatedAt)
	} else {
		tag, err = t.tx.Exec(ctx, database.UpdateSplitBillSQL,
			next.ID, string(next.Status), next.Version, doc, next.UpdatedAt, bill.Version)
	}
	if err := t.writeResult(ctx, "split bill "+bill.ID.String(), tag, err, database.SplitBillVersionSQL, bill.ID); err != nil {
		return err
	}

	bill.Version = next.Version
	bill.UpdatedAt = next.UpdatedAt
	return nil
}

func (t *pgTx) AppendStatusLog(ctx context.Context, entry StatusLogEntry) error {
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx, database.InsertOrderStatusLogSQL,
		entry.OrderNumber, entry.Status, entry.ChangedBy, entry.Notes, entry.ChangedAt)
	if err != nil {
		return fmt.Errorf("failed to insert status log: %w", err)
	}
	return nil
}

func (t *pgTx) StatusHistory(ctx context.Context, orderNumber string) ([]StatusLogEntry, error) {
	rows, err := t.tx.Query(ctx, database.GetOrderStatusHistorySQL, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var history []StatusLogEntry
	for rows.Next() {
		var e StatusLogEntry
		if err := rows.Scan(&e.OrderNumber, &e.Status, &e.ChangedBy, &e.Notes, &e.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status log: %w", err)
		}
		history = append(history, e)
	}
	return history, rows.Err()
}

func (t *pgTx) NextSequence(ctx context.Context, kind string, day time.Time) (int, error) {
	d := day.UTC().Truncate(24 * time.Hour)
	var value int
	if err := t.tx.QueryRow(ctx, database.NextSequenceSQL, kind, d).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to get next %s sequence: %w", kind, err)
	}
	return value, nil
}
