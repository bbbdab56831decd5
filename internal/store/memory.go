package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"restaurant-pos/internal/models"
)

// Memory is an in-process Store. Units of work are serialized by a mutex and
// operate on deep copies, so a failed unit of work leaves nothing behind.
type Memory struct {
	mu        sync.Mutex
	orders    map[string][]byte
	tickets   map[string][]byte
	bills     map[uuid.UUID][]byte
	history   map[string][]StatusLogEntry
	sequences map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		orders:    make(map[string][]byte),
		tickets:   make(map[string][]byte),
		bills:     make(map[uuid.UUID][]byte),
		history:   make(map[string][]StatusLogEntry),
		sequences: make(map[string]int),
	}
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		m:         m,
		orders:    make(map[string][]byte),
		tickets:   make(map[string][]byte),
		bills:     make(map[uuid.UUID][]byte),
		sequences: make(map[string]int),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// memoryTx stages writes until the unit of work returns successfully
type memoryTx struct {
	m         *Memory
	orders    map[string][]byte
	tickets   map[string][]byte
	bills     map[uuid.UUID][]byte
	history   []StatusLogEntry
	sequences map[string]int
}

func (tx *memoryTx) commit() {
	for k, v := range tx.orders {
		tx.m.orders[k] = v
	}
	for k, v := range tx.tickets {
		tx.m.tickets[k] = v
	}
	for k, v := range tx.bills {
		tx.m.bills[k] = v
	}
	for _, e := range tx.history {
		tx.m.history[e.OrderNumber] = append(tx.m.history[e.OrderNumber], e)
	}
	for k, v := range tx.sequences {
		tx.m.sequences[k] = v
	}
}

func decode[T any](raw []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return &v, nil
}

func (tx *memoryTx) orderDoc(number string) ([]byte, bool) {
	if raw, ok := tx.orders[number]; ok {
		return raw, true
	}
	raw, ok := tx.m.orders[number]
	return raw, ok
}

func (tx *memoryTx) ticketDoc(number string) ([]byte, bool) {
	if raw, ok := tx.tickets[number]; ok {
		return raw, true
	}
	raw, ok := tx.m.tickets[number]
	return raw, ok
}

func (tx *memoryTx) billDoc(id uuid.UUID) ([]byte, bool) {
	if raw, ok := tx.bills[id]; ok {
		return raw, true
	}
	raw, ok := tx.m.bills[id]
	return raw, ok
}

func (tx *memoryTx) GetOrder(_ context.Context, number string) (*models.Order, error) {
	raw, ok := tx.orderDoc(number)
	if !ok {
		return nil, fmt.Errorf("order %s: %w", number, models.ErrNotFound)
	}
	return decode[models.Order](raw)
}

func (tx *memoryTx) SaveOrder(_ context.Context, order *models.Order) error {
	current, exists := tx.orderDoc(order.Number)
	if err := checkVersion("order "+order.Number, current, exists, order.Version); err != nil {
		return err
	}
	next := *order
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}
	tx.orders[order.Number] = raw
	order.Version = next.Version
	order.UpdatedAt = next.UpdatedAt
	return nil
}

func (tx *memoryTx) GetTicket(_ context.Context, number string) (*models.KitchenTicket, error) {
	raw, ok := tx.ticketDoc(number)
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", number, models.ErrNotFound)
	}
	return decode[models.KitchenTicket](raw)
}

func (tx *memoryTx) GetTicketByOrder(ctx context.Context, orderNumber string) (*models.KitchenTicket, error) {
	for _, number := range tx.ticketNumbers() {
		t, err := tx.GetTicket(ctx, number)
		if err != nil {
			return nil, err
		}
		if t.OrderNumber == orderNumber {
			return t, nil
		}
	}
	return nil, fmt.Errorf("ticket for order %s: %w", orderNumber, models.ErrNotFound)
}

func (tx *memoryTx) ListActiveTickets(ctx context.Context) ([]*models.KitchenTicket, error) {
	var active []*models.KitchenTicket
	for _, number := range tx.ticketNumbers() {
		t, err := tx.GetTicket(ctx, number)
		if err != nil {
			return nil, err
		}
		if !t.Status.IsHistorical() {
			active = append(active, t)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active, nil
}

func (tx *memoryTx) ticketNumbers() []string {
	seen := make(map[string]struct{}, len(tx.m.tickets)+len(tx.tickets))
	numbers := make([]string, 0, len(seen))
	for k := range tx.m.tickets {
		seen[k] = struct{}{}
		numbers = append(numbers, k)
	}
	for k := range tx.tickets {
		if _, ok := seen[k]; !ok {
			numbers = append(numbers, k)
		}
	}
	sort.Strings(numbers)
	return numbers
}

func (tx *memoryTx) SaveTicket(_ context.Context, ticket *models.KitchenTicket) error {
	current, exists := tx.ticketDoc(ticket.Number)
	if err := checkVersion("ticket "+ticket.Number, current, exists, ticket.Version); err != nil {
		return err
	}
	next := *ticket
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to encode ticket: %w", err)
	}
	tx.tickets[ticket.Number] = raw
	ticket.Version = next.Version
	ticket.UpdatedAt = next.UpdatedAt
	return nil
}

func (tx *memoryTx) GetSplitBill(_ context.Context, id uuid.UUID) (*models.SplitBill, error) {
	raw, ok := tx.billDoc(id)
	if !ok {
		return nil, fmt.Errorf("split bill %s: %w", id, models.ErrNotFound)
	}
	return decode[models.SplitBill](raw)
}

func (tx *memoryTx) allBills() ([]*models.SplitBill, error) {
	ids := make(map[uuid.UUID]struct{})
	for id := range tx.m.bills {
		ids[id] = struct{}{}
	}
	for id := range tx.bills {
		ids[id] = struct{}{}
	}
	out := make([]*models.SplitBill, 0, len(ids))
	for id := range ids {
		raw, _ := tx.billDoc(id)
		b, err := decode[models.SplitBill](raw)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (tx *memoryTx) GetSplitBillBySplit(_ context.Context, splitID uuid.UUID) (*models.SplitBill, error) {
	all, err := tx.allBills()
	if err != nil {
		return nil, err
	}
	for _, b := range all {
		if _, ok := b.FindSplit(splitID); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("split %s: %w", splitID, models.ErrNotFound)
}

func (tx *memoryTx) GetActiveSplitBill(_ context.Context, orderNumber string) (*models.SplitBill, error) {
	all, err := tx.allBills()
	if err != nil {
		return nil, err
	}
	for _, b := range all {
		if b.OrderNumber == orderNumber && b.Status == models.SplitBillActive {
			return b, nil
		}
	}
	return nil, fmt.Errorf("active split for order %s: %w", orderNumber, models.ErrNotFound)
}

func (tx *memoryTx) SaveSplitBill(ctx context.Context, bill *models.SplitBill) error {
	current, exists := tx.billDoc(bill.ID)
	if err := checkVersion("split bill "+bill.ID.String(), current, exists, bill.Version); err != nil {
		return err
	}
	if bill.Status == models.SplitBillActive {
		active, err := tx.GetActiveSplitBill(ctx, bill.OrderNumber)
		if err == nil && active.ID != bill.ID {
			return fmt.Errorf("order %s already has active split %s: %w", bill.OrderNumber, active.ID, models.ErrConflict)
		}
	}
	next := *bill
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to encode split bill: %w", err)
	}
	tx.bills[bill.ID] = raw
	bill.Version = next.Version
	bill.UpdatedAt = next.UpdatedAt
	return nil
}

func (tx *memoryTx) AppendStatusLog(_ context.Context, entry StatusLogEntry) error {
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	tx.history = append(tx.history, entry)
	return nil
}

func (tx *memoryTx) StatusHistory(_ context.Context, orderNumber string) ([]StatusLogEntry, error) {
	var out []StatusLogEntry
	out = append(out, tx.m.history[orderNumber]...)
	for _, e := range tx.history {
		if e.OrderNumber == orderNumber {
			out = append(out, e)
		}
	}
	return out, nil
}

func (tx *memoryTx) NextSequence(_ context.Context, kind string, day time.Time) (int, error) {
	key := kind + ":" + day.UTC().Format("20060102")
	current, ok := tx.sequences[key]
	if !ok {
		current = tx.m.sequences[key]
	}
	current++
	tx.sequences[key] = current
	return current, nil
}

// checkVersion compares the caller's version with the stored document.
func checkVersion(what string, current []byte, exists bool, version int64) error {
	if !exists {
		if version != 0 {
			return fmt.Errorf("%s: %w", what, models.ErrNotFound)
		}
		return nil
	}
	var stored struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(current, &stored); err != nil {
		return fmt.Errorf("failed to decode %s: %w", what, err)
	}
	if stored.Version != version {
		return fmt.Errorf("%s: expected version %d, found %d: %w", what, version, stored.Version, models.ErrConflict)
	}
	return nil
}
