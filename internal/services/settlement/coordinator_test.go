package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/events"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/store"
)

var (
	cashier = models.Actor{ID: "c1", Role: models.RoleCashier}
	paidAt  = time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC)
)

func TestPaymentDetails(t *testing.T) {
	due := decimal.RequireFromString("588")

	tests := []struct {
		name    string
		payment Payment
		wantErr bool
	}{
		{name: "cash for the amount due", payment: Payment{Method: "cash"}},
		{name: "cash with explicit amount", payment: Payment{Method: "cash", Amount: decimal.RequireFromString("588.00")}},
		{name: "card with reference", payment: Payment{Method: "card", TransactionRef: "AUTH-9"}},
		{name: "card without reference", payment: Payment{Method: "card"}, wantErr: true},
		{name: "upi blank reference", payment: Payment{Method: "upi", TransactionRef: "  "}, wantErr: true},
		{name: "short amount", payment: Payment{Method: "cash", Amount: decimal.RequireFromString("500")}, wantErr: true},
		{name: "unknown method", payment: Payment{Method: "cheque"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details, err := tt.payment.Details(due, cashier, paidAt)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.True(t, details.Amount.Equal(due))
			assert.Equal(t, cashier.String(), details.PaidBy)
			assert.Equal(t, paidAt, details.PaidAt)
		})
	}
}

type fixture struct {
	coordinator *Coordinator
	store       *store.Memory
	recorder    *events.Recorder
	dispatcher  *events.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	log := logger.NewNop()
	f := &fixture{store: store.NewMemory(), recorder: &events.Recorder{}}
	f.dispatcher = events.NewDispatcher(f.recorder, log)
	t.Cleanup(f.dispatcher.Close)
	f.coordinator = NewCoordinator(f.store, f.dispatcher, log)
	f.coordinator.SetClock(func() time.Time { return paidAt })
	return f
}

// seed stores a delivered order of 588.00 with a delivered ticket
func (f *fixture) seed(t *testing.T) *models.Order {
	t.Helper()
	order := &models.Order{
		Number:        "ORD_20260314_001",
		TicketNumber:  "KOT_20260314_001",
		Tables:        []string{"T1"},
		Status:        models.StatusDelivered,
		Totals:        models.Totals{Subtotal: decimal.RequireFromString("560"), Total: decimal.RequireFromString("588")},
		PayableAmount: decimal.RequireFromString("588"),
		CreatedAt:     paidAt.Add(-time.Hour),
	}
	ticket := &models.KitchenTicket{
		Number:      order.TicketNumber,
		OrderNumber: order.Number,
		Tables:      order.Tables,
		Status:      models.TicketDelivered,
		CreatedAt:   order.CreatedAt,
	}
	require.NoError(t, f.store.Atomic(context.Background(), func(tx store.Tx) error {
		if err := tx.SaveOrder(context.Background(), order); err != nil {
			return err
		}
		return tx.SaveTicket(context.Background(), ticket)
	}))
	return order
}

func (f *fixture) load(t *testing.T, number string) (*models.Order, *models.KitchenTicket) {
	t.Helper()
	var (
		order  *models.Order
		ticket *models.KitchenTicket
	)
	require.NoError(t, f.store.Atomic(context.Background(), func(tx store.Tx) error {
		var err error
		if order, err = tx.GetOrder(context.Background(), number); err != nil {
			return err
		}
		ticket, err = tx.GetTicket(context.Background(), order.TicketNumber)
		return err
	}))
	return order, ticket
}

func TestRecordPayment_SettlesOrderAndTicket(t *testing.T) {
	f := newFixture(t)
	order := f.seed(t)

	paid, err := f.coordinator.RecordPayment(context.Background(), cashier, order.Number, Payment{Method: "card", TransactionRef: "AUTH-1"}, "req")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, paid.Status)

	stored, ticket := f.load(t, order.Number)
	assert.Equal(t, models.StatusPaid, stored.Status)
	require.NotNil(t, stored.Payment)
	assert.Equal(t, "AUTH-1", stored.Payment.TransactionRef)
	assert.Equal(t, models.TicketPaid, ticket.Status)

	_, err = f.coordinator.RecordPayment(context.Background(), cashier, order.Number, Payment{Method: "cash"}, "req")
	assert.ErrorIs(t, err, models.ErrAlreadySettled)

	f.dispatcher.Wait()
	assert.ElementsMatch(t, []models.EventType{models.EventStatusChanged, models.EventOrderSettled}, f.recorder.Types())
}

func TestRecordPayment_RejectsStaleSplitFlag(t *testing.T) {
	f := newFixture(t)
	order := f.seed(t)

	// the bill exists but the order flag was never set
	bill := &models.SplitBill{
		ID:          uuid.New(),
		OrderNumber: order.Number,
		Mode:        models.SplitEqual,
		Status:      models.SplitBillActive,
		Total:       order.PayableAmount,
		CreatedAt:   paidAt,
	}
	require.NoError(t, f.store.Atomic(context.Background(), func(tx store.Tx) error {
		return tx.SaveSplitBill(context.Background(), bill)
	}))

	_, err := f.coordinator.RecordPayment(context.Background(), cashier, order.Number, Payment{Method: "cash"}, "req")
	assert.ErrorIs(t, err, models.ErrSplitInProgress)

	stored, _ := f.load(t, order.Number)
	assert.Equal(t, models.StatusDelivered, stored.Status)
	assert.Nil(t, stored.Payment)
}

func TestEnsureSplitAllowed(t *testing.T) {
	c := newFixture(t).coordinator

	tests := []struct {
		name    string
		order   models.Order
		wantErr error
	}{
		{name: "open order", order: models.Order{Status: models.StatusReady}},
		{name: "paid", order: models.Order{Status: models.StatusPaid}, wantErr: models.ErrAlreadySettled},
		{name: "cancelled", order: models.Order{Status: models.StatusCancelled}, wantErr: models.ErrInvalidState},
		{name: "payment recorded", order: models.Order{Status: models.StatusDelivered, Payment: &models.PaymentDetails{Method: models.PaymentCash}}, wantErr: models.ErrDirectPaymentInProgress},
		{name: "already split", order: models.Order{Status: models.StatusDelivered, HasActiveSplit: true}, wantErr: models.ErrSplitInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.EnsureSplitAllowed(&tt.order)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCancel_FreezesTicket(t *testing.T) {
	f := newFixture(t)
	order := f.seed(t)
	ctx := context.Background()

	var evts []*models.Event
	require.NoError(t, f.store.Atomic(ctx, func(tx store.Tx) error {
		current, err := tx.GetOrder(ctx, order.Number)
		if err != nil {
			return err
		}
		evts, err = f.coordinator.Cancel(ctx, tx, current, cashier, "guest left")
		return err
	}))

	stored, ticket := f.load(t, order.Number)
	assert.Equal(t, models.StatusCancelled, stored.Status)
	assert.Equal(t, models.TicketCancelled, ticket.Status)
	require.Len(t, evts, 2)
	assert.Equal(t, models.EventOrderCancelled, evts[1].Type)

	_, err := f.coordinator.RecordPayment(ctx, cashier, order.Number, Payment{Method: "cash"}, "req")
	assert.ErrorIs(t, err, models.ErrInvalidState)
}
