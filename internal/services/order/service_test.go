package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/catalog"
	"restaurant-pos/internal/events"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/loyalty"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/promotions"
	"restaurant-pos/internal/seating"
	"restaurant-pos/internal/services/kitchen"
	"restaurant-pos/internal/services/pricing"
	"restaurant-pos/internal/services/settlement"
	"restaurant-pos/internal/store"
)

type promotionsMock struct {
	mock.Mock
}

func (m *promotionsMock) Validate(_ context.Context, code string, _ decimal.Decimal) (*promotions.Coupon, error) {
	args := m.Called(code)
	if c, ok := args.Get(0).(*promotions.Coupon); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *promotionsMock) Release(_ context.Context, code, orderNumber string) error {
	return m.Called(code, orderNumber).Error(0)
}

type loyaltyMock struct {
	mock.Mock
}

func (m *loyaltyMock) Balance(_ context.Context, customerID string) (*loyalty.Balance, error) {
	args := m.Called(customerID)
	if b, ok := args.Get(0).(*loyalty.Balance); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *loyaltyMock) Redeem(_ context.Context, customerID string, points int64, orderNumber string) error {
	return m.Called(customerID, points, orderNumber).Error(0)
}

func (m *loyaltyMock) Reverse(_ context.Context, customerID, orderNumber string) error {
	return m.Called(customerID, orderNumber).Error(0)
}

var (
	waiter  = models.Actor{ID: "w1", Role: models.RoleWaiter}
	cashier = models.Actor{ID: "c1", Role: models.RoleCashier}
	fixedAt = time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	svc        *Service
	store      *store.Memory
	promotions *promotionsMock
	loyalty    *loyaltyMock
	recorder   *events.Recorder
	dispatcher *events.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNop()
	mem := store.NewMemory()
	rec := &events.Recorder{}
	dispatcher := events.NewDispatcher(rec, log)
	t.Cleanup(dispatcher.Close)
	coordinator := settlement.NewCoordinator(mem, dispatcher, log)
	coordinator.SetClock(func() time.Time { return fixedAt })

	f := &fixture{
		store:      mem,
		promotions: &promotionsMock{},
		loyalty:    &loyaltyMock{},
		recorder:   rec,
		dispatcher: dispatcher,
	}
	f.svc = NewService(Deps{
		Store: mem,
		Catalog: catalog.Static{
			"pizza": {
				ID: "pizza", Name: "Margherita", TargetPrepTime: 10 * time.Minute, KitchenRouted: true,
				Variations: []models.Variation{{Name: "Regular", Price: dec("250")}},
				AddOns:     []models.AddOn{{Name: "Olives", Price: dec("30")}},
			},
			"soda": {
				ID: "soda", Name: "Soda",
				Variations: []models.Variation{{Name: "Can", Price: dec("60")}},
			},
		},
		Promotions:  f.promotions,
		Loyalty:     f.loyalty,
		Seating:     seating.Static{"T1": 4, "T2": 2},
		Coordinator: coordinator,
		Dispatcher:  dispatcher,
		Rates:       pricing.DefaultRates,
		Logger:      log,
	})
	f.svc.SetClock(func() time.Time { return fixedAt })
	return f
}

func (f *fixture) create(t *testing.T, req *CreateOrderRequest) *models.Order {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), waiter, req, "req")
	require.NoError(t, err)
	return order
}

func pizzas(qty int) *CreateOrderRequest {
	return &CreateOrderRequest{
		Tables: []string{"T1"},
		Guests: 2,
		Items:  []ItemRequest{{MenuItemID: "pizza", Quantity: qty}},
	}
}

func (f *fixture) ticket(t *testing.T, number string) *models.KitchenTicket {
	t.Helper()
	var ticket *models.KitchenTicket
	require.NoError(t, f.store.Atomic(context.Background(), func(tx store.Tx) error {
		var err error
		ticket, err = tx.GetTicket(context.Background(), number)
		return err
	}))
	return ticket
}

func (f *fixture) activateSplit(t *testing.T, orderNumber string) *models.SplitBill {
	t.Helper()
	bill := &models.SplitBill{ID: uuid.New(), OrderNumber: orderNumber, Mode: models.SplitEqual, Status: models.SplitBillActive}
	require.NoError(t, f.store.Atomic(context.Background(), func(tx store.Tx) error {
		order, err := tx.GetOrder(context.Background(), orderNumber)
		if err != nil {
			return err
		}
		order.HasActiveSplit = true
		order.ActiveSplitID = bill.ID.String()
		if err := tx.SaveOrder(context.Background(), order); err != nil {
			return err
		}
		return tx.SaveSplitBill(context.Background(), bill)
	}))
	return bill
}

func TestCreateOrder_PricesAndAllocatesTicket(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, &CreateOrderRequest{
		Tables: []string{"T1"},
		Guests: 3,
		Items: []ItemRequest{
			{MenuItemID: "pizza", Quantity: 2},
			{MenuItemID: "soda", Quantity: 1},
		},
	})

	assert.Equal(t, "ORD_20260314_001", order.Number)
	assert.Equal(t, "KOT_20260314_001", order.TicketNumber)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.True(t, order.Totals.Subtotal.Equal(dec("560")))
	assert.True(t, order.Totals.TaxA.Equal(dec("14")))
	assert.True(t, order.Totals.Total.Equal(dec("588")))
	assert.True(t, order.PayableAmount.Equal(order.Totals.Total))

	ticket := f.ticket(t, order.TicketNumber)
	require.Len(t, ticket.Entries, 1, "only kitchen routed items reach the ticket")
	assert.Equal(t, order.Items[0].ID, ticket.Entries[0].ItemID)
	assert.Equal(t, models.TicketPending, ticket.Status)

	f.dispatcher.Wait()
	assert.Equal(t, []models.EventType{models.EventTicketCreated}, f.recorder.Types())
}

func TestCreateOrder_WithoutKitchenItems(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, &CreateOrderRequest{Items: []ItemRequest{{MenuItemID: "soda", Quantity: 2}}})

	assert.Empty(t, order.TicketNumber)
	f.dispatcher.Wait()
	assert.Empty(t, f.recorder.Events())
}

func TestCreateOrder_Rejections(t *testing.T) {
	tests := []struct {
		name string
		req  *CreateOrderRequest
	}{
		{"no items", &CreateOrderRequest{}},
		{"zero quantity", &CreateOrderRequest{Items: []ItemRequest{{MenuItemID: "pizza", Quantity: 0}}}},
		{"unknown menu item", &CreateOrderRequest{Items: []ItemRequest{{MenuItemID: "sushi", Quantity: 1}}}},
		{"unknown variation", &CreateOrderRequest{Items: []ItemRequest{{MenuItemID: "pizza", Variation: "Family", Quantity: 1}}}},
		{"too many guests", &CreateOrderRequest{Tables: []string{"T2"}, Guests: 3, Items: []ItemRequest{{MenuItemID: "pizza", Quantity: 1}}}},
		{"unknown table", &CreateOrderRequest{Tables: []string{"T9"}, Guests: 1, Items: []ItemRequest{{MenuItemID: "pizza", Quantity: 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CreateOrder(context.Background(), waiter, tt.req, "req")
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestCreateOrder_MergedTablesSeatMoreGuests(t *testing.T) {
	f := newFixture(t)
	req := pizzas(1)
	req.Tables = []string{"T1", "T2"}
	req.Guests = 6

	order := f.create(t, req)
	assert.Equal(t, []string{"T1", "T2"}, order.Tables)
}

func TestCreateOrder_TenPercentCoupon(t *testing.T) {
	f := newFixture(t)
	f.promotions.On("Validate", "TEN").Return(&promotions.Coupon{Code: "TEN", Percent: dec("10")}, nil).Once()

	req := pizzas(2)
	req.CouponCode = "TEN"
	order := f.create(t, req)

	assert.True(t, order.Totals.Subtotal.Equal(dec("500")))
	assert.True(t, order.Totals.Discount.Equal(dec("50")))
	assert.True(t, order.Totals.Taxable.Equal(dec("450")))
	assert.True(t, order.Totals.TaxA.Equal(dec("11.25")))
	assert.True(t, order.Totals.TaxB.Equal(dec("11.25")))
	assert.True(t, order.Totals.Total.Equal(dec("472.5")))
	require.NotNil(t, order.Discount)
	assert.Equal(t, "TEN", order.Discount.Code)
	f.promotions.AssertExpectations(t)
}

func TestCreateOrder_PromotionsDownPlacesOrderWithoutCoupon(t *testing.T) {
	f := newFixture(t)
	f.promotions.On("Validate", "TEN").Return(nil, models.ErrExternalService).Once()

	req := pizzas(2)
	req.CouponCode = "TEN"
	order := f.create(t, req)

	assert.Nil(t, order.Discount)
	assert.True(t, order.Totals.Total.Equal(dec("525")))
}

func TestApplyCoupon_ExclusiveWithManualDiscount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, pizzas(2))

	_, err := f.svc.ApplyDiscount(ctx, waiter, order.Number, dec("20"), "req")
	require.NoError(t, err)

	_, err = f.svc.ApplyCoupon(ctx, waiter, order.Number, "TEN", "req")
	assert.ErrorIs(t, err, models.ErrInvalidState)
	f.promotions.AssertNotCalled(t, "Validate", "TEN")

	got, err := f.svc.RemoveDiscount(ctx, waiter, order.Number, "req")
	require.NoError(t, err)
	assert.True(t, got.Totals.Total.Equal(dec("525")))

	f.promotions.On("Validate", "TEN").Return(&promotions.Coupon{Code: "TEN", Percent: dec("10")}, nil).Once()
	got, err = f.svc.ApplyCoupon(ctx, waiter, order.Number, "TEN", "req")
	require.NoError(t, err)
	assert.True(t, got.Totals.Total.Equal(dec("472.5")))

	_, err = f.svc.ApplyDiscount(ctx, waiter, order.Number, dec("5"), "req")
	assert.ErrorIs(t, err, models.ErrInvalidState)
	_, err = f.svc.ApplyCoupon(ctx, waiter, order.Number, "FIVE", "req")
	assert.ErrorIs(t, err, models.ErrInvalidState, "at most one coupon")
}

func TestApplyCoupon_ExternalFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, pizzas(2))
	f.promotions.On("Validate", "TEN").Return(nil, models.ErrExternalService).Once()

	_, err := f.svc.ApplyCoupon(ctx, waiter, order.Number, "TEN", "req")
	assert.ErrorIs(t, err, models.ErrExternalService)

	got, err := f.svc.GetOrder(ctx, order.Number)
	require.NoError(t, err)
	assert.Nil(t, got.Discount)
	assert.Equal(t, order.Version, got.Version)
}

func TestRemoveCoupon_RepricesFromScratch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.promotions.On("Validate", "FLAT").Return(&promotions.Coupon{Code: "FLAT", Amount: dec("100")}, nil).Once()
	f.promotions.On("Release", "FLAT", mock.Anything).Return(nil).Maybe()

	req := pizzas(2)
	req.CouponCode = "FLAT"
	order := f.create(t, req)
	assert.True(t, order.Totals.Discount.Equal(dec("100")))

	got, err := f.svc.RemoveCoupon(ctx, waiter, order.Number, "req")
	require.NoError(t, err)
	assert.Nil(t, got.Discount)
	assert.True(t, got.Totals.Discount.IsZero())
	assert.True(t, got.Totals.Total.Equal(dec("525")))

	_, err = f.svc.RemoveCoupon(ctx, waiter, order.Number, "req")
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestApplyDiscount_RejectsOutOfRangePercent(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, pizzas(1))

	for _, pct := range []string{"0", "-5", "100.01"} {
		_, err := f.svc.ApplyDiscount(context.Background(), waiter, order.Number, dec(pct), "req")
		assert.ErrorIs(t, err, models.ErrValidation, pct)
	}
}

func TestRedeemLoyalty_CapsPoints(t *testing.T) {
	tests := []struct {
		name        string
		balance     int64
		wantPoints  int64
		wantPayable string
	}{
		{"rate bounds redemption", 1000, 52, "473"},
		{"balance bounds redemption", 10, 10, "515"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			order := f.create(t, pizzas(2))
			require.True(t, order.Totals.Total.Equal(dec("525")))

			f.loyalty.On("Balance", "cust-1").Return(&loyalty.Balance{
				CustomerID: "cust-1", Points: tt.balance, RedeemRate: dec("0.1"), PointValue: dec("1"),
			}, nil)
			f.loyalty.On("Redeem", "cust-1", tt.wantPoints, order.Number).Return(nil).Once()

			got, err := f.svc.RedeemLoyalty(ctx, cashier, order.Number, "cust-1", "req")
			require.NoError(t, err)
			require.NotNil(t, got.Loyalty)
			assert.Equal(t, tt.wantPoints, got.Loyalty.Points)
			assert.True(t, got.PayableAmount.Equal(dec(tt.wantPayable)), got.PayableAmount.String())
			assert.True(t, got.Totals.Total.Equal(dec("525")), "redemption does not change the total")

			_, err = f.svc.RedeemLoyalty(ctx, cashier, order.Number, "cust-1", "req")
			assert.ErrorIs(t, err, models.ErrInvalidState, "one redemption per order")
			f.loyalty.AssertExpectations(t)
		})
	}
}

func TestRedeemLoyalty_ServiceDownWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, pizzas(1))
	f.loyalty.On("Balance", "cust-1").Return(nil, models.ErrExternalService)

	_, err := f.svc.RedeemLoyalty(ctx, cashier, order.Number, "cust-1", "req")
	assert.ErrorIs(t, err, models.ErrExternalService)

	got, err := f.svc.GetOrder(ctx, order.Number)
	require.NoError(t, err)
	assert.Nil(t, got.Loyalty)
	f.loyalty.AssertNotCalled(t, "Redeem", mock.Anything, mock.Anything, mock.Anything)
}

func TestRedeemLoyalty_FreezesPriceLoweringEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, &CreateOrderRequest{Items: []ItemRequest{
		{MenuItemID: "pizza", Quantity: 2},
		{MenuItemID: "soda", Quantity: 1},
	}})
	require.True(t, order.Totals.Total.Equal(dec("588")))

	f.loyalty.On("Balance", "cust-1").Return(&loyalty.Balance{
		CustomerID: "cust-1", Points: 1000, RedeemRate: dec("0.1"), PointValue: dec("1"),
	}, nil)
	f.loyalty.On("Redeem", "cust-1", int64(58), order.Number).Return(nil).Once()
	_, err := f.svc.RedeemLoyalty(ctx, cashier, order.Number, "cust-1", "req")
	require.NoError(t, err)

	_, err = f.svc.ApplyDiscount(ctx, cashier, order.Number, dec("50"), "req")
	assert.ErrorIs(t, err, models.ErrInvalidState)
	_, err = f.svc.ApplyCoupon(ctx, cashier, order.Number, "HALF", "req")
	assert.ErrorIs(t, err, models.ErrInvalidState)
	_, err = f.svc.VoidItem(ctx, waiter, order.Number, order.Items[1].ID, "req")
	assert.ErrorIs(t, err, models.ErrInvalidState)
	f.promotions.AssertNotCalled(t, "Validate", mock.Anything)

	got, err := f.svc.AddItems(ctx, waiter, order.Number, []ItemRequest{{MenuItemID: "soda", Quantity: 1}}, "req")
	require.NoError(t, err)
	limit := got.Totals.Total.Mul(dec("0.1")).Floor().IntPart()
	assert.LessOrEqual(t, got.Loyalty.Points, limit)
	assert.Equal(t, int64(58), got.Loyalty.Points)
}

func TestRedeemLoyalty_ReversesWhenTotalMovesUnderneath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, &CreateOrderRequest{Items: []ItemRequest{
		{MenuItemID: "pizza", Quantity: 2},
		{MenuItemID: "soda", Quantity: 1},
	}})

	f.loyalty.On("Balance", "cust-1").Return(&loyalty.Balance{
		CustomerID: "cust-1", Points: 1000, RedeemRate: dec("0.1"), PointValue: dec("1"),
	}, nil)
	f.loyalty.On("Redeem", "cust-1", int64(58), order.Number).Return(nil).Once().Run(func(mock.Arguments) {
		// a waiter voids the soda while the loyalty service is answering
		_, err := f.svc.VoidItem(ctx, waiter, order.Number, order.Items[1].ID, "req")
		require.NoError(t, err)
	})
	f.loyalty.On("Reverse", "cust-1", order.Number).Return(nil).Once()

	_, err := f.svc.RedeemLoyalty(ctx, cashier, order.Number, "cust-1", "req")
	assert.ErrorIs(t, err, models.ErrConflict)
	f.loyalty.AssertExpectations(t)

	got, err := f.svc.GetOrder(ctx, order.Number)
	require.NoError(t, err)
	assert.Nil(t, got.Loyalty)
	assert.True(t, got.Totals.Total.Equal(dec("525")))
}

func TestAddItems_AppendsExtraEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, pizzas(1))

	got, err := f.svc.AddItems(ctx, waiter, order.Number, []ItemRequest{
		{MenuItemID: "pizza", AddOns: []string{"Olives"}, Quantity: 1},
		{MenuItemID: "soda", Quantity: 1},
	}, "req")
	require.NoError(t, err)

	require.Len(t, got.ExtraItems, 2)
	assert.True(t, got.ExtraItems[0].Extra)
	assert.True(t, got.Totals.Subtotal.Equal(dec("590")))

	ticket := f.ticket(t, order.TicketNumber)
	require.Len(t, ticket.Entries, 2)
	assert.True(t, ticket.Entries[1].Extra)
	assert.Equal(t, got.ExtraItems[0].ID, ticket.Entries[1].ItemID)

	f.dispatcher.Wait()
	assert.Equal(t, []models.EventType{models.EventTicketCreated, models.EventItemsAdded}, f.recorder.Types())
}

func TestAddItems_RacesKitchenProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, pizzas(1))
	pizzaID := order.Items[0].ID
	board := kitchen.NewService(f.store, f.dispatcher, logger.NewNop())
	chef := models.Actor{ID: "k1", Role: models.RoleKitchen}

	const extras = 8
	var wg sync.WaitGroup
	errs := make(chan error, extras+2)
	for i := 0; i < extras; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddItems(ctx, waiter, order.Number, []ItemRequest{{MenuItemID: "pizza", Quantity: 1}}, "req")
			errs <- err
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, status := range []string{"preparing", "ready"} {
			_, err := board.AdvanceItem(ctx, chef, order.TicketNumber, pizzaID, status, "req")
			errs <- err
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := f.svc.GetOrder(ctx, order.Number)
	require.NoError(t, err)
	assert.Len(t, got.ExtraItems, extras)
	assert.True(t, got.Totals.Subtotal.Equal(dec("2250")), got.Totals.Subtotal.String())
	item, ok := got.FindItem(pizzaID)
	require.True(t, ok)
	assert.Equal(t, models.ItemReady, item.Status)
	assert.Len(t, f.ticket(t, order.TicketNumber).Entries, extras+1)
}

func TestAddItems_LateItemsReopenDeliveredTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, pizzas(1))
	for _, status := range []string{"preparing", "ready", "delivered"} {
		_, err := f.svc.SetStatus(ctx, waiter, order.Number, status, "", "req")
		require.NoError(t, err)
	}
	require.Equal(t, models.TicketDelivered, f.ticket(t, order.TicketNumber).Status)

	got, err := f.svc.AddItems(ctx, waiter, order.Number, []ItemRequest{{MenuItemID: "pizza", Quantity: 1}}, "req")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, got.Status, "order status has no backward edge")
	assert.Equal(t, models.TicketPreparing, f.ticket(t, order.TicketNumber).Status)

	board, err := kitchen.NewService(f.store, f.dispatcher, logger.NewNop()).ActiveBoard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, order.TicketNumber, board[0].Number)

	_, err = f.svc.RecordPayment(ctx, cashier, order.Number, settlement.Payment{Method: "cash"}, "req")
	require.NoError(t, err)
	assert.Equal(t, models.TicketPaid, f.ticket(t, order.TicketNumber).Status)
}

func TestAddItems_CreatesTicketWhenMissing(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, &CreateOrderRequest{Items: []ItemRequest{{MenuItemID: "soda", Quantity: 1}}})

	got, err := f.svc.AddItems(context.Background(), waiter, order.Number, []ItemRequest{{MenuItemID: "pizza", Quantity: 1}}, "req")
	require.NoError(t, err)
	require.NotEmpty(t, got.TicketNumber)

	ticket := f.ticket(t, got.TicketNumber)
	assert.Equal(t, order.Number, ticket.OrderNumber)
	require.Len(t, ticket.Entries, 1)
	assert.True(t, ticket.Entries[0].Extra)
}

func TestAddItems_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	extra := []ItemRequest{{MenuItemID: "pizza", Quantity: 1}}

	split := f.create(t, pizzas(1))
	f.activateSplit(t, split.Number)
	_, err := f.svc.AddItems(ctx, waiter, split.Number, extra, "req")
	assert.ErrorIs(t, err, models.ErrSplitInProgress)

	cancelled := f.create(t, pizzas(1))
	_, err = f.svc.SetStatus(ctx, waiter, cancelled.Number, "cancelled", "", "req")
	require.NoError(t, err)
	_, err = f.svc.AddItems(ctx, waiter, cancelled.Number, extra, "req")
	assert.ErrorIs(t, err, models.ErrInvalidState)

	paid := f.create(t, pizzas(1))
	_, err = f.svc.RecordPayment(ctx, cashier, paid.Number, settlement.Payment{Method: "cash"}, "req")
	require.NoError(t, err)
	_, err = f.svc.AddItems(ctx, waiter, paid.Number, extra, "req")
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestVoidItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, &CreateOrderRequest{Items: []ItemRequest{
		{MenuItemID: "pizza", Quantity: 1},
		{MenuItemID: "soda", Quantity: 1},
	}})

	got, err := f.svc.VoidItem(ctx, waiter, order.Number, order.Items[1].ID, "req")
	require.NoError(t, err)
	assert.True(t, got.Totals.Subtotal.Equal(dec("250")))

	_, err = f.svc.VoidItem(ctx, waiter, order.Number, order.Items[1].ID, "req")
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = f.svc.VoidItem(ctx, waiter, order.Number, uuid.New(), "req")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSetStatus_Transitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, pizzas(1))

	_, err := f.svc.SetStatus(ctx, waiter, order.Number, "ready", "", "req")
	assert.ErrorIs(t, err, models.ErrInvalidTransition, "skipping preparing")

	_, err = f.svc.SetStatus(ctx, waiter, order.Number, "paid", "", "req")
	assert.ErrorIs(t, err, models.ErrInvalidTransition, "paid only through settlement")

	_, err = f.svc.SetStatus(ctx, waiter, order.Number, "served", "", "req")
	assert.ErrorIs(t, err, models.ErrValidation)

	for _, status := range []string{"preparing", "ready", "delivered"} {
		got, err := f.svc.SetStatus(ctx, waiter, order.Number, status, "", "req")
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatus(status), got.Status)
		assert.Equal(t, models.TicketStatus(status), f.ticket(t, order.TicketNumber).Status)
	}

	_, err = f.svc.SetStatus(ctx, waiter, order.Number, "preparing", "", "req")
	assert.ErrorIs(t, err, models.ErrInvalidTransition, "no backward moves")

	var history []store.StatusLogEntry
	require.NoError(t, f.store.Atomic(ctx, func(tx store.Tx) error {
		history, err = tx.StatusHistory(ctx, order.Number)
		return err
	}))
	assert.Len(t, history, 4)
}

func TestSetStatus_CancelSupersedesActiveSplit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, pizzas(2))
	bill := f.activateSplit(t, order.Number)

	got, err := f.svc.SetStatus(ctx, waiter, order.Number, "cancelled", "guest left", "req")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.False(t, got.HasActiveSplit)

	require.NoError(t, f.store.Atomic(ctx, func(tx store.Tx) error {
		stored, err := tx.GetSplitBill(ctx, bill.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SplitBillSuperseded, stored.Status)
		_, err = tx.GetActiveSplitBill(ctx, order.Number)
		assert.ErrorIs(t, err, models.ErrNotFound)
		return nil
	}))
	assert.Equal(t, models.TicketCancelled, f.ticket(t, order.TicketNumber).Status)

	_, err = f.svc.SetStatus(ctx, waiter, order.Number, "cancelled", "", "req")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	f.dispatcher.Wait()
	assert.Contains(t, f.recorder.Types(), models.EventOrderCancelled)
}

func TestRecordPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, pizzas(2))

	_, err := f.svc.RecordPayment(ctx, cashier, order.Number, settlement.Payment{Method: "card"}, "req")
	assert.ErrorIs(t, err, models.ErrValidation, "card needs a transaction ref")

	_, err = f.svc.RecordPayment(ctx, cashier, order.Number, settlement.Payment{Method: "cash", Amount: dec("100")}, "req")
	assert.ErrorIs(t, err, models.ErrValidation, "amount must match")

	got, err := f.svc.RecordPayment(ctx, cashier, order.Number, settlement.Payment{Method: "upi", TransactionRef: "UPI-1"}, "req")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, got.Status)
	require.NotNil(t, got.Payment)
	assert.True(t, got.Payment.Amount.Equal(dec("525")))
	assert.Equal(t, models.TicketPaid, f.ticket(t, order.TicketNumber).Status)

	_, err = f.svc.RecordPayment(ctx, cashier, order.Number, settlement.Payment{Method: "cash"}, "req")
	assert.ErrorIs(t, err, models.ErrAlreadySettled)

	f.dispatcher.Wait()
	assert.Contains(t, f.recorder.Types(), models.EventOrderSettled)
}

func TestRecordPayment_RejectedWhileSplitActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, pizzas(2))
	f.activateSplit(t, order.Number)

	_, err := f.svc.RecordPayment(ctx, cashier, order.Number, settlement.Payment{Method: "cash"}, "req")
	assert.ErrorIs(t, err, models.ErrSplitInProgress)

	got, err := f.svc.GetOrder(ctx, order.Number)
	require.NoError(t, err)
	assert.Nil(t, got.Payment)
	assert.Equal(t, models.StatusPending, got.Status)
}
