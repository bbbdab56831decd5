package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"restaurant-pos/internal/catalog"
	"restaurant-pos/internal/events"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/loyalty"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/promotions"
	"restaurant-pos/internal/seating"
	"restaurant-pos/internal/services/pricing"
	"restaurant-pos/internal/services/settlement"
	"restaurant-pos/internal/store"
)

// Deps wires the order service to its collaborators
type Deps struct {
	Store           store.Store
	Catalog         catalog.Catalog
	Promotions      promotions.Service
	Loyalty         loyalty.Service
	Seating         seating.Service
	Coordinator     *settlement.Coordinator
	Dispatcher      *events.Dispatcher
	Rates           pricing.TaxRates
	ExternalTimeout time.Duration
	Logger          *logger.Logger
}

// Service owns the order aggregate
type Service struct {
	store       store.Store
	catalog     catalog.Catalog
	promotions  promotions.Service
	loyalty     loyalty.Service
	seating     seating.Service
	coordinator *settlement.Coordinator
	dispatcher  *events.Dispatcher
	rates       pricing.TaxRates
	timeout     time.Duration
	logger      *logger.Logger
	now         func() time.Time
}

func NewService(d Deps) *Service {
	timeout := d.ExternalTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Service{
		store:       d.Store,
		catalog:     d.Catalog,
		promotions:  d.Promotions,
		loyalty:     d.Loyalty,
		seating:     d.Seating,
		coordinator: d.Coordinator,
		dispatcher:  d.Dispatcher,
		rates:       d.Rates,
		timeout:     timeout,
		logger:      d.Logger,
		now:         time.Now,
	}
}

// SetClock replaces the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CreateOrder places a new order and allocates its kitchen ticket when any
// item is kitchen routed.
func (s *Service) CreateOrder(ctx context.Context, actor models.Actor, req *CreateOrderRequest, requestID string) (*models.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkCapacity(ctx, req.Tables, req.Guests, requestID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	items, err := s.resolveItems(ctx, req.Items, false)
	if err != nil {
		return nil, err
	}

	var discount *models.Discount
	switch {
	case req.DiscountPercent != nil:
		discount = &models.Discount{Kind: models.DiscountPercentage, Percent: *req.DiscountPercent}
	case req.CouponCode != "":
		discount, err = s.createCoupon(ctx, req.CouponCode, pricing.Subtotal(items), requestID)
		if err != nil {
			return nil, err
		}
	}

	var (
		result *models.Order
		evts   []*models.Event
	)
	err = store.Run(ctx, s.store, func(tx store.Tx) error {
		evts = nil
		seq, err := tx.NextSequence(ctx, store.SeqOrder, now)
		if err != nil {
			return err
		}

		order := &models.Order{
			Number:     models.GenerateOrderNumber(now, seq),
			Customer:   req.Customer,
			Tables:     req.Tables,
			Guests:     req.Guests,
			Items:      cloneItems(items),
			ExtraItems: []models.LineItem{},
			Discount:   cloneDiscount(discount),
			Status:     models.StatusPending,
			CreatedBy:  actor.String(),
			CreatedAt:  now,
		}
		s.reprice(order)

		ticket, err := s.attachTicket(ctx, tx, order, order.Items, now)
		if err != nil {
			return err
		}
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		if ticket != nil {
			if err := tx.SaveTicket(ctx, ticket); err != nil {
				return err
			}
			evts = append(evts, ticketEvent(models.EventTicketCreated, order, order.Items, actor))
		}
		if err := tx.AppendStatusLog(ctx, store.StatusLogEntry{
			OrderNumber: order.Number,
			Status:      string(models.StatusPending),
			ChangedBy:   actor.String(),
			Notes:       "order created",
			ChangedAt:   now,
		}); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order_created", fmt.Sprintf("Order %s created", result.Number), requestID, map[string]interface{}{
		"order_number":  result.Number,
		"ticket_number": result.TicketNumber,
		"items":         len(result.Items),
		"total_amount":  result.Totals.Total.StringFixed(2),
		"actor":         actor.String(),
	})
	s.dispatcher.Publish(requestID, evts...)
	return result, nil
}

// AddItems appends late items to the order and its kitchen ticket.
func (s *Service) AddItems(ctx context.Context, actor models.Actor, orderNumber string, reqs []ItemRequest, requestID string) (*models.Order, error) {
	if err := validateItems(reqs); err != nil {
		return nil, err
	}
	items, err := s.resolveItems(ctx, reqs, true)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()

	var evts []*models.Event
	order, err := s.mutate(ctx, orderNumber, func(tx store.Tx, order *models.Order) error {
		evts = nil
		if err := ensureNoActiveSplit(ctx, tx, order); err != nil {
			return err
		}

		added := cloneItems(items)
		order.ExtraItems = append(order.ExtraItems, added...)
		s.reprice(order)

		ticket, err := s.attachTicket(ctx, tx, order, added, now)
		if err != nil {
			return err
		}
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		if ticket != nil {
			eventType := models.EventItemsAdded
			if ticket.Version == 0 {
				eventType = models.EventTicketCreated
			}
			if err := tx.SaveTicket(ctx, ticket); err != nil {
				return err
			}
			evts = append(evts, ticketEvent(eventType, order, added, actor))
		}
		return tx.AppendStatusLog(ctx, store.StatusLogEntry{
			OrderNumber: order.Number,
			Status:      string(order.Status),
			ChangedBy:   actor.String(),
			Notes:       fmt.Sprintf("added %d extra item(s)", len(added)),
			ChangedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("items_added", fmt.Sprintf("Added %d items to order %s", len(items), orderNumber), requestID, map[string]interface{}{
		"order_number": orderNumber,
		"total_amount": order.Totals.Total.StringFixed(2),
		"actor":        actor.String(),
	})
	s.dispatcher.Publish(requestID, evts...)
	return order, nil
}

// VoidItem removes a not-yet-started item from pricing and the kitchen view.
func (s *Service) VoidItem(ctx context.Context, actor models.Actor, orderNumber string, itemID uuid.UUID, requestID string) (*models.Order, error) {
	order, err := s.mutate(ctx, orderNumber, func(tx store.Tx, order *models.Order) error {
		if err := ensureNoActiveSplit(ctx, tx, order); err != nil {
			return err
		}
		item, ok := order.FindItem(itemID)
		if !ok {
			return fmt.Errorf("item %s on order %s: %w", itemID, orderNumber, models.ErrNotFound)
		}
		if item.Voided {
			return fmt.Errorf("item %s is already voided: %w", itemID, models.ErrInvalidState)
		}
		if item.Status != models.ItemPending {
			return fmt.Errorf("item %s is %s, only pending items can be voided: %w", itemID, item.Status, models.ErrInvalidState)
		}
		if err := ensureNotRedeemed(order); err != nil {
			return err
		}
		item.Voided = true
		s.reprice(order)
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		return tx.AppendStatusLog(ctx, store.StatusLogEntry{
			OrderNumber: order.Number,
			Status:      string(order.Status),
			ChangedBy:   actor.String(),
			Notes:       fmt.Sprintf("voided %s x%d", item.Name, item.Quantity),
			ChangedAt:   s.now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item_voided", fmt.Sprintf("Voided item %s on order %s", itemID, orderNumber), requestID, map[string]interface{}{
		"order_number": orderNumber,
		"item_id":      itemID.String(),
		"actor":        actor.String(),
	})
	return order, nil
}

// ApplyCoupon validates code with the promotions service and applies it.
// Promotions failures are surfaced and nothing is written.
func (s *Service) ApplyCoupon(ctx context.Context, actor models.Actor, orderNumber, code string, requestID string) (*models.Order, error) {
	current, err := s.GetOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if err := canApplyDiscount(current); err != nil {
		return nil, err
	}

	vctx, cancel := context.WithTimeout(ctx, s.timeout)
	coupon, err := s.promotions.Validate(vctx, code, current.Totals.Subtotal)
	cancel()
	if err != nil {
		s.logger.Warn("coupon_rejected", "Coupon could not be applied", requestID, map[string]interface{}{
			"order_number": orderNumber,
			"code":         code,
			"error":        err.Error(),
		})
		return nil, err
	}

	order, err := s.mutate(ctx, orderNumber, func(tx store.Tx, order *models.Order) error {
		if err := ensureNoActiveSplit(ctx, tx, order); err != nil {
			return err
		}
		if err := canApplyDiscount(order); err != nil {
			return err
		}
		order.Discount = coupon.Discount()
		s.reprice(order)
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		return tx.AppendStatusLog(ctx, store.StatusLogEntry{
			OrderNumber: order.Number,
			Status:      string(order.Status),
			ChangedBy:   actor.String(),
			Notes:       "coupon " + coupon.Code + " applied",
			ChangedAt:   s.now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("coupon_applied", fmt.Sprintf("Coupon %s applied to order %s", coupon.Code, orderNumber), requestID, map[string]interface{}{
		"order_number": orderNumber,
		"discount":     order.Totals.Discount.StringFixed(2),
		"total_amount": order.Totals.Total.StringFixed(2),
	})
	return order, nil
}

// RemoveCoupon drops the coupon and reprices from scratch. Releasing the code
// at the promotions service is fire-and-forget.
func (s *Service) RemoveCoupon(ctx context.Context, actor models.Actor, orderNumber string, requestID string) (*models.Order, error) {
	var code string
	order, err := s.mutate(ctx, orderNumber, func(tx store.Tx, order *models.Order) error {
		if err := ensureNoActiveSplit(ctx, tx, order); err != nil {
			return err
		}
		if order.Discount == nil || order.Discount.Kind != models.DiscountCoupon {
			return fmt.Errorf("order %s has no coupon: %w", orderNumber, models.ErrInvalidState)
		}
		code = order.Discount.Code
		order.Discount = nil
		s.reprice(order)
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		return tx.AppendStatusLog(ctx, store.StatusLogEntry{
			OrderNumber: order.Number,
			Status:      string(order.Status),
			ChangedBy:   actor.String(),
			Notes:       "coupon " + code + " removed",
			ChangedAt:   s.now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	go s.releaseCoupon(code, orderNumber, requestID)

	s.logger.Info("coupon_removed", fmt.Sprintf("Coupon removed from order %s", orderNumber), requestID, map[string]interface{}{
		"order_number": orderNumber,
		"code":         code,
	})
	return order, nil
}

func (s *Service) releaseCoupon(code, orderNumber, requestID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.promotions.Release(ctx, code, orderNumber); err != nil {
		s.logger.Warn("coupon_release_failed", "Failed to release coupon", requestID, map[string]interface{}{
			"order_number": orderNumber,
			"code":         code,
			"error":        err.Error(),
		})
	}
}

// ApplyDiscount sets a manual percentage discount
func (s *Service) ApplyDiscount(ctx context.Context, actor models.Actor, orderNumber string, percent decimal.Decimal, requestID string) (*models.Order, error) {
	if err := validatePercent(percent); err != nil {
		return nil, err
	}
	order, err := s.mutate(ctx, orderNumber, func(tx store.Tx, order *models.Order) error {
		if err := ensureNoActiveSplit(ctx, tx, order); err != nil {
			return err
		}
		if err := canApplyDiscount(order); err != nil {
			return err
		}
		order.Discount = &models.Discount{Kind: models.DiscountPercentage, Percent: percent}
		s.reprice(order)
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		return tx.AppendStatusLog(ctx, store.StatusLogEntry{
			OrderNumber: order.Number,
			Status:      string(order.Status),
			ChangedBy:   actor.String(),
			Notes:       "manual discount " + percent.String() + "%",
			ChangedAt:   s.now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("discount_applied", fmt.Sprintf("Discount applied to order %s", orderNumber), requestID, map[string]interface{}{
		"order_number": orderNumber,
		"percent":      percent.String(),
		"actor":        actor.String(),
	})
	return order, nil
}

// RemoveDiscount drops the manual percentage discount
func (s *Service) RemoveDiscount(ctx context.Context, actor models.Actor, orderNumber string, requestID string) (*models.Order, error) {
	order, err := s.mutate(ctx, orderNumber, func(tx store.Tx, order *models.Order) error {
		if err := ensureNoActiveSplit(ctx, tx, order); err != nil {
			return err
		}
		if order.Discount == nil || order.Discount.Kind != models.DiscountPercentage {
			return fmt.Errorf("order %s has no manual discount: %w", orderNumber, models.ErrInvalidState)
		}
		order.Discount = nil
		s.reprice(order)
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		return tx.AppendStatusLog(ctx, store.StatusLogEntry{
			OrderNumber: order.Number,
			Status:      string(order.Status),
			ChangedBy:   actor.String(),
			Notes:       "manual discount removed",
			ChangedAt:   s.now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("discount_removed", fmt.Sprintf("Discount removed from order %s", orderNumber), requestID, map[string]interface{}{
		"order_number": orderNumber,
		"actor":        actor.String(),
	})
	return order, nil
}

// SetStatus applies a status edit through the transition table. CANCELLED is
// routed through the settlement coordinator; PAID is never accepted here.
func (s *Service) SetStatus(ctx context.Context, actor models.Actor, orderNumber, status, notes string, requestID string) (*models.Order, error) {
	to, err := models.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	var (
		from models.OrderStatus
		evts []*models.Event
	)
	var order *models.Order
	err = store.Run(ctx, s.store, func(tx store.Tx) error {
		evts = nil
		var err error
		order, err = tx.GetOrder(ctx, orderNumber)
		if err != nil {
			return err
		}
		from = order.Status
		if to == models.StatusCancelled {
			cancelled, err := s.coordinator.Cancel(ctx, tx, order, actor, notes)
			evts = cancelled
			return err
		}

		if err := order.SetStatus(to); err != nil {
			return err
		}
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		if err := s.coordinator.SyncTicket(ctx, tx, order); err != nil {
			return err
		}
		evts = append(evts, models.NewStatusChangedEvent(order.Number, from, to, actor))
		return tx.AppendStatusLog(ctx, store.StatusLogEntry{
			OrderNumber: order.Number,
			Status:      string(to),
			ChangedBy:   actor.String(),
			Notes:       notes,
			ChangedAt:   s.now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("status_changed", fmt.Sprintf("Order %s moved from %s to %s", orderNumber, from, to), requestID, map[string]interface{}{
		"order_number": orderNumber,
		"old_status":   string(from),
		"new_status":   string(to),
		"actor":        actor.String(),
	})
	s.dispatcher.Publish(requestID, evts...)
	return order, nil
}

// RecordPayment settles the order directly through the coordinator
func (s *Service) RecordPayment(ctx context.Context, actor models.Actor, orderNumber string, p settlement.Payment, requestID string) (*models.Order, error) {
	return s.coordinator.RecordPayment(ctx, actor, orderNumber, p, requestID)
}

// RedeemLoyalty redeems as many of the customer's points as the order allows:
// min(balance, floor(total * redeemRate)).
func (s *Service) RedeemLoyalty(ctx context.Context, actor models.Actor, orderNumber, customerID string, requestID string) (*models.Order, error) {
	if customerID == "" {
		return nil, models.NewValidationError("customer_id", "customer id is required")
	}
	current, err := s.GetOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if err := canRedeem(current); err != nil {
		return nil, err
	}

	bctx, cancel := context.WithTimeout(ctx, s.timeout)
	balance, err := s.loyalty.Balance(bctx, customerID)
	cancel()
	if err != nil {
		return nil, err
	}

	total := current.Totals.Total
	points := pricing.LoyaltyCap(balance.Points, total, balance.RedeemRate)
	if points == 0 {
		return nil, models.NewValidationError("customer_id", "customer %s has no points redeemable on this order", customerID)
	}
	amount := pricing.LoyaltyAmount(points, balance.PointValue, total)

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	err = s.loyalty.Redeem(rctx, customerID, points, orderNumber)
	cancel()
	if err != nil {
		return nil, err
	}

	order, err := s.mutate(ctx, orderNumber, func(tx store.Tx, order *models.Order) error {
		if err := canRedeem(order); err != nil {
			return err
		}
		if err := ensureNoActiveSplit(ctx, tx, order); err != nil {
			return err
		}
		if !order.Totals.Total.Equal(total) {
			return fmt.Errorf("order %s total changed during redemption: %w", orderNumber, models.ErrConflict)
		}
		order.Loyalty = &models.LoyaltyRedemption{
			CustomerID: customerID,
			Points:     points,
			Amount:     amount,
			RedeemedAt: s.now().UTC(),
		}
		order.ApplyTotals(order.Totals)
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		return tx.AppendStatusLog(ctx, store.StatusLogEntry{
			OrderNumber: order.Number,
			Status:      string(order.Status),
			ChangedBy:   actor.String(),
			Notes:       fmt.Sprintf("redeemed %d points for %s", points, amount.StringFixed(2)),
			ChangedAt:   s.now().UTC(),
		})
	})
	if err != nil {
		s.reverseRedemption(customerID, orderNumber, points, requestID, err)
		return nil, err
	}

	s.logger.Info("loyalty_redeemed", fmt.Sprintf("Redeemed %d points on order %s", points, orderNumber), requestID, map[string]interface{}{
		"order_number":   orderNumber,
		"customer_id":    customerID,
		"points":         points,
		"amount":         amount.StringFixed(2),
		"payable_amount": order.PayableAmount.StringFixed(2),
	})
	return order, nil
}

// reverseRedemption gives back points whose local write was rejected
func (s *Service) reverseRedemption(customerID, orderNumber string, points int64, requestID string, cause error) {
	fields := map[string]interface{}{
		"order_number": orderNumber,
		"customer_id":  customerID,
		"points":       points,
		"cause":        cause.Error(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.loyalty.Reverse(ctx, customerID, orderNumber); err != nil {
		s.logger.Error("loyalty_redemption_orphaned", "Points redeemed but neither recorded nor reversed", requestID, err, fields)
		return
	}
	s.logger.Warn("loyalty_redemption_reversed", "Order update failed, redeemed points returned", requestID, fields)
}

// GetOrder returns the current order
func (s *Service) GetOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order *models.Order
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		var err error
		order, err = tx.GetOrder(ctx, orderNumber)
		return err
	})
	return order, err
}

// HealthCheck reports whether the store is reachable
func (s *Service) HealthCheck(ctx context.Context) bool {
	return s.store.Ping(ctx) == nil
}

// mutate loads a mutable order and runs fn on it in one unit of work,
// retrying once on a version conflict.
func (s *Service) mutate(ctx context.Context, orderNumber string, fn func(tx store.Tx, order *models.Order) error) (*models.Order, error) {
	var result *models.Order
	err := store.Run(ctx, s.store, func(tx store.Tx) error {
		order, err := tx.GetOrder(ctx, orderNumber)
		if err != nil {
			return err
		}
		if err := order.EnsureMutable(); err != nil {
			return err
		}
		if err := fn(tx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	return result, err
}

func (s *Service) reprice(order *models.Order) {
	order.ApplyTotals(pricing.Price(order.PricedItems(), order.Discount, s.rates).Rounded())
}

// attachTicket adds the kitchen-routed items among added to the order's
// ticket, allocating one when needed. It returns nil when nothing is routed.
func (s *Service) attachTicket(ctx context.Context, tx store.Tx, order *models.Order, added []models.LineItem, now time.Time) (*models.KitchenTicket, error) {
	var entries []models.TicketEntry
	for _, li := range added {
		if li.KitchenRouted {
			entries = append(entries, models.TicketEntry{ItemID: li.ID, Extra: li.Extra, AddedAt: now})
		}
	}
	if len(entries) == 0 {
		return nil, nil
	}

	if order.TicketNumber != "" {
		ticket, err := tx.GetTicket(ctx, order.TicketNumber)
		if err != nil {
			return nil, err
		}
		if ticket.Status.IsFrozen() {
			return nil, fmt.Errorf("ticket %s is %s: %w", ticket.Number, ticket.Status, models.ErrInvalidState)
		}
		ticket.Entries = append(ticket.Entries, entries...)
		if ticket.Status == models.TicketDelivered {
			// late kitchen items put a delivered ticket back on the board
			ticket.Status = models.TicketPreparing
		}
		return ticket, nil
	}

	seq, err := tx.NextSequence(ctx, store.SeqTicket, now)
	if err != nil {
		return nil, err
	}
	ticket := &models.KitchenTicket{
		Number:      models.GenerateTicketNumber(now, seq),
		OrderNumber: order.Number,
		Tables:      order.Tables,
		Entries:     entries,
		Status:      models.TicketStatusFor(order.Status),
		CreatedAt:   now,
	}
	order.TicketNumber = ticket.Number
	return ticket, nil
}

func (s *Service) resolveItems(ctx context.Context, reqs []ItemRequest, extra bool) ([]models.LineItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items := make([]models.LineItem, 0, len(reqs))
	for i, r := range reqs {
		menu, err := s.catalog.Lookup(ctx, r.MenuItemID)
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewValidationError(fmt.Sprintf("items[%d].menu_item_id", i), "unknown menu item %q", r.MenuItemID)
		}
		if err != nil {
			return nil, err
		}
		variation, err := menu.Variation(r.Variation)
		if err != nil {
			return nil, err
		}
		addOns, err := menu.SelectAddOns(r.AddOns)
		if err != nil {
			return nil, err
		}
		items = append(items, models.LineItem{
			ID:             uuid.New(),
			MenuItemID:     menu.ID,
			Name:           menu.Name,
			Variation:      variation,
			AddOns:         addOns,
			Quantity:       r.Quantity,
			TargetPrepTime: menu.TargetPrepTime,
			KitchenRouted:  menu.KitchenRouted,
			Extra:          extra,
			Status:         models.ItemPending,
		})
	}
	return items, nil
}

// checkCapacity validates guests against merged tables. An unreachable
// seating service skips the check.
func (s *Service) checkCapacity(ctx context.Context, tables []string, guests int, requestID string) error {
	if len(tables) == 0 || guests == 0 || s.seating == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	capacity, err := s.seating.Capacity(ctx, tables)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return models.NewValidationError("tables", "%v", err)
	case err != nil:
		s.logger.Warn("capacity_check_skipped", "Seating service unavailable, skipping capacity check", requestID, map[string]interface{}{
			"tables": tables,
			"error":  err.Error(),
		})
		return nil
	case guests > capacity:
		return models.NewValidationError("guests", "%d guests exceed the %d seats of tables %v", guests, capacity, tables)
	}
	return nil
}

// createCoupon validates a coupon given at order creation. An unreachable
// promotions service places the order without the coupon.
func (s *Service) createCoupon(ctx context.Context, code string, subtotal decimal.Decimal, requestID string) (*models.Discount, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	coupon, err := s.promotions.Validate(ctx, code, subtotal)
	if errors.Is(err, models.ErrExternalService) {
		s.logger.Warn("coupon_skipped", "Promotions service unavailable, placing order without coupon", requestID, map[string]interface{}{
			"code":  code,
			"error": err.Error(),
		})
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return coupon.Discount(), nil
}

// ensureNoActiveSplit rejects changes to amounts that an ACTIVE split bill
// has already partitioned.
func ensureNoActiveSplit(ctx context.Context, tx store.Tx, order *models.Order) error {
	if order.HasActiveSplit {
		return fmt.Errorf("order %s: %w", order.Number, models.ErrSplitInProgress)
	}
	_, err := tx.GetActiveSplitBill(ctx, order.Number)
	if err == nil {
		return fmt.Errorf("order %s: %w", order.Number, models.ErrSplitInProgress)
	}
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	return err
}

func canApplyDiscount(order *models.Order) error {
	if err := order.EnsureMutable(); err != nil {
		return err
	}
	if order.HasActiveSplit {
		return fmt.Errorf("order %s: %w", order.Number, models.ErrSplitInProgress)
	}
	if err := ensureNotRedeemed(order); err != nil {
		return err
	}
	if order.Discount == nil {
		return nil
	}
	if order.Discount.Kind == models.DiscountCoupon {
		return fmt.Errorf("order %s already has coupon %s: %w", order.Number, order.Discount.Code, models.ErrInvalidState)
	}
	return fmt.Errorf("order %s already has a manual discount: %w", order.Number, models.ErrInvalidState)
}

// ensureNotRedeemed blocks edits that lower the total once points are
// redeemed, since the redemption was capped against the old total.
func ensureNotRedeemed(order *models.Order) error {
	if order.Loyalty != nil {
		return fmt.Errorf("order %s has %d loyalty points redeemed: %w", order.Number, order.Loyalty.Points, models.ErrInvalidState)
	}
	return nil
}

func canRedeem(order *models.Order) error {
	if err := order.EnsureMutable(); err != nil {
		return err
	}
	if order.Loyalty != nil {
		return fmt.Errorf("order %s already redeemed loyalty points: %w", order.Number, models.ErrInvalidState)
	}
	if order.HasActiveSplit {
		return fmt.Errorf("order %s: %w", order.Number, models.ErrSplitInProgress)
	}
	return nil
}

func ticketEvent(t models.EventType, order *models.Order, items []models.LineItem, actor models.Actor) *models.Event {
	e := models.NewEvent(t, order.Number, actor)
	e.TicketNumber = order.TicketNumber
	e.Tables = order.Tables
	for _, li := range items {
		if li.KitchenRouted {
			e.Items = append(e.Items, fmt.Sprintf("%dx %s (%s)", li.Quantity, li.Name, li.Variation.Name))
		}
	}
	return e
}

func cloneItems(items []models.LineItem) []models.LineItem {
	out := make([]models.LineItem, len(items))
	copy(out, items)
	return out
}

func cloneDiscount(d *models.Discount) *models.Discount {
	if d == nil {
		return nil
	}
	cp := *d
	return &cp
}
