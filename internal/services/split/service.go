// Package split divides an order's payable amount into independently payable
// splits, either equally or by item assignment, and settles the order once
// every split is paid.
package split

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"restaurant-pos/internal/events"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/services/pricing"
	"restaurant-pos/internal/services/settlement"
	"restaurant-pos/internal/store"
)

const unassignedParticipant = "Unassigned"

// ItemShare assigns a quantity of one order line to a participant
type ItemShare struct {
	ItemID   uuid.UUID `json:"item_id"`
	Quantity int       `json:"quantity"`
}

// Assignment lists what one participant pays for
type Assignment struct {
	Participant string      `json:"participant"`
	Items       []ItemShare `json:"items"`
}

type Service struct {
	store       store.Store
	coordinator *settlement.Coordinator
	dispatcher  *events.Dispatcher
	rates       pricing.TaxRates
	logger      *logger.Logger
	now         func() time.Time
}

func NewService(s store.Store, c *settlement.Coordinator, d *events.Dispatcher, rates pricing.TaxRates, log *logger.Logger) *Service {
	return &Service{store: s, coordinator: c, dispatcher: d, rates: rates, logger: log, now: time.Now}
}

// SetClock replaces the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CreateEqualSplit divides the payable amount into n splits. The first n-1
// get the amount floored to cents; the last takes the remainder.
func (s *Service) CreateEqualSplit(ctx context.Context, actor models.Actor, orderNumber string, n int, participants []string, requestID string) (*models.SplitBill, error) {
	if n < models.MinSplitCount || n > models.MaxSplitCount {
		return nil, fmt.Errorf("%d splits requested, allowed %d to %d: %w", n, models.MinSplitCount, models.MaxSplitCount, models.ErrInvalidSplitCount)
	}
	if len(participants) > n {
		return nil, models.NewValidationError("participants", "%d participants for %d splits", len(participants), n)
	}

	return s.create(ctx, actor, orderNumber, models.SplitEqual, requestID, func(order *models.Order) ([]models.Split, error) {
		return equalSplits(order, n, participants, s.rates), nil
	})
}

// CreateCustomSplit builds one split per assignment, pricing each from its
// own items. Quantities nobody took go to an extra "Unassigned" split.
func (s *Service) CreateCustomSplit(ctx context.Context, actor models.Actor, orderNumber string, assignments []Assignment, requestID string) (*models.SplitBill, error) {
	if len(assignments) == 0 {
		return nil, fmt.Errorf("no assignments: %w", models.ErrInvalidSplitCount)
	}
	for i, a := range assignments {
		if len(a.Items) == 0 {
			return nil, models.NewValidationError(fmt.Sprintf("assignments[%d].items", i), "at least one item is required")
		}
		for j, share := range a.Items {
			if share.Quantity < 1 {
				return nil, models.NewValidationError(fmt.Sprintf("assignments[%d].items[%d].quantity", i, j), "quantity must be at least 1")
			}
		}
	}

	return s.create(ctx, actor, orderNumber, models.SplitCustom, requestID, func(order *models.Order) ([]models.Split, error) {
		return customSplits(order, assignments, s.rates)
	})
}

func (s *Service) create(ctx context.Context, actor models.Actor, orderNumber string, mode models.SplitMode, requestID string, build func(order *models.Order) ([]models.Split, error)) (*models.SplitBill, error) {
	var bill *models.SplitBill
	err := store.Run(ctx, s.store, func(tx store.Tx) error {
		order, err := tx.GetOrder(ctx, orderNumber)
		if err != nil {
			return err
		}
		if err := s.coordinator.EnsureSplitAllowed(order); err != nil {
			return err
		}
		_, err = tx.GetActiveSplitBill(ctx, orderNumber)
		if err == nil {
			return fmt.Errorf("order %s: %w", orderNumber, models.ErrSplitInProgress)
		}
		if !errors.Is(err, models.ErrNotFound) {
			return err
		}
		if !order.PayableAmount.IsPositive() {
			return fmt.Errorf("order %s has nothing to pay: %w", orderNumber, models.ErrInvalidState)
		}

		splits, err := build(order)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		bill = &models.SplitBill{
			ID:          uuid.New(),
			OrderNumber: order.Number,
			Mode:        mode,
			Status:      models.SplitBillActive,
			Splits:      splits,
			Total:       order.PayableAmount,
			CreatedBy:   actor.String(),
			CreatedAt:   now,
		}
		order.HasActiveSplit = true
		order.ActiveSplitID = bill.ID.String()

		if err := tx.SaveSplitBill(ctx, bill); err != nil {
			return err
		}
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		return tx.AppendStatusLog(ctx, store.StatusLogEntry{
			OrderNumber: order.Number,
			Status:      string(order.Status),
			ChangedBy:   actor.String(),
			Notes:       fmt.Sprintf("%s split into %d", mode, len(splits)),
			ChangedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("split_created", fmt.Sprintf("Order %s split %s into %d", orderNumber, mode, len(bill.Splits)), requestID, map[string]interface{}{
		"order_number": orderNumber,
		"split_bill":   bill.ID.String(),
		"mode":         string(mode),
		"splits":       len(bill.Splits),
		"total":        bill.Total.StringFixed(2),
		"actor":        actor.String(),
	})
	return bill, nil
}

// PayForSplit records payment of one split. Paying the last open split
// completes the bill and settles the order in the same unit of work.
func (s *Service) PayForSplit(ctx context.Context, actor models.Actor, splitID uuid.UUID, p settlement.Payment, requestID string) (*models.SplitBill, error) {
	var (
		result    *models.SplitBill
		evts      []*models.Event
		completed bool
	)
	err := store.Run(ctx, s.store, func(tx store.Tx) error {
		evts = nil
		completed = false
		bill, err := tx.GetSplitBillBySplit(ctx, splitID)
		if err != nil {
			return err
		}
		split, ok := bill.FindSplit(splitID)
		if !ok {
			return fmt.Errorf("split %s on bill %s: %w", splitID, bill.ID, models.ErrNotFound)
		}
		if split.PaymentStatus == models.PaymentPaid {
			return fmt.Errorf("split %s: %w", splitID, models.ErrAlreadyPaid)
		}
		if bill.Status != models.SplitBillActive {
			return fmt.Errorf("split bill %s is %s: %w", bill.ID, bill.Status, models.ErrInvalidState)
		}

		order, err := tx.GetOrder(ctx, bill.OrderNumber)
		if err != nil {
			return err
		}
		if err := order.EnsureMutable(); err != nil {
			return err
		}

		now := s.now().UTC()
		details, err := p.Details(split.Total, actor, now)
		if err != nil {
			return err
		}
		split.PaymentStatus = models.PaymentPaid
		split.Payment = &details

		if bill.AllPaid() {
			completed = true
			bill.Status = models.SplitBillCompleted
			bill.CompletedAt = &now
		}
		if err := tx.SaveSplitBill(ctx, bill); err != nil {
			return err
		}

		if completed {
			evts, err = s.coordinator.Settle(ctx, tx, order, billPayment(bill, actor, now), actor, "split bill completed")
			if err != nil {
				return err
			}
		}
		result = bill
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("split_paid", fmt.Sprintf("Split %s paid", splitID), requestID, map[string]interface{}{
		"split_id":     splitID.String(),
		"split_bill":   result.ID.String(),
		"order_number": result.OrderNumber,
		"paid":         result.PaidAmount().StringFixed(2),
		"total":        result.Total.StringFixed(2),
		"actor":        actor.String(),
	})
	if completed {
		s.logger.Info("order_settled", fmt.Sprintf("Order %s settled by split bill", result.OrderNumber), requestID, map[string]interface{}{
			"order_number": result.OrderNumber,
			"split_bill":   result.ID.String(),
			"amount":       result.Total.StringFixed(2),
		})
	}
	s.dispatcher.Publish(requestID, evts...)
	return result, nil
}

// GetSplitBill returns a split bill by id
func (s *Service) GetSplitBill(ctx context.Context, id uuid.UUID) (*models.SplitBill, error) {
	var bill *models.SplitBill
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		var err error
		bill, err = tx.GetSplitBill(ctx, id)
		return err
	})
	return bill, err
}

// ActiveSplitForOrder returns the order's ACTIVE split bill
func (s *Service) ActiveSplitForOrder(ctx context.Context, orderNumber string) (*models.SplitBill, error) {
	var bill *models.SplitBill
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		var err error
		bill, err = tx.GetActiveSplitBill(ctx, orderNumber)
		return err
	})
	return bill, err
}

// billPayment summarises the split payments into the order's payment details
func billPayment(bill *models.SplitBill, actor models.Actor, now time.Time) models.PaymentDetails {
	method := bill.Splits[0].Payment.Method
	for _, sp := range bill.Splits[1:] {
		if sp.Payment.Method != method {
			method = models.PaymentOther
			break
		}
	}
	return models.PaymentDetails{
		Method:         method,
		TransactionRef: "split:" + bill.ID.String(),
		Amount:         bill.SumTotals(),
		PaidAt:         now,
		PaidBy:         actor.String(),
	}
}

// shares divides amount into n parts: n-1 equal parts floored to cents and a
// last part holding the remainder.
func shares(amount decimal.Decimal, n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	share := models.FloorCents(amount.Div(decimal.NewFromInt(int64(n))))
	rest := amount
	for i := 0; i < n-1; i++ {
		out[i] = share
		rest = rest.Sub(share)
	}
	out[n-1] = rest
	return out
}

// equalSplits shares the payable amount and the pre-tax columns with shares.
// TaxA is recomputed on each split's own taxable amount, the last split taking
// whatever keeps the column equal to the order's, and TaxB absorbs the
// rounding so every split's components add up to its total.
func equalSplits(order *models.Order, n int, participants []string, rates pricing.TaxRates) []models.Split {
	loyalty := decimal.Zero
	if order.Loyalty != nil {
		loyalty = order.Loyalty.Amount
	}
	totals := shares(order.PayableAmount, n)
	subtotals := shares(order.Totals.Subtotal, n)
	discounts := shares(order.Totals.Discount, n)
	loyalties := shares(loyalty, n)

	splits := make([]models.Split, n)
	taxA := order.Totals.TaxA
	for i := range splits {
		sp := models.Split{
			ID:            uuid.New(),
			Seq:           i + 1,
			Participant:   participantName(participants, i),
			Subtotal:      subtotals[i],
			Discount:      discounts[i],
			Loyalty:       loyalties[i],
			Total:         totals[i],
			PaymentStatus: models.PaymentPending,
		}
		if i < n-1 {
			sp.TaxA = pricing.PriceAmount(sp.Subtotal, sp.Discount, rates).Rounded().TaxA
			taxA = taxA.Sub(sp.TaxA)
		} else {
			sp.TaxA = taxA
		}
		sp.TaxB = sp.Total.Sub(sp.Subtotal).Add(sp.Discount).Sub(sp.TaxA).Add(sp.Loyalty)
		splits[i] = sp
	}
	return splits
}

func participantName(participants []string, i int) string {
	if i < len(participants) {
		if name := strings.TrimSpace(participants[i]); name != "" {
			return name
		}
	}
	return fmt.Sprintf("Guest %d", i+1)
}

func customSplits(order *models.Order, assignments []Assignment, rates pricing.TaxRates) ([]models.Split, error) {
	priced := order.PricedItems()
	byID := make(map[uuid.UUID]models.LineItem, len(priced))
	for _, li := range priced {
		byID[li.ID] = li
	}

	assigned := make(map[uuid.UUID]int)
	for i, a := range assignments {
		for j, share := range a.Items {
			li, ok := byID[share.ItemID]
			if !ok {
				return nil, models.NewValidationError(fmt.Sprintf("assignments[%d].items[%d].item_id", i, j), "item %s is not on order %s", share.ItemID, order.Number)
			}
			assigned[share.ItemID] += share.Quantity
			if assigned[share.ItemID] > li.Quantity {
				return nil, fmt.Errorf("item %s: %d assigned, %d ordered: %w", li.Name, assigned[share.ItemID], li.Quantity, models.ErrOverAssignedItem)
			}
		}
	}

	groups := make([]Assignment, 0, len(assignments)+1)
	for i, a := range assignments {
		name := strings.TrimSpace(a.Participant)
		if name == "" {
			name = fmt.Sprintf("Guest %d", i+1)
		}
		groups = append(groups, Assignment{Participant: name, Items: a.Items})
	}
	var leftover []ItemShare
	for _, li := range priced {
		if rest := li.Quantity - assigned[li.ID]; rest > 0 {
			leftover = append(leftover, ItemShare{ItemID: li.ID, Quantity: rest})
		}
	}
	if len(leftover) > 0 {
		groups = append(groups, Assignment{Participant: unassignedParticipant, Items: leftover})
	}
	if len(groups) < models.MinSplitCount || len(groups) > models.MaxSplitCount {
		return nil, fmt.Errorf("%d splits, allowed %d to %d: %w", len(groups), models.MinSplitCount, models.MaxSplitCount, models.ErrInvalidSplitCount)
	}

	loyalty := decimal.Zero
	if order.Loyalty != nil {
		loyalty = order.Loyalty.Amount
	}

	splits := make([]models.Split, len(groups))
	for i, g := range groups {
		split := models.Split{
			ID:            uuid.New(),
			Seq:           i + 1,
			Participant:   g.Participant,
			PaymentStatus: models.PaymentPending,
		}
		subtotal := decimal.Zero
		for _, share := range g.Items {
			li := byID[share.ItemID]
			qty := decimal.NewFromInt(int64(share.Quantity))
			line := li.UnitPrice().Mul(qty)
			split.Items = append(split.Items, models.SplitItem{
				ItemID:    li.ID,
				Name:      li.Name,
				Quantity:  share.Quantity,
				UnitPrice: li.UnitPrice(),
				LineTotal: line,
			})
			subtotal = subtotal.Add(line)
		}

		totals := pricing.PriceAmount(subtotal, splitDiscount(order, subtotal), rates).Rounded()
		split.Subtotal = totals.Subtotal
		split.Discount = totals.Discount
		split.TaxA = totals.TaxA
		split.TaxB = totals.TaxB
		split.Loyalty = models.Round2(prorate(loyalty, totals.Total, order.Totals.Total))
		split.Total = totals.Total.Sub(split.Loyalty)
		splits[i] = split
	}

	absorbResidue(order, loyalty, splits)
	return splits, nil
}

// splitDiscount applies a percentage discount to the split's own subtotal and
// prorates a fixed discount by subtotal share.
func splitDiscount(order *models.Order, subtotal decimal.Decimal) decimal.Decimal {
	if order.Discount == nil {
		return decimal.Zero
	}
	if order.Discount.Percent.IsPositive() {
		return pricing.DiscountAmount(order.Discount, subtotal)
	}
	return prorate(order.Totals.Discount, subtotal, order.Totals.Subtotal)
}

func prorate(amount, part, whole decimal.Decimal) decimal.Decimal {
	if amount.IsZero() || !whole.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(part).Div(whole)
}

// absorbResidue sets every component of the last split to the order's value
// minus the other splits, so each component sums exactly to the order.
func absorbResidue(order *models.Order, loyalty decimal.Decimal, splits []models.Split) {
	last := &splits[len(splits)-1]
	subtotal, discount, taxA, taxB, loy, total := order.Totals.Subtotal, order.Totals.Discount, order.Totals.TaxA, order.Totals.TaxB, loyalty, order.PayableAmount
	for _, sp := range splits[:len(splits)-1] {
		subtotal = subtotal.Sub(sp.Subtotal)
		discount = discount.Sub(sp.Discount)
		taxA = taxA.Sub(sp.TaxA)
		taxB = taxB.Sub(sp.TaxB)
		loy = loy.Sub(sp.Loyalty)
		total = total.Sub(sp.Total)
	}
	last.Subtotal = subtotal
	last.Discount = discount
	last.TaxA = taxA
	last.TaxB = taxB
	last.Loyalty = loy
	last.Total = total
}
