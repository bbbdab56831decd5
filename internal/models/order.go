package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
	StatusPaid      OrderStatus = "paid"
	StatusCancelled OrderStatus = "cancelled"
)

// orderTransitions lists the legal forward edges. CANCELLED is added for every
// non-terminal status by CanTransition.
var orderTransitions = map[OrderStatus]OrderStatus{
	StatusPending:   StatusPreparing,
	StatusPreparing: StatusReady,
	StatusReady:     StatusDelivered,
	StatusDelivered: StatusPaid,
}

// ParseOrderStatus validates a status string
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case StatusPending, StatusPreparing, StatusReady, StatusDelivered, StatusPaid, StatusCancelled:
		return OrderStatus(s), nil
	}
	return "", NewValidationError("status", "unknown order status %q", s)
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// CanTransition reports whether from -> to is an edge of the order state machine.
func CanTransition(from, to OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return orderTransitions[from] == to
}

// ItemStatus is the kitchen preparation status of a single line item
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemPreparing ItemStatus = "preparing"
	ItemReady     ItemStatus = "ready"
	ItemServed    ItemStatus = "served"
)

var itemTransitions = map[ItemStatus]ItemStatus{
	ItemPending:   ItemPreparing,
	ItemPreparing: ItemReady,
	ItemReady:     ItemServed,
}

func ParseItemStatus(s string) (ItemStatus, error) {
	switch ItemStatus(s) {
	case ItemPending, ItemPreparing, ItemReady, ItemServed:
		return ItemStatus(s), nil
	}
	return "", NewValidationError("status", "unknown item status %q", s)
}

type Variation struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type AddOn struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// LineItem is an ordered menu item. Ordinary and extra items share this shape.
type LineItem struct {
	ID             uuid.UUID     `json:"id"`
	MenuItemID     string        `json:"menu_item_id"`
	Name           string        `json:"name"`
	Variation      Variation     `json:"variation"`
	AddOns         []AddOn       `json:"add_ons,omitempty"`
	Quantity       int           `json:"quantity"`
	TargetPrepTime time.Duration `json:"target_prep_time"`
	KitchenRouted  bool          `json:"kitchen_routed"`
	Extra          bool          `json:"extra"`
	Voided         bool          `json:"voided,omitempty"`
	Status         ItemStatus    `json:"status"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	ReadyAt        *time.Time    `json:"ready_at,omitempty"`
	ServedAt       *time.Time    `json:"served_at,omitempty"`
}

// UnitPrice is the variation price plus every selected add-on
func (li *LineItem) UnitPrice() decimal.Decimal {
	price := li.Variation.Price
	for _, a := range li.AddOns {
		price = price.Add(a.Price)
	}
	return price
}

// LineTotal is the unit price times quantity
func (li *LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice().Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Advance moves the item one step forward. Re-entering PREPARING is a no-op and
// reports changed=false; every other non-forward move fails and leaves the item untouched.
func (li *LineItem) Advance(to ItemStatus, now time.Time) (bool, error) {
	if li.Voided {
		return false, fmt.Errorf("item %s is voided: %w", li.ID, ErrInvalidState)
	}
	if to == ItemPreparing && li.Status == ItemPreparing {
		return false, nil
	}
	if itemTransitions[li.Status] != to {
		return false, &TransitionError{Kind: ErrInvalidItemTransition, From: string(li.Status), To: string(to)}
	}

	at := now.UTC()
	switch to {
	case ItemPreparing:
		li.StartedAt = &at
	case ItemReady:
		li.ReadyAt = &at
	case ItemServed:
		li.ServedAt = &at
	}
	li.Status = to
	return true, nil
}

// Elapsed returns the running preparation time. Only PREPARING items have a timer.
func (li *LineItem) Elapsed(now time.Time) (time.Duration, bool) {
	if li.Status != ItemPreparing || li.StartedAt == nil {
		return 0, false
	}
	elapsed := now.Sub(*li.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed, true
}

type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountCoupon     DiscountKind = "coupon"
)

// Discount is the single order-level adjustment. A coupon carries either a
// percentage or a fixed amount resolved by the promotions service.
type Discount struct {
	Kind        DiscountKind    `json:"kind"`
	Percent     decimal.Decimal `json:"percent"`
	FixedAmount decimal.Decimal `json:"fixed_amount"`
	Code        string          `json:"code,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

// Totals is the priced view of an order or split, stored rounded to cents.
// Total == Subtotal - Discount + TaxA + TaxB.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Taxable  decimal.Decimal `json:"taxable"`
	TaxA     decimal.Decimal `json:"tax_a"`
	TaxB     decimal.Decimal `json:"tax_b"`
	Total    decimal.Decimal `json:"total"`
}

type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentCard  PaymentMethod = "card"
	PaymentUPI   PaymentMethod = "upi"
	PaymentOther PaymentMethod = "other"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentCash, PaymentCard, PaymentUPI, PaymentOther:
		return PaymentMethod(s), nil
	}
	return "", NewValidationError("method", "unsupported payment method %q", s)
}

type PaymentDetails struct {
	Method         PaymentMethod   `json:"method"`
	TransactionRef string          `json:"transaction_ref,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	PaidAt         time.Time       `json:"paid_at"`
	PaidBy         string          `json:"paid_by"`
}

type LoyaltyRedemption struct {
	CustomerID string          `json:"customer_id"`
	Points     int64           `json:"points"`
	Amount     decimal.Decimal `json:"amount"`
	RedeemedAt time.Time       `json:"redeemed_at"`
}

type Customer struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Order represents a customer order
type Order struct {
	Number         string             `json:"order_number"`
	Customer       Customer           `json:"customer"`
	Tables         []string           `json:"tables,omitempty"`
	Guests         int                `json:"guests,omitempty"`
	Items          []LineItem         `json:"items"`
	ExtraItems     []LineItem         `json:"extra_items"`
	Discount       *Discount          `json:"discount,omitempty"`
	Totals         Totals             `json:"totals"`
	Loyalty        *LoyaltyRedemption `json:"loyalty,omitempty"`
	PayableAmount  decimal.Decimal    `json:"payable_amount"`
	Status         OrderStatus        `json:"status"`
	Payment        *PaymentDetails    `json:"payment,omitempty"`
	HasActiveSplit bool               `json:"has_active_split"`
	ActiveSplitID  string             `json:"active_split_id,omitempty"`
	TicketNumber   string             `json:"ticket_number,omitempty"`
	CreatedBy      string             `json:"created_by"`
	Version        int64              `json:"version"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// AllItems returns pointers to ordinary then extra items, in order.
func (o *Order) AllItems() []*LineItem {
	items := make([]*LineItem, 0, len(o.Items)+len(o.ExtraItems))
	for i := range o.Items {
		items = append(items, &o.Items[i])
	}
	for i := range o.ExtraItems {
		items = append(items, &o.ExtraItems[i])
	}
	return items
}

// PricedItems returns copies of every item that counts towards the subtotal.
func (o *Order) PricedItems() []LineItem {
	items := make([]LineItem, 0, len(o.Items)+len(o.ExtraItems))
	for _, li := range o.AllItems() {
		if !li.Voided {
			items = append(items, *li)
		}
	}
	return items
}

// FindItem looks an item up by its stable id
func (o *Order) FindItem(id uuid.UUID) (*LineItem, bool) {
	for _, li := range o.AllItems() {
		if li.ID == id {
			return li, true
		}
	}
	return nil, false
}

// EnsureMutable fails once the order reached PAID or CANCELLED
func (o *Order) EnsureMutable() error {
	if o.Status.IsTerminal() {
		return fmt.Errorf("order %s is %s: %w", o.Number, o.Status, ErrInvalidState)
	}
	return nil
}

// ApplyTotals stores freshly priced totals and derives the payable amount.
func (o *Order) ApplyTotals(t Totals) {
	o.Totals = t
	if o.Discount != nil {
		o.Discount.Amount = t.Discount
	}
	payable := t.Total
	if o.Loyalty != nil {
		payable = payable.Sub(o.Loyalty.Amount)
	}
	o.PayableAmount = MaxDecimal(payable, decimal.Zero)
}

// SetStatus applies a free-standing status edit. PAID is reachable only through settlement.
func (o *Order) SetStatus(to OrderStatus) error {
	if to == StatusPaid {
		return &TransitionError{Kind: ErrInvalidTransition, From: string(o.Status), To: string(to)}
	}
	if !CanTransition(o.Status, to) {
		return &TransitionError{Kind: ErrInvalidTransition, From: string(o.Status), To: string(to)}
	}
	o.Status = to
	return nil
}

// MarkPaid is the settlement edge. It is legal from any non-terminal status.
func (o *Order) MarkPaid(payment PaymentDetails) error {
	switch o.Status {
	case StatusPaid:
		return fmt.Errorf("order %s: %w", o.Number, ErrAlreadySettled)
	case StatusCancelled:
		return fmt.Errorf("order %s is cancelled: %w", o.Number, ErrInvalidState)
	}
	o.Status = StatusPaid
	o.Payment = &payment
	o.HasActiveSplit = false
	o.ActiveSplitID = ""
	return nil
}

// GenerateOrderNumber generates a unique order number in format ORD_YYYYMMDD_NNN
func GenerateOrderNumber(date time.Time, sequence int) string {
	return fmt.Sprintf("ORD_%s_%03d", date.Format("20060102"), sequence)
}

// GenerateTicketNumber generates a kitchen ticket number in format KOT_YYYYMMDD_NNN
func GenerateTicketNumber(date time.Time, sequence int) string {
	return fmt.Sprintf("KOT_%s_%03d", date.Format("20060102"), sequence)
}
