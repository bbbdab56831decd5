package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SplitMode string

const (
	SplitEqual  SplitMode = "equal"
	SplitCustom SplitMode = "custom"
)

type SplitBillStatus string

const (
	SplitBillActive     SplitBillStatus = "active"
	SplitBillCompleted  SplitBillStatus = "completed"
	SplitBillSuperseded SplitBillStatus = "superseded"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

const (
	MinSplitCount = 2
	MaxSplitCount = 10
)

// SplitItem is a quantity of one order line assigned to a split
type SplitItem struct {
	ItemID    uuid.UUID       `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Split is one independently payable partition of a bill
type Split struct {
	ID            uuid.UUID       `json:"id"`
	Seq           int             `json:"seq"`
	Participant   string          `json:"participant"`
	Items         []SplitItem     `json:"items,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	TaxA          decimal.Decimal `json:"tax_a"`
	TaxB          decimal.Decimal `json:"tax_b"`
	Loyalty       decimal.Decimal `json:"loyalty"`
	Total         decimal.Decimal `json:"total"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Payment       *PaymentDetails `json:"payment,omitempty"`
}

// SplitBill partitions one order's payable amount
type SplitBill struct {
	ID          uuid.UUID       `json:"id"`
	OrderNumber string          `json:"order_number"`
	Mode        SplitMode       `json:"mode"`
	Status      SplitBillStatus `json:"status"`
	Splits      []Split         `json:"splits"`
	Total       decimal.Decimal `json:"total"`
	CreatedBy   string          `json:"created_by"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// FindSplit returns the split with the given id
func (b *SplitBill) FindSplit(id uuid.UUID) (*Split, bool) {
	for i := range b.Splits {
		if b.Splits[i].ID == id {
			return &b.Splits[i], true
		}
	}
	return nil, false
}

// AllPaid reports whether every split has been paid
func (b *SplitBill) AllPaid() bool {
	for _, s := range b.Splits {
		if s.PaymentStatus != PaymentPaid {
			return false
		}
	}
	return len(b.Splits) > 0
}

// SumTotals adds up the split totals
func (b *SplitBill) SumTotals() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range b.Splits {
		sum = sum.Add(s.Total)
	}
	return sum
}

// PaidAmount adds up the totals of paid splits
func (b *SplitBill) PaidAmount() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range b.Splits {
		if s.PaymentStatus == PaymentPaid {
			sum = sum.Add(s.Total)
		}
	}
	return sum
}
