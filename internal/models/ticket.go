package models

import (
	"time"

	"github.com/google/uuid"
)

// TicketStatus mirrors the kitchen-relevant progress of the owning order.
type TicketStatus string

const (
	TicketPending   TicketStatus = "pending"
	TicketPreparing TicketStatus = "preparing"
	TicketReady     TicketStatus = "ready"
	TicketDelivered TicketStatus = "delivered"
	TicketCancelled TicketStatus = "cancelled"
	TicketPaid      TicketStatus = "paid"
)

// IsHistorical reports whether the ticket left the active kitchen board.
func (s TicketStatus) IsHistorical() bool {
	return s == TicketDelivered || s == TicketCancelled || s == TicketPaid
}

// IsFrozen reports whether the ticket can no longer change at all.
func (s TicketStatus) IsFrozen() bool {
	return s == TicketCancelled || s == TicketPaid
}

// TicketStatusFor maps an order status onto the ticket's coarser view.
func TicketStatusFor(s OrderStatus) TicketStatus {
	switch s {
	case StatusPreparing:
		return TicketPreparing
	case StatusReady:
		return TicketReady
	case StatusDelivered:
		return TicketDelivered
	case StatusPaid:
		return TicketPaid
	case StatusCancelled:
		return TicketCancelled
	default:
		return TicketPending
	}
}

// TicketEntry references a kitchen-routed line item of the order.
type TicketEntry struct {
	ItemID  uuid.UUID `json:"item_id"`
	Extra   bool      `json:"extra"`
	AddedAt time.Time `json:"added_at"`
}

// KitchenTicket is the kitchen's view over an order's line items. It carries no prices.
type KitchenTicket struct {
	Number      string        `json:"ticket_number"`
	OrderNumber string        `json:"order_number"`
	Tables      []string      `json:"tables,omitempty"`
	Entries     []TicketEntry `json:"entries"`
	Status      TicketStatus  `json:"status"`
	Version     int64         `json:"version"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// HasItem reports whether itemID is routed through this ticket
func (t *KitchenTicket) HasItem(itemID uuid.UUID) bool {
	for _, e := range t.Entries {
		if e.ItemID == itemID {
			return true
		}
	}
	return false
}

// Priority is the ticket-wide escalation level
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities from LOW (0) to URGENT (3).
func (p Priority) Rank() int {
	switch p {
	case PriorityNormal:
		return 1
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	default:
		return 0
	}
}

// TimerLevel classifies one item's elapsed/target ratio.
type TimerLevel string

const (
	TimerOnTrack   TimerLevel = "on_track"
	TimerAttention TimerLevel = "attention"
	TimerCritical  TimerLevel = "critical"
	TimerDelayed   TimerLevel = "delayed"
)

const (
	attentionRatio = 0.6
	highRatio      = 0.8
	urgentRatio    = 1.0
)

// ItemTimer is the live timer of a PREPARING item
type ItemTimer struct {
	Elapsed time.Duration `json:"elapsed"`
	Target  time.Duration `json:"target"`
	Ratio   float64       `json:"ratio"`
	Level   TimerLevel    `json:"level"`
}

// Timer returns the item's timer, or nil when the item is not PREPARING.
func (li *LineItem) Timer(now time.Time) *ItemTimer {
	elapsed, ok := li.Elapsed(now)
	if !ok {
		return nil
	}
	ratio := 0.0
	if li.TargetPrepTime > 0 {
		ratio = float64(elapsed) / float64(li.TargetPrepTime)
	}
	return &ItemTimer{
		Elapsed: elapsed,
		Target:  li.TargetPrepTime,
		Ratio:   ratio,
		Level:   LevelForRatio(ratio),
	}
}

func LevelForRatio(ratio float64) TimerLevel {
	switch {
	case ratio >= urgentRatio:
		return TimerDelayed
	case ratio >= highRatio:
		return TimerCritical
	case ratio >= attentionRatio:
		return TimerAttention
	default:
		return TimerOnTrack
	}
}

// PriorityForRatio maps the worst item ratio to a ticket priority.
func PriorityForRatio(ratio float64) Priority {
	switch {
	case ratio >= urgentRatio:
		return PriorityUrgent
	case ratio >= highRatio:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

// TicketPriority computes the priority from the PREPARING items among items.
// With no running timer the ticket is LOW.
func TicketPriority(items []*LineItem, now time.Time) (Priority, float64) {
	worst := -1.0
	for _, li := range items {
		if li.Voided {
			continue
		}
		if timer := li.Timer(now); timer != nil && timer.Ratio > worst {
			worst = timer.Ratio
		}
	}
	if worst < 0 {
		return PriorityLow, 0
	}
	return PriorityForRatio(worst), worst
}
