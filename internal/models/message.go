package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a POS event published to the notification/printing fanout
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventItemsAdded      EventType = "items_added"
	EventItemReady       EventType = "item_ready"
	EventTicketEscalated EventType = "ticket_escalated"
	EventStatusChanged   EventType = "status_changed"
	EventOrderSettled    EventType = "order_settled"
	EventOrderCancelled  EventType = "order_cancelled"
)

// Event is the message body sent to notification and printing consumers
type Event struct {
	Type         EventType        `json:"type"`
	OrderNumber  string           `json:"order_number"`
	TicketNumber string           `json:"ticket_number,omitempty"`
	Tables       []string         `json:"tables,omitempty"`
	ItemID       string           `json:"item_id,omitempty"`
	ItemName     string           `json:"item_name,omitempty"`
	Items        []string         `json:"items,omitempty"`
	OldStatus    string           `json:"old_status,omitempty"`
	NewStatus    string           `json:"new_status,omitempty"`
	Priority     Priority         `json:"priority,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	ChangedBy    string           `json:"changed_by"`
	Timestamp    time.Time        `json:"timestamp"`
}

// NewEvent stamps an event with the actor and current time
func NewEvent(eventType EventType, orderNumber string, actor Actor) *Event {
	return &Event{
		Type:        eventType,
		OrderNumber: orderNumber,
		ChangedBy:   actor.String(),
		Timestamp:   time.Now().UTC(),
	}
}

// NewStatusChangedEvent creates an event for an order status edit
func NewStatusChangedEvent(orderNumber string, oldStatus, newStatus OrderStatus, actor Actor) *Event {
	e := NewEvent(EventStatusChanged, orderNumber, actor)
	e.OldStatus = string(oldStatus)
	e.NewStatus = string(newStatus)
	return e
}

// RoutingKey generates the kitchen topic routing key for an event
func (e *Event) RoutingKey() string {
	if e.Priority != "" {
		return fmt.Sprintf("kitchen.%s.%s", e.Type, e.Priority)
	}
	return fmt.Sprintf("kitchen.%s", e.Type)
}

// IsKitchenEvent reports whether kitchen displays subscribe to this event.
func (e *Event) IsKitchenEvent() bool {
	switch e.Type {
	case EventTicketCreated, EventItemsAdded, EventTicketEscalated, EventOrderCancelled:
		return true
	}
	return false
}
