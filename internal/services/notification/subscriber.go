// Package notification consumes POS events from the notifications queue and
// renders them as printer / console lines.
package notification

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/messaging"
	"restaurant-pos/internal/models"
)

// Source delivers raw message bodies; *messaging.Consumer satisfies it.
type Source interface {
	StartConsuming(ctx context.Context, handler messaging.MessageHandler) error
	Close() error
}

// Subscriber handles notification messages
type Subscriber struct {
	source Source
	out    io.Writer
	logger *logger.Logger

	// Graceful shutdown
	shutdown chan os.Signal
	done     chan bool
}

// NewSubscriber creates a new notification subscriber printing to out
func NewSubscriber(source Source, out io.Writer, log *logger.Logger) *Subscriber {
	return &Subscriber{
		source:   source,
		out:      out,
		logger:   log,
		shutdown: make(chan os.Signal, 1),
		done:     make(chan bool, 1),
	}
}

// Start starts the notification subscriber
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()

	signal.Notify(s.shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.shutdown)

	s.logger.Info("service_started", "Notification subscriber started", requestID, nil)

	go func() {
		if err := s.source.StartConsuming(ctx, s.HandleMessage); err != nil && ctx.Err() == nil {
			s.logger.Error("consumer_failed", "Notification consumer failed", requestID, err, nil)
		}
		s.done <- true
	}()

	select {
	case <-s.shutdown:
		s.logger.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
		return s.gracefulShutdown(requestID)
	case <-ctx.Done():
		return s.gracefulShutdown(requestID)
	case <-s.done:
		return nil
	}
}

// HandleMessage decodes one event and prints it. Undecodable bodies are
// reported as poison so the consumer drops them.
func (s *Subscriber) HandleMessage(ctx context.Context, body []byte) error {
	requestID := logger.GenerateRequestID()

	var event models.Event
	if err := messaging.ParseMessage(body, &event); err != nil {
		s.logger.Error("message_parsing_failed", "Failed to parse notification message", requestID, err, nil)
		return err
	}
	if event.Type == "" || event.OrderNumber == "" {
		err := fmt.Errorf("%w: event without type or order number", messaging.ErrPoisonMessage)
		s.logger.Error("message_parsing_failed", "Incomplete notification message", requestID, err, nil)
		return err
	}

	s.logger.Debug("notification_received", "Received POS event", requestID, map[string]interface{}{
		"type":         string(event.Type),
		"order_number": event.OrderNumber,
		"changed_by":   event.ChangedBy,
	})

	if _, err := fmt.Fprintln(s.out, Format(&event)); err != nil {
		return err
	}

	s.logger.Info("notification_displayed", "Notification displayed", requestID, map[string]interface{}{
		"type":          string(event.Type),
		"order_number":  event.OrderNumber,
		"ticket_number": event.TicketNumber,
		"timestamp":     event.Timestamp.Format("2006-01-02 15:04:05"),
	})
	return nil
}

// Format creates a human-readable line for an event
func Format(e *models.Event) string {
	timestamp := e.Timestamp.Format("2006-01-02 15:04:05")
	where := ""
	if len(e.Tables) > 0 {
		where = " (tables " + strings.Join(e.Tables, ", ") + ")"
	}

	switch e.Type {
	case models.EventTicketCreated:
		return fmt.Sprintf("[%s] KOT %s for order %s%s: %s", timestamp, e.TicketNumber, e.OrderNumber, where, strings.Join(e.Items, "; "))
	case models.EventItemsAdded:
		return fmt.Sprintf("[%s] KOT %s extra items for order %s%s: %s", timestamp, e.TicketNumber, e.OrderNumber, where, strings.Join(e.Items, "; "))
	case models.EventItemReady:
		return fmt.Sprintf("[%s] %s is ready for order %s%s", timestamp, e.ItemName, e.OrderNumber, where)
	case models.EventTicketEscalated:
		return fmt.Sprintf("[%s] KOT %s escalated %s -> %s%s", timestamp, e.TicketNumber, e.OldStatus, e.NewStatus, where)
	case models.EventOrderSettled:
		amount := ""
		if e.Amount != nil {
			amount = " for " + e.Amount.StringFixed(2)
		}
		return fmt.Sprintf("[%s] Order %s settled%s by %s", timestamp, e.OrderNumber, amount, e.ChangedBy)
	case models.EventOrderCancelled:
		return fmt.Sprintf("[%s] Order %s has been cancelled%s", timestamp, e.OrderNumber, where)
	}
	return fmt.Sprintf("[%s] Order %s status changed from '%s' to '%s' by %s", timestamp, e.OrderNumber, e.OldStatus, e.NewStatus, e.ChangedBy)
}

// gracefulShutdown handles graceful shutdown of the subscriber
func (s *Subscriber) gracefulShutdown(requestID string) error {
	s.logger.Info("graceful_shutdown", "Starting graceful shutdown", requestID, nil)

	if s.source != nil {
		if err := s.source.Close(); err != nil {
			s.logger.Error("consumer_close_failed", "Failed to close consumer", requestID, err, nil)
		}
	}

	s.logger.Info("graceful_shutdown", "Graceful shutdown completed", requestID, nil)
	return nil
}
