package kitchen

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restaurant-pos/internal/events"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
)

// Monitor polls the active board and announces tickets whose priority rose
// since the previous poll.
type Monitor struct {
	name         string
	pollInterval time.Duration

	service    *Service
	dispatcher *events.Dispatcher
	logger     *logger.Logger

	// last seen priority per ticket on the board
	seen map[string]models.Priority

	// Graceful shutdown
	shutdown chan os.Signal
}

// NewMonitor creates a new escalation monitor
func NewMonitor(name string, pollInterval time.Duration, service *Service, d *events.Dispatcher, log *logger.Logger) *Monitor {
	return &Monitor{
		name:         name,
		pollInterval: pollInterval,
		service:      service,
		dispatcher:   d,
		logger:       log,
		seen:         make(map[string]models.Priority),
		shutdown:     make(chan os.Signal, 1),
	}
}

// Start runs the poll loop until ctx is cancelled or a shutdown signal arrives
func (m *Monitor) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()

	signal.Notify(m.shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(m.shutdown)

	m.logger.Info("monitor_started", fmt.Sprintf("Kitchen monitor %s started", m.name), requestID, map[string]interface{}{
		"monitor_name":  m.name,
		"poll_interval": m.pollInterval.Seconds(),
	})

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("graceful_shutdown", "Kitchen monitor stopped", requestID, nil)
			m.dispatcher.Wait()
			return nil
		case <-m.shutdown:
			m.logger.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
			m.dispatcher.Wait()
			return nil
		case <-ticker.C:
			if _, err := m.Poll(ctx); err != nil {
				m.logger.Error("board_poll_failed", "Failed to poll kitchen board", "", err, nil)
			}
		}
	}
}

// Poll reads the board once and emits ticket_escalated for every ticket whose
// priority went up. A ticket seen for the first time counts as NORMAL, so
// only HIGH and URGENT are announced on first sight. It returns the
// escalated ticket numbers.
func (m *Monitor) Poll(ctx context.Context) ([]string, error) {
	requestID := logger.GenerateRequestID()
	board, err := m.service.ActiveBoard(ctx)
	if err != nil {
		return nil, err
	}

	var (
		escalated []string
		evts      []*models.Event
	)
	onBoard := make(map[string]bool, len(board))
	for _, view := range board {
		onBoard[view.Number] = true
		prev, ok := m.seen[view.Number]
		if !ok {
			prev = models.PriorityNormal
		}
		m.seen[view.Number] = view.Priority
		if view.Priority.Rank() <= prev.Rank() {
			continue
		}

		e := models.NewEvent(models.EventTicketEscalated, view.OrderNumber, models.SystemActor)
		e.TicketNumber = view.Number
		e.Tables = view.Tables
		e.Priority = view.Priority
		e.OldStatus = string(prev)
		e.NewStatus = string(view.Priority)
		evts = append(evts, e)
		escalated = append(escalated, view.Number)

		m.logger.Warn("ticket_escalated", fmt.Sprintf("Ticket %s escalated to %s", view.Number, view.Priority), requestID, map[string]interface{}{
			"ticket_number": view.Number,
			"order_number":  view.OrderNumber,
			"old_priority":  string(prev),
			"new_priority":  string(view.Priority),
			"worst_ratio":   view.WorstRatio,
		})
	}

	for number := range m.seen {
		if !onBoard[number] {
			delete(m.seen, number)
		}
	}

	m.logger.Debug("board_polled", "Kitchen board polled", requestID, map[string]interface{}{
		"tickets":   len(board),
		"escalated": len(escalated),
	})
	m.dispatcher.Publish(requestID, evts...)
	return escalated, nil
}
