// Package events delivers POS events to the notification and printing
// collaborators. Delivery is fire-and-forget: a failing notifier is logged and
// never fails the operation that produced the event.
package events

import (
	"context"
	"sync"
	"time"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
)

const dispatchTimeout = 5 * time.Second

// Notifier receives committed POS events
type Notifier interface {
	Notify(ctx context.Context, event *models.Event) error
}

// Nop drops every event
type Nop struct{}

func (Nop) Notify(context.Context, *models.Event) error { return nil }

// Dispatcher sends events in the background so callers never wait on the broker.
// A single worker drains the queue, so events reach the notifier in the order
// they were published.
type Dispatcher struct {
	notifier Notifier
	logger   *logger.Logger

	mu      sync.Mutex
	queue   []batch
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	pending sync.WaitGroup
}

type batch struct {
	requestID string
	events    []*models.Event
}

func NewDispatcher(n Notifier, log *logger.Logger) *Dispatcher {
	if n == nil {
		n = Nop{}
	}
	d := &Dispatcher{
		notifier: n,
		logger:   log,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish enqueues events and returns immediately. The request context is not
// used so a finished HTTP request does not cancel delivery.
func (d *Dispatcher) Publish(requestID string, evts ...*models.Event) {
	if len(evts) == 0 {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("event_publish_dropped", "Dispatcher closed, dropping events", requestID, map[string]interface{}{
			"count": len(evts),
		})
		return
	}
	d.pending.Add(1)
	d.queue = append(d.queue, batch{requestID: requestID, events: evts})
	d.mu.Unlock()

	d.signal()
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			closed := d.closed
			d.mu.Unlock()
			if closed {
				return
			}
			<-d.wake
			continue
		}
		b := d.queue[0]
		d.queue[0] = batch{}
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.deliver(b)
		d.pending.Done()
	}
}

func (d *Dispatcher) deliver(b batch) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	for _, e := range b.events {
		if err := d.notifier.Notify(ctx, e); err != nil {
			d.logger.Warn("event_publish_failed", "Failed to publish event", b.requestID, map[string]interface{}{
				"event":        string(e.Type),
				"order_number": e.OrderNumber,
				"error":        err.Error(),
			})
		}
	}
}

// Wait blocks until everything published so far has been delivered
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

// Close delivers what is queued and stops the worker. Events published after
// Close are dropped.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.signal()
	<-d.done
}

// Recorder keeps every event it receives; used by tests and local runs.
type Recorder struct {
	mu     sync.Mutex
	events []*models.Event
	Err    error
}

func (r *Recorder) Notify(_ context.Context, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.Err
}

// Events returns a snapshot of recorded events
func (r *Recorder) Events() []*models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order
func (r *Recorder) Types() []models.EventType {
	var types []models.EventType
	for _, e := range r.Events() {
		types = append(types, e.Type)
	}
	return types
}
