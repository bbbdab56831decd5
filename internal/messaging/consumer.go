package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"restaurant-pos/internal/logger"
)

// ErrPoisonMessage marks a delivery that can never be processed; it is
// dropped instead of requeued.
var ErrPoisonMessage = errors.New("poison message")

// MessageHandler processes one delivery body
type MessageHandler func(ctx context.Context, body []byte) error

// Consumer handles message consumption from RabbitMQ
type Consumer struct {
	conn        *Connection
	logger      *logger.Logger
	queueName   string
	consumerTag string
	prefetch    int
}

// NewConsumer creates a new message consumer
func NewConsumer(conn *Connection, log *logger.Logger, queueName, consumerTag string, prefetch int) *Consumer {
	return &Consumer{
		conn:        conn,
		logger:      log,
		queueName:   queueName,
		consumerTag: consumerTag,
		prefetch:    prefetch,
	}
}

// StartConsuming consumes until ctx is cancelled, reconnecting when the channel closes
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	for {
		err := c.consume(ctx, handler)
		if ctx.Err() != nil {
			c.logger.Info("consumer_stopped", "Consumer stopped by context", "", nil)
			return ctx.Err()
		}

		c.logger.Error("consumer_channel_closed", "Message channel closed, attempting to reconnect", "", err, nil)
		if err := c.conn.Reconnect(ctx); err != nil {
			return fmt.Errorf("failed to reconnect after channel closed: %w", err)
		}
	}
}

func (c *Consumer) consume(ctx context.Context, handler MessageHandler) error {
	ch := c.conn.Channel()

	err := ch.Qos(
		c.prefetch, // prefetch count
		0,          // prefetch size
		false,      // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		c.queueName,   // queue
		c.consumerTag, // consumer
		false,         // auto-ack (we'll ack manually)
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("consumer_started",
		fmt.Sprintf("Started consuming from queue %s", c.queueName),
		"", map[string]interface{}{
			"queue":    c.queueName,
			"consumer": c.consumerTag,
			"prefetch": c.prefetch,
		})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.processMessage(ctx, d, handler)
		}
	}
}

// processMessage handles a single message
func (c *Consumer) processMessage(ctx context.Context, delivery amqp091.Delivery, handler MessageHandler) {
	startTime := time.Now()
	fields := map[string]interface{}{
		"queue":        c.queueName,
		"routing_key":  delivery.RoutingKey,
		"delivery_tag": delivery.DeliveryTag,
	}

	processingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := handler(processingCtx, delivery.Body)
	fields["duration_ms"] = time.Since(startTime).Milliseconds()

	switch {
	case err == nil:
		c.logger.Debug("message_processed", "Successfully processed message", "", fields)
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("message_ack_failed", "Failed to ack message", "", ackErr, nil)
		}
	case errors.Is(err, ErrPoisonMessage):
		c.logger.Error("message_dropped", "Dropping unprocessable message", "", err, fields)
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			c.logger.Error("message_nack_failed", "Failed to nack message", "", nackErr, nil)
		}
	default:
		c.logger.Error("message_processing_failed", "Failed to process message", "", err, fields)
		if nackErr := delivery.Nack(false, !delivery.Redelivered); nackErr != nil {
			c.logger.Error("message_nack_failed", "Failed to nack message", "", nackErr, nil)
		}
	}
}

// ParseMessage parses a JSON message into v; malformed bodies are poison messages
func ParseMessage(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrPoisonMessage, err)
	}
	return nil
}

// Close stops consuming messages
func (c *Consumer) Close() error {
	if !c.conn.IsClosed() {
		if err := c.conn.Channel().Cancel(c.consumerTag, false); err != nil {
			c.logger.Error("consumer_cancel_failed", "Failed to cancel consumer", "", err, nil)
		}
		return c.conn.Close()
	}
	return nil
}
