// Package amqp feeds judged-submission events from RabbitMQ to the worker pool.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqplib "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/domain"
)

const (
	exchangeName = "arena.events"
	routingKey   = "submission.judged"
	queueName    = "leaderboard_events"
	dlxName      = "arena.events.dlx"
	dlqName      = "leaderboard_events.dlq"

	maxReconnectDelay  = 30 * time.Second
	baseReconnectDelay = 1 * time.Second
)

var errDeliveriesClosed = errors.New("amqp: delivery channel closed")

// Consumer wraps each delivery in an EventMessage whose Ack/Nack the worker
// pool calls after processing.
type Consumer struct {
	url      string
	prefetch int
	events   chan<- *domain.EventMessage
	logger   *zap.Logger

	mu      sync.Mutex
	conn    *amqplib.Connection
	channel *amqplib.Channel
	closed  bool
	closeCh chan struct{}
}

// NewConsumer dials the broker and declares the event topology. prefetch caps
// unacknowledged deliveries and should match the pool size.
func NewConsumer(url string, prefetch int, events chan<- *domain.EventMessage, logger *zap.Logger) (*Consumer, error) {
	c := &Consumer{
		url:      url,
		prefetch: max(prefetch, 1),
		events:   events,
		logger:   logger,
		closeCh:  make(chan struct{}),
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Consumer) connect() error {
	conn, err := amqplib.Dial(c.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}

	if err := declareTopology(ch, c.prefetch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	return nil
}

func declareTopology(ch *amqplib.Channel, prefetch int) error {
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("amqp qos: %w", err)
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(dlxName, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqName, "", dlxName, false, nil); err != nil {
		return fmt.Errorf("amqp bind DLQ: %w", err)
	}
	_, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqplib.Table{
			"x-queue-type":           "quorum",
			"x-dead-letter-exchange": dlxName,
		},
	)
	if err != nil {
		return fmt.Errorf("amqp queue declare: %w", err)
	}
	if err := ch.QueueBind(queueName, routingKey, exchangeName, false, nil); err != nil {
		return fmt.Errorf("amqp bind queue: %w", err)
	}
	return nil
}

// Start consumes until ctx is cancelled or Close is called, reconnecting
// with exponential backoff when the connection drops.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if err == nil {
			return nil
		}

		select {
		case <-c.closeCh:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		c.logger.Warn("AMQP consumer lost connection, reconnecting...", zap.Error(err))

		delay := baseReconnectDelay
		for attempt := 1; ; attempt++ {
			select {
			case <-c.closeCh:
				return nil
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}

			if err := c.connect(); err != nil {
				c.logger.Error("Reconnect failed",
					zap.Int("attempt", attempt),
					zap.Duration("delay", delay),
					zap.Error(err),
				)
				delay = min(delay*2, maxReconnectDelay)
				continue
			}

			c.logger.Info("Reconnected to RabbitMQ", zap.Int("attempt", attempt))
			break
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()

	if ch == nil {
		return errors.New("amqp: channel is nil")
	}

	deliveries, err := ch.Consume(
		queueName,
		"",    // auto-generated consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}

	c.logger.Info("AMQP consumer started",
		zap.String("queue", queueName),
		zap.Int("prefetch", c.prefetch),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("AMQP consumer stopping (context cancelled)")
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}

			msg, err := toMessage(delivery)
			if err != nil {
				c.logger.Error("Failed to decode event",
					zap.Error(err),
					zap.String("body", string(delivery.Body)),
				)
				delivery.Nack(false, false) // dead-letter
				continue
			}

			select {
			case c.events <- msg:
			case <-ctx.Done():
				delivery.Nack(false, true)
				return nil
			}
		}
	}
}

// Acknowledger is the part of a delivery's channel an EventMessage needs.
type Acknowledger interface {
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple, requeue bool) error
}

func toMessage(d amqplib.Delivery) (*domain.EventMessage, error) {
	var event domain.SubmissionJudgedEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	msg := NewEventMessage(&event, d.Acknowledger, d.DeliveryTag)
	msg.Redelivered = d.Redelivered
	return msg, nil
}

// NewEventMessage binds an event to its delivery tag on ack.
func NewEventMessage(event *domain.SubmissionJudgedEvent, ack Acknowledger, tag uint64) *domain.EventMessage {
	return &domain.EventMessage{
		Event: event,
		Ack: func() error {
			return ack.Ack(tag, false)
		},
		Nack: func(requeue bool) error {
			return ack.Nack(tag, false, requeue)
		},
	}
}

// Close shuts the consumer down; Start returns afterwards.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeCh)

	var errs []error
	if c.channel != nil {
		errs = append(errs, c.channel.Close())
	}
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
	}
	return errors.Join(errs...)
}
