// Package publisher announces judged submissions on the event exchange.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/domain"
)

const (
	exchangeName = "arena.events"
	exchangeType = "topic"
	routingKey   = "submission.judged"

	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 30 * time.Second

	publishTimeout = 5 * time.Second
)

var errChannelUnavailable = errors.New("rabbitmq: channel not available (reconnecting)")

// Publisher emits submission events to the message broker.
type Publisher interface {
	PublishJudged(ctx context.Context, event *domain.SubmissionJudgedEvent) error
	Close() error
}

type rabbitPublisher struct {
	url    string
	logger *zap.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	confirm chan amqp.Confirmation
	closed  bool

	// publishes share one confirm stream, so they go out one at a time
	sendMu sync.Mutex
}

// NewRabbitMQPublisher dials the broker and declares the event exchange.
func NewRabbitMQPublisher(url string, logger *zap.Logger) (Publisher, error) {
	p := &rabbitPublisher{
		url:    url,
		logger: logger,
	}

	if err := p.connect(); err != nil {
		return nil, err
	}

	go p.watchConnection()

	return p, nil
}

func (p *rabbitPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq: channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: enable confirms: %w", err)
	}

	if err := ch.ExchangeDeclare(exchangeName, exchangeType, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}

	p.mu.Lock()
	p.conn = conn
	p.channel = ch
	p.confirm = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.mu.Unlock()

	p.logger.Info("RabbitMQ publisher initialized",
		zap.String("exchange", exchangeName),
		zap.String("routing_key", routingKey),
	)

	return nil
}

// watchConnection reconnects with capped exponential backoff.
func (p *rabbitPublisher) watchConnection() {
	for {
		p.mu.RLock()
		if p.closed {
			p.mu.RUnlock()
			return
		}
		conn := p.conn
		p.mu.RUnlock()

		reason, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
		if !ok {
			return
		}

		p.logger.Warn("RabbitMQ connection lost, reconnecting...",
			zap.String("reason", reason.Error()),
		)

		p.mu.Lock()
		p.channel = nil
		p.mu.Unlock()

		delay := reconnectDelay
		for {
			p.mu.RLock()
			closed := p.closed
			p.mu.RUnlock()
			if closed {
				return
			}

			time.Sleep(delay)

			if err := p.connect(); err != nil {
				p.logger.Warn("RabbitMQ reconnect failed", zap.Error(err), zap.Duration("retry_in", delay))
				delay = min(delay*2, maxReconnectDelay)
				continue
			}

			p.logger.Info("RabbitMQ reconnected successfully")
			break
		}
	}
}

func (p *rabbitPublisher) PublishJudged(ctx context.Context, event *domain.SubmissionJudgedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	p.mu.RLock()
	ch, confirm := p.channel, p.confirm
	p.mu.RUnlock()

	if ch == nil {
		return errChannelUnavailable
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(publishCtx,
		exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.SubmissionID.String(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	select {
	case ack, ok := <-confirm:
		if !ok {
			return errChannelUnavailable
		}
		if !ack.Ack {
			return fmt.Errorf("rabbitmq: broker nacked event (submission_id=%s)", event.SubmissionID)
		}
	case <-publishCtx.Done():
		return fmt.Errorf("rabbitmq: publish confirmation timeout (submission_id=%s)", event.SubmissionID)
	}

	p.logger.Debug("Published judged event",
		zap.String("submission_id", event.SubmissionID.String()),
		zap.String("status", string(event.Status)),
		zap.Int("body_size", len(body)),
	)
	return nil
}

func (p *rabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
