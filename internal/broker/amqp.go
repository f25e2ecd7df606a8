// Package broker forwards notification events to RabbitMQ so out-of-process
// workers (SMS, push) can react to them.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/bloodbridge/bloodbridge/internal/notifications"
	"github.com/bloodbridge/bloodbridge/pkg/logger"
)

const (
	defaultPublishTimeout = 5 * time.Second
	defaultQueueSize      = 1024
	closeTimeout          = 10 * time.Second
)

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher implements notifications.Publisher over a topic exchange.
// Routing keys are event names, e.g. notification.created. Publish only
// enqueues; a single worker talks to the broker, so a stalled broker never
// holds up the caller. Events are dropped when the queue is full.
type AMQPPublisher struct {
	mu     sync.RWMutex
	closed bool
	queue  chan notifications.Event
	done   chan struct{}

	conn     *amqp.Connection
	channel  Channel
	exchange string
	timeout  time.Duration
	dropped  atomic.Uint64
	log      *zap.Logger
}

// Option customises an AMQPPublisher.
type Option func(*AMQPPublisher)

// WithQueueSize bounds the number of events waiting for the worker.
func WithQueueSize(n int) Option {
	return func(p *AMQPPublisher) {
		if n > 0 {
			p.queue = make(chan notifications.Event, n)
		}
	}
}

// WithPublishTimeout bounds a single broker publish.
func WithPublishTimeout(d time.Duration) Option {
	return func(p *AMQPPublisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string, opts ...Option) (*AMQPPublisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("broker: url is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("broker: connect: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("broker: open channel: %w", err)
	}

	p, err := NewAMQPPublisher(ch, exchange, opts...)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewAMQPPublisher wraps an open channel and starts the publishing worker.
func NewAMQPPublisher(ch Channel, exchange string, opts ...Option) (*AMQPPublisher, error) {
	if ch == nil {
		return nil, errors.New("broker: channel is required")
	}
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		return nil, errors.New("broker: exchange is required")
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("broker: declare exchange: %w", err)
	}

	p := &AMQPPublisher{
		queue:    make(chan notifications.Event, defaultQueueSize),
		done:     make(chan struct{}),
		channel:  ch,
		exchange: exchange,
		timeout:  defaultPublishTimeout,
		log:      logger.WithModule("broker"),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.run()
	return p, nil
}

// Publish implements notifications.Publisher. It never blocks.
func (p *AMQPPublisher) Publish(_ context.Context, event notifications.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}
	select {
	case p.queue <- event:
	default:
		p.dropped.Add(1)
		p.log.Warn("broker queue full; dropping notification event",
			zap.String("event", event.Name),
			zap.String("user_id", event.UserID))
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (p *AMQPPublisher) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *AMQPPublisher) run() {
	defer close(p.done)
	for event := range p.queue {
		if err := p.publish(event); err != nil {
			p.log.Warn("publish notification event failed",
				zap.String("event", event.Name),
				zap.String("user_id", event.UserID),
				zap.Error(err))
		}
	}
}

func (p *AMQPPublisher) publish(event notifications.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	return p.channel.PublishWithContext(ctx, p.exchange, event.Name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// Ping reports whether the underlying connection is still open.
func (p *AMQPPublisher) Ping(context.Context) error {
	if p.conn != nil && p.conn.IsClosed() {
		return amqp.ErrClosed
	}
	return nil
}

// Close stops accepting events, lets the worker drain the queue for a bounded
// time, then releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-time.After(closeTimeout):
		p.log.Warn("broker queue not drained before close", zap.Int("pending", len(p.queue)))
	}

	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
