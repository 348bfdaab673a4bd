package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/jwtauth/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultBufferSize = 256
	dialTimeout       = 5 * time.Second
	publishTimeout    = 5 * time.Second
	drainTimeout      = 5 * time.Second
	minBackoff        = time.Second
	maxBackoff        = 30 * time.Second
)

var (
	ErrBufferFull      = errors.New("event buffer full")
	ErrPublisherClosed = errors.New("publisher closed")
	errBackoff         = errors.New("broker unavailable, retry pending")
)

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialAMQP is a seam for tests; it returns an open channel and the
// connection that owns it. Cancelling ctx aborts a pending dial and closes
// the connection.
var dialAMQP = func(ctx context.Context, url string) (amqpChannel, io.Closer, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			d := net.Dialer{Timeout: dialTimeout}
			c, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// bounds the handshake; cleared by amqp once the connection is open
			if err := c.SetDeadline(time.Now().Add(dialTimeout)); err != nil {
				_ = c.Close()
				return nil, err
			}
			context.AfterFunc(ctx, func() { _ = c.Close() })
			return c, nil
		},
	})
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn, nil
}

type AMQPOption func(*AMQPPublisher)

func WithAMQPLogger(l logging.Logger) AMQPOption {
	return func(p *AMQPPublisher) { p.logger = l.With("module", "amqp_publisher") }
}

// WithBufferSize sets how many events may wait for delivery before Publish
// starts dropping them.
func WithBufferSize(n int) AMQPOption {
	return func(p *AMQPPublisher) {
		if n > 0 {
			p.size = n
		}
	}
}

// AMQPPublisher sends events as persistent JSON messages to a durable queue
// through the default exchange.
//
// Publish only enqueues into a bounded buffer and never waits on the broker.
// A single goroutine dials lazily, delivers, and after a failure drops events
// until an exponential backoff window (1s up to 30s) has passed.
type AMQPPublisher struct {
	url    string
	queue  string
	size   int
	logger logging.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	// owned by the worker goroutine
	ch      amqpChannel
	conn    io.Closer
	backoff time.Duration
	retryAt time.Time
}

func NewAMQPPublisher(url, queue string, opts ...AMQPOption) *AMQPPublisher {
	p := &AMQPPublisher{
		url:    url,
		queue:  queue,
		size:   defaultBufferSize,
		logger: logging.Nop{},
		now:    time.Now,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.events = make(chan Event, p.size)
	p.ctx, p.cancel = context.WithCancel(context.Background())

	go p.run()
	return p
}

// Publish queues e for delivery. It returns ErrBufferFull when the buffer is
// full and ErrPublisherClosed after Close.
func (p *AMQPPublisher) Publish(_ context.Context, e Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.events <- e:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close stops accepting events, gives queued ones a bounded time to drain
// and closes the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-time.After(drainTimeout):
		p.cancel()
		<-p.done
	}
	p.cancel()
	return nil
}

func (p *AMQPPublisher) run() {
	defer close(p.done)
	defer p.reset()

	for e := range p.events {
		if err := p.deliver(e); err != nil {
			p.logger.Warn(p.ctx, "event dropped", "type", string(e.Type), "error", err)
		}
	}
}

func (p *AMQPPublisher) deliver(e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if p.ch == nil {
		if p.now().Before(p.retryAt) {
			return errBackoff
		}
		if err := p.connect(); err != nil {
			p.fail()
			return err
		}
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(e.Type),
		Timestamp:    e.OccurredAt,
		Body:         body,
	}

	ctx, cancel := context.WithTimeout(p.ctx, publishTimeout)
	defer cancel()
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.reset()
		p.fail()
		return fmt.Errorf("amqp publish: %w", err)
	}

	p.backoff = 0
	return nil
}

func (p *AMQPPublisher) connect() error {
	ch, conn, err := dialAMQP(p.ctx, p.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("amqp queue declare: %w", err)
	}

	p.ch, p.conn = ch, conn
	return nil
}

func (p *AMQPPublisher) fail() {
	p.backoff = min(max(2*p.backoff, minBackoff), maxBackoff)
	p.retryAt = p.now().Add(p.backoff)
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}
