package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"trackmystacks/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Client publishes and consumes snapshot events on a durable direct
// exchange. Publishing stops for openTimeout after maxFailures consecutive
// failures so a dead broker does not slow down every import.
type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu          sync.Mutex
	conn        *amqp091.Connection
	channel     *amqp091.Channel
	lastFailure time.Time

	state        int32
	failureCount int64
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if _, err := client.ensureChannel(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) logger(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentAMQP)
}

// ensureChannel returns an open channel, dialing and declaring the topology
// again if the previous connection was lost.
func (c *Client) ensureChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.conn, c.channel = conn, channel
	return channel, nil
}

func setup(ch *amqp091.Channel, exchangeName, queueName string) error {
	err := ch.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// routing key is the queue name
	if err := ch.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// PublishSnapshotEvent publishes ev as a persistent JSON message.
func (c *Client) PublishSnapshotEvent(ctx context.Context, ev *SnapshotEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish snapshot event: %w", ErrCircuitOpen)
	}

	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.ensureChannel()
	if err != nil {
		c.recordFailure()
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		pubCtx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    ev.ID.String(),
			Timestamp:    ev.Timestamp,
			Type:         string(ev.Kind),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.reset()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.logger(ctx).InfoContext(ctx, "Published snapshot event",
		log.FieldEventID, ev.ID.String(),
		log.FieldEventKind, ev.Kind,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// ConsumeSnapshotEvents hands every event to handler until ctx is done.
// A handler error requeues the message; undecodable messages are dropped.
// Lost connections are re-dialed with exponential backoff.
func (c *Client) ConsumeSnapshotEvents(ctx context.Context, handler func(context.Context, *SnapshotEvent) error) error {
	logger := c.logger(ctx)
	for attempt := 0; ; attempt++ {
		err := c.consume(ctx, handler)
		if ctx.Err() != nil {
			logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		logger.WarnContext(ctx, "AMQP connection lost, reconnecting",
			log.FieldError, err, "attempt", attempt+1, "backoff", wait)
		c.reset()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consume(ctx context.Context, handler func(context.Context, *SnapshotEvent) error) error {
	ch, err := c.ensureChannel()
	if err != nil {
		return err
	}

	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	logger := c.logger(ctx)
	logger.InfoContext(ctx, "Started consuming snapshot events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed: %w", amqp091.ErrClosed)
			}

			ev, err := SnapshotEventFromJSON(delivery.Body)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to unmarshal message", log.FieldError, err)
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}

			if err := handler(ctx, ev); err != nil {
				logger.ErrorContext(ctx, "Failed to handle snapshot event",
					log.FieldEventID, ev.ID.String(), log.FieldError, err)
				delivery.Nack(false, true) // reject and requeue
				continue
			}

			delivery.Ack(false)
			logger.DebugContext(ctx, "Processed snapshot event", log.FieldEventID, ev.ID.String())
		}
	}
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns 1s, 2s, 4s, ... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection refused", "connection reset", "connection closed", "EOF", "broken pipe", "use of closed network connection"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	return err
}
