// Package amqp implements queue.Consumer on RabbitMQ. It adapts the broker's
// push delivery onto the pull-based Consumer contract: deliveries buffer on
// the channel's prefetch window and Receive drains them in batches.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/leadworks/leadgate/internal/queue"
)

const (
	maxBatch  = 10
	waitTime  = 5 * time.Second
	prefetch  = 2 * maxBatch
	baseDelay = time.Second
	capDelay  = 30 * time.Second
)

type Config struct {
	URL   string
	Queue string
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	conn      *amqp.Connection
	ch        *amqp.Channel
	msgs      <-chan amqp.Delivery
	closeCh   chan *amqp.Error
	// Deliveries handed out by Receive but not yet acked or nacked, keyed by
	// delivery tag. A reconnect invalidates all of them; the broker will
	// redeliver.
	pending map[uint64]amqp.Delivery
	closed  bool
}

func New(cfg Config, logger *slog.Logger) (*Consumer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Consumer{cfg: cfg, logger: logger, pending: map[uint64]amqp.Delivery{}}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Consumer) connect() error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("amqp: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp: open channel: %w", err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("amqp: qos: %w", err)
	}
	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("amqp: declare queue %s: %w", c.cfg.Queue, err)
	}
	msgs, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("amqp: consume: %w", err)
	}

	c.conn = conn
	c.ch = ch
	c.msgs = msgs
	c.closeCh = conn.NotifyClose(make(chan *amqp.Error, 1))
	c.pending = map[uint64]amqp.Delivery{}
	return nil
}

// Receive waits up to waitTime for the first delivery, then drains whatever
// else is already buffered, up to maxBatch. A broker disconnect triggers an
// in-place reconnect with capped exponential backoff.
func (c *Consumer) Receive(ctx context.Context) ([]queue.Delivery, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("amqp: consumer closed")
	}
	msgs, closeCh := c.msgs, c.closeCh
	c.mu.Unlock()

	timer := time.NewTimer(waitTime)
	defer timer.Stop()

	var batch []queue.Delivery
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case aerr := <-closeCh:
		return nil, c.reconnectLoop(ctx, aerr)
	case d, ok := <-msgs:
		if !ok {
			return nil, c.reconnectLoop(ctx, nil)
		}
		batch = append(batch, c.track(d))
	}

	for len(batch) < maxBatch {
		select {
		case d, ok := <-msgs:
			if !ok {
				return batch, nil
			}
			batch = append(batch, c.track(d))
		default:
			return batch, nil
		}
	}
	return batch, nil
}

func (c *Consumer) track(d amqp.Delivery) queue.Delivery {
	c.mu.Lock()
	c.pending[d.DeliveryTag] = d
	c.mu.Unlock()

	return queue.Delivery{
		MessageID:     d.MessageId,
		ReceiptHandle: strconv.FormatUint(d.DeliveryTag, 10),
		Body:          d.Body,
		Received:      time.Now().UTC(),
	}
}

func (c *Consumer) Delete(ctx context.Context, qd queue.Delivery) error {
	d, err := c.take(qd)
	if err != nil {
		return err
	}
	if err := d.Ack(false); err != nil {
		return fmt.Errorf("amqp: ack %s: %w", qd.ReceiptHandle, err)
	}
	return nil
}

// Release nacks with requeue so the broker redelivers promptly.
func (c *Consumer) Release(ctx context.Context, qd queue.Delivery) error {
	d, err := c.take(qd)
	if err != nil {
		return err
	}
	if err := d.Nack(false, true); err != nil {
		return fmt.Errorf("amqp: nack %s: %w", qd.ReceiptHandle, err)
	}
	return nil
}

func (c *Consumer) take(qd queue.Delivery) (amqp.Delivery, error) {
	tag, err := strconv.ParseUint(qd.ReceiptHandle, 10, 64)
	if err != nil {
		return amqp.Delivery{}, fmt.Errorf("amqp: bad receipt handle %q", qd.ReceiptHandle)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.pending[tag]
	if !ok {
		// Lost to a reconnect; the broker already requeued it.
		return amqp.Delivery{}, fmt.Errorf("amqp: delivery %d no longer pending", tag)
	}
	delete(c.pending, tag)
	return d, nil
}

func (c *Consumer) reconnectLoop(ctx context.Context, cause *amqp.Error) error {
	c.logger.Warn("amqp connection lost, reconnecting", "error", cause)

	backoff := baseDelay
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return fmt.Errorf("amqp: consumer closed")
		}

		err := func() error {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.conn != nil && !c.conn.IsClosed() {
				_ = c.conn.Close()
			}
			return c.connect()
		}()
		if err == nil {
			c.logger.Info("amqp reconnected", "queue", c.cfg.Queue)
			return nil
		}

		c.logger.Warn("amqp reconnect failed", "error", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff*2 <= capDelay {
			backoff *= 2
		}
	}
}

func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn.Close()
	}
	return nil
}
