package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler processes one delivery and is responsible for acking or
// rejecting it. A returned error is logged only.
type MessageHandler func(ctx context.Context, ch Channel, delivery amqp.Delivery) error

// Consumer registers the session's consumer on a ChannelOwner
type Consumer struct {
	owner       *ChannelOwner
	exclusive   bool
	consumerTag string
	logger      *slog.Logger
	mu          sync.Mutex
	queue       string
}

// ConsumerOption configures the consumer
type ConsumerOption func(*Consumer)

// WithExclusive sets exclusive consumer mode
func WithExclusive(exclusive bool) ConsumerOption {
	return func(c *Consumer) {
		c.exclusive = exclusive
	}
}

// WithConsumerTag sets the consumer tag
func WithConsumerTag(tag string) ConsumerOption {
	return func(c *Consumer) {
		c.consumerTag = tag
	}
}

// WithConsumerLogger sets the logger
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// NewConsumer creates a new consumer
func NewConsumer(owner *ChannelOwner, options ...ConsumerOption) *Consumer {
	c := &Consumer{
		owner:       owner,
		consumerTag: "coolq-amq-" + uuid.New().String(),
		logger:      slog.Default(),
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// ConsumerTag returns the tag the consumer registers with
func (c *Consumer) ConsumerTag() string {
	return c.consumerTag
}

// Queue returns the queue being consumed, empty before Subscribe
func (c *Consumer) Queue() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue
}

// Subscribe starts consuming queue with manual acknowledgment
func (c *Consumer) Subscribe(ctx context.Context, queue string, handler MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.queue != "" {
		return &ConsumerError{
			Queue:       queue,
			ConsumerTag: c.consumerTag,
			Op:          "subscribe",
			Err:         ErrAlreadyConsuming,
			Timestamp:   time.Now(),
		}
	}

	var deliveries <-chan amqp.Delivery
	err := c.owner.Execute(ctx, func(ch Channel) error {
		var err error
		deliveries, err = ch.Consume(
			queue,
			c.consumerTag,
			false, // auto-ack
			c.exclusive,
			false, // no-local
			false, // no-wait
			nil,
		)
		return err
	})
	if err != nil {
		return &ConsumerError{
			Queue:       queue,
			ConsumerTag: c.consumerTag,
			Op:          "subscribe",
			Err:         err,
			Timestamp:   time.Now(),
		}
	}

	if err := c.owner.Attach(ctx, queue, deliveries, c.wrapHandler(queue, handler)); err != nil {
		return &ConsumerError{
			Queue:       queue,
			ConsumerTag: c.consumerTag,
			Op:          "attach",
			Err:         err,
			Timestamp:   time.Now(),
		}
	}
	c.queue = queue

	c.logger.Info("subscribed to queue",
		"queue", queue,
		"consumerTag", c.consumerTag,
	)

	return nil
}

// wrapHandler rejects deliveries whose handler panicked
func (c *Consumer) wrapHandler(queue string, handler MessageHandler) DeliveryHandler {
	return func(ctx context.Context, ch Channel, delivery amqp.Delivery) {
		if err := c.handleMessage(ctx, ch, delivery, handler); err != nil {
			c.logger.Error("failed to handle message",
				"error", err,
				"queue", queue,
				"deliveryTag", delivery.DeliveryTag,
			)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, ch Channel, delivery amqp.Delivery, handler MessageHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in message handler: %v", r)
			if rejectErr := delivery.Reject(false); rejectErr != nil {
				c.logger.Error("failed to reject message",
					"error", rejectErr,
					"originalError", err,
				)
			}
		}
	}()
	return handler(ctx, ch, delivery)
}
