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

// Channel is the subset of *amqp.Channel used by a session
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	NotifyClose(c chan *amqp.Error) chan *amqp.Error
	Close() error
}

// DeliveryHandler runs on the owner goroutine. ch may be used directly for
// replies; acks go through the delivery's Acknowledger, which is the same channel.
type DeliveryHandler func(ctx context.Context, ch Channel, delivery amqp.Delivery)

// ChannelOwner serializes every operation on one channel through a single
// goroutine. Operations submitted with Execute and deliveries attached with
// Attach never run concurrently.
type ChannelOwner struct {
	ch        Channel
	id        string
	logger    *slog.Logger
	ops       chan channelOp
	attach    chan subscription
	done      chan struct{}
	stopped   chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

type channelOp struct {
	fn     func(Channel) error
	result chan error
}

type subscription struct {
	queue      string
	deliveries <-chan amqp.Delivery
	handler    DeliveryHandler
}

// ChannelOwnerOption configures the channel owner
type ChannelOwnerOption func(*ChannelOwner)

// WithChannelLogger sets the logger
func WithChannelLogger(logger *slog.Logger) ChannelOwnerOption {
	return func(o *ChannelOwner) {
		o.logger = logger
	}
}

// NewChannelOwner takes ownership of ch and starts its goroutine
func NewChannelOwner(ch Channel, options ...ChannelOwnerOption) *ChannelOwner {
	ctx, cancel := context.WithCancel(context.Background())
	o := &ChannelOwner{
		ch:      ch,
		id:      uuid.New().String(),
		logger:  slog.Default(),
		ops:     make(chan channelOp),
		attach:  make(chan subscription),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	for _, opt := range options {
		opt(o)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	go o.run(closed)

	return o
}

// ID returns the owner's identifier used in logs and errors
func (o *ChannelOwner) ID() string {
	return o.id
}

// Execute runs fn on the owner goroutine and waits for its result.
// It must not be called from a DeliveryHandler.
func (o *ChannelOwner) Execute(ctx context.Context, fn func(Channel) error) error {
	req := channelOp{fn: fn, result: make(chan error, 1)}

	select {
	case o.ops <- req:
	case <-o.done:
		return o.closedError("execute")
	case <-ctx.Done():
		return &ChannelError{
			Op:        "execute",
			ChannelID: o.id,
			Err:       ctx.Err(),
			Timestamp: time.Now(),
		}
	}

	return <-req.result
}

// Attach hands a delivery stream to the owner. Each delivery is passed to
// handler on the owner goroutine, one at a time.
func (o *ChannelOwner) Attach(ctx context.Context, queue string, deliveries <-chan amqp.Delivery, handler DeliveryHandler) error {
	select {
	case o.attach <- subscription{queue: queue, deliveries: deliveries, handler: handler}:
		return nil
	case <-o.done:
		return o.closedError("attach")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the owner has stopped
func (o *ChannelOwner) Done() <-chan struct{} {
	return o.stopped
}

// Close stops the owner goroutine, waiting for an in-flight operation or
// delivery to finish, then closes the channel.
func (o *ChannelOwner) Close() error {
	o.closeOnce.Do(func() {
		o.cancel()
		close(o.done)
		<-o.stopped
		o.closeErr = o.ch.Close()
	})
	return o.closeErr
}

func (o *ChannelOwner) run(closed chan *amqp.Error) {
	defer close(o.stopped)

	var sub *subscription
	for {
		var deliveries <-chan amqp.Delivery
		if sub != nil {
			deliveries = sub.deliveries
		}

		select {
		case <-o.done:
			return

		case req := <-o.ops:
			req.result <- o.exec(req.fn)

		case s := <-o.attach:
			if sub != nil {
				o.logger.Warn("replacing delivery stream",
					"channel", o.id,
					"oldQueue", sub.queue,
					"newQueue", s.queue)
			}
			sub = &s

		case delivery, ok := <-deliveries:
			if !ok {
				o.logger.Warn("delivery channel closed", "channel", o.id, "queue", sub.queue)
				sub = nil
				continue
			}
			sub.handler(o.ctx, o.ch, delivery)

		case amqpErr, ok := <-closed:
			if ok && amqpErr != nil {
				o.logger.Error("channel closed by broker",
					"channel", o.id,
					"code", amqpErr.Code,
					"reason", amqpErr.Reason)
			}
			closed = nil
		}
	}
}

// exec runs fn with panic recovery
func (o *ChannelOwner) exec(fn func(Channel) error) (execErr error) {
	defer func() {
		if r := recover(); r != nil {
			execErr = fmt.Errorf("panic in channel execution: %v", r)
		}
	}()
	return fn(o.ch)
}

func (o *ChannelOwner) closedError(op string) error {
	return &ChannelError{
		Op:        op,
		ChannelID: o.id,
		Err:       ErrChannelClosed,
		Timestamp: time.Now(),
	}
}
