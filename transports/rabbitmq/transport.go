package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fortunewang/coolq-amq/contracts"
	"github.com/fortunewang/coolq-amq/internal/rabbitmq"
	"github.com/fortunewang/coolq-amq/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// commandPrefetch keeps at most one unacknowledged command in flight
const commandPrefetch = 1

// Transport implements messaging.Transport for RabbitMQ with a single
// connection and a single channel owned by a rabbitmq.ChannelOwner
type Transport struct {
	manager         *rabbitmq.ConnectionManager
	consumerOptions []rabbitmq.ConsumerOption
	logger          *slog.Logger

	mu        sync.RWMutex
	owner     *rabbitmq.ChannelOwner
	publisher *rabbitmq.Publisher
	consumer  *rabbitmq.Consumer
}

// TransportConfig holds configuration for the transport
type TransportConfig struct {
	ConnectionOptions []rabbitmq.ConnectionOption
	ConsumerOptions   []rabbitmq.ConsumerOption
	Logger            *slog.Logger
}

// TransportOption configures the transport
type TransportOption func(*TransportConfig)

// WithConnectionOptions sets connection options
func WithConnectionOptions(opts ...rabbitmq.ConnectionOption) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.ConnectionOptions = append(cfg.ConnectionOptions, opts...)
	}
}

// WithConsumerOptions sets consumer options
func WithConsumerOptions(opts ...rabbitmq.ConsumerOption) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.ConsumerOptions = append(cfg.ConsumerOptions, opts...)
	}
}

// WithLogger sets the logger used by the transport and its components
func WithLogger(logger *slog.Logger) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.Logger = logger
	}
}

// NewTransport creates a RabbitMQ transport for connectionString.
// Nothing is dialed until Connect.
func NewTransport(connectionString string, options ...TransportOption) *Transport {
	cfg := &TransportConfig{
		Logger: slog.Default(),
	}

	for _, opt := range options {
		opt(cfg)
	}

	connOpts := append([]rabbitmq.ConnectionOption{rabbitmq.WithLogger(cfg.Logger)}, cfg.ConnectionOptions...)
	// the command queue is exclusive to this connection, and so is its consumer
	consumerOpts := append([]rabbitmq.ConsumerOption{
		rabbitmq.WithConsumerLogger(cfg.Logger),
		rabbitmq.WithExclusive(true),
	}, cfg.ConsumerOptions...)

	return &Transport{
		manager:         rabbitmq.NewConnectionManager(connectionString, connOpts...),
		consumerOptions: consumerOpts,
		logger:          cfg.Logger,
	}
}

// Connect dials the broker and opens the session channel
func (t *Transport) Connect(ctx context.Context) error {
	if err := t.manager.Connect(ctx); err != nil {
		return err
	}

	ch, err := t.manager.OpenChannel()
	if err != nil {
		t.manager.Close()
		return err
	}

	t.attach(rabbitmq.NewChannelOwner(ch, rabbitmq.WithChannelLogger(t.logger)))
	return nil
}

// attach makes owner the session channel
func (t *Transport) attach(owner *rabbitmq.ChannelOwner) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.owner = owner
	t.publisher = rabbitmq.NewPublisher(owner)
	t.consumer = rabbitmq.NewConsumer(owner, t.consumerOptions...)
}

func (t *Transport) session() (*rabbitmq.ChannelOwner, *rabbitmq.Publisher, *rabbitmq.Consumer, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.owner == nil {
		return nil, nil, nil, rabbitmq.ErrConnectionNotReady
	}
	return t.owner, t.publisher, t.consumer, nil
}

// DeclareTopology declares the coolq exchanges and the account's command queue
func (t *Transport) DeclareTopology(ctx context.Context, accountID int64) (string, error) {
	owner, _, _, err := t.session()
	if err != nil {
		return "", err
	}

	queue, err := rabbitmq.NewTopologyManager(owner, t.logger).DeclareSession(ctx, rabbitmq.SessionTopology{
		EventExchange: rabbitmq.ExchangeDeclaration{
			Name: contracts.EventExchange,
			Type: contracts.EventExchangeType,
		},
		PrefetchCount: commandPrefetch,
		CommandExchange: rabbitmq.ExchangeDeclaration{
			Name: contracts.CommandExchange,
			Type: contracts.CommandExchangeType,
		},
		CommandQueue:      rabbitmq.QueueDeclaration{Exclusive: true},
		CommandRoutingKey: contracts.CommandRoutingKey(accountID),
	})
	if err != nil {
		return "", err
	}
	return queue.Name, nil
}

// Subscribe consumes queue, passing each delivery to handler on the channel owner
func (t *Transport) Subscribe(ctx context.Context, queue string, handler messaging.DeliveryHandler) error {
	_, _, consumer, err := t.session()
	if err != nil {
		return err
	}

	return consumer.Subscribe(ctx, queue, func(ctx context.Context, ch rabbitmq.Channel, d amqp.Delivery) error {
		return handler(ctx, &deliveryAdapter{channel: ch, delivery: d})
	})
}

// Publish sends body with no message properties
func (t *Transport) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	_, publisher, _, err := t.session()
	if err != nil {
		return err
	}

	return publisher.Publish(ctx, exchange, routingKey, amqp.Publishing{Body: body})
}

// IsConnected returns whether the connection is up and the session channel open
func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	owner := t.owner
	t.mu.RUnlock()

	if owner == nil {
		return false
	}
	select {
	case <-owner.Done():
		return false
	default:
	}
	return t.manager.IsConnected()
}

// Close closes the session channel, then the connection
func (t *Transport) Close() error {
	t.mu.Lock()
	owner := t.owner
	t.owner, t.publisher, t.consumer = nil, nil, nil
	t.mu.Unlock()

	var chErr error
	if owner != nil {
		chErr = owner.Close()
	}
	if err := t.manager.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return chErr
}

// AddStateListener registers a connection state listener
func (t *Transport) AddStateListener(listener rabbitmq.ConnectionStateListener) {
	t.manager.AddStateListener(listener)
}

// deliveryAdapter adapts amqp.Delivery to messaging.TransportDelivery
type deliveryAdapter struct {
	channel  rabbitmq.Channel
	delivery amqp.Delivery
}

// Body implements TransportDelivery
func (d *deliveryAdapter) Body() []byte {
	return d.delivery.Body
}

// ReplyTo implements TransportDelivery
func (d *deliveryAdapter) ReplyTo() string {
	return d.delivery.ReplyTo
}

// CorrelationID implements TransportDelivery
func (d *deliveryAdapter) CorrelationID() string {
	return d.delivery.CorrelationId
}

// Reply implements TransportDelivery
func (d *deliveryAdapter) Reply(ctx context.Context, body []byte) error {
	return rabbitmq.Reply(ctx, d.channel, d.delivery.ReplyTo, d.delivery.CorrelationId, body)
}

// Acknowledge implements TransportDelivery
func (d *deliveryAdapter) Acknowledge() error {
	return d.delivery.Ack(false)
}

// Reject implements TransportDelivery
func (d *deliveryAdapter) Reject(requeue bool) error {
	return d.delivery.Reject(requeue)
}
