package messaging

import (
	"context"
)

// TransportDelivery represents a command delivery from the transport
type TransportDelivery interface {
	// Body returns the message body
	Body() []byte

	// ReplyTo returns the reply-to queue, empty when absent
	ReplyTo() string

	// CorrelationID returns the correlation id, empty when absent
	CorrelationID() string

	// Reply publishes body to ReplyTo through the default exchange,
	// carrying CorrelationID when it is set
	Reply(ctx context.Context, body []byte) error

	// Acknowledge marks the message as successfully processed
	Acknowledge() error

	// Reject rejects the message with optional requeue
	Reject(requeue bool) error
}

// DeliveryHandler processes one delivery and settles it
type DeliveryHandler func(ctx context.Context, delivery TransportDelivery) error

// Transport is the session's broker link: one connection, one channel
type Transport interface {
	// Connect opens the connection and the session channel
	Connect(ctx context.Context) error

	// DeclareTopology declares the event and command exchanges, sets QoS and
	// binds a fresh exclusive command queue for accountID. It returns the
	// broker-generated queue name.
	DeclareTopology(ctx context.Context, accountID int64) (string, error)

	// Subscribe starts consuming queue with manual acknowledgment
	Subscribe(ctx context.Context, queue string, handler DeliveryHandler) error

	// Publish sends body to exchange with routingKey and no properties
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error

	// IsConnected reports whether a session channel is open
	IsConnected() bool

	// Close closes the channel and the connection
	Close() error
}
