package rabbitmq

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes through a ChannelOwner without publisher confirms.
// A publish returns once the frame is written; nothing is retried.
type Publisher struct {
	owner *ChannelOwner
}

// NewPublisher creates a new publisher
func NewPublisher(owner *ChannelOwner) *Publisher {
	return &Publisher{owner: owner}
}

// Publish sends msg to exchange with routingKey
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	return p.owner.Execute(ctx, func(ch Channel) error {
		return publish(ctx, ch, exchange, routingKey, msg)
	})
}

// Reply publishes body to the default exchange addressed by replyTo, copying
// correlationID when it is set. It writes to ch directly and is meant to be
// called from a DeliveryHandler.
func Reply(ctx context.Context, ch Channel, replyTo, correlationID string, body []byte) error {
	return publish(ctx, ch, "", replyTo, amqp.Publishing{
		CorrelationId: correlationID,
		Body:          body,
	})
}

func publish(ctx context.Context, ch Channel, exchange, routingKey string, msg amqp.Publishing) error {
	if err := ch.PublishWithContext(
		ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		msg,
	); err != nil {
		return &PublishError{
			Exchange:   exchange,
			RoutingKey: routingKey,
			Err:        err,
			Timestamp:  time.Now(),
		}
	}
	return nil
}
