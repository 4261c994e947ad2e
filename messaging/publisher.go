package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/fortunewang/coolq-amq/contracts"
)

// EventPublisher forwards host events to the event exchange. Publishing is
// fire-and-forget: failures are logged and dropped.
type EventPublisher struct {
	transport Transport
	accountID int64
	logger    *slog.Logger
	stats     *StatsCollector
}

// PublisherOption configures the EventPublisher
type PublisherOption func(*EventPublisher)

// WithPublisherLogger sets the logger
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *EventPublisher) {
		p.logger = logger
	}
}

// WithPublisherStats records publish outcomes in stats
func WithPublisherStats(stats *StatsCollector) PublisherOption {
	return func(p *EventPublisher) {
		p.stats = stats
	}
}

// NewEventPublisher creates a publisher for the events of accountID
func NewEventPublisher(transport Transport, accountID int64, options ...PublisherOption) *EventPublisher {
	p := &EventPublisher{
		transport: transport,
		accountID: accountID,
		logger:    slog.Default(),
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

// Publish sends event with routing key {account}.{event type}. Without an
// open session channel it does nothing.
func (p *EventPublisher) Publish(ctx context.Context, event contracts.Event) {
	if p.transport == nil || !p.transport.IsConnected() {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.stats.recordEvent(false)
		p.logger.Error("failed to marshal event", "error", err, "eventType", event.EventType())
		return
	}

	routingKey := contracts.EventRoutingKey(p.accountID, event.EventType())
	if err := p.transport.Publish(ctx, contracts.EventExchange, routingKey, body); err != nil {
		p.stats.recordEvent(false)
		p.logger.Error("failed to publish event",
			"error", err,
			"exchange", contracts.EventExchange,
			"routingKey", routingKey)
		return
	}
	p.stats.recordEvent(true)
}
