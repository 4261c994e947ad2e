package rabbitmq

import (
	"context"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// TopologyManager declares a session's exchanges, QoS and command queue
type TopologyManager struct {
	owner  *ChannelOwner
	logger *slog.Logger
}

// ExchangeDeclaration defines an exchange to be declared
type ExchangeDeclaration struct {
	Name       string
	Type       string
	Durable    bool
	AutoDelete bool
	Arguments  amqp.Table
}

// QueueDeclaration defines a queue to be declared. An empty Name asks the
// broker to generate one.
type QueueDeclaration struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	Arguments  amqp.Table
}

// Binding defines a queue-to-exchange binding
type Binding struct {
	Queue      string
	Exchange   string
	RoutingKey string
	Arguments  amqp.Table
}

// SessionTopology is everything one session declares, in declaration order:
// event exchange, QoS, command exchange, command queue, binding.
type SessionTopology struct {
	EventExchange   ExchangeDeclaration
	PrefetchCount   int
	CommandExchange ExchangeDeclaration
	CommandQueue    QueueDeclaration
	// CommandRoutingKey binds CommandQueue to CommandExchange
	CommandRoutingKey string
}

// NewTopologyManager creates a new topology manager
func NewTopologyManager(owner *ChannelOwner, logger *slog.Logger) *TopologyManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TopologyManager{
		owner:  owner,
		logger: logger,
	}
}

// DeclareSession declares topo and returns the declared command queue, whose
// name is broker-generated when CommandQueue.Name is empty. The first failing
// step aborts the declaration.
func (tm *TopologyManager) DeclareSession(ctx context.Context, topo SessionTopology) (amqp.Queue, error) {
	var queue amqp.Queue
	err := tm.owner.Execute(ctx, func(ch Channel) error {
		if err := declareExchange(ch, topo.EventExchange); err != nil {
			return topologyError("exchange", topo.EventExchange.Name, "declare", err)
		}

		if err := ch.Qos(topo.PrefetchCount, 0, false); err != nil {
			return topologyError("qos", "prefetch", "set", err)
		}

		if err := declareExchange(ch, topo.CommandExchange); err != nil {
			return topologyError("exchange", topo.CommandExchange.Name, "declare", err)
		}

		q, err := declareQueue(ch, topo.CommandQueue)
		if err != nil {
			return topologyError("queue", topo.CommandQueue.Name, "declare", err)
		}

		binding := Binding{
			Queue:      q.Name,
			Exchange:   topo.CommandExchange.Name,
			RoutingKey: topo.CommandRoutingKey,
		}
		if err := bindQueue(ch, binding); err != nil {
			return topologyError("binding", q.Name+"->"+binding.Exchange, "create", err)
		}

		queue = q
		return nil
	})
	if err != nil {
		return amqp.Queue{}, err
	}

	tm.logger.Info("session topology declared",
		"eventExchange", topo.EventExchange.Name,
		"commandExchange", topo.CommandExchange.Name,
		"queue", queue.Name,
		"routingKey", topo.CommandRoutingKey,
		"prefetchCount", topo.PrefetchCount,
	)
	return queue, nil
}

// EventTopology is the topology of an event listener: the exchanges it
// expects and a queue of its own bound to one of them
type EventTopology struct {
	Exchanges  []ExchangeDeclaration
	Queue      QueueDeclaration
	Exchange   string
	BindingKey string
}

// DeclareEvents declares the exchanges, then the queue, then binds the queue
// to Exchange with BindingKey
func (tm *TopologyManager) DeclareEvents(ctx context.Context, topo EventTopology) (amqp.Queue, error) {
	var queue amqp.Queue
	err := tm.owner.Execute(ctx, func(ch Channel) error {
		for _, exchange := range topo.Exchanges {
			if err := declareExchange(ch, exchange); err != nil {
				return topologyError("exchange", exchange.Name, "declare", err)
			}
		}

		q, err := declareQueue(ch, topo.Queue)
		if err != nil {
			return topologyError("queue", topo.Queue.Name, "declare", err)
		}

		binding := Binding{Queue: q.Name, Exchange: topo.Exchange, RoutingKey: topo.BindingKey}
		if err := bindQueue(ch, binding); err != nil {
			return topologyError("binding", q.Name+"->"+binding.Exchange, "create", err)
		}

		queue = q
		return nil
	})
	if err != nil {
		return amqp.Queue{}, err
	}

	tm.logger.Info("event queue declared",
		"exchange", topo.Exchange,
		"queue", queue.Name,
		"bindingKey", topo.BindingKey,
	)
	return queue, nil
}

// declareExchange declares an exchange on the given channel
func declareExchange(ch Channel, exchange ExchangeDeclaration) error {
	return ch.ExchangeDeclare(
		exchange.Name,
		exchange.Type,
		exchange.Durable,
		exchange.AutoDelete,
		false, // internal
		false, // no-wait
		exchange.Arguments,
	)
}

// declareQueue declares a queue on the given channel
func declareQueue(ch Channel, queue QueueDeclaration) (amqp.Queue, error) {
	return ch.QueueDeclare(
		queue.Name,
		queue.Durable,
		queue.AutoDelete,
		queue.Exclusive,
		false, // no-wait
		queue.Arguments,
	)
}

// bindQueue binds a queue to an exchange on the given channel
func bindQueue(ch Channel, binding Binding) error {
	return ch.QueueBind(
		binding.Queue,
		binding.RoutingKey,
		binding.Exchange,
		false, // no-wait
		binding.Arguments,
	)
}

func topologyError(component, name, op string, err error) error {
	return &TopologyError{
		Component: component,
		Name:      name,
		Op:        op,
		Err:       err,
		Timestamp: time.Now(),
	}
}
