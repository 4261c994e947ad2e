// Package messaging connects bot traffic to a broker Transport.
//
// This package implements the two message flows of a bridge session:
//   - EventPublisher: serializes host events and publishes them to the
//     coolq.msg topic exchange under {account}.{event type}
//   - CommandDispatcher: decodes a command envelope and invokes the
//     matching bot Actions
//   - RPCServer: settles command deliveries, replying {"ok":true} to the
//     reply-to queue and acking on success, rejecting on failure
//   - StatsCollector: counts commands, replies and events
//
// Example usage:
//
//	dispatcher := messaging.NewCommandDispatcher(actions)
//	server := messaging.NewRPCServer(dispatcher)
//	err := transport.Subscribe(ctx, queue, server.HandleDelivery)
//
//	events := messaging.NewEventPublisher(transport, accountID)
//	events.Publish(ctx, contracts.GroupMessage{Group: 777, From: 888, Message: "hello"})
package messaging
