// Package rabbitmq provides the AMQP plumbing for a single bridge session.
//
// This package includes:
//   - ConnectionManager: Dials the broker and reports connection loss
//   - ChannelOwner: The one goroutine allowed to touch the session channel
//   - TopologyManager: Declares the event/command exchanges and the command queue
//   - Publisher: Fire-and-forget publishing through the channel owner
//   - Consumer: Registers the command consumer and runs deliveries on the owner
//
// A session uses exactly one connection and one channel. Every channel
// operation, including acks and replies issued while handling a delivery,
// runs on the ChannelOwner goroutine, so callers never lock the channel.
package rabbitmq
