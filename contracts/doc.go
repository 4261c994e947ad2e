// Package contracts defines the wire contracts exchanged with the broker.
//
// This package defines:
//   - Event: chat events published on the coolq.msg topic exchange
//   - Command: the closed set of send commands received on coolq.rpc
//   - Response: the reply body returned for a successful command
//   - Routing helpers for the {account}.{event-type} and {account} keys
//
// Every JSON shape in this package is consumed by programs written in other
// languages, so field names must not change.
package contracts
