// Package protocol defines the wire contract for the Atelier realtime
// service.
//
// Every frame is a JSON envelope {"event": <name>, "data": <payload>}:
//   - Inbound: chat messages, typing and presence signals, scope acks,
//     server errors
//   - Outbound: scope joins/leaves, chat messages, typing markers,
//     presence updates
//
// Connection-level events (connect, disconnect, connect_error) are not
// frames; transports report them out of band.
package protocol
