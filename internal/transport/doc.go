// Package transport establishes and carries realtime sessions.
//
// Two transports speak the same envelope protocol:
//   - WebSocket (primary): one JSON envelope per text frame, with
//     ping/pong staleness detection
//   - HTTP long-poll (fallback): handshake, poll, and send endpoints
//
// The Dialer returned by NewDialer tries WebSocket first and falls back
// to long-poll unless the handshake was rejected for credentials. Every
// session reports exactly one Disconnect on Closed() telling the consumer
// whether the server ended it deliberately.
package transport
