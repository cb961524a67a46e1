// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Lifecycle phase gauge and session connect/disconnect counts
//   - Reconnect attempts and handshake failures
//   - Inbound and outbound event rates
//   - Outbound operations dropped while offline or rejected by the transport
//   - Subscriber callback panics and payload decode failures
package metrics
