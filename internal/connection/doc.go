// Package connection implements the realtime connection manager.
//
// The Manager:
//   - Maintains one authenticated session with the realtime service
//   - Tracks an observable lifecycle (idle, connecting, connected,
//     disconnected, failed)
//   - Recovers from involuntary drops with linear backoff, honoring
//     server-initiated closes as final
//   - Fans chat, typing, presence, connect, disconnect, and error
//     events out to ordered subscriber registries
//   - Silently drops outbound operations while the session is down
package connection
