// Package stream implements the Connection Multiplexer.
//
// The multiplexer:
//   - Owns keyed WebSocket connections to the Finexia API, one per
//     (topic, optional task id)
//   - Dispatches inbound messages to listeners by event type, in
//     registration order, with per-callback panic isolation
//   - Answers server heartbeat probes on the wire
//   - Tracks per-connection lifecycle status (connecting, connected,
//     disconnected, error)
//
// Reconnection is deliberately out of the multiplexer; Supervisor layers
// it on top for callers that want an always-on stream.
package stream
