// Package live maintains a reconnecting WebSocket connection to the
// dashboard push endpoint.
//
// A Client:
//   - Owns at most one connection at a time
//   - Decodes inbound {"type","payload"} frames into typed events
//   - Fans events out to listeners registered per event kind, in registration order
//   - Reconnects after unplanned closes with linear backoff (base * attempt), bounded by MaxReconnectAttempts
//   - Drops outbound messages while not connected (no queueing)
package live
