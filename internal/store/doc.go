// Package store provides the durable key/value state shared by the daemon's
// components.
//
// It holds:
//   - The execution checkpoint (the root of playback idempotency)
//   - The "now playing" projection read by the web layer
//   - Network-health counters and the current connectivity mode
//   - An append-only event log (playbacks, skips, mode transitions)
//
// Each component owns its own key namespace; see types.go.
package store
