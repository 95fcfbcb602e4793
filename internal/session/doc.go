// Package session owns the single channel between the bridge and the native
// messaging host.
//
// # Lifecycle
//
// The Manager moves between three states. Connecting is zero-duration: Dial
// returns a channel immediately and any start failure arrives later as a
// disconnect, so "host not installed" and "host crashed" take the same path.
//
//	Disconnected ──Connect()──> Connecting ──Dial()──> Connected
//	      ^                                                │
//	      └──────────── HandleDisconnect(err) ─────────────┘
//	                    (reconnect after backoff)
//
// # Timers
//
// Two loop.Slot timers are owned by the manager:
//
//   - reconnect: armed on disconnect with the current backoff delay, which then
//     doubles. At most one is pending.
//   - reset: armed on connect at 90% of the current delay. When it fires the
//     delay returns to 100ms, so only connections that fail fast keep
//     escalating.
//
// A disconnect cancels both before arming a new reconnect.
//
// # Events
//
// Channel events are tagged with the attempt that produced them and posted
// onto the event loop. Events from an older attempt, or from a channel that
// already disconnected, are dropped.
//
// On connect the manager clears the "connected" badge, publishes a
// typeClearStatus for the "connected" key and runs its OnConnect hooks. On
// disconnect it sets the "connected" badge red and publishes a typeError
// status under the same key.
package session
