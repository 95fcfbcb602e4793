// Package state holds the popup's read-only copy of the bridge.
//
// Two producers feed the Store: the surface connection pushes protocol
// messages through Apply, and the poller records /api/state results through
// UpdateBridge. The UI reads Snapshot on its own schedule.
//
//	Surface (websocket):          Poller (HTTP):
//	  store.Apply(msg)              store.UpdateBridge(state, err)
//	          \                         /
//	           └──────→ Store ←────────┘
//	                      │
//	                 Snapshot() → render
//
// Apply replaces devices wholesale on typeDevices, adds or removes statuses
// on typeStatus and typeClearStatus, and ignores every other type. A failed
// poll keeps the previous bridge state and bumps ConsecutiveFailures;
// IsOffline turns true after two in a row.
//
// Snapshots are deep copies, so the UI may hold on to them across renders.
package state
