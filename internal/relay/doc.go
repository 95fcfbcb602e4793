// Package relay fans host traffic out to every attached UI surface and
// forwards surface requests to the host.
//
// # Routing
//
//	host ──> Relay.HandleHost ──┬─ typeDevices ──────> registry.ApplySnapshot
//	                            ├─ typeDeviceUpdate ─> registry.ApplyUpdate
//	                            ├─ typeVersion ──────> Negotiator.HandleResponse
//	                            ├─ typeError ────────> typeStatus{key: host}
//	                            └─ anything else ────> Publish (verbatim)
//
//	surface ──> Hub ──> Relay.HandleSurface ──> Sender.Send (host only)
//
// Registry notifications are published as full typeDevices messages, so
// surfaces always replace their copy and never merge.
//
// Fan-out is one-way. Surface messages go to the host only and are never
// rebroadcast. Messages from the internal "background" surface are dropped.
//
// # Late joiners
//
// The relay remembers the last full registry and every status that has not
// been cleared. A newly attached surface receives them, in that order, before
// any live broadcast.
package relay
