// Package app wires the bridge daemon and the popup together.
//
// # Overview
//
// The package is the composition root for both sides of kdebridge. Run
// starts the daemon that owns the native host; RunPopup starts the terminal
// popup that attaches to a running daemon.
//
// # Components
//
//   - app.go: Run and RunPopup, config and log file setup
//   - daemon.go: Daemon, which builds and connects the core components
//   - poller.go: background refresh of the popup's store from /api/state
//
// # Daemon Wiring
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       ├─────> config.Load()          config.toml, overrides from flags
//	       ├─────> log files              kdebridge.log, host.log
//	       ├─────> cfg.ResolveHostPath()  explicit path or manifest lookup
//	       ├─────> host.NewDialer()       one process per connection attempt
//	       └─────> Daemon.Serve()         blocks until ctx is cancelled
//
// NewDaemon connects the pieces around a single loop.Loop:
//
//	host frames ──> session ──> relay.HandleHost ──┬─> registry ──> menu, relay.PublishDevices
//	                                               ├─> version negotiator
//	                                               └─> relay.Publish ──> hub ──> surfaces
//	surfaces ──> hub ──> loop.Post(relay.HandleSurface) ──> session.Send ──> host
//
// Every callback the hub, the host reader and the timers produce is posted
// onto the loop, so the core components never lock. Each (re)connect runs
// two hooks in order: the version handshake, then a device list request.
//
// Preference edits are picked up by prefs.Watch and rebuild the menu on the
// loop, which also re-evaluates the "active" badge.
//
// # Shutdown
//
// Cancelling the context stops the HTTP server first, then closes the host
// channel on the loop, disconnects every surface and finally stops the loop.
// The host process is killed as part of closing its channel.
//
// # Popup Polling
//
// The popup keeps a websocket surface open for pushed updates and polls
// /api/state for the parts that are not pushed (connection, badge, menu).
// Consecutive failures stretch the poll interval exponentially, capped at
// 30 seconds, so a stopped daemon is not hammered.
//
// # Error Handling
//
// Fatal errors (returned from Run):
//   - Configuration file invalid
//   - Log directory or files cannot be created
//   - Native host cannot be located
//   - Listen address unavailable
//
// Recoverable errors (logged, the daemon keeps running):
//   - Host start failures and exits, retried with backoff
//   - Malformed host or surface messages
//   - Preference watcher failures
package app
