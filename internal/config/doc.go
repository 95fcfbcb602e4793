// Package config loads the kdebridge configuration file.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/kdebridge/config.toml (default)
//  3. If the config file doesn't exist, fall back to hardcoded defaults
//  4. If the file exists but fields are missing/empty, use defaults
//
// # Default Values
//
//   - Listen address: 127.0.0.1:7489
//   - Host name: com.0xc0dedbad.kdeconnect_chrome
//   - Host args: the extension origin, as a browser passes it
//   - Protocol version: 0.1.3
//   - Version timeout: 500ms
//   - Reconnect ceiling: none
//   - Log directory: ~/.local/share/kdebridge/logs
//   - Preferences: ~/.config/kdebridge/prefs.toml
//
// # Example
//
//	listen = "127.0.0.1:7489"
//	host_path = "~/.local/bin/kdeconnect-chrome-host"
//	version_timeout_ms = 1000
//	max_reconnect_ms = 60000
//
// When host_path is empty the host is located through its native messaging
// manifest, searched in manifest_dirs or the usual browser locations.
package config
