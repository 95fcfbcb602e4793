// Package client talks to a running kdebridge daemon.
//
// The HTTP side covers the read-only state endpoint and menu clicks:
//
//	c, err := client.NewClient(cfg.Listen)
//	state, err := c.FetchState(ctx)
//	err = c.ClickMenu(ctx, deviceID, "https://example.com")
//
// Attach opens a WebSocket surface. The daemon greets it with the last
// device list and any active statuses, then streams everything it publishes.
// Messages sent through a surface go to the native host after validation.
//
//	s, err := c.Attach(ctx, "popup")
//	defer s.Close()
//	for msg := range s.Messages() {
//		store.Apply(msg)
//	}
//
// Non-2xx responses come back as *APIError carrying the daemon's error text.
package client
