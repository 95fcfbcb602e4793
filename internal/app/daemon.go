package app

import (
	"context"
	"errors"
	"log"
	"net"
	"net/url"
	"strings"

	"github.com/five82/kdebridge/internal/badge"
	"github.com/five82/kdebridge/internal/config"
	"github.com/five82/kdebridge/internal/loop"
	"github.com/five82/kdebridge/internal/menu"
	"github.com/five82/kdebridge/internal/prefs"
	"github.com/five82/kdebridge/internal/protocol"
	"github.com/five82/kdebridge/internal/registry"
	"github.com/five82/kdebridge/internal/relay"
	"github.com/five82/kdebridge/internal/server"
	"github.com/five82/kdebridge/internal/session"
	"github.com/five82/kdebridge/internal/version"
)

// Daemon owns every core component. Apart from the hub and the server, all
// of them are touched only from the loop goroutine.
type Daemon struct {
	cfg    config.Config
	logger *log.Logger
	ctx    context.Context

	loop       *loop.Loop
	toolbar    *badge.Toolbar
	badges     *badge.Aggregator
	hub        *relay.Hub
	relay      *relay.Relay
	session    *session.Manager
	negotiator *version.Negotiator
	registry   *registry.Registry
	tree       *menu.Tree
	menus      *menu.Builder
	server     *server.Server

	prefs prefs.Prefs
}

var _ server.Bridge = (*Daemon)(nil)

// NewDaemon wires the bridge around dialer.
func NewDaemon(cfg config.Config, dialer session.Dialer, p prefs.Prefs, logger *log.Logger) *Daemon {
	if logger == nil {
		logger = log.Default()
	}
	d := &Daemon{
		cfg:    cfg,
		logger: logger,
		ctx:    context.Background(),
		loop:   loop.New(logger),
		prefs:  p,
	}

	d.toolbar = badge.NewToolbar()
	d.badges = badge.New(d.toolbar, logger)
	d.hub = relay.NewHub(relay.HubOptions{
		Serialize: func(fn func()) error {
			return d.loop.Do(context.Background(), fn)
		},
		Greeting: func() []protocol.Message {
			return d.relay.Greeting()
		},
		Inbound: func(origin relay.Origin, msg protocol.Message) {
			d.loop.Post(func() {
				_ = d.relay.HandleSurface(d.ctx, origin, msg)
			})
		},
		OriginAllowed: d.originAllowed,
		Logger:        logger,
	})
	d.relay = relay.New(d.hub, logger)
	d.session = session.New(d.loop, dialer, d.badges, d.relay, session.Options{
		MaxDelay: cfg.MaxReconnect,
		Logger:   logger,
	})
	d.negotiator = version.New(d.loop, d.session, d.badges, d.relay, version.Options{
		Expected: cfg.ProtocolVersion,
		Timeout:  cfg.VersionTimeout,
		Logger:   logger,
	})
	d.registry = registry.New()
	d.tree = menu.NewTree()
	d.menus = menu.NewBuilder(d.tree, d.badges, d.session, logger)

	d.relay.Attach(d.session, d.registry, d.negotiator)
	d.registry.OnChange(func(ev registry.Event) {
		d.menus.Rebuild(d.ctx, ev.Devices)
		d.relay.PublishDevices(ev.Devices)
	})
	d.session.OnConnect(d.negotiator.Begin)
	d.session.OnConnect(func(context.Context) {
		if err := d.session.Send(protocol.Request(protocol.TypeDevices)); err != nil {
			logger.Printf("[app] request devices: %v", err)
		}
	})
	d.session.OnMessage(d.relay.HandleHost)

	d.server = server.New(server.Options{
		Surfaces: d.hub,
		Bridge:   d,
		Logger:   logger,
	})
	return d
}

// Serve runs the bridge and answers surfaces on ln until ctx is cancelled.
// The host process is stopped before Serve returns.
func (d *Daemon) Serve(ctx context.Context, ln net.Listener) error {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = d.loop.Run(loopCtx)
	}()

	d.loop.Post(func() {
		d.ctx = ctx
		d.menus.SetPrefs(ctx, d.prefs, d.registry.Devices())
		d.session.Connect(ctx)
	})

	go func() {
		err := prefs.Watch(ctx, d.cfg.PrefsPath, func(p prefs.Prefs) {
			d.loop.Post(func() {
				d.logger.Printf("[app] preferences changed")
				d.prefs = p
				d.menus.SetPrefs(ctx, p, d.registry.Devices())
			})
		}, func(err error) {
			d.logger.Printf("[app] %v", err)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Printf("[app] watch preferences: %v", err)
		}
	}()

	serveErr := d.server.Serve(ctx, ln)

	if err := d.loop.Do(context.Background(), func() {
		if err := d.session.Close(); err != nil {
			d.logger.Printf("[app] close session: %v", err)
		}
	}); err != nil {
		d.logger.Printf("[app] shutdown: %v", err)
	}
	d.hub.Close()
	stopLoop()
	<-loopDone
	return serveErr
}

// State returns the read-only view of the bridge.
func (d *Daemon) State(ctx context.Context) (protocol.BridgeState, error) {
	var st protocol.BridgeState
	err := d.loop.Do(ctx, func() {
		snap := d.session.Snapshot()
		negState, remote := d.negotiator.State()
		st = protocol.BridgeState{
			Connection:      string(snap.State),
			Negotiation:     string(negState),
			ExpectedVersion: d.negotiator.Expected(),
			RemoteVersion:   remote,
			ReconnectDelay:  snap.ReconnectDelay,
			Badge:           d.badges.Current(),
			Signals:         d.badges.Signals(),
			Devices:         d.registry.Devices(),
			Menu:            d.tree.Entries(),
			Statuses:        d.relay.Statuses(),
			Surfaces:        d.hub.Count(),
		}
	})
	return st, err
}

// ClickMenu activates a context menu item on the loop.
func (d *Daemon) ClickMenu(ctx context.Context, itemID, link string) error {
	var clickErr error
	if err := d.loop.Do(ctx, func() {
		clickErr = d.menus.Click(ctx, itemID, link)
	}); err != nil {
		return err
	}
	return clickErr
}

// originAllowed accepts the configured allowed origins and local pages.
func (d *Daemon) originAllowed(origin string) bool {
	trimmed := strings.TrimSuffix(origin, "/")
	for _, allowed := range d.cfg.AllowedOrigins {
		if strings.TrimSuffix(allowed, "/") == trimmed {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
