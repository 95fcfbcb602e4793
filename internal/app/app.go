package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/five82/kdebridge/internal/client"
	"github.com/five82/kdebridge/internal/config"
	"github.com/five82/kdebridge/internal/host"
	"github.com/five82/kdebridge/internal/prefs"
	"github.com/five82/kdebridge/internal/state"
	"github.com/five82/kdebridge/internal/ui"
)

// Options configure the bridge daemon.
type Options struct {
	ConfigPath string
	Listen     string // overrides config when set
	HostPath   string // overrides config and manifest lookup when set
	Stderr     io.Writer
}

// Run boots the bridge daemon until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	if opts.HostPath != "" {
		cfg.HostPath = opts.HostPath
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DaemonLogPath()), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(cfg.DaemonLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close()
	hostLog, err := os.OpenFile(cfg.HostLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open host log: %w", err)
	}
	defer hostLog.Close()

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := log.New(io.MultiWriter(stderr, logFile), "", log.LstdFlags)

	hostPath, err := cfg.ResolveHostPath()
	if err != nil {
		return fmt.Errorf("locate native host: %w", err)
	}
	logger.Printf("[app] native host %s", hostPath)

	userPrefs, _ := prefs.Load(cfg.PrefsPath)

	dialer := host.NewDialer(host.Options{
		Path:   hostPath,
		Args:   cfg.HostArgs,
		Stderr: hostLog,
		Logger: logger,
	})

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Listen, err)
	}
	return NewDaemon(cfg, dialer, userPrefs, logger).Serve(ctx, ln)
}

// PopupOptions configure the popup.
type PopupOptions struct {
	ConfigPath string
	PrefsPath  string // empty uses the path from config
	URL        string // prefilled link to share
	PollEvery  int    // seconds; zero uses default
}

// RunPopup attaches the popup to a running daemon and blocks until the user
// quits. With default_only set and a default device chosen, a URL is shared
// straight away without opening the UI.
func RunPopup(ctx context.Context, opts PopupOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = cfg.PrefsPath
	}
	userPrefs, _ := prefs.Load(prefsPath)

	c, err := client.NewClient(cfg.Listen)
	if err != nil {
		return fmt.Errorf("init bridge client: %w", err)
	}

	if opts.URL != "" && userPrefs.DefaultOnly && userPrefs.DefaultDeviceID != "" {
		if err := c.Share(ctx, userPrefs.DefaultDeviceID, opts.URL); err != nil {
			return fmt.Errorf("share to default device: %w", err)
		}
		return nil
	}

	surface, err := c.Attach(ctx, "popup")
	if err != nil {
		return fmt.Errorf("attach to bridge at %s: %w", cfg.Listen, err)
	}
	defer surface.Close()

	store := &state.Store{}

	interval := defaultPollInterval
	if opts.PollEvery > 0 {
		interval = time.Duration(opts.PollEvery) * time.Second
	}

	// Start background poller
	StartPoller(ctx, store, c, interval)

	// Do initial refresh to populate store before UI starts
	_ = refresh(ctx, store, c)

	return ui.Run(ui.Options{
		Context:   ctx,
		Surface:   surface,
		Store:     store,
		PollTick:  interval,
		ThemeName: userPrefs.Theme,
		PrefsPath: prefsPath,
		URL:       opts.URL,
		DefaultID: userPrefs.DefaultDeviceID,
	})
}
