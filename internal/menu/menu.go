// Package menu derives the "send to device" context menu from the device
// registry and the user's preferences.
package menu

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/five82/kdebridge/internal/badge"
	"github.com/five82/kdebridge/internal/prefs"
	"github.com/five82/kdebridge/internal/protocol"
)

// RootID is the parent entry shown when several devices are listed.
const RootID = "kdeconnectRoot"

const rootTitle = "KDE Connect"

var (
	// ErrUnknownItem is returned by Click for an id that is not a device entry.
	ErrUnknownItem = errors.New("menu: unknown item")
	// ErrDisabledItem is returned by Click for a device that cannot receive.
	ErrDisabledItem = errors.New("menu: item disabled")
	// ErrMissingURL is returned by Click without a URL to share.
	ErrMissingURL = errors.New("menu: missing url")
)

// Menus is the platform context menu.
type Menus interface {
	RemoveAll(ctx context.Context) error
	Create(ctx context.Context, entry protocol.MenuEntry) error
}

// Sender delivers a message to the host.
type Sender interface {
	Send(msg protocol.Message) error
}

// Builder rebuilds the menu from scratch on every change. It must only be
// used from the loop goroutine.
type Builder struct {
	menus  Menus
	badges *badge.Aggregator
	sender Sender
	logger *log.Logger

	prefs   prefs.Prefs
	entries map[string]protocol.MenuEntry
}

// NewBuilder returns a builder with default preferences.
func NewBuilder(menus Menus, badges *badge.Aggregator, sender Sender, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.Default()
	}
	return &Builder{
		menus:   menus,
		badges:  badges,
		sender:  sender,
		logger:  logger,
		prefs:   prefs.Default(),
		entries: map[string]protocol.MenuEntry{},
	}
}

// SetPrefs stores p and rebuilds from devices.
func (b *Builder) SetPrefs(ctx context.Context, p prefs.Prefs, devices map[string]protocol.Device) {
	b.prefs = p
	b.Rebuild(ctx, devices)
}

// Rebuild replaces the menu with one built from devices.
func (b *Builder) Rebuild(ctx context.Context, devices map[string]protocol.Device) {
	b.entries = map[string]protocol.MenuEntry{}
	if err := b.menus.RemoveAll(ctx); err != nil {
		b.logger.Printf("[menu] remove all: %v", err)
		return
	}
	if b.prefs.DisableContextMenu {
		return
	}

	devs := devices
	if b.prefs.DefaultOnly && b.prefs.DefaultDeviceID != "" {
		devs = map[string]protocol.Device{}
		if dev, ok := devices[b.prefs.DefaultDeviceID]; ok {
			devs[dev.ID] = dev
		}
	}

	active := false
	for _, dev := range devs {
		if dev.Actionable() {
			active = true
			break
		}
	}
	if !active {
		b.badges.Set(ctx, badge.SourceActive, "!", badge.Orange)
		return
	}
	b.badges.Clear(ctx, badge.SourceActive)

	sorted := protocol.SortedDevices(devs)
	if len(sorted) == 1 {
		dev := sorted[0]
		b.create(ctx, protocol.MenuEntry{
			ID:      dev.ID,
			Title:   fmt.Sprintf("%s (%s)", rootTitle, dev.Name),
			Enabled: dev.Actionable(),
		})
		return
	}

	b.create(ctx, protocol.MenuEntry{ID: RootID, Title: rootTitle, Enabled: true})
	for _, dev := range sorted {
		b.create(ctx, protocol.MenuEntry{
			ID:       dev.ID,
			ParentID: RootID,
			Title:    dev.Name,
			Enabled:  dev.Actionable(),
		})
	}
}

// Click shares url with the device behind itemID.
func (b *Builder) Click(ctx context.Context, itemID, url string) error {
	entry, ok := b.entries[itemID]
	if !ok || itemID == RootID {
		return fmt.Errorf("%w: %q", ErrUnknownItem, itemID)
	}
	if !entry.Enabled {
		return fmt.Errorf("%w: %q", ErrDisabledItem, itemID)
	}
	if url == "" {
		return ErrMissingURL
	}
	if err := b.sender.Send(protocol.NewShare(itemID, url)); err != nil {
		return fmt.Errorf("share to %s: %w", itemID, err)
	}
	return nil
}

func (b *Builder) create(ctx context.Context, entry protocol.MenuEntry) {
	if err := b.menus.Create(ctx, entry); err != nil {
		b.logger.Printf("[menu] create %s: %v", entry.ID, err)
		return
	}
	b.entries[entry.ID] = entry
}
