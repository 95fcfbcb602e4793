// Package registry holds the bridge's authoritative copy of the host's devices.
package registry

import (
	"github.com/five82/kdebridge/internal/protocol"
)

// Change says what produced a notification.
type Change string

const (
	// Snapshot is a full replacement, notified even when nothing changed.
	Snapshot Change = "snapshot"
	// Updated replaced a device that was already known.
	Updated Change = "updated"
	// Added saw a device id for the first time.
	Added Change = "added"
)

// Event is delivered after every mutation.
type Event struct {
	Change Change
	// DeviceID is set for Updated and Added.
	DeviceID string
	// Devices is a deep copy of the whole registry after the mutation.
	Devices map[string]protocol.Device
}

// Registry is owned by the event loop and is not safe for concurrent use.
type Registry struct {
	devices  map[string]protocol.Device
	seen     bool
	listener func(Event)
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{devices: map[string]protocol.Device{}}
}

// OnChange sets the notification listener.
func (r *Registry) OnChange(fn func(Event)) {
	r.listener = fn
}

// ApplySnapshot replaces the whole mapping and always notifies.
func (r *Registry) ApplySnapshot(devices map[string]protocol.Device) {
	r.devices = protocol.CloneDevices(devices)
	r.seen = true
	r.notify(Event{Change: Snapshot})
}

// ApplyUpdate replaces the record for dev.ID wholesale.
func (r *Registry) ApplyUpdate(dev protocol.Device) {
	_, known := r.devices[dev.ID]
	r.devices[dev.ID] = dev.Clone()
	r.seen = true

	change := Added
	if known {
		change = Updated
	}
	r.notify(Event{Change: change, DeviceID: dev.ID})
}

// Devices returns a deep copy of the mapping.
func (r *Registry) Devices() map[string]protocol.Device {
	return protocol.CloneDevices(r.devices)
}

// Seen reports whether any snapshot or update has been applied.
func (r *Registry) Seen() bool {
	return r.seen
}

func (r *Registry) notify(ev Event) {
	if r.listener == nil {
		return
	}
	ev.Devices = protocol.CloneDevices(r.devices)
	r.listener(ev)
}
