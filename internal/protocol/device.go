package protocol

import (
	"maps"
	"sort"
)

// PluginShare is the host plugin that accepts typeShare requests.
const PluginShare = "kdeconnect_share"

// Device mirrors one remote peer as reported by the host.
type Device struct {
	ID               string              `json:"id"`
	Type             string              `json:"type,omitempty"`
	Name             string              `json:"name"`
	IconName         string              `json:"iconName,omitempty"`
	StatusIconName   string              `json:"statusIconName,omitempty"`
	IsReachable      bool                `json:"isReachable"`
	IsTrusted        bool                `json:"isTrusted"`
	SupportedPlugins map[string]struct{} `json:"supportedPlugins,omitempty"`
}

// Actionable reports whether the device can be picked as a send target.
func (d Device) Actionable() bool {
	return d.IsReachable && d.IsTrusted
}

// Clone returns a deep copy of d.
func (d Device) Clone() Device {
	out := d
	if d.SupportedPlugins != nil {
		out.SupportedPlugins = maps.Clone(d.SupportedPlugins)
	}
	return out
}

// CloneDevices deep-copies a registry mapping. A nil input yields an empty map.
func CloneDevices(devices map[string]Device) map[string]Device {
	out := make(map[string]Device, len(devices))
	for id, dev := range devices {
		out[id] = dev.Clone()
	}
	return out
}

// SortedDevices returns the devices ordered by name, then id.
func SortedDevices(devices map[string]Device) []Device {
	out := make([]Device, 0, len(devices))
	for _, dev := range devices {
		out = append(out, dev)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
