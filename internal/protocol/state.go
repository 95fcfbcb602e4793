package protocol

import "time"

// BadgeView is a rendered badge or one entry of the badge stack.
type BadgeView struct {
	Source string   `json:"source,omitempty"`
	Text   string   `json:"text"`
	Color  [4]uint8 `json:"color"`
}

// MenuEntry is one context menu item.
type MenuEntry struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId,omitempty"`
	Title    string `json:"title"`
	Enabled  bool   `json:"enabled"`
}

// BridgeState is the read-only view served at /api/state.
type BridgeState struct {
	Connection      string            `json:"connection"`
	Negotiation     string            `json:"negotiation"`
	ExpectedVersion string            `json:"expectedVersion"`
	RemoteVersion   string            `json:"remoteVersion,omitempty"`
	ReconnectDelay  time.Duration     `json:"reconnectDelay"`
	Badge           BadgeView         `json:"badge"`
	Signals         []BadgeView       `json:"signals"`
	Devices         map[string]Device `json:"devices"`
	Menu            []MenuEntry       `json:"menu"`
	Statuses        []Status          `json:"statuses"`
	Surfaces        int               `json:"surfaces"`
}
