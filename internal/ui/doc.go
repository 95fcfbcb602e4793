// Package ui implements the terminal popup with Bubble Tea.
//
// The popup is one screen: a header with the toolbar badge and the host and
// protocol state, the active status lines, the device list and a URL input.
// Devices that are unreachable or unpaired stay listed but dimmed and cannot
// be picked as a target.
//
// Data arrives two ways. Messages pushed through the Surface are folded into
// the state.Store as they come in; a ticker re-reads the store so polled
// bridge state shows up too. Sends run as tea.Cmds so a slow socket never
// blocks rendering.
//
// Keys: enter sends the URL to the selected device, u edits the URL, d makes
// the selection the default device, r asks the host for fresh devices and
// version, T cycles the theme and saves it to the preferences file, q quits.
package ui
