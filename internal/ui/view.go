package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/kdebridge/internal/protocol"
)

// View renders the popup.
func (m Model) View() string {
	sections := []string{
		m.renderHeader(),
		m.renderStatuses(),
		m.renderDevices(),
		m.renderURL(),
		m.renderNotice(),
		m.renderFooter(),
	}
	kept := sections[:0]
	for _, s := range sections {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, kept...)
}

// renderHeader shows the badge, connection and negotiation state.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)

	parts := []string{bg.Render("kdebridge", styles.Logo)}

	if !m.snapshot.HasBridge {
		if m.snapshot.LastError != nil {
			parts = append(parts,
				bg.Render("BRIDGE UNAVAILABLE", styles.DangerText),
				bg.Render("Retrying...", styles.WarningText.Bold(true)),
			)
		} else {
			parts = append(parts, bg.Render("Connecting to bridge...", styles.WarningText.Bold(true)))
		}
		return styles.Header.Width(m.width).Render(bg.Join(parts, 2))
	}

	bridge := m.snapshot.Bridge
	if bridge.Badge.Text != "" && bridge.Badge.Color[3] > 0 {
		parts = append(parts, BadgeStyle(bridge.Badge.Color).Render(bridge.Badge.Text))
	}
	parts = append(parts,
		bg.Render("host", styles.MutedText)+bg.Render(" ", styles.Text)+
			bg.Render(bridge.Connection, styles.StateStyle(bridge.Connection)),
		bg.Render("protocol", styles.MutedText)+bg.Render(" ", styles.Text)+
			bg.Render(negotiationLabel(bridge), styles.StateStyle(bridge.Negotiation)),
	)
	if bridge.Connection != "connected" && bridge.ReconnectDelay > 0 {
		parts = append(parts, bg.Render("retry in "+bridge.ReconnectDelay.String(), styles.FaintText))
	}
	if m.snapshot.IsOffline() {
		parts = append(parts, bg.Render("STALE", styles.DangerText))
	}
	return styles.Header.Width(m.width).Render(bg.Join(parts, 2))
}

func negotiationLabel(b protocol.BridgeState) string {
	switch b.Negotiation {
	case "matched":
		return "v" + b.ExpectedVersion
	case "mismatched":
		remote := b.RemoteVersion
		if remote == "" {
			remote = "?"
		}
		return fmt.Sprintf("v%s (want v%s)", remote, b.ExpectedVersion)
	case "":
		return "unknown"
	default:
		return b.Negotiation
	}
}

// renderStatuses lists the active status lines, one per key.
func (m Model) renderStatuses() string {
	if len(m.snapshot.Statuses) == 0 {
		return ""
	}
	styles := m.theme.Styles()
	lines := make([]string, 0, len(m.snapshot.Statuses))
	for _, st := range m.snapshot.Statuses {
		lines = append(lines, formatStatus(st, styles, m.width-4))
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
}

func formatStatus(st protocol.Status, styles Styles, width int) string {
	label := styles.MutedText.Render(st.Key + ":")
	switch {
	case st.Error != "":
		return label + " " + styles.DangerText.Render(truncate(st.Error, width-len(st.Key)-2))
	case st.Update != "":
		text := "update available: " + st.Update
		if st.Current != "" {
			text += " (current " + st.Current + ")"
		}
		return label + " " + styles.InfoText.Render(truncate(text, width-len(st.Key)-2))
	default:
		return label + " " + styles.FaintText.Render(string(st.Type))
	}
}

// renderDevices draws the device list. Devices that cannot receive are shown
// but dimmed.
func (m Model) renderDevices() string {
	styles := m.theme.Styles()
	panel := styles.Panel
	if !m.url.Focused() {
		panel = styles.FocusPanel
	}
	width := max(m.width-2, 20)

	if len(m.devices) == 0 {
		text := "No devices"
		if !m.snapshot.HasDevices {
			text = "Waiting for devices..."
		}
		return panel.Width(width - 2).Render(styles.MutedText.Render(text))
	}

	rows := make([]string, 0, len(m.devices))
	for i, dev := range m.devices {
		rows = append(rows, m.renderDeviceRow(dev, i == m.cursor, styles, width-4))
	}
	return panel.Width(width - 2).Render(strings.Join(rows, "\n"))
}

func (m Model) renderDeviceRow(dev protocol.Device, selected bool, styles Styles, width int) string {
	marker := "  "
	if selected {
		marker = "› "
	}
	name := dev.Name
	if name == "" {
		name = dev.ID
	}
	if dev.ID == m.defaultID {
		name += " ★"
	}

	var state string
	switch {
	case !dev.IsTrusted:
		state = "not paired"
	case !dev.IsReachable:
		state = "unreachable"
	case dev.Type != "":
		state = dev.Type
	}

	line := marker + truncate(name, max(width-len(state)-4, 8))
	if state != "" {
		pad := max(width-lipgloss.Width(line)-lipgloss.Width(state), 1)
		line += strings.Repeat(" ", pad) + state
	}

	switch {
	case selected:
		return styles.Selected.Width(width).Render(line)
	case !dev.Actionable():
		return styles.FaintText.Render(line)
	default:
		return styles.Text.Render(line)
	}
}

func (m Model) renderURL() string {
	styles := m.theme.Styles()
	panel := styles.Panel
	if m.url.Focused() {
		panel = styles.FocusPanel
	}
	return panel.Width(max(m.width-4, 18)).Render(m.url.View())
}

func (m Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	styles := m.theme.Styles()
	style := styles.SuccessText
	if m.noticeError {
		style = styles.DangerText
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(style.Render(truncate(m.notice, m.width-2)))
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	return styles.Footer.Width(m.width).Render(m.help.View(m.keys))
}
