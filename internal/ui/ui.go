package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/kdebridge/internal/prefs"
	"github.com/five82/kdebridge/internal/protocol"
	"github.com/five82/kdebridge/internal/state"
)

const defaultUIInterval = time.Second

// Surface is the popup's connection to the bridge.
type Surface interface {
	Send(msg protocol.Message) error
	Messages() <-chan protocol.Message
}

// Options configure the UI runtime.
type Options struct {
	Context   context.Context
	Surface   Surface
	Store     *state.Store
	PollTick  time.Duration
	ThemeName string
	PrefsPath string
	URL       string // prefilled link
	DefaultID string // preselected device
}

// Run starts the popup and blocks until the user quits or ctx is cancelled.
func Run(opts Options) error {
	if opts.Store == nil {
		return fmt.Errorf("ui requires a data store")
	}
	if opts.Surface == nil {
		return fmt.Errorf("ui requires a bridge surface")
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(opts.Context))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && opts.Context.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

// Model is the Bubble Tea model for the popup.
type Model struct {
	surface   Surface
	store     *state.Store
	keys      keyMap
	help      help.Model
	theme     Theme
	prefsPath string
	pollTick  time.Duration

	snapshot  state.Snapshot
	devices   []protocol.Device
	cursor    int
	defaultID string
	url       textinput.Model

	notice      string
	noticeError bool
	closed      bool

	width  int
	height int
}

// Messages driving the model.
type (
	tickMsg        time.Time
	surfaceMsg     protocol.Message
	surfaceDoneMsg struct{}
	sentMsg        struct {
		what string
		err  error
	}
	themeSavedMsg struct{ err error }
)

// New returns the initial model.
func New(opts Options) Model {
	input := textinput.New()
	input.Placeholder = "https://"
	input.Prompt = "URL "
	input.CharLimit = 4096
	input.SetValue(opts.URL)

	tick := opts.PollTick
	if tick <= 0 || tick > defaultUIInterval {
		tick = defaultUIInterval
	}

	m := Model{
		surface:   opts.Surface,
		store:     opts.Store,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		theme:     GetTheme(opts.ThemeName),
		prefsPath: opts.PrefsPath,
		pollTick:  tick,
		defaultID: opts.DefaultID,
		url:       input,
		width:     80,
		height:    24,
	}
	if opts.URL == "" {
		m.url.Focus()
	}
	m.refresh()
	m.selectDefault()
	return m
}

// Init starts listening to the surface and the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForMessage(m.surface), tickEvery(m.pollTick))
}

func waitForMessage(s Surface) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-s.Messages()
		if !ok {
			return surfaceDoneMsg{}
		}
		return surfaceMsg(msg)
	}
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles a message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.url.Width = max(msg.Width-10, 10)
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tickEvery(m.pollTick)

	case surfaceMsg:
		m.store.Apply(protocol.Message(msg))
		m.refresh()
		return m, waitForMessage(m.surface)

	case surfaceDoneMsg:
		m.closed = true
		m.setNotice("bridge connection closed", true)
		return m, nil

	case sentMsg:
		if msg.err != nil {
			m.setNotice(fmt.Sprintf("%s failed: %v", msg.what, msg.err), true)
		} else {
			m.setNotice(msg.what, false)
		}
		return m, nil

	case themeSavedMsg:
		if msg.err != nil {
			m.setNotice(fmt.Sprintf("save theme: %v", msg.err), true)
		}
		return m, nil

	case tea.KeyMsg:
		if m.url.Focused() {
			return m.updateURLInput(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) updateURLInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.Confirm):
		m.url.Blur()
		cmd := m.share()
		return m, cmd
	case key.Matches(msg, m.keys.Cancel):
		m.url.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.url, cmd = m.url.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.devices)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Share):
		cmd := m.share()
		return m, cmd
	case key.Matches(msg, m.keys.EditURL):
		cmd := m.url.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Refresh):
		cmd := m.requestRefresh()
		return m, cmd
	case key.Matches(msg, m.keys.SetDefault):
		cmd := m.saveDefault()
		return m, cmd
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		cmd := m.saveTheme(m.theme.Name)
		return m, cmd
	}
	return m, nil
}

// refresh pulls the latest snapshot and keeps the cursor on the same device.
func (m *Model) refresh() {
	var selected string
	if dev, ok := m.selected(); ok {
		selected = dev.ID
	}
	m.snapshot = m.store.Snapshot()
	m.devices = protocol.SortedDevices(m.snapshot.Devices)
	m.cursor = 0
	for i, dev := range m.devices {
		if dev.ID == selected {
			m.cursor = i
			break
		}
	}
}

func (m *Model) selectDefault() {
	for i, dev := range m.devices {
		if dev.ID == m.defaultID {
			m.cursor = i
			return
		}
	}
}

func (m Model) selected() (protocol.Device, bool) {
	if m.cursor < 0 || m.cursor >= len(m.devices) {
		return protocol.Device{}, false
	}
	return m.devices[m.cursor], true
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeError = isErr
}

// share sends the URL to the selected device.
func (m *Model) share() tea.Cmd {
	dev, ok := m.selected()
	if !ok {
		m.setNotice("no device selected", true)
		return nil
	}
	if !dev.Actionable() {
		m.setNotice(fmt.Sprintf("%s is not reachable", dev.Name), true)
		return nil
	}
	link := strings.TrimSpace(m.url.Value())
	if link == "" {
		m.setNotice("enter a URL to send", true)
		return m.url.Focus()
	}
	if m.closed {
		m.setNotice("bridge connection closed", true)
		return nil
	}
	surface := m.surface
	msg := protocol.NewShare(dev.ID, link)
	what := fmt.Sprintf("sent to %s", dev.Name)
	return func() tea.Msg {
		return sentMsg{what: what, err: surface.Send(msg)}
	}
}

func (m *Model) requestRefresh() tea.Cmd {
	if m.closed {
		m.setNotice("bridge connection closed", true)
		return nil
	}
	surface := m.surface
	return func() tea.Msg {
		err := errors.Join(
			surface.Send(protocol.Request(protocol.TypeDevices)),
			surface.Send(protocol.Request(protocol.TypeVersion)),
		)
		return sentMsg{what: "refresh requested", err: err}
	}
}

func (m *Model) saveTheme(name string) tea.Cmd {
	path := m.prefsPath
	return func() tea.Msg {
		p, _ := prefs.Load(path)
		p.Theme = name
		return themeSavedMsg{err: prefs.Save(path, p)}
	}
}

func (m *Model) saveDefault() tea.Cmd {
	dev, ok := m.selected()
	if !ok {
		return nil
	}
	m.defaultID = dev.ID
	path := m.prefsPath
	what := fmt.Sprintf("%s is now the default device", dev.Name)
	return func() tea.Msg {
		p, _ := prefs.Load(path)
		p.DefaultDeviceID = dev.ID
		return sentMsg{what: what, err: prefs.Save(path, p)}
	}
}
