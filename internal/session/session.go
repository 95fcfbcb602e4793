package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/five82/kdebridge/internal/backoff"
	"github.com/five82/kdebridge/internal/badge"
	"github.com/five82/kdebridge/internal/loop"
	"github.com/five82/kdebridge/internal/protocol"
)

// ErrNotConnected is returned by Send while no channel is open.
var ErrNotConnected = errors.New("session: not connected")

// DisconnectText is the status shown while the host is unreachable.
const DisconnectText = "could not connect to native host"

// State is the connection state.
type State string

const (
	Disconnected State = "disconnected"
	Connecting   State = "connecting"
	Connected    State = "connected"
)

// Channel is an open duplex connection to the host.
type Channel interface {
	Send(msg protocol.Message) error
	Close() error
}

// Handler receives channel events. Implementations must tolerate calls from
// any goroutine.
type Handler interface {
	HandleMessage(msg protocol.Message)
	HandleDisconnect(err error)
}

// Dialer opens host channels. Dial never fails directly: a host that cannot
// be started is reported through HandleDisconnect, exactly like one that
// exits later.
type Dialer interface {
	Dial(h Handler) Channel
}

// Publisher fans synthesized status messages out to UI surfaces.
type Publisher interface {
	Publish(msg protocol.Message)
}

// Options configures a Manager.
type Options struct {
	// MaxDelay caps the reconnect delay. Zero leaves it unbounded.
	MaxDelay time.Duration
	Logger   *log.Logger
}

// Snapshot is a point-in-time view of the manager.
type Snapshot struct {
	State            State
	ReconnectDelay   time.Duration
	ReconnectPending bool
	Attempts         uint64
}

// Manager owns the single host channel. All methods must run on the loop
// goroutine.
type Manager struct {
	sched     loop.Scheduler
	dialer    Dialer
	badges    *badge.Aggregator
	publisher Publisher
	logger    *log.Logger

	backoff   *backoff.Backoff
	reconnect *loop.Slot
	reset     *loop.Slot

	ctx     context.Context
	state   State
	channel Channel
	gen     uint64
	closed  bool

	dialing  bool
	deferred []func()

	onConnect []func(ctx context.Context)
	onMessage func(ctx context.Context, msg protocol.Message)
}

// New returns a disconnected manager. Call Connect on the loop to start it.
func New(sched loop.Scheduler, dialer Dialer, badges *badge.Aggregator, pub Publisher, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		sched:     sched,
		dialer:    dialer,
		badges:    badges,
		publisher: pub,
		logger:    logger,
		backoff:   backoff.New(opts.MaxDelay),
		reconnect: loop.NewSlot(sched),
		reset:     loop.NewSlot(sched),
		ctx:       context.Background(),
		state:     Disconnected,
	}
}

// OnConnect registers a hook that runs right after each channel opens, in
// registration order.
func (m *Manager) OnConnect(hook func(ctx context.Context)) {
	m.onConnect = append(m.onConnect, hook)
}

// OnMessage sets the receiver for inbound host messages.
func (m *Manager) OnMessage(fn func(ctx context.Context, msg protocol.Message)) {
	m.onMessage = fn
}

// Connect opens a channel to the host. It must only be called while no
// channel is open; the disconnect path guarantees that for reconnects.
func (m *Manager) Connect(ctx context.Context) {
	m.ctx = ctx
	if m.closed {
		m.logger.Printf("[session] connect after close ignored")
		return
	}
	if m.channel != nil {
		m.logger.Printf("[session] connect while connected ignored")
		return
	}

	m.state = Connecting
	m.badges.Clear(ctx, badge.SourceConnected)
	m.publisher.Publish(protocol.NewClearStatus(protocol.StatusKeyConnected))

	m.gen++
	gen := m.gen

	// Connections that outlive 90% of the current delay reset the backoff.
	m.reset.Arm(m.backoff.Delay()*9/10, func() {
		m.backoff.Reset()
	})

	m.dialing = true
	m.channel = m.dialer.Dial(&binding{m: m, gen: gen})
	m.state = Connected
	for _, hook := range m.onConnect {
		hook(ctx)
		if m.gen != gen {
			break
		}
	}
	m.dialing = false

	deferred := m.deferred
	m.deferred = nil
	for _, fn := range deferred {
		fn()
	}
}

// Send forwards msg verbatim to the host.
func (m *Manager) Send(msg protocol.Message) error {
	if m.channel == nil {
		return ErrNotConnected
	}
	if err := m.channel.Send(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() Snapshot {
	return Snapshot{
		State:            m.state,
		ReconnectDelay:   m.backoff.Delay(),
		ReconnectPending: m.reconnect.Pending(),
		Attempts:         m.gen,
	}
}

// Close shuts the channel and cancels every timer. No reconnect follows.
func (m *Manager) Close() error {
	m.closed = true
	m.reconnect.Cancel()
	m.reset.Cancel()
	m.gen++
	m.state = Disconnected
	ch := m.channel
	m.channel = nil
	if ch == nil {
		return nil
	}
	if err := ch.Close(); err != nil {
		return fmt.Errorf("close channel: %w", err)
	}
	return nil
}

func (m *Manager) handleMessage(gen uint64, msg protocol.Message) {
	if gen != m.gen || m.channel == nil {
		return
	}
	if m.onMessage != nil {
		m.onMessage(m.ctx, msg)
	}
}

func (m *Manager) handleDisconnect(gen uint64, err error) {
	if gen != m.gen || m.channel == nil {
		return
	}
	ctx := m.ctx

	m.channel = nil
	m.state = Disconnected
	m.badges.Set(ctx, badge.SourceConnected, "!", badge.Red)
	m.publisher.Publish(protocol.ErrorStatus(protocol.StatusKeyConnected, DisconnectText))

	m.reset.Cancel()
	m.reconnect.Cancel()

	if err != nil {
		m.logger.Printf("[session] disconnected from native host: %v", err)
	} else {
		m.logger.Printf("[session] disconnected from native host")
	}

	delay := m.backoff.Next()
	m.reconnect.Arm(delay, func() {
		m.Connect(ctx)
	})
}

// binding tags channel events with the attempt that produced them and moves
// them onto the loop.
type binding struct {
	m   *Manager
	gen uint64
}

func (b *binding) HandleMessage(msg protocol.Message) {
	b.post(func() { b.m.handleMessage(b.gen, msg) })
}

func (b *binding) HandleDisconnect(err error) {
	b.post(func() { b.m.handleDisconnect(b.gen, err) })
}

func (b *binding) post(fn func()) {
	b.m.sched.Post(func() {
		if b.m.dialing {
			b.m.deferred = append(b.m.deferred, fn)
			return
		}
		fn()
	})
}
