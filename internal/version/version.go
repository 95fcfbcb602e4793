// Package version runs the protocol handshake with the host after every
// connect and flags the badge when the host is out of date or silent.
package version

import (
	"context"
	"log"
	"time"

	"github.com/five82/kdebridge/internal/badge"
	"github.com/five82/kdebridge/internal/loop"
	"github.com/five82/kdebridge/internal/protocol"
)

// DefaultTimeout bounds the wait for a version response.
const DefaultTimeout = 500 * time.Millisecond

// TimeoutText is the status error published when the host never answers.
const TimeoutText = "no version response received from native host"

// State is the negotiation outcome.
type State string

const (
	Unknown    State = "unknown"
	Matched    State = "matched"
	Mismatched State = "mismatched"
)

// Sender delivers a message to the host.
type Sender interface {
	Send(msg protocol.Message) error
}

// Publisher fans a status message out to UI surfaces.
type Publisher interface {
	Publish(msg protocol.Message)
}

// Options configures a Negotiator.
type Options struct {
	Expected string
	Timeout  time.Duration
	Logger   *log.Logger
}

// Negotiator tracks the handshake for the current connection. It must only
// be used from the loop goroutine.
type Negotiator struct {
	expected string
	timeout  time.Duration
	sender   Sender
	badges   *badge.Aggregator
	pub      Publisher
	logger   *log.Logger
	timer    *loop.Slot

	state  State
	remote string
}

// New returns a negotiator in the Unknown state.
func New(sched loop.Scheduler, sender Sender, badges *badge.Aggregator, pub Publisher, opts Options) *Negotiator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Negotiator{
		expected: opts.Expected,
		timeout:  opts.Timeout,
		sender:   sender,
		badges:   badges,
		pub:      pub,
		logger:   opts.Logger,
		timer:    loop.NewSlot(sched),
		state:    Unknown,
	}
}

// Begin starts a fresh handshake: the state returns to Unknown, a version
// request goes to the host, and the timeout is re-armed.
func (n *Negotiator) Begin(ctx context.Context) {
	n.state = Unknown
	n.remote = ""
	if err := n.sender.Send(protocol.Request(protocol.TypeVersion)); err != nil {
		n.logger.Printf("[version] request: %v", err)
	}
	n.arm(ctx)
}

// Rearm restarts the timeout without touching the state. A UI surface that
// asks for the version triggers this.
func (n *Negotiator) Rearm(ctx context.Context) {
	n.arm(ctx)
}

// HandleResponse compares the host-reported version against the expected one.
func (n *Negotiator) HandleResponse(ctx context.Context, remote string) {
	n.timer.Cancel()
	n.remote = remote

	if remote == n.expected {
		n.state = Matched
		n.badges.Clear(ctx, badge.SourceUpdate)
		n.pub.Publish(protocol.NewClearStatus(protocol.StatusKeyUpdate))
		return
	}

	n.state = Mismatched
	n.logger.Printf("[version] host reports %q, expected %q", remote, n.expected)
	n.badges.Set(ctx, badge.SourceUpdate, "!", badge.Blue)
	n.pub.Publish(protocol.NewStatus(protocol.Status{
		Type:    protocol.TypeVersion,
		Key:     protocol.StatusKeyUpdate,
		Update:  n.expected,
		Current: remote,
	}))
}

// State returns the outcome and, once known, the remote version.
func (n *Negotiator) State() (State, string) {
	return n.state, n.remote
}

// Expected returns the protocol version this bridge speaks.
func (n *Negotiator) Expected() string {
	return n.expected
}

// TimeoutPending reports whether a response is being waited for.
func (n *Negotiator) TimeoutPending() bool {
	return n.timer.Pending()
}

func (n *Negotiator) arm(ctx context.Context) {
	n.timer.Arm(n.timeout, func() {
		if n.state != Unknown {
			return
		}
		n.logger.Printf("[version] no response within %s", n.timeout)
		n.pub.Publish(protocol.ErrorStatus(protocol.StatusKeyUpdate, TimeoutText))
		n.badges.Set(ctx, badge.SourceUpdate, "!", badge.Red)
	})
}
