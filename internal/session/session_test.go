package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/five82/kdebridge/internal/badge"
	"github.com/five82/kdebridge/internal/loop"
	"github.com/five82/kdebridge/internal/protocol"
)

type fakeChannel struct {
	sent    []protocol.Message
	closed  bool
	sendErr error
}

func (c *fakeChannel) Send(msg protocol.Message) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type dial struct {
	at      time.Duration
	handler Handler
	channel *fakeChannel
}

type fakeDialer struct {
	clock  *loop.Manual
	dials  []dial
	onDial func(h Handler)
}

func (d *fakeDialer) Dial(h Handler) Channel {
	ch := &fakeChannel{}
	d.dials = append(d.dials, dial{at: d.clock.Now(), handler: h, channel: ch})
	if d.onDial != nil {
		d.onDial(h)
	}
	return ch
}

func (d *fakeDialer) last() dial {
	return d.dials[len(d.dials)-1]
}

type recorder struct {
	msgs []protocol.Message
}

func (r *recorder) Publish(msg protocol.Message) {
	r.msgs = append(r.msgs, msg)
}

type harness struct {
	clock   *loop.Manual
	dialer  *fakeDialer
	toolbar *badge.Toolbar
	badges  *badge.Aggregator
	pub     *recorder
	mgr     *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := loop.NewManual()
	tb := badge.NewToolbar()
	h := &harness{
		clock:   clock,
		dialer:  &fakeDialer{clock: clock},
		toolbar: tb,
		badges:  badge.New(tb, nil),
		pub:     &recorder{},
	}
	h.mgr = New(clock, h.dialer, h.badges, h.pub, Options{})
	return h
}

func TestConnect_ClearsSignalAndRunsHooks(t *testing.T) {
	h := newHarness(t)
	h.badges.Set(context.Background(), badge.SourceConnected, "!", badge.Red)

	var order []string
	h.mgr.OnConnect(func(context.Context) {
		order = append(order, "version")
		if err := h.mgr.Send(protocol.Request(protocol.TypeVersion)); err != nil {
			t.Errorf("Send: %v", err)
		}
	})
	h.mgr.OnConnect(func(context.Context) {
		order = append(order, "devices")
		_ = h.mgr.Send(protocol.Request(protocol.TypeDevices))
	})

	h.mgr.Connect(context.Background())

	if got := h.mgr.Snapshot().State; got != Connected {
		t.Fatalf("state = %s, want connected", got)
	}
	if h.badges.Has(badge.SourceConnected) {
		t.Fatal("connected signal still set after connect")
	}
	if len(h.pub.msgs) != 1 || h.pub.msgs[0].Type != protocol.TypeClearStatus {
		t.Fatalf("published = %+v, want one clear status", h.pub.msgs)
	}
	sent := h.dialer.last().channel.sent
	if len(sent) != 2 || sent[0].Type != protocol.TypeVersion || sent[1].Type != protocol.TypeDevices {
		t.Fatalf("sent = %+v, want version then devices", sent)
	}
	if len(order) != 2 {
		t.Fatalf("hooks ran %v", order)
	}
}

func TestSend_WithoutChannel(t *testing.T) {
	h := newHarness(t)
	if err := h.mgr.Send(protocol.Request(protocol.TypeDevices)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send() = %v, want ErrNotConnected", err)
	}

	h.mgr.Connect(context.Background())
	h.dialer.last().handler.HandleDisconnect(errors.New("exit status 1"))
	if err := h.mgr.Send(protocol.Request(protocol.TypeDevices)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send() after disconnect = %v, want ErrNotConnected", err)
	}
}

func TestSend_WrapsTransportError(t *testing.T) {
	h := newHarness(t)
	h.mgr.Connect(context.Background())
	boom := errors.New("queue full")
	h.dialer.last().channel.sendErr = boom
	if err := h.mgr.Send(protocol.Request(protocol.TypeDevices)); !errors.Is(err, boom) {
		t.Fatalf("Send() = %v, want wrapped %v", err, boom)
	}
}

func TestDisconnect_SignalsAndSchedulesReconnect(t *testing.T) {
	h := newHarness(t)
	h.mgr.Connect(context.Background())
	h.pub.msgs = nil

	h.dialer.last().handler.HandleDisconnect(nil)

	text, c := h.toolbar.Shown()
	if text != "!" || c != badge.Red {
		t.Fatalf("badge = (%q, %v), want red !", text, c)
	}
	if len(h.pub.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(h.pub.msgs))
	}
	payload, err := protocol.Decode(h.pub.msgs[0])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	st := payload.(protocol.StatusPayload).Status
	if st.Type != protocol.TypeError || st.Key != protocol.StatusKeyConnected || st.Error != DisconnectText {
		t.Fatalf("status = %+v", st)
	}

	snap := h.mgr.Snapshot()
	if snap.State != Disconnected || !snap.ReconnectPending {
		t.Fatalf("snapshot = %+v, want disconnected with reconnect pending", snap)
	}
	// Only the reconnect timer remains; the reset timer was cancelled.
	if h.clock.Pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", h.clock.Pending())
	}

	h.clock.Advance(100 * time.Millisecond)
	if len(h.dialer.dials) != 2 {
		t.Fatalf("dials = %d, want 2", len(h.dialer.dials))
	}
}

func TestBackoff_DoublesWhileFailingFast(t *testing.T) {
	h := newHarness(t)
	h.dialer.onDial = func(hd Handler) { hd.HandleDisconnect(errors.New("not installed")) }

	h.mgr.Connect(context.Background())
	h.clock.Advance(1500 * time.Millisecond)

	want := []time.Duration{0, 100, 300, 700, 1500}
	if len(h.dialer.dials) != len(want) {
		t.Fatalf("dials = %d, want %d", len(h.dialer.dials), len(want))
	}
	for i, w := range want {
		if got := h.dialer.dials[i].at; got != w*time.Millisecond {
			t.Fatalf("dial %d at %v, want %v", i, got, w*time.Millisecond)
		}
	}
	if got := h.mgr.Snapshot().ReconnectDelay; got != 3200*time.Millisecond {
		t.Fatalf("delay = %v, want 3.2s", got)
	}
}

func TestBackoff_ResetsAfterSurvivingNinetyPercent(t *testing.T) {
	h := newHarness(t)
	h.mgr.Connect(context.Background())

	// Escalate: 100, 200, 400.
	for range 3 {
		d := h.mgr.Snapshot().ReconnectDelay
		h.dialer.last().handler.HandleDisconnect(nil)
		h.clock.Advance(d)
	}
	if got := h.mgr.Snapshot().ReconnectDelay; got != 800*time.Millisecond {
		t.Fatalf("delay before survival = %v, want 800ms", got)
	}

	// The live connection outlives 90% of 800ms.
	h.clock.Advance(720 * time.Millisecond)
	if got := h.mgr.Snapshot().ReconnectDelay; got != 100*time.Millisecond {
		t.Fatalf("delay after survival = %v, want 100ms", got)
	}

	dials := len(h.dialer.dials)
	h.dialer.last().handler.HandleDisconnect(nil)
	h.clock.Advance(99 * time.Millisecond)
	if len(h.dialer.dials) != dials {
		t.Fatal("reconnected before 100ms")
	}
	h.clock.Advance(time.Millisecond)
	if len(h.dialer.dials) != dials+1 {
		t.Fatal("did not reconnect at 100ms")
	}
}

func TestBackoff_NoResetWhenDroppedBeforeNinetyPercent(t *testing.T) {
	h := newHarness(t)
	h.mgr.Connect(context.Background())
	h.dialer.last().handler.HandleDisconnect(nil)
	h.clock.Advance(100 * time.Millisecond)

	// Delay is 200ms now; the reset fires at 180ms. Drop at 179ms.
	h.clock.Advance(179 * time.Millisecond)
	h.dialer.last().handler.HandleDisconnect(nil)
	if got := h.mgr.Snapshot().ReconnectDelay; got != 400*time.Millisecond {
		t.Fatalf("delay = %v, want 400ms", got)
	}
	h.clock.Advance(time.Second)
	if got := len(h.dialer.dials); got != 3 {
		t.Fatalf("dials = %d, want 3", got)
	}
}

func TestStaleChannelEventsIgnored(t *testing.T) {
	h := newHarness(t)
	var got []protocol.Message
	h.mgr.OnMessage(func(_ context.Context, msg protocol.Message) { got = append(got, msg) })

	h.mgr.Connect(context.Background())
	old := h.dialer.last().handler
	old.HandleDisconnect(nil)

	// A second disconnect from the same channel neither doubles the delay
	// nor queues another reconnect.
	old.HandleDisconnect(nil)
	if got := h.mgr.Snapshot().ReconnectDelay; got != 200*time.Millisecond {
		t.Fatalf("delay = %v, want 200ms", got)
	}
	if h.clock.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", h.clock.Pending())
	}

	h.clock.Advance(100 * time.Millisecond)
	old.HandleMessage(protocol.Request(protocol.TypeDevices))
	old.HandleDisconnect(nil)
	if len(got) != 0 {
		t.Fatalf("stale message delivered: %+v", got)
	}
	if h.mgr.Snapshot().State != Connected {
		t.Fatal("stale disconnect tore down the new channel")
	}

	h.dialer.last().handler.HandleMessage(protocol.Request(protocol.TypeDevices))
	if len(got) != 1 {
		t.Fatalf("live message not delivered")
	}
}

func TestClose_StopsReconnecting(t *testing.T) {
	h := newHarness(t)
	h.mgr.Connect(context.Background())
	ch := h.dialer.last().channel
	if err := h.mgr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !ch.closed {
		t.Fatal("channel not closed")
	}
	h.dialer.last().handler.HandleDisconnect(nil)
	h.clock.Advance(time.Minute)
	if len(h.dialer.dials) != 1 {
		t.Fatalf("dials = %d after close, want 1", len(h.dialer.dials))
	}
	if h.mgr.Snapshot().ReconnectPending {
		t.Fatal("reconnect pending after close")
	}
}

func TestMaxDelayCapsBackoff(t *testing.T) {
	clock := loop.NewManual()
	d := &fakeDialer{clock: clock}
	d.onDial = func(hd Handler) { hd.HandleDisconnect(nil) }
	mgr := New(clock, d, badge.New(badge.NewToolbar(), nil), &recorder{}, Options{MaxDelay: 300 * time.Millisecond})

	mgr.Connect(context.Background())
	clock.Advance(1300 * time.Millisecond)

	want := []time.Duration{0, 100, 300, 600, 900, 1200}
	if len(d.dials) != len(want) {
		t.Fatalf("dials = %d, want %d", len(d.dials), len(want))
	}
	for i, w := range want {
		if d.dials[i].at != w*time.Millisecond {
			t.Fatalf("dial %d at %v, want %v", i, d.dials[i].at, w*time.Millisecond)
		}
	}
}
