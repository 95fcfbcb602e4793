package version

import (
	"context"
	"testing"
	"time"

	"github.com/five82/kdebridge/internal/badge"
	"github.com/five82/kdebridge/internal/loop"
	"github.com/five82/kdebridge/internal/protocol"
)

type sink struct {
	msgs []protocol.Message
}

func (s *sink) Send(msg protocol.Message) error {
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *sink) Publish(msg protocol.Message) {
	s.msgs = append(s.msgs, msg)
}

type fixture struct {
	clock   *loop.Manual
	toolbar *badge.Toolbar
	badges  *badge.Aggregator
	host    *sink
	ui      *sink
	neg     *Negotiator
}

func newFixture() *fixture {
	f := &fixture{
		clock:   loop.NewManual(),
		toolbar: badge.NewToolbar(),
		host:    &sink{},
		ui:      &sink{},
	}
	f.badges = badge.New(f.toolbar, nil)
	f.neg = New(f.clock, f.host, f.badges, f.ui, Options{Expected: "1.0.0"})
	return f
}

func statuses(t *testing.T, msgs []protocol.Message) []protocol.Status {
	t.Helper()
	var out []protocol.Status
	for _, m := range msgs {
		p, err := protocol.Decode(m)
		if err != nil {
			t.Fatalf("Decode(%s): %v", m.Type, err)
		}
		if sp, ok := p.(protocol.StatusPayload); ok {
			out = append(out, sp.Status)
		}
	}
	return out
}

func TestBegin_SendsRequestAndArmsTimeout(t *testing.T) {
	f := newFixture()
	f.neg.Begin(context.Background())

	if len(f.host.msgs) != 1 || f.host.msgs[0].Type != protocol.TypeVersion || f.host.msgs[0].Data != nil {
		t.Fatalf("host got %+v, want bare typeVersion request", f.host.msgs)
	}
	if !f.neg.TimeoutPending() {
		t.Fatal("timeout not armed")
	}
	if st, _ := f.neg.State(); st != Unknown {
		t.Fatalf("state = %s, want unknown", st)
	}
}

func TestHandleResponse(t *testing.T) {
	tests := []struct {
		name      string
		remote    string
		wantState State
		wantBadge badge.Color
		wantType  protocol.Type
	}{
		{name: "matched", remote: "1.0.0", wantState: Matched, wantBadge: badge.Transparent, wantType: protocol.TypeClearStatus},
		{name: "mismatched", remote: "1.1.0", wantState: Mismatched, wantBadge: badge.Blue, wantType: protocol.TypeStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			f.neg.Begin(ctx)
			f.clock.Advance(100 * time.Millisecond)
			f.neg.HandleResponse(ctx, tt.remote)

			st, remote := f.neg.State()
			if st != tt.wantState || remote != tt.remote {
				t.Fatalf("State() = (%s, %q), want (%s, %q)", st, remote, tt.wantState, tt.remote)
			}
			if _, c := f.toolbar.Shown(); c != tt.wantBadge {
				t.Fatalf("badge color = %v, want %v", c, tt.wantBadge)
			}
			if len(f.ui.msgs) != 1 || f.ui.msgs[0].Type != tt.wantType {
				t.Fatalf("published %+v, want one %s", f.ui.msgs, tt.wantType)
			}
			if tt.wantState == Mismatched {
				got := statuses(t, f.ui.msgs)[0]
				if got.Key != protocol.StatusKeyUpdate || got.Update != "1.0.0" || got.Current != "1.1.0" {
					t.Fatalf("status = %+v", got)
				}
			}

			f.clock.Advance(time.Second)
			if len(f.ui.msgs) != 1 {
				t.Fatalf("timeout fired after response: %+v", f.ui.msgs)
			}
		})
	}
}

func TestTimeout_PublishesExactlyOneError(t *testing.T) {
	f := newFixture()
	f.neg.Begin(context.Background())

	f.clock.Advance(499 * time.Millisecond)
	if len(f.ui.msgs) != 0 {
		t.Fatal("timeout fired early")
	}
	f.clock.Advance(10 * time.Second)

	got := statuses(t, f.ui.msgs)
	if len(got) != 1 {
		t.Fatalf("published %d statuses, want 1", len(got))
	}
	if got[0].Type != protocol.TypeError || got[0].Key != protocol.StatusKeyUpdate || got[0].Error != TimeoutText {
		t.Fatalf("status = %+v", got[0])
	}
	if text, c := f.toolbar.Shown(); text != "!" || c != badge.Red {
		t.Fatalf("badge = (%q, %v), want red !", text, c)
	}

	// A late response clears the error without another timeout report.
	f.neg.HandleResponse(context.Background(), "1.0.0")
	f.clock.Advance(time.Second)
	if len(statuses(t, f.ui.msgs)) != 1 {
		t.Fatal("second error status published")
	}
	if f.badges.Has(badge.SourceUpdate) {
		t.Fatal("update signal kept after matched response")
	}
}

func TestBegin_SupersedesStaleTimeout(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.neg.Begin(ctx)
	f.clock.Advance(400 * time.Millisecond)

	// Reconnect: the first attempt's timeout must not fire at 500ms.
	f.neg.Begin(ctx)
	f.clock.Advance(200 * time.Millisecond)
	if len(f.ui.msgs) != 0 {
		t.Fatalf("stale timeout fired: %+v", f.ui.msgs)
	}
	if f.clock.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", f.clock.Pending())
	}
	f.clock.Advance(300 * time.Millisecond)
	if len(f.ui.msgs) != 1 {
		t.Fatalf("published %d, want 1 after new timeout", len(f.ui.msgs))
	}
}

func TestBegin_ResetsOutcome(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.neg.Begin(ctx)
	f.neg.HandleResponse(ctx, "1.0.0")
	f.neg.Begin(ctx)
	if st, remote := f.neg.State(); st != Unknown || remote != "" {
		t.Fatalf("State() = (%s, %q), want unknown", st, remote)
	}
}

func TestRearm_KeepsStateAndRestartsTimer(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.neg.Begin(ctx)
	f.neg.HandleResponse(ctx, "1.1.0")

	f.neg.Rearm(ctx)
	if st, _ := f.neg.State(); st != Mismatched {
		t.Fatalf("state = %s, want mismatched", st)
	}
	f.clock.Advance(time.Second)
	// Already answered, so the re-armed timeout is silent.
	if len(f.ui.msgs) != 1 {
		t.Fatalf("published %d, want only the mismatch status", len(f.ui.msgs))
	}
}
