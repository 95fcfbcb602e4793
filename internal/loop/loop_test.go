package loop

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoop_RunsPostedWorkInOrder(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go l.Run(ctx)

	var got []int
	for i := range 5 {
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Do(ctx, func() {}); err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("order = %v, want 0..4", got)
		}
	}
	if len(got) != 5 {
		t.Fatalf("ran %d closures, want 5", len(got))
	}
}

func TestLoop_PostFromHandlerDoesNotBlock(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go l.Run(ctx)

	done := make(chan struct{})
	l.Post(func() {
		for range 1000 {
			l.Post(func() {})
		}
		l.Post(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("nested posts did not drain")
	}
}

func TestLoop_AfterFuncRunsOnLoop(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go l.Run(ctx)

	fired := make(chan struct{})
	l.AfterFunc(10*time.Millisecond, func() { close(fired) })
	stopped := l.AfterFunc(10*time.Millisecond, func() { t.Error("stopped timer fired") })
	if !stopped.Stop() {
		t.Fatal("Stop() = false, want true for pending timer")
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestLoop_SurvivesHandlerPanic(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go l.Run(ctx)

	l.Post(func() { panic("boom") })
	ran := false
	if err := l.Do(ctx, func() { ran = true }); err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if !ran {
		t.Fatal("loop stopped processing after panic")
	}
}

func TestLoop_DoAfterStopReturnsErrStopped(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}

	if err := l.Do(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Do after stop = %v, want ErrStopped", err)
	}
}

func TestManual_FiresInOrderAndHonoursStop(t *testing.T) {
	m := NewManual()
	var got []string
	m.AfterFunc(300*time.Millisecond, func() { got = append(got, "c") })
	m.AfterFunc(100*time.Millisecond, func() {
		got = append(got, "a")
		m.AfterFunc(50*time.Millisecond, func() { got = append(got, "a2") })
	})
	stop := m.AfterFunc(200*time.Millisecond, func() { got = append(got, "b") })

	if m.Pending() != 3 {
		t.Fatalf("Pending() = %d, want 3", m.Pending())
	}
	stop.Stop()

	m.Advance(250 * time.Millisecond)
	if len(got) != 2 || got[0] != "a" || got[1] != "a2" {
		t.Fatalf("fired = %v, want [a a2]", got)
	}
	if m.Now() != 250*time.Millisecond {
		t.Fatalf("Now() = %v, want 250ms", m.Now())
	}

	m.Advance(50 * time.Millisecond)
	if len(got) != 3 || got[2] != "c" {
		t.Fatalf("fired = %v, want [a a2 c]", got)
	}
	if m.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", m.Pending())
	}
}

func TestSlot_ArmSupersedesPrevious(t *testing.T) {
	m := NewManual()
	s := NewSlot(m)
	var fired []string
	s.Arm(100*time.Millisecond, func() { fired = append(fired, "first") })
	s.Arm(200*time.Millisecond, func() { fired = append(fired, "second") })

	if m.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", m.Pending())
	}
	m.Advance(time.Second)
	if len(fired) != 1 || fired[0] != "second" {
		t.Fatalf("fired = %v, want [second]", fired)
	}
	if s.Pending() {
		t.Fatal("slot still pending after fire")
	}
}

// stubbornTimer ignores Stop, like a real timer whose fire is already queued.
type stubbornTimer struct{}

func (stubbornTimer) Stop() bool { return false }

type queueingScheduler struct {
	fns []func()
}

func (q *queueingScheduler) Post(fn func()) { fn() }

func (q *queueingScheduler) AfterFunc(_ time.Duration, fn func()) Timer {
	q.fns = append(q.fns, fn)
	return stubbornTimer{}
}

func TestSlot_DropsFireQueuedBeforeCancel(t *testing.T) {
	q := &queueingScheduler{}
	s := NewSlot(q)
	ran := false
	s.Arm(time.Millisecond, func() { ran = true })
	s.Cancel()
	for _, fn := range q.fns {
		fn()
	}
	if ran {
		t.Fatal("cancelled callback ran")
	}
}
