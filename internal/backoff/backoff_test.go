package backoff

import (
	"testing"
	"time"
)

func TestNext_DoublesFromInitial(t *testing.T) {
	b := New(0)
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Fatalf("Next() #%d = %v, want %v", i, got, w)
		}
	}
	if got := b.Delay(); got != 3200*time.Millisecond {
		t.Fatalf("Delay() = %v, want 3.2s", got)
	}
}

func TestNext_UnboundedByDefault(t *testing.T) {
	b := New(0)
	for range 20 {
		b.Next()
	}
	if got, want := b.Delay(), Initial<<20; got != want {
		t.Fatalf("Delay() after 20 doublings = %v, want %v", got, want)
	}
}

func TestNext_RespectsMax(t *testing.T) {
	b := New(time.Second)
	var got []time.Duration
	for range 6 {
		got = append(got, b.Next())
	}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sequence = %v, want %v", got, want)
		}
	}
}

func TestReset(t *testing.T) {
	b := New(0)
	b.Next()
	b.Next()
	b.Reset()
	if got := b.Next(); got != Initial {
		t.Fatalf("Next() after Reset = %v, want %v", got, Initial)
	}
}
