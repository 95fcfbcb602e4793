package loop

import "time"

// Slot holds at most one pending timer. Arming cancels the previous timer,
// and a fire that was already queued when the timer was superseded is
// dropped, so a stale callback never runs.
//
// A Slot must only be used from the loop goroutine.
type Slot struct {
	sched Scheduler
	timer Timer
	seq   uint64
}

// NewSlot returns an empty slot scheduling on sched.
func NewSlot(sched Scheduler) *Slot {
	return &Slot{sched: sched}
}

// Arm cancels any pending timer and schedules fn after d.
func (s *Slot) Arm(d time.Duration, fn func()) {
	s.Cancel()
	seq := s.seq
	s.timer = s.sched.AfterFunc(d, func() {
		if seq != s.seq {
			return
		}
		s.timer = nil
		fn()
	})
}

// Cancel stops the pending timer, if any.
func (s *Slot) Cancel() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.seq++
}

// Pending reports whether a timer is armed.
func (s *Slot) Pending() bool {
	return s.timer != nil
}
