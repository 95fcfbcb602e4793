// Package backoff computes the reconnect delay sequence for the host channel.
package backoff

import "time"

// Initial is the first reconnect delay and the value Reset restores.
const Initial = 100 * time.Millisecond

// Backoff doubles its delay on every Next call. The zero value is not ready
// for use; call New.
type Backoff struct {
	delay time.Duration
	max   time.Duration
}

// New returns a Backoff starting at Initial. A ceiling of zero leaves the
// delay unbounded.
func New(ceiling time.Duration) *Backoff {
	return &Backoff{delay: Initial, max: ceiling}
}

// Delay returns the delay the next reconnect would use.
func (b *Backoff) Delay() time.Duration {
	return b.delay
}

// Next returns the current delay and doubles it for the following call.
func (b *Backoff) Next() time.Duration {
	d := b.delay
	b.delay *= 2
	if b.max > 0 && b.delay > b.max {
		b.delay = b.max
	}
	return d
}

// Reset restores the initial delay.
func (b *Backoff) Reset() {
	b.delay = Initial
}
