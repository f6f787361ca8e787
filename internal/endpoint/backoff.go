package endpoint

import "time"

// Backoff implements the retry/backoff policy of §4.B: doubling delay
// from init up to max, used only when setting up a payload connection
// and never inside the relay hot path.
type Backoff struct {
	init    time.Duration
	max     time.Duration
	current time.Duration
}

const (
	DefaultInitDelay = 100 * time.Millisecond
	DefaultMaxDelay  = 10 * time.Second
)

// NewBackoff constructs a Backoff; zero values select the defaults
// (init=100ms, max=10s).
func NewBackoff(initDelay, maxDelay time.Duration) *Backoff {
	if initDelay <= 0 {
		initDelay = DefaultInitDelay
	}

	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	return &Backoff{init: initDelay, max: maxDelay, current: initDelay}
}

// Next returns the delay to wait before the next retry and doubles the
// internal counter, capped at max.
func (b *Backoff) Next() time.Duration {
	d := b.current

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}

	return d
}

// Reset restores the counter to init, for reuse across connection
// attempts.
func (b *Backoff) Reset() {
	b.current = b.init
}
