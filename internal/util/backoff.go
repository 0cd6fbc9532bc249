package util

import (
	"sync"
	"time"
)

// Backoff yields exponentially growing retry delays, doubling on every
// Next call until the cap is reached. Safe for concurrent use.
type Backoff struct {
	mu    sync.Mutex
	next  time.Duration
	start time.Duration
	cap   time.Duration
}

// NewBackoff returns a Backoff starting at initial and capped at maxDelay.
func NewBackoff(initial, maxDelay time.Duration) *Backoff {
	return &Backoff{next: initial, start: initial, cap: maxDelay}
}

// Next returns the delay to wait before the upcoming attempt and doubles
// the delay for the attempt after it.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.next
	b.next = min(b.next*2, b.cap)
	return d
}

// Current returns the delay Next would yield, without advancing.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next
}

// Reset rewinds the sequence to the initial delay.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.next = b.start
	b.mu.Unlock()
}
