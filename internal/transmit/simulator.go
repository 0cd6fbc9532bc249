// Package transmit models the lossy uplink channel. It never performs
// real I/O: each attempt is an independent weighted coin flip, optionally
// delayed to mimic channel latency.
package transmit

import (
	"math/rand"
	"sync"
	"time"

	"github.com/omnisent/sensorfleet/internal/types"
)

// Simulator decides the fate of uplink attempts for one device. Each
// Simulator owns an independent random source so concurrent devices never
// share channel state.
type Simulator struct {
	mu          sync.Mutex
	rng         *rand.Rand
	successRate float64
	latency     time.Duration
}

// NewSimulator returns a Simulator with the given seed, per-attempt
// success probability and simulated channel latency. A rate outside [0,1]
// falls back to the default 90%; an explicit 0 means every attempt fails.
func NewSimulator(seed int64, successRate float64, latency time.Duration) *Simulator {
	if successRate < 0 || successRate > 1 {
		successRate = types.DefaultSuccessRate
	}
	return &Simulator{
		rng:         rand.New(rand.NewSource(seed)), //nolint:gosec // Simulation randomness, not cryptographic
		successRate: successRate,
		latency:     latency,
	}
}

// Attempt reports whether the payload was "transmitted". Outcomes are
// independent across attempts and of payload content. A failed attempt is
// an ordinary result, never an error.
func (s *Simulator) Attempt(encoded string) bool {
	_ = encoded // Content never influences the channel

	if s.latency > 0 {
		time.Sleep(s.latency)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.successRate
}

// SuccessRate returns the configured per-attempt success probability.
func (s *Simulator) SuccessRate() float64 {
	return s.successRate
}
