// Package audio provides synthetic audio block generation and 4:1
// decimation for simulated sensor devices.
package audio

import (
	"math/rand"
	"sync"

	"github.com/omnisent/sensorfleet/internal/types"
)

// Generator produces blocks of synthetic signed samples. Each Generator
// owns an independent random source; it is safe for concurrent use by a
// single device but is not meant to be shared across devices.
type Generator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	workers int
}

// NewGenerator returns a Generator seeded with the given seed. workers
// selects how many goroutines fill a block; values below 2 mean a plain
// sequential fill.
func NewGenerator(seed int64, workers int) *Generator {
	return &Generator{
		rng:     rand.New(rand.NewSource(seed)), //nolint:gosec // Simulation randomness, not cryptographic
		workers: workers,
	}
}

// ClampBitDepth forces a bit depth into the supported range so a
// degenerate configuration can never produce a negative shift.
func ClampBitDepth(bitDepth int) int {
	return min(max(bitDepth, types.MinBitDepth), types.MaxBitDepth)
}

// AmplitudeRange returns the half-open amplitude bound for a bit depth:
// samples are drawn from [-range, range-1] with range = 2^(bitDepth-1).
func AmplitudeRange(bitDepth int) int64 {
	return 1 << (ClampBitDepth(bitDepth) - 1)
}

// Generate produces sampleRate*durationSec samples drawn uniformly from
// the bit-depth-derived amplitude range. A non-positive rate or duration
// yields an empty block. Sample i always lands at position i regardless
// of how the fill is scheduled.
func (g *Generator) Generate(sampleRate, bitDepth, durationSec int) []int {
	if sampleRate <= 0 || durationSec <= 0 {
		return []int{}
	}

	n := sampleRate * durationSec
	amp := AmplitudeRange(bitDepth)
	block := make([]int, n)

	if g.workers < 2 || n < g.workers {
		g.mu.Lock()
		for i := range block {
			block[i] = int(g.rng.Int63n(2*amp) - amp)
		}
		g.mu.Unlock()
		return block
	}

	g.fillParallel(block, amp)
	return block
}

// fillParallel partitions the index range across workers. Each worker
// draws from its own derived source, so no lock sits on the hot path and
// sample i still lands at slot i.
func (g *Generator) fillParallel(block []int, amp int64) {
	workers := g.workers

	// Derive per-worker seeds from the device source before spawning.
	g.mu.Lock()
	seeds := make([]int64, workers)
	for i := range seeds {
		seeds[i] = g.rng.Int63()
	}
	g.mu.Unlock()

	var wg sync.WaitGroup
	chunk := (len(block) + workers - 1) / workers
	for w := range workers {
		lo := w * chunk
		hi := min(lo+chunk, len(block))
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(part []int, seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed)) //nolint:gosec // Simulation randomness, not cryptographic
			for i := range part {
				part[i] = int(rng.Int63n(2*amp) - amp)
			}
		}(block[lo:hi], seeds[w])
	}
	wg.Wait()
}
