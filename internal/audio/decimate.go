package audio

import (
	"sync"

	"github.com/omnisent/sensorfleet/internal/types"
)

// Decimate reduces a block 4:1 by keeping every fourth sample, preserving
// original order. The output length is ceil(len(block)/4).
func Decimate(block []int) []int {
	out := make([]int, decimatedLen(len(block)))
	for i := range out {
		out[i] = block[i*types.DecimationFactor]
	}
	return out
}

// DecimateParallel splits the scan across workers. Every worker writes a
// disjoint, pre-sized range of the output, so the result is identical to
// Decimate for any worker count and any scheduling order. Appending into
// a shared slice from multiple goroutines would lose that guarantee.
func DecimateParallel(block []int, workers int) []int {
	n := decimatedLen(len(block))
	if workers < 2 || n < workers {
		return Decimate(block)
	}

	out := make([]int, n)
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := range workers {
		lo := w * chunk
		hi := min(lo+chunk, n)
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				out[i] = block[i*types.DecimationFactor]
			}
		}(lo, hi)
	}
	wg.Wait()

	return out
}

// decimatedLen returns ceil(n/4).
func decimatedLen(n int) int {
	return (n + types.DecimationFactor - 1) / types.DecimationFactor
}
