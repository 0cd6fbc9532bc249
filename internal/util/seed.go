package util

import (
	"hash/fnv"
	"sync/atomic"
	"time"
)

// seedCounter disambiguates seeds requested within the same nanosecond.
var seedCounter atomic.Uint64

// Seed derives a random-source seed from a device identity, the
// high-resolution clock and a process-wide counter. Devices constructed
// simultaneously therefore never share a seed, unlike reseeding a global
// generator from wall-clock seconds.
func Seed(identity string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(identity))
	mixed := h.Sum64() ^ uint64(time.Now().UnixNano()) ^ (seedCounter.Add(1) << 32)
	return int64(mixed) //nolint:gosec // Deliberate wraparound, any bit pattern is a valid seed
}
