package rand

import (
	"sync"

	"github.com/MichaelTJones/pcg"
)

const pcgSequence = 0xda3e39cb94b95bdb

// Rand is a seeded PCG32 source safe for use from multiple goroutines.
// Each simulation owns one; there is no package-level generator.
type Rand struct {
	mu sync.Mutex
	r  *pcg.PCG32
}

func New(seed int64) *Rand {
	r := &Rand{r: pcg.NewPCG32()}
	r.r.Seed(uint64(seed), pcgSequence)
	return r
}

// Intn returns a value in [0, n). n must be positive.
func (r *Rand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.r.Bounded(uint32(n)))
}

// Float64 returns a value in [0, 1).
func (r *Rand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return float64(r.r.Random()) / (1 << 32)
}

// FloatRange returns a value in [lo, hi).
func (r *Rand) FloatRange(lo, hi float64) float64 {
	return lo + (hi-lo)*r.Float64()
}

// SampleFiltered uniformly samples the slice, considering only items for
// which pred returns true, and returns the sampled index or -1.
func SampleFiltered[T any](r *Rand, slice []T, pred func(T) bool) int {
	idx := -1
	candidates := 0
	for i, v := range slice {
		if pred(v) {
			candidates++
			if r.Intn(candidates) == 0 {
				idx = i
			}
		}
	}
	return idx
}
