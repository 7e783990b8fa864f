// Package random provides the seeded pseudo-random source used by the
// optimizers, the walk-forward harness and the Monte Carlo resampler.
// It wraps a Mersenne Twister so that, given the same seed, every draw
// is bit-identical across runs and platforms.
package random

import (
	"seehuhn.de/go/mt19937"
)

// Rand is a seeded deterministic generator.
type Rand struct {
	src *mt19937.MT19937
}

// New returns a generator seeded with seed.
func New(seed int64) *Rand {
	src := mt19937.New()
	src.Seed(seed)
	return &Rand{src: src}
}

// Uint64 returns the next raw 64-bit draw.
func (r *Rand) Uint64() uint64 {
	return r.src.Uint64()
}

// Float64 returns a uniform real in [0, 1) with 53 bits of precision.
func (r *Rand) Float64() float64 {
	return float64(r.src.Uint64()>>11) / (1 << 53)
}

// Intn returns a uniform integer in [0, n). Panics if n <= 0.
func (r *Rand) Intn(n int) int {
	if n <= 0 {
		panic("random: Intn with non-positive bound")
	}
	return int(r.Float64() * float64(n))
}

// Int31 returns a uniform integer in [0, 2^31). Walk-forward uses this
// to derive per-window seeds.
func (r *Rand) Int31() int64 {
	return int64(r.Float64() * float64(int64(1)<<31))
}
