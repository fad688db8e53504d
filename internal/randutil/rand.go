package randutil

import rand "math/rand/v2"

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// New returns a *rand.Rand seeded deterministically from the provided int64.
// The helper centralises how we derive the two 64-bit seeds required by rand/v2
// so that all call sites get reproducible sequences.
func New(seed int64) *rand.Rand {
	return NewStream(seed, 0)
}

// NewStream returns an independent generator for one consumer of a seed.
// Different streams of the same seed do not share state, so drawing from one
// (for example fault injection) never shifts the sequence of another.
func NewStream(seed int64, stream uint64) *rand.Rand {
	u := uint64(seed) ^ mix(stream*goldenRatio64)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// Chance reports true with probability p.
func Chance(r *rand.Rand, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return r.Float64() < p
}

// Between returns a uniform int in [lo, hi].
func Between(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
