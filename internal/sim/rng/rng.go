package rng

import (
	"hash/fnv"
	"strconv"
)

// Source is the draw surface the simulation consumes. *Rand implements it; tests may supply
// fixed sources to force outcomes.
type Source interface {
	// Float64 returns a value in [0,1).
	Float64() float64
	// IntN returns a value in [0,n). n <= 0 returns 0.
	IntN(n int) int
}

// Rand is a splitmix64 stream. Its output is fixed by this file alone, so replays stay
// byte-identical across toolchain upgrades.
type Rand struct {
	state uint64
}

func New(seed uint64) *Rand {
	return &Rand{state: mix64(seed)}
}

// NewFromString seeds a stream from an arbitrary string (world seed, save name, ...).
func NewFromString(seed string) *Rand {
	return New(HashString(seed))
}

// Derive builds a sub-seed from a parent seed and a path of labels, e.g.
// Derive("world-1", "tick:40", "part:leaves"). Label order matters.
func Derive(seed string, labels ...string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	for _, l := range labels {
		_, _ = h.Write([]byte{0x1f})
		_, _ = h.Write([]byte(l))
	}
	return mix64(h.Sum64())
}

// DeriveTick is Derive with a tick label already formatted.
func DeriveTick(seed string, tick uint64, labels ...string) uint64 {
	all := make([]string, 0, len(labels)+1)
	all = append(all, "t"+strconv.FormatUint(tick, 10))
	all = append(all, labels...)
	return Derive(seed, all...)
}

func HashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func (r *Rand) Uint64() uint64 {
	r.state += 0x9e3779b97f4a7c15
	z := r.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func (r *Rand) Float64() float64 {
	return float64(r.Uint64()>>11) / (1 << 53)
}

func (r *Rand) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	bound := uint64(n)
	// Rejection keeps the distribution exact for non power-of-two bounds.
	limit := ^uint64(0) - (^uint64(0) % bound)
	for {
		v := r.Uint64()
		if v < limit {
			return int(v % bound)
		}
	}
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
