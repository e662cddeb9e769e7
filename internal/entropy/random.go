// Package entropy provides the random source shared by every stochastic
// subsystem (spawn sampling, bounty shuffling, lifetimes, tie-breaks).
// A fixed seed makes an episode reproducible; seed 0 draws one from crypto/rand.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand"
)

// Source is a seeded pseudo-random source. It is not safe for concurrent use;
// the simulation is single-threaded and owns exactly one Source.
type Source struct {
	seed int64
	rng  *mrand.Rand
}

// New creates a Source. A zero seed is replaced by a crypto/rand seed.
func New(seed int64) *Source {
	s := &Source{}
	s.Reseed(seed)
	return s
}

// Reseed restarts the sequence from the given seed (0 = fresh crypto seed).
func (s *Source) Reseed(seed int64) {
	if seed == 0 {
		seed = CryptoSeed()
		slog.Debug("entropy seeded from crypto/rand", "seed", seed)
	}
	s.seed = seed
	s.rng = mrand.New(mrand.NewSource(seed))
}

// Seed returns the seed the current sequence started from.
func (s *Source) Seed() int64 {
	return s.seed
}

// Float returns a float64 in [0, 1).
func (s *Source) Float() float64 {
	return s.rng.Float64()
}

// Range returns a float64 uniformly drawn from [min, max).
// A degenerate range returns min.
func (s *Source) Range(min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + s.rng.Float64()*(max-min)
}

// Lerp interpolates between a and b by alpha.
func Lerp(a, b, alpha float64) float64 {
	return a + (b-a)*alpha
}

// Intn returns an int in [0, n). n must be positive.
func (s *Source) Intn(n int) int {
	return s.rng.Intn(n)
}

// Derive returns an independent Source seeded from this one, so a consumer
// drawing a variable number of values does not shift everyone else's stream.
func (s *Source) Derive(offset int64) *Source {
	return New(s.seed + offset)
}

// CryptoSeed draws a non-zero seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen; fall back to a fixed non-zero seed.
		return 42
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if seed == 0 {
		seed = 1
	}
	return seed
}

// CryptoFloat returns a random float in [0, 1) using crypto/rand.
func CryptoFloat() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}
