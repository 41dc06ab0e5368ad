// Package entropy supplies the random rolls behind fidgets and wandering.
// Production uses crypto/rand; tests use a seeded or constant source.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"
	"sync"
)

// Source yields floats in [0, 1).
type Source interface {
	Float() float64
}

// Crypto draws from crypto/rand.
type Crypto struct{}

// Float implements Source.
func (Crypto) Float() float64 {
	return cryptoRandFloat()
}

// cryptoRandFloat generates a random float64 using crypto/rand.
func cryptoRandFloat() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}

// Seeded is a reproducible source, safe for concurrent use.
type Seeded struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeeded creates a source that replays the same sequence for a seed.
func NewSeeded(seed uint64) *Seeded {
	return &Seeded{rng: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float implements Source.
func (s *Seeded) Float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Constant always returns the same value.
type Constant float64

// Float implements Source.
func (c Constant) Float() float64 { return float64(c) }

// Chance reports whether a roll from src lands under p.
func Chance(src Source, p float64) bool {
	return p > 0 && src.Float() < p
}

// Between returns a float in [lo, hi).
func Between(src Source, lo, hi float64) float64 {
	return lo + src.Float()*(hi-lo)
}

// IntBetween returns an int in [lo, hi).
func IntBetween(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	n := lo + int(src.Float()*float64(hi-lo))
	return min(n, hi-1)
}
