// Package random provides the single injectable randomness source used by
// every engine, plus cryptographic seed generation.
//
// Engines never reach for ambient randomness: tests seed a Source explicitly
// so a match can be replayed move for move.
package random

import (
    crand "crypto/rand"
    "encoding/binary"
    "fmt"
    "math/rand/v2"
)

// Source is the subset of *rand.Rand the engines depend on.
type Source interface {
    IntN(n int) int
    Float64() float64
    Shuffle(n int, swap func(i, j int))
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (uint64, error) {
    var b [8]byte
    if _, err := crand.Read(b[:]); err != nil {
        return 0, fmt.Errorf("read random seed: %w", err)
    }
    return binary.LittleEndian.Uint64(b[:]), nil
}

// New returns a deterministic PCG-backed source for seed.
func New(seed uint64) *rand.Rand {
    return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewSeeded returns a source seeded from crypto/rand.
func NewSeeded() (*rand.Rand, error) {
    seed, err := NewSeed()
    if err != nil {
        return nil, err
    }
    return New(seed), nil
}

// Pick returns a uniformly chosen element of xs. xs must be non-empty.
func Pick(src Source, xs []int) int {
    return xs[src.IntN(len(xs))]
}
