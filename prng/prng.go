// Package prng implements a seeded pseudorandom generator
// with O(log n) jump-ahead, so a worker can position its
// stream at any index of the sequential run directly.
//
// Splitting the stream by index range (rather than by
// independent seeds) is what keeps a parallel computation
// bit-identical to its sequential counterpart: each worker
// skips to the position its sub-range would occupy in the
// one global stream and draws only its share.
package prng

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// 64-bit LCG constants (Knuth's MMIX multiplier and
// increment, also used by the PCG family).
const (
	lcgMul = 6364136223846793005
	lcgInc = 1442695040888963407
)

// An LCG is a splittable generator over a 64-bit linear
// congruential state with a bijective output mix.
//
// One draw consumes exactly one state step, regardless of
// the output method called, so callers can compute skip
// offsets as drawsPerItem * firstIndex without knowing the
// generator's internals.
//
// An LCG is not safe for concurrent use; give each worker
// its own instance.
type LCG struct {
	seed  uint64
	state uint64
	pos   uint64
}

// New returns a generator positioned at the start of the
// stream for seed.
func New(seed uint64) *LCG {
	g := &LCG{}
	g.Seed(seed)
	return g
}

// Seed resets the generator to the canonical state for the
// given seed, at position zero. The raw seed is scrambled
// through xxh3 so that nearby seeds produce unrelated
// streams.
func (g *LCG) Seed(seed uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], seed)
	g.seed = seed
	g.state = xxh3.Hash(b[:]) | 1
	g.pos = 0
}

// Skip advances the generator exactly as if Uint64 had
// been called n times, in O(log n) steps.
//
// The jump composes the LCG step function with itself by
// squaring: applying x -> a*x+b twice is x -> a²x + ab+b,
// so the n-step transform is accumulated from the binary
// digits of n.
func (g *LCG) Skip(n uint64) {
	accMul, accInc := uint64(1), uint64(0)
	curMul, curInc := uint64(lcgMul), uint64(lcgInc)
	for rem := n; rem > 0; rem >>= 1 {
		if rem&1 != 0 {
			accMul *= curMul
			accInc = curMul*accInc + curInc
		}
		curInc = curMul*curInc + curInc
		curMul *= curMul
	}
	g.state = accMul*g.state + accInc
	g.pos += n
}

// Position returns how many draws have been consumed since
// the last Seed.
func (g *LCG) Position() uint64 {
	return g.pos
}

// Uint64 draws the next 64-bit value.
func (g *LCG) Uint64() uint64 {
	old := g.state
	g.state = old*lcgMul + lcgInc
	g.pos++
	return mix(old)
}

// Int64 draws the next value as a signed integer over the
// full 64-bit range.
func (g *LCG) Int64() int64 {
	return int64(g.Uint64())
}

// Float64 draws the next value uniformly in [0, 1).
func (g *LCG) Float64() float64 {
	return float64(g.Uint64()>>11) / (1 << 53)
}

// mix is the splitmix64 finalizer. It is a bijection of
// the raw LCG state, which is what lets Skip reproduce
// outputs bit-for-bit: the n-th output depends only on the
// n-th state.
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	return x ^ (x >> 31)
}
