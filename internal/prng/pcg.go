// Package prng implements a small counter-based PRNG in the PCG family.
// The Height, Seeds, and previewgen stages depend on this (rather than
// math/rand) so runs with the same seed are reproducible byte-for-byte
// across implementations, not merely across runs of this binary.
package prng

// PCG32 is a minimal PCG-XSH-RR 32-bit generator (O'Neill, 2014): a 64-bit
// LCG state advanced each step, output-permuted by a xorshift-then-rotate.
type PCG32 struct {
	state uint64
	inc   uint64
}

const (
	pcgMultiplier = 6364136223846793005
	pcgDefaultInc = 1442695040888963407
)

// NewPCG32 seeds a stream. seq selects one of 2^63 independent streams for
// the same seed (it is shifted left and OR'd with 1, so the increment is
// always odd; the top bit of seq is discarded).
func NewPCG32(seed, seq uint64) *PCG32 {
	p := &PCG32{}
	p.inc = (seq << 1) | 1
	p.state = 0
	p.step()
	p.state += seed
	p.step()
	return p
}

func (p *PCG32) step() {
	p.state = p.state*pcgMultiplier + p.inc
}

// Uint32 returns the next 32-bit output in the stream.
func (p *PCG32) Uint32() uint32 {
	old := p.state
	p.step()
	xorshifted := uint32(((old >> 18) ^ old) >> 27)
	rot := uint32(old >> 59)
	return (xorshifted >> rot) | (xorshifted << ((-rot) & 31))
}

// Float64 returns a uniform value in [0, 1).
func (p *PCG32) Float64() float64 {
	return float64(p.Uint32()) / 4294967296.0
}

// IntN returns a uniform value in [0, n) for n > 0.
func (p *PCG32) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return int(p.Uint32() % uint32(n))
}

// Float64Signed returns a uniform value in [-1, 1).
func (p *PCG32) Float64Signed() float64 {
	return p.Float64()*2 - 1
}

// NewHashStream derives an independent stream for a given (seed, purpose)
// pair, so unrelated noise fields (Height's hash-noise vs. Seeds' dart
// throws) never share PRNG state even when called with the same planet
// seed.
func NewHashStream(seed int64, purpose uint64) *PCG32 {
	return NewPCG32(uint64(seed), pcgDefaultInc^purpose)
}

// HashPair returns a value deterministic in (a, b) but independent of the
// stream's position, for deriving per-id-pair attributes (e.g. a plate
// boundary's kind) without mutating or depending on draw order.
func (p *PCG32) HashPair(a, b uint64) uint64 {
	h := a*pcgMultiplier + b + p.inc
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return h
}
