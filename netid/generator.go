package netid

import "math/rand/v2"

// A Generator draws candidate IDs. Candidates may collide with registered
// IDs; the Map rejects and redraws those.
type Generator interface {
	Generate() ID
}

// RandomGenerator draws IDs uniformly from the 64-bit space.
type RandomGenerator struct{}

// Generate returns a random ID.
func (RandomGenerator) Generate() ID {
	return ID(rand.Uint64())
}

// MaskedGenerator draws random IDs restricted to the bits of a mask. A small
// mask shrinks the ID space, which forces collisions.
type MaskedGenerator struct {
	mask uint64
	rng  *rand.Rand
}

// NewMaskedGenerator creates a generator limited to mask, seeded for
// reproducible sequences.
func NewMaskedGenerator(mask uint64, seed uint64) *MaskedGenerator {
	return &MaskedGenerator{
		mask: mask,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Generate returns a random ID within the mask.
func (g *MaskedGenerator) Generate() ID {
	return ID(g.rng.Uint64() & g.mask)
}
