package park

import "math/bits"

// Random is the scenario random generator. Its two words are part of the
// deterministic world state and must be restored exactly on load.
type Random struct {
	S0 uint32
	S1 uint32
}

// NewRandom seeds the generator.
func NewRandom(seed uint32) Random {
	return Random{S0: seed, S1: ^seed}
}

// Next advances the generator and returns the new value.
func (r *Random) Next() uint32 {
	s0 := r.S0
	r.S0 += bits.RotateLeft32(r.S1^0x1234567F, -7)
	r.S1 = bits.RotateLeft32(s0, -3)
	return r.S1
}

// Intn returns a value in [0, n). n must be positive.
func (r *Random) Intn(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	return uint32((uint64(r.Next()) * uint64(n)) >> 32)
}
