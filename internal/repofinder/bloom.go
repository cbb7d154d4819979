package repofinder

import "hash/maphash"

// Bloom is a fixed-size bit-array bloom filter parameterised by k (number
// of hash functions) and a single seeded universal hash family, per §4.7.
// No ecosystem SipHash binding exists in the corpus (see DESIGN.md); this
// uses stdlib hash/maphash, itself a keyed, non-cryptographic universal
// hash built for exactly this kind of per-element membership probe, ported
// from the shape of original_source's ostree-bloom.c (size in bytes, k
// hash applications per element, seal-to-immutable lifecycle).
type Bloom struct {
	bytes  []byte
	k      uint8
	seed   maphash.Seed
	sealed bool
}

// NewBloom creates a mutable filter of nBytes bytes using k hash
// functions. Elements may be added until Seal is called.
func NewBloom(nBytes int, k uint8) *Bloom {
	return &Bloom{bytes: make([]byte, nBytes), k: k, seed: maphash.MakeSeed()}
}

// NewBloomFromBytes loads an immutable filter from a previously sealed
// byte array; k and the hash seed must match what was used to build it.
func NewBloomFromBytes(data []byte, k uint8, seed maphash.Seed) *Bloom {
	return &Bloom{bytes: append([]byte(nil), data...), k: k, seed: seed, sealed: true}
}

// Seed returns the filter's hash seed, which must be serialised alongside
// the filter bytes and k for a reader to reconstruct membership tests.
func (b *Bloom) Seed() maphash.Seed { return b.seed }

// K returns the number of hash functions configured.
func (b *Bloom) K() uint8 { return b.k }

// Bytes returns the filter's serialised bit array. Safe to call whether
// sealed or not; an unsealed filter's bytes are simply its current state.
func (b *Bloom) Bytes() []byte { return append([]byte(nil), b.bytes...) }

// Add sets element's k bits. Panics if the filter has been sealed.
func (b *Bloom) Add(element string) {
	if b.sealed {
		panic("repofinder: Add called on a sealed Bloom filter")
	}
	for i := uint8(0); i < b.k; i++ {
		idx := b.hashIndex(element, i)
		b.bytes[idx/8] |= 1 << (idx % 8)
	}
}

// MaybeContains returns true if element is possibly in the set, false if
// it is definitely not.
func (b *Bloom) MaybeContains(element string) bool {
	for i := uint8(0); i < b.k; i++ {
		idx := b.hashIndex(element, i)
		if b.bytes[idx/8]&(1<<(idx%8)) == 0 {
			return false
		}
	}
	return true
}

// Seal marks the filter immutable; subsequent Add calls panic.
func (b *Bloom) Seal() { b.sealed = true }

func (b *Bloom) hashIndex(element string, k uint8) uint64 {
	var h maphash.Hash
	h.SetSeed(b.seed)
	h.WriteByte(k)
	h.WriteString(element)
	sum := h.Sum64()
	return sum % uint64(len(b.bytes)*8)
}
