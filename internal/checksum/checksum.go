package checksum

import (
	"crypto/sha1"
	"encoding/hex"
	"hash"
)

// Size is the byte length of an entity digest.
const Size = sha1.Size

// Digest fingerprints the full entity state of the world at one tick.
type Digest [Size]byte

// String renders the digest as lowercase hex.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Equal compares two digests byte for byte.
func (d Digest) Equal(other Digest) bool { return d == other }

// IsZero reports whether the digest was never populated.
func (d Digest) IsZero() bool { return d == Digest{} }

// FromBytes copies a raw digest. Short input is zero padded.
func FromBytes(raw []byte) Digest {
	var d Digest
	copy(d[:], raw)
	return d
}

// Hasher accumulates entity bytes into a Digest.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns a fresh SHA-1 backed hasher.
func NewHasher() *Hasher { return &Hasher{h: sha1.New()} }

// Write feeds raw bytes into the digest.
func (h *Hasher) Write(p []byte) (int, error) { return h.h.Write(p) }

// Sum finalises the digest. The hasher may keep accepting writes afterwards.
func (h *Hasher) Sum() Digest {
	var d Digest
	copy(d[:], h.h.Sum(nil))
	return d
}
