package cve

import "github.com/spaolacci/murmur3"

// HashCode returns the 16-bit hash stored in a dict's hash-index slots
// for the given key: the low 16 bits of MurmurHash3 (x86, 32-bit, seed 0).
// Writer and reader must agree on this exactly, so it is the only hash
// function used for dict keys.
func HashCode(key []byte) uint16 {
	return uint16(murmur3.Sum32WithSeed(key, 0) & 0xFFFF)
}
