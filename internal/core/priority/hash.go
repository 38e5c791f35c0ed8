package priority

import (
	"crypto/sha256"
	"encoding/binary"
	"hash/fnv"

	"github.com/cespare/xxhash/v2"
)

// HashFamily names a stable hash function used to derive priorities.
type HashFamily string

// Supported hash families.
const (
	HashFNV1a32  HashFamily = "fnv1a32"
	HashXXHash64 HashFamily = "xxhash64"
	HashSHA256   HashFamily = "sha256"
)

// HashFamilies returns all supported hash families.
func HashFamilies() []HashFamily {
	return []HashFamily{HashFNV1a32, HashXXHash64, HashSHA256}
}

// Valid reports whether f is a supported hash family.
func (f HashFamily) Valid() bool {
	switch f {
	case HashFNV1a32, HashXXHash64, HashSHA256:
		return true
	default:
		return false
	}
}

// Sum hashes name with the family's algorithm.
// Unknown families hash with FNV-1a; New rejects them before they get here.
func (f HashFamily) Sum(name string) uint64 {
	switch f {
	case HashXXHash64:
		return xxhash.Sum64String(name)
	case HashSHA256:
		digest := sha256.Sum256([]byte(name))
		return binary.BigEndian.Uint64(digest[:8])
	default:
		h := fnv.New32a()
		h.Write([]byte(name))
		return uint64(h.Sum32())
	}
}
