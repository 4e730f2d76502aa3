// Package hash includes all hashing utilities used by the VeloType server.
package hash

import (
	"crypto/hmac"
	"encoding/hex"
	"hash/fnv"

	sha256 "github.com/minio/sha256-simd"
)

// fnvZeroFallback substitutes the one seed value a zero-sensitive PRNG cannot
// accept. It is the FNV-1a offset basis.
const fnvZeroFallback = uint64(0xcbf29ce484222325)

// Hash defines a function that returns the sha256 checksum of the data passed in.
func Hash(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// HashHex returns the hex encoding of the sha256 checksum of data.
func HashHex(data []byte) string {
	h := Hash(data)
	return hex.EncodeToString(h[:])
}

// Fnv64a returns the 64-bit FNV-1a hash of s, never zero.
func Fnv64a(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	v := h.Sum64()
	if v == 0 {
		return fnvZeroFallback
	}
	return v
}

// HmacSha256Hex returns the hex encoded HMAC-SHA256 digest of data under key.
func HmacSha256Hex(key, data []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}
