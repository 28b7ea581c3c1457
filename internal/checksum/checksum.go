// Package checksum provides content digests used for change detection and
// Anki duplicate pre-filtering.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data. Used to detect deck
// file changes between vault and store.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Field returns a 32-bit FNV-1a hash of the sort field. Anki uses the value
// only as a duplicate-detection pre-filter, so the hash is deliberately
// non-cryptographic; it just has to be deterministic for identical input.
func Field(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
