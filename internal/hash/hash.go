// Package hash fingerprints aggregated corpora so identical batches can be
// recognised in the archive.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher returns a hex digest of data.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// SHA256 implements Hasher.
type SHA256 struct{}

// Hash hashes the input and returns a hex digest.
func (SHA256) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
