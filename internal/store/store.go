// Package store provides the keyed word store the ledger core persists
// into: a structured 4-word key mapped to a flat sequence of 64-bit words.
// Each entity type occupies a disjoint key namespace via the first word.
package store

import (
	"encoding/hex"
	"fmt"
)

// Key namespaces. The first key word selects the entity type; the
// remaining words are entity-specific.
const (
	NamespaceGlobal      = 0 // [0, 0, 0, 0]
	NamespaceProductType = 1 // [1, 0, 0, product_id]
	NamespaceCertificate = 2 // [2, owner_hi, owner_lo, cert_id]
	NamespaceAccount     = 3 // [3, owner_hi, owner_lo, 0]
)

// Key is a structured 4-word storage key.
type Key [4]uint64

// GlobalKey addresses the global state singleton.
func GlobalKey() Key {
	return Key{NamespaceGlobal, 0, 0, 0}
}

// ProductTypeKey addresses a stored product type.
func ProductTypeKey(id uint64) Key {
	return Key{NamespaceProductType, 0, 0, id}
}

// CertificateKey addresses a certificate owned by (hi, lo).
func CertificateKey(ownerHi, ownerLo, certID uint64) Key {
	return Key{NamespaceCertificate, ownerHi, ownerLo, certID}
}

// AccountKey addresses an account record.
func AccountKey(ownerHi, ownerLo uint64) Key {
	return Key{NamespaceAccount, ownerHi, ownerLo, 0}
}

// Encode returns a stable hex representation, used for snapshot
// serialization and debugging.
func (k Key) Encode() string {
	var buf [32]byte
	for i, w := range k {
		for j := 0; j < 8; j++ {
			buf[i*8+j] = byte(w >> (8 * (7 - j)))
		}
	}
	return hex.EncodeToString(buf[:])
}

// DecodeKey parses the output of Encode.
func DecodeKey(s string) (Key, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("decode key %q: %w", s, err)
	}
	if len(raw) != 32 {
		return Key{}, fmt.Errorf("decode key %q: want 32 bytes, got %d", s, len(raw))
	}
	var k Key
	for i := range k {
		for j := 0; j < 8; j++ {
			k[i] = k[i]<<8 | uint64(raw[i*8+j])
		}
	}
	return k, nil
}

// WordStore is the keyed get/set collaborator. Implementations are not
// required to be safe for concurrent use; the core accesses the store
// from a single goroutine.
type WordStore interface {
	// Get returns the stored words and whether the key exists.
	Get(key Key) ([]uint64, bool)

	// Set stores a copy of words under key.
	Set(key Key, words []uint64)

	// Delete removes key. Absent keys are a no-op.
	Delete(key Key)
}
