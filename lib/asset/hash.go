// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest. Asset content hashes and bundle
// aggregate hashes are this size.
type Hash [32]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures the same bytes hash differently in different
// contexts, so a bundle aggregate can never collide with a content
// hash. The byte values are the ASCII domain name zero-padded to 32
// bytes, readable in hex dumps, and BLAKE3 keyed mode treats the key
// as opaque either way.
type domainKey [32]byte

var (
	contentDomainKey = domainKey{
		'a', 's', 's', 'e', 't', 'v', 'a', 'u', 'l', 't', '.',
		'c', 'o', 'n', 't', 'e', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	bundleDomainKey = domainKey{
		'a', 's', 's', 'e', 't', 'v', 'a', 'u', 'l', 't', '.',
		'b', 'u', 'n', 'd', 'l', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// HashContent computes the content-domain digest of fully decoded
// asset bytes. This is the hash stored per asset and compared against
// manifest descriptors during integrity verification.
func HashContent(data []byte) Hash {
	return keyedHash(contentDomainKey, data)
}

// BundleDigest computes the aggregate bundle hash from the content
// hashes of the bundle's assets. The input order does not matter: the
// hashes are sorted before digesting so the aggregate is a pure
// function of the asset set.
func BundleDigest(hashes []Hash) Hash {
	sorted := make([]Hash, len(hashes))
	copy(sorted, hashes)
	sort.Slice(sorted, func(i, j int) bool {
		return compareHashes(sorted[i], sorted[j]) < 0
	})

	hasher := newKeyedHasher(bundleDomainKey)
	for _, h := range sorted {
		hasher.Write(h[:])
	}
	var result Hash
	copy(result[:], hasher.Sum(nil))
	return result
}

// IsZero reports whether the hash is all zero bytes (unset).
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the hex-encoded form. This is the canonical format in
// the database, manifests, logs, and events.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalText implements encoding.TextMarshaler so hashes serialize as
// hex strings in CBOR and YAML.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash parses a 64-character hex string into a Hash.
func ParseHash(hexString string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return hash, fmt.Errorf("parsing content hash: %w", err)
	}
	if len(decoded) != len(hash) {
		return hash, fmt.Errorf("content hash is %d bytes, want %d", len(decoded), len(hash))
	}
	copy(hash[:], decoded)
	return hash, nil
}

func compareHashes(a, b Hash) int {
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

func newKeyedHasher(key domainKey) *blake3.Hasher {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		// NewKeyed only fails for a wrong key length, which the
		// fixed-size domainKey type rules out.
		panic("asset: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}

func keyedHash(key domainKey, data []byte) Hash {
	hasher := newKeyedHasher(key)
	hasher.Write(data)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}
