// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"fmt"
	"time"
)

// Compression format names accepted in manifest descriptors. An empty
// Compression field means the asset bytes are stored uncompressed.
const (
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
)

// Descriptor describes one asset within a bundle manifest: where to
// fetch it, how to decode it, and what the decoded bytes must hash to.
type Descriptor struct {
	Name   string `cbor:"name"`
	Type   string `cbor:"type"`
	Locale string `cbor:"locale,omitempty"`

	// Hash is the content-domain digest of the fully decoded bytes.
	// Fetch pipelines verify against this after decryption and
	// decompression.
	Hash Hash `cbor:"hash"`

	// Size is the decoded byte length.
	Size int64 `cbor:"size"`

	// SourcePath locates the raw bytes relative to the bundle's
	// distribution root.
	SourcePath string `cbor:"source_path"`

	// Encrypted marks assets whose raw bytes are ciphertext.
	// Decryption runs before decompression since ciphertext is opaque to
	// a decompressor.
	Encrypted bool `cbor:"encrypted,omitempty"`

	// Encryption names the encryption scheme when Encrypted is set.
	// Empty selects the engine default scheme.
	Encryption string `cbor:"encryption,omitempty"`

	// Compression names the compression format ("zstd", "lz4"), or is
	// empty for uncompressed assets.
	Compression string `cbor:"compression,omitempty"`

	// UncompressedSize is the exact byte length after decompression.
	// Zero when Compression is empty (Size applies directly).
	UncompressedSize int64 `cbor:"uncompressed_size,omitempty"`

	Version     int64     `cbor:"version,omitempty"`
	ModTime     time.Time `cbor:"mod_time,omitempty"`
	ContentType string    `cbor:"content_type,omitempty"`
}

// Key returns the composite key the descriptor resolves to within the
// named bundle.
func (d Descriptor) Key(bundle string) Key {
	return NewKey(bundle, d.Locale, d.Type, d.Name)
}

// Validate checks the descriptor fields that the fetch pipeline
// depends on.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor: name is empty")
	}
	if d.Type == "" {
		return fmt.Errorf("descriptor %q: type is empty", d.Name)
	}
	if d.Hash.IsZero() {
		return fmt.Errorf("descriptor %q: hash is unset", d.Name)
	}
	if d.SourcePath == "" {
		return fmt.Errorf("descriptor %q: source path is empty", d.Name)
	}
	switch d.Compression {
	case "", CompressionZstd, CompressionLZ4:
	default:
		return fmt.Errorf("descriptor %q: unknown compression %q", d.Name, d.Compression)
	}
	if d.Compression != "" && d.UncompressedSize <= 0 {
		return fmt.Errorf("descriptor %q: compressed asset needs uncompressed_size", d.Name)
	}
	return nil
}

// Manifest is the build-side description of one bundle version: its
// identity plus a descriptor for every asset. Manifests are consumed
// for initial loads (fetch everything) and for patching (diff against
// the stored index).
type Manifest struct {
	Bundle  string `cbor:"bundle"`
	Version string `cbor:"version"`

	Descriptors []Descriptor `cbor:"descriptors"`
}

// Validate checks the manifest identity and every descriptor, and
// rejects duplicate keys.
func (m Manifest) Validate() error {
	if m.Bundle == "" {
		return fmt.Errorf("manifest: bundle name is empty")
	}
	seen := make(map[Key]struct{}, len(m.Descriptors))
	for _, d := range m.Descriptors {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("manifest %q: %w", m.Bundle, err)
		}
		key := d.Key(m.Bundle)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("manifest %q: duplicate key %s", m.Bundle, key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Index returns the key → hash projection used for diffing.
func (m Manifest) Index() Index {
	index := make(Index, len(m.Descriptors))
	for _, d := range m.Descriptors {
		index[d.Key(m.Bundle)] = d.Hash
	}
	return index
}

// Descriptor returns the descriptor for a key, if present.
func (m Manifest) Descriptor(key Key) (Descriptor, bool) {
	for _, d := range m.Descriptors {
		if d.Key(m.Bundle) == key {
			return d, true
		}
	}
	return Descriptor{}, false
}

// AggregateHash computes the bundle digest over all descriptor hashes.
func (m Manifest) AggregateHash() Hash {
	hashes := make([]Hash, len(m.Descriptors))
	for i, d := range m.Descriptors {
		hashes[i] = d.Hash
	}
	return BundleDigest(hashes)
}
