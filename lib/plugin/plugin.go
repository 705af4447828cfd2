// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package plugin holds the decode pipeline: capability interfaces for
// decryption, decompression, and post-load processing, a registry that
// selects plugins by declared scheme/format/type, and the built-in
// implementations (zstd, lz4, XChaCha20-Poly1305, script
// normalization).
//
// Decode order is fixed: decryption before decompression, because
// ciphertext is opaque to a decompressor. Processing plugins run later,
// on the read path, applied by the asset manager.
package plugin

import (
	"fmt"
	"sync"

	"github.com/lanternworks/assetvault/lib/asset"
)

// Decryptor turns ciphertext into plaintext for one named scheme.
type Decryptor interface {
	// Scheme is the name descriptors reference ("xchacha20poly1305").
	Scheme() string

	// Decrypt authenticates and decrypts the raw fetched bytes. The
	// descriptor supplies per-asset binding material (the content
	// hash).
	Decrypt(ciphertext []byte, d asset.Descriptor) ([]byte, error)
}

// Decompressor expands compressed bytes for one named format.
type Decompressor interface {
	// Format is the name descriptors reference ("zstd", "lz4").
	Format() string

	// Decompress expands the data. uncompressedSize must match the
	// original length exactly; a mismatch is an error, not a
	// truncation.
	Decompress(compressed []byte, uncompressedSize int64) ([]byte, error)
}

// Processor transforms decoded assets on the read path. A processor
// may be a no-op for content it does not understand; returning the
// asset unchanged is always valid.
type Processor interface {
	// Name identifies the processor in logs.
	Name() string

	// SupportedTypes lists the asset types this processor applies to.
	SupportedTypes() []string

	// Process returns the (possibly) transformed asset.
	Process(a asset.Asset) (asset.Asset, error)
}

// Registry holds the registered plugins. Safe for concurrent use.
// Registration order of processors is preserved: all processors
// matching an asset's type run, in the order they were registered.
// There is no uniqueness constraint for processors; decryptors and
// decompressors are keyed by scheme/format, last registration wins.
type Registry struct {
	mu            sync.RWMutex
	decryptors    map[string]Decryptor
	decompressors map[string]Decompressor
	processors    []Processor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		decryptors:    make(map[string]Decryptor),
		decompressors: make(map[string]Decompressor),
	}
}

// NewDefaultRegistry returns a registry with the built-in
// decompressors (zstd, lz4) and the script normalizer registered.
// Decryption requires key material, so no decryptor is pre-registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterDecompressor(Zstd{})
	r.RegisterDecompressor(LZ4{})
	r.RegisterProcessor(ScriptNormalizer{})
	return r
}

// RegisterDecryptor registers d under its scheme name.
func (r *Registry) RegisterDecryptor(d Decryptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decryptors[d.Scheme()] = d
}

// RegisterDecompressor registers d under its format name.
func (r *Registry) RegisterDecompressor(d Decompressor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decompressors[d.Format()] = d
}

// RegisterProcessor appends p to the processor chain.
func (r *Registry) RegisterProcessor(p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors = append(r.processors, p)
}

// ProcessorsFor returns the processors whose supported types include
// assetType, in registration order.
func (r *Registry) ProcessorsFor(assetType string) []Processor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matching []Processor
	for _, p := range r.processors {
		for _, t := range p.SupportedTypes() {
			if t == assetType {
				matching = append(matching, p)
				break
			}
		}
	}
	return matching
}

// Decode runs raw fetched bytes through the decode pipeline described
// by the descriptor: decryption first (if marked), then decompression
// (if marked). Returns the fully decoded bytes, ready for hashing.
func (r *Registry) Decode(raw []byte, d asset.Descriptor) ([]byte, error) {
	data := raw

	if d.Encrypted {
		scheme := d.Encryption
		if scheme == "" {
			scheme = SchemeXChaCha20Poly1305
		}
		r.mu.RLock()
		decryptor, ok := r.decryptors[scheme]
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("no decryptor registered for scheme %q", scheme)
		}
		plaintext, err := decryptor.Decrypt(data, d)
		if err != nil {
			return nil, fmt.Errorf("decrypting %s: %w", d.Name, err)
		}
		data = plaintext
	}

	if d.Compression != "" {
		r.mu.RLock()
		decompressor, ok := r.decompressors[d.Compression]
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("no decompressor registered for format %q", d.Compression)
		}
		expanded, err := decompressor.Decompress(data, d.UncompressedSize)
		if err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", d.Name, err)
		}
		data = expanded
	}

	return data, nil
}
