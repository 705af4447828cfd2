// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import "time"

// Well-known asset types. The type component of a key is free-form;
// these constants cover the types the engine itself gives special
// treatment (script execution, processing plugin selection).
const (
	TypeScript = "scripts"
	TypeImage  = "images"
	TypeAudio  = "audio"
	TypeData   = "data"
)

// Asset is a stored content blob. Content is the fully decoded bytes;
// Hash is always the content-domain digest of Content unless the
// underlying storage has been corrupted (detectable via integrity
// verification, not self-healing).
type Asset struct {
	Key Key

	// Content is the decoded asset bytes (after decryption and
	// decompression).
	Content []byte

	// Size is len(Content) at write time, denormalized for eviction
	// accounting without loading content.
	Size int64

	// Hash is the content-domain digest of Content.
	Hash Hash

	// Version is the source/format version from the build side.
	Version int64

	// ModTime is the bundle-relative modification time from the
	// manifest descriptor.
	ModTime time.Time

	// CreatedAt is when the asset row was first written.
	CreatedAt time.Time

	// LastAccessed is bumped on every read. It never decreases for a
	// given key and drives LRU eviction ordering.
	LastAccessed time.Time

	// ContentType is an optional MIME tag ("application/json",
	// "image/png"). Empty when the build side did not declare one.
	ContentType string
}

// Bundle is a named, versioned collection of assets distributed as a
// unit. Deleting a bundle cascades to all of its assets atomically.
type Bundle struct {
	// Name uniquely identifies the bundle.
	Name string

	// Version is the build-side version string ("1.4.2").
	Version string

	// BuildNumber increases by one on every committed load or
	// completed patch cycle.
	BuildNumber int64

	// Hash is the aggregate digest over the content hashes of the
	// bundle's assets (see BundleDigest).
	Hash Hash

	// Partial marks a bundle whose last load skipped failed assets
	// (partial-load mode). A subsequent complete load clears it.
	Partial bool

	// UpdatedAt is the time of the last committed load or patch.
	UpdatedAt time.Time

	// CreatedAt is when the bundle row was first written.
	CreatedAt time.Time
}

// Index maps asset keys to content hashes. It is the comparable
// projection of a manifest or of the current store state, used for
// diffing during patch cycles.
type Index map[Key]Hash

// CacheStats summarizes the store for monitoring and eviction
// decisions.
type CacheStats struct {
	AssetCount  int64
	BundleCount int64
	TotalBytes  int64

	// OldestAccess and NewestAccess are zero when the store is empty.
	OldestAccess time.Time
	NewestAccess time.Time
}
