// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package asset defines the core data model of the asset cache: keys,
// stored assets and bundles, build-side manifests, content hashing,
// and the error taxonomy shared by the store, loader, and patcher.
//
// An asset is a single named, typed, localized content blob within a
// bundle. Assets are addressed by the composite key
// bundle:locale:type:name, where locale defaults to "default". All
// content hashes are BLAKE3 keyed digests of the fully decoded bytes,
// computed after decryption and decompression.
package asset
