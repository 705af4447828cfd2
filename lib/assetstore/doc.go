// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package assetstore persists assets and bundle metadata in SQLite.
//
// Two tables: assets, keyed by the composite bundle:locale:type:name
// string with secondary indices on bundle, (type, name), locale, and
// last_accessed; and bundles, keyed by name with an index on
// updated_at. All multi-row mutations (bulk puts, bundle commits,
// cascading deletes, eviction passes) run inside a single IMMEDIATE
// transaction, so readers on other connections never observe a
// half-committed bundle. WAL mode gives them a consistent snapshot.
//
// The store knows nothing about encoding: content arrives fully
// decoded and is stored verbatim alongside its BLAKE3 content hash.
// Reads bump last_accessed, which drives greedy LRU eviction under a
// configurable size budget.
//
// Misses are not errors: Get and the resolve helpers return ok=false.
// Only underlying SQLite failures surface, wrapped in
// *asset.StorageError.
package assetstore
