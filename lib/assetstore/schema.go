// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package assetstore

// schema creates the two logical tables and their secondary indices.
// Timestamps are Unix nanoseconds; hashes are hex strings; content is
// stored verbatim as a blob.
const schema = `
	CREATE TABLE IF NOT EXISTS assets (
		key           TEXT PRIMARY KEY,
		bundle        TEXT NOT NULL,
		locale        TEXT NOT NULL,
		type          TEXT NOT NULL,
		name          TEXT NOT NULL,
		content       BLOB NOT NULL,
		size          INTEGER NOT NULL,
		hash          TEXT NOT NULL,
		version       INTEGER NOT NULL DEFAULT 0,
		mod_time      INTEGER NOT NULL DEFAULT 0,
		created_at    INTEGER NOT NULL,
		last_accessed INTEGER NOT NULL,
		content_type  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_assets_bundle ON assets(bundle);
	CREATE INDEX IF NOT EXISTS idx_assets_type_name ON assets(type, name);
	CREATE INDEX IF NOT EXISTS idx_assets_locale ON assets(locale);
	CREATE INDEX IF NOT EXISTS idx_assets_last_accessed ON assets(last_accessed);

	CREATE TABLE IF NOT EXISTS bundles (
		name         TEXT PRIMARY KEY,
		version      TEXT NOT NULL,
		build_number INTEGER NOT NULL,
		hash         TEXT NOT NULL,
		partial      INTEGER NOT NULL DEFAULT 0,
		updated_at   INTEGER NOT NULL,
		created_at   INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_bundles_updated ON bundles(updated_at);
`
