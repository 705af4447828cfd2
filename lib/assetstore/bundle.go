// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package assetstore

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/lanternworks/assetvault/lib/asset"
	"github.com/lanternworks/assetvault/lib/event"
)

// PutBundle upserts a bundle row, stamping updated-at to now and
// preserving the created-at of an existing row.
func (s *Store) PutBundle(ctx context.Context, b asset.Bundle) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return &asset.StorageError{Op: "put bundle", Err: err}
	}
	defer s.pool.Put(conn)

	if err := s.upsertBundle(conn, &b, s.clock.Now()); err != nil {
		return err
	}

	s.publisher.Publish(event.BundleUpdated{
		Bundle:      b.Name,
		Version:     b.Version,
		BuildNumber: b.BuildNumber,
		Partial:     b.Partial,
	})
	return nil
}

func (s *Store) upsertBundle(conn *sqlite.Conn, b *asset.Bundle, now time.Time) error {
	if b.Name == "" {
		return &asset.StorageError{Op: "put bundle", Err: fmt.Errorf("bundle name is empty")}
	}

	err := sqlitex.Execute(conn, `
		INSERT INTO bundles
			(name, version, build_number, hash, partial, updated_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			version      = excluded.version,
			build_number = excluded.build_number,
			hash         = excluded.hash,
			partial      = excluded.partial,
			updated_at   = excluded.updated_at`,
		&sqlitex.ExecOptions{
			Args: []any{
				b.Name,
				b.Version,
				b.BuildNumber,
				b.Hash.String(),
				boolToInt(b.Partial),
				now.UnixNano(),
				now.UnixNano(),
			},
		})
	if err != nil {
		return &asset.StorageError{Op: fmt.Sprintf("put bundle %q", b.Name), Err: err}
	}
	return nil
}

// GetBundle returns the bundle row by name. A miss reports ok=false.
func (s *Store) GetBundle(ctx context.Context, name string) (asset.Bundle, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return asset.Bundle{}, false, &asset.StorageError{Op: "get bundle", Err: err}
	}
	defer s.pool.Put(conn)

	var found bool
	var result asset.Bundle
	err = sqlitex.Execute(conn, `
		SELECT name, version, build_number, hash, partial, updated_at, created_at
		FROM bundles WHERE name = ?`,
		&sqlitex.ExecOptions{
			Args: []any{name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				b, err := scanBundle(stmt)
				if err != nil {
					return err
				}
				result = b
				found = true
				return nil
			},
		})
	if err != nil {
		return asset.Bundle{}, false, &asset.StorageError{Op: fmt.Sprintf("get bundle %q", name), Err: err}
	}
	return result, found, nil
}

// ListBundles returns all bundle rows ordered by name.
func (s *Store) ListBundles(ctx context.Context) ([]asset.Bundle, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, &asset.StorageError{Op: "list bundles", Err: err}
	}
	defer s.pool.Put(conn)

	var results []asset.Bundle
	err = sqlitex.Execute(conn, `
		SELECT name, version, build_number, hash, partial, updated_at, created_at
		FROM bundles ORDER BY name`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				b, err := scanBundle(stmt)
				if err != nil {
					return err
				}
				results = append(results, b)
				return nil
			},
		})
	if err != nil {
		return nil, &asset.StorageError{Op: "list bundles", Err: err}
	}
	return results, nil
}

func scanBundle(stmt *sqlite.Stmt) (asset.Bundle, error) {
	hash, err := asset.ParseHash(stmt.ColumnText(3))
	if err != nil {
		return asset.Bundle{}, fmt.Errorf("corrupt bundle hash: %w", err)
	}
	return asset.Bundle{
		Name:        stmt.ColumnText(0),
		Version:     stmt.ColumnText(1),
		BuildNumber: stmt.ColumnInt64(2),
		Hash:        hash,
		Partial:     stmt.ColumnInt64(4) != 0,
		UpdatedAt:   nanosToTime(stmt.ColumnInt64(5)),
		CreatedAt:   nanosToTime(stmt.ColumnInt64(6)),
	}, nil
}

// DeleteBundle removes the bundle row and every asset belonging to it
// as a single transaction. Returns the number of assets removed.
// Deleting an absent bundle is a no-op returning 0.
func (s *Store) DeleteBundle(ctx context.Context, name string) (assetCount int, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, &asset.StorageError{Op: "delete bundle", Err: err}
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, &asset.StorageError{Op: "delete bundle: begin", Err: err}
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, "DELETE FROM assets WHERE bundle = ?",
		&sqlitex.ExecOptions{Args: []any{name}})
	if err != nil {
		return 0, &asset.StorageError{Op: fmt.Sprintf("delete bundle %q: assets", name), Err: err}
	}
	assetCount = conn.Changes()

	err = sqlitex.Execute(conn, "DELETE FROM bundles WHERE name = ?",
		&sqlitex.ExecOptions{Args: []any{name}})
	if err != nil {
		return 0, &asset.StorageError{Op: fmt.Sprintf("delete bundle %q: row", name), Err: err}
	}

	s.logger.Info("bundle deleted", "bundle", name, "assets", assetCount)
	return assetCount, nil
}

// CommitBundle writes a batch of assets and the bundle row in one
// transaction. This is the loader's atomic commit point: a crash or
// cancellation before CommitBundle leaves the previous bundle state
// fully intact, and readers never see a partial commit. Events fire
// only after the transaction commits.
func (s *Store) CommitBundle(ctx context.Context, b asset.Bundle, assets []asset.Asset) error {
	if err := s.commitBundleTx(ctx, b, assets); err != nil {
		return err
	}

	for i := range assets {
		s.publisher.Publish(event.AssetStored{
			Key:  assets[i].Key,
			Hash: assets[i].Hash,
			Size: assets[i].Size,
		})
	}
	s.publisher.Publish(event.BundleUpdated{
		Bundle:      b.Name,
		Version:     b.Version,
		BuildNumber: b.BuildNumber,
		Partial:     b.Partial,
	})

	s.logger.Info("bundle committed",
		"bundle", b.Name,
		"version", b.Version,
		"build", b.BuildNumber,
		"assets", len(assets),
		"partial", b.Partial,
	)
	return nil
}

func (s *Store) commitBundleTx(ctx context.Context, b asset.Bundle, assets []asset.Asset) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return &asset.StorageError{Op: "commit bundle", Err: err}
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return &asset.StorageError{Op: "commit bundle: begin", Err: err}
	}
	defer endTransaction(&err)

	now := s.clock.Now()
	for i := range assets {
		if err = s.upsertAsset(conn, &assets[i], now); err != nil {
			return err
		}
	}
	return s.upsertBundle(conn, &b, now)
}

// BundleIndex returns the key → content hash projection of a bundle's
// stored assets. Patch cycles diff this against an incoming manifest,
// which is what makes interrupted applies resumable.
func (s *Store) BundleIndex(ctx context.Context, bundle string) (asset.Index, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, &asset.StorageError{Op: "bundle index", Err: err}
	}
	defer s.pool.Put(conn)

	index := make(asset.Index)
	err = sqlitex.Execute(conn, "SELECT key, hash FROM assets WHERE bundle = ?",
		&sqlitex.ExecOptions{
			Args: []any{bundle},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				key, err := asset.ParseKey(stmt.ColumnText(0))
				if err != nil {
					return fmt.Errorf("corrupt key column: %w", err)
				}
				hash, err := asset.ParseHash(stmt.ColumnText(1))
				if err != nil {
					return fmt.Errorf("corrupt hash for %s: %w", key, err)
				}
				index[key] = hash
				return nil
			},
		})
	if err != nil {
		return nil, &asset.StorageError{Op: fmt.Sprintf("bundle index %q", bundle), Err: err}
	}
	return index, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
