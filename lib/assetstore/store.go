// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package assetstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/lanternworks/assetvault/lib/asset"
	"github.com/lanternworks/assetvault/lib/clock"
	"github.com/lanternworks/assetvault/lib/event"
	"github.com/lanternworks/assetvault/lib/sqlitepool"
)

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the SQLite database file. Required.
	Path string

	// PoolSize is the connection pool size. Defaults to 4.
	PoolSize int

	// Clock provides the current time for last-accessed stamping and
	// bundle timestamps. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives operational messages. Defaults to discard.
	Logger *slog.Logger

	// Publisher receives store events (asset-stored, bundle-updated,
	// eviction-performed, integrity-failure). Defaults to
	// event.Discard.
	Publisher event.Publisher
}

// Store is the persistent asset and bundle store. Safe for concurrent
// use; writers to the same bundle must additionally hold the bundle's
// keylock (enforced by the loader and patcher, not here).
type Store struct {
	pool      *sqlitepool.Pool
	clock     clock.Clock
	logger    *slog.Logger
	publisher event.Publisher
}

// Open creates or opens the store database and applies the schema.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("assetstore: Path is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Publisher == nil {
		cfg.Publisher = event.Discard
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, &asset.StorageError{Op: "open", Err: err}
	}

	return &Store{
		pool:      pool,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		publisher: cfg.Publisher,
	}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Put upserts a single asset by composite key, stamping its
// last-accessed time to now. The created-at time of an existing row is
// preserved.
func (s *Store) Put(ctx context.Context, a asset.Asset) error {
	return s.PutMany(ctx, []asset.Asset{a})
}

// PutMany upserts a batch of assets in one transaction, all or
// nothing. Every entry's last-accessed time is stamped to now. Events
// fire only after the transaction commits, so subscribers never hear
// about rows a failed commit rolled back.
func (s *Store) PutMany(ctx context.Context, assets []asset.Asset) error {
	if len(assets) == 0 {
		return nil
	}
	if err := s.putManyTx(ctx, assets); err != nil {
		return err
	}

	for i := range assets {
		s.publisher.Publish(event.AssetStored{
			Key:  assets[i].Key,
			Hash: assets[i].Hash,
			Size: assets[i].Size,
		})
	}
	return nil
}

func (s *Store) putManyTx(ctx context.Context, assets []asset.Asset) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return &asset.StorageError{Op: "put many", Err: err}
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return &asset.StorageError{Op: "put many: begin", Err: err}
	}
	defer endTransaction(&err)

	now := s.clock.Now()
	for i := range assets {
		if err = s.upsertAsset(conn, &assets[i], now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertAsset(conn *sqlite.Conn, a *asset.Asset, now time.Time) error {
	if err := a.Key.Validate(); err != nil {
		return &asset.StorageError{Op: "put", Err: err}
	}

	err := sqlitex.Execute(conn, `
		INSERT INTO assets
			(key, bundle, locale, type, name, content, size, hash,
			 version, mod_time, created_at, last_accessed, content_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			content       = excluded.content,
			size          = excluded.size,
			hash          = excluded.hash,
			version       = excluded.version,
			mod_time      = excluded.mod_time,
			last_accessed = MAX(assets.last_accessed, excluded.last_accessed),
			content_type  = excluded.content_type`,
		&sqlitex.ExecOptions{
			Args: []any{
				a.Key.String(),
				a.Key.Bundle,
				a.Key.Locale,
				a.Key.Type,
				a.Key.Name,
				a.Content,
				int64(len(a.Content)),
				a.Hash.String(),
				a.Version,
				timeToNanos(a.ModTime),
				now.UnixNano(),
				now.UnixNano(),
				a.ContentType,
			},
		})
	if err != nil {
		return &asset.StorageError{Op: fmt.Sprintf("put %s", a.Key), Err: err}
	}
	return nil
}

// Get returns the asset for key, bumping its last-accessed time before
// returning. A miss is not an error: ok is false and err is nil.
func (s *Store) Get(ctx context.Context, key asset.Key) (a asset.Asset, ok bool, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return asset.Asset{}, false, &asset.StorageError{Op: "get", Err: err}
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return asset.Asset{}, false, &asset.StorageError{Op: "get: begin", Err: err}
	}
	defer endTransaction(&err)

	// The bump uses MAX so last_accessed never decreases, even if the
	// injected clock jumps backwards.
	err = sqlitex.Execute(conn,
		"UPDATE assets SET last_accessed = MAX(last_accessed, ?) WHERE key = ?",
		&sqlitex.ExecOptions{Args: []any{s.clock.Now().UnixNano(), key.String()}})
	if err != nil {
		return asset.Asset{}, false, &asset.StorageError{Op: fmt.Sprintf("get %s: bump", key), Err: err}
	}
	if conn.Changes() == 0 {
		return asset.Asset{}, false, nil
	}

	return s.selectAsset(conn, key)
}

// Peek returns the asset without bumping its last-accessed time.
// Integrity verification uses this so a verification sweep does not
// distort LRU ordering.
func (s *Store) Peek(ctx context.Context, key asset.Key) (asset.Asset, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return asset.Asset{}, false, &asset.StorageError{Op: "peek", Err: err}
	}
	defer s.pool.Put(conn)

	return s.selectAsset(conn, key)
}

func (s *Store) selectAsset(conn *sqlite.Conn, key asset.Key) (asset.Asset, bool, error) {
	var found bool
	var result asset.Asset

	err := sqlitex.Execute(conn, `
		SELECT key, content, size, hash, version, mod_time, created_at,
		       last_accessed, content_type
		FROM assets WHERE key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{key.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				a, err := scanAsset(stmt)
				if err != nil {
					return err
				}
				result = a
				found = true
				return nil
			},
		})
	if err != nil {
		return asset.Asset{}, false, &asset.StorageError{Op: fmt.Sprintf("select %s", key), Err: err}
	}
	return result, found, nil
}

// scanAsset decodes one row from the column order used by all asset
// SELECT statements in this package.
func scanAsset(stmt *sqlite.Stmt) (asset.Asset, error) {
	key, err := asset.ParseKey(stmt.ColumnText(0))
	if err != nil {
		return asset.Asset{}, fmt.Errorf("corrupt key column: %w", err)
	}

	content := make([]byte, stmt.ColumnLen(1))
	stmt.ColumnBytes(1, content)

	hash, err := asset.ParseHash(stmt.ColumnText(3))
	if err != nil {
		return asset.Asset{}, fmt.Errorf("corrupt hash column for %s: %w", key, err)
	}

	return asset.Asset{
		Key:          key,
		Content:      content,
		Size:         stmt.ColumnInt64(2),
		Hash:         hash,
		Version:      stmt.ColumnInt64(4),
		ModTime:      nanosToTime(stmt.ColumnInt64(5)),
		CreatedAt:    nanosToTime(stmt.ColumnInt64(6)),
		LastAccessed: nanosToTime(stmt.ColumnInt64(7)),
		ContentType:  stmt.ColumnText(8),
	}, nil
}

// Criteria filters FindByCriteria. Empty fields match anything; set
// fields are AND-ed.
type Criteria struct {
	Bundle string
	Type   string
	Locale string
	Name   string
}

// FindByCriteria returns all assets matching the criteria, ordered by
// composite key for determinism. Does not bump last-accessed.
func (s *Store) FindByCriteria(ctx context.Context, c Criteria) ([]asset.Asset, error) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 4)
	for _, filter := range []struct {
		column string
		value  string
	}{
		{"bundle", c.Bundle},
		{"type", c.Type},
		{"locale", c.Locale},
		{"name", c.Name},
	} {
		if filter.value != "" {
			conditions = append(conditions, filter.column+" = ?")
			args = append(args, filter.value)
		}
	}

	query := `SELECT key, content, size, hash, version, mod_time, created_at,
	       last_accessed, content_type FROM assets`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY key"

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, &asset.StorageError{Op: "find", Err: err}
	}
	defer s.pool.Put(conn)

	var results []asset.Asset
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			a, err := scanAsset(stmt)
			if err != nil {
				return err
			}
			results = append(results, a)
			return nil
		},
	})
	if err != nil {
		return nil, &asset.StorageError{Op: "find", Err: err}
	}
	return results, nil
}

// ResolveWithLocaleFallback resolves (bundle, type, name) with locale
// fallback: the preferred locale first, then "default", then the
// lexicographically lowest locale that has the asset. The returned
// asset's last-accessed time is bumped, like Get.
func (s *Store) ResolveWithLocaleFallback(ctx context.Context, bundle, assetType, name, preferredLocale string) (asset.Asset, bool, error) {
	if preferredLocale == "" {
		preferredLocale = asset.DefaultLocale
	}

	a, ok, err := s.Get(ctx, asset.NewKey(bundle, preferredLocale, assetType, name))
	if err != nil || ok {
		return a, ok, err
	}

	if preferredLocale != asset.DefaultLocale {
		a, ok, err = s.Get(ctx, asset.NewKey(bundle, asset.DefaultLocale, assetType, name))
		if err != nil || ok {
			return a, ok, err
		}
	}

	// Any-locale fallback: lowest locale wins so the result is
	// deterministic regardless of insertion order.
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return asset.Asset{}, false, &asset.StorageError{Op: "resolve", Err: err}
	}

	var fallbackLocale string
	err = sqlitex.Execute(conn, `
		SELECT locale FROM assets
		WHERE bundle = ? AND type = ? AND name = ?
		ORDER BY locale ASC LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{bundle, assetType, name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				fallbackLocale = stmt.ColumnText(0)
				return nil
			},
		})
	s.pool.Put(conn)
	if err != nil {
		return asset.Asset{}, false, &asset.StorageError{Op: "resolve", Err: err}
	}
	if fallbackLocale == "" {
		return asset.Asset{}, false, nil
	}

	return s.Get(ctx, asset.NewKey(bundle, fallbackLocale, assetType, name))
}

// Delete removes a single asset. Deleting an absent key is a no-op and
// reports deleted=false.
func (s *Store) Delete(ctx context.Context, key asset.Key) (deleted bool, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false, &asset.StorageError{Op: "delete", Err: err}
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM assets WHERE key = ?",
		&sqlitex.ExecOptions{Args: []any{key.String()}})
	if err != nil {
		return false, &asset.StorageError{Op: fmt.Sprintf("delete %s", key), Err: err}
	}
	return conn.Changes() > 0, nil
}

// DeleteByBundle removes every asset belonging to the bundle in one
// statement and returns the number removed. The bundle row itself is
// untouched; use DeleteBundle for the full cascade.
func (s *Store) DeleteByBundle(ctx context.Context, bundle string) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, &asset.StorageError{Op: "delete by bundle", Err: err}
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM assets WHERE bundle = ?",
		&sqlitex.ExecOptions{Args: []any{bundle}})
	if err != nil {
		return 0, &asset.StorageError{Op: fmt.Sprintf("delete by bundle %q", bundle), Err: err}
	}
	return conn.Changes(), nil
}

func timeToNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func nanosToTime(nanos int64) time.Time {
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos).UTC()
}
