// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package assetstore

import (
	"context"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/lanternworks/assetvault/lib/asset"
	"github.com/lanternworks/assetvault/lib/event"
)

// TotalSize returns the sum of all stored asset sizes in bytes.
func (s *Store) TotalSize(ctx context.Context) (int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, &asset.StorageError{Op: "total size", Err: err}
	}
	defer s.pool.Put(conn)

	return totalSizeOn(conn)
}

func totalSizeOn(conn *sqlite.Conn) (int64, error) {
	var total int64
	err := sqlitex.Execute(conn, "SELECT COALESCE(SUM(size), 0) FROM assets",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				total = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return 0, &asset.StorageError{Op: "total size", Err: err}
	}
	return total, nil
}

// evictDeleteChunk bounds the bound parameters per DELETE so a large
// pass stays under SQLite's variable limit.
const evictDeleteChunk = 500

// EvictLRU deletes least-recently-accessed assets until the store fits
// within maxSizeBytes. If the store is already under budget, it is a
// no-op returning 0.
//
// The pass is greedy: assets are ordered by ascending last-accessed
// (key as tiebreak), and the minimal oldest-first prefix whose
// cumulative size covers the overflow is deleted in one transaction.
// Greedy is not globally optimal, but the contract is boundedness, not
// exactness. Running inside a single IMMEDIATE transaction serializes
// the pass against bundle commits, so eviction can never delete an
// asset a concurrent commit just wrote.
//
// Returns the number of assets removed and the bytes reclaimed.
func (s *Store) EvictLRU(ctx context.Context, maxSizeBytes int64) (int, int64, error) {
	count, reclaimed, err := s.evictTx(ctx, maxSizeBytes)
	if err != nil || count == 0 {
		return count, reclaimed, err
	}

	s.logger.Info("lru eviction",
		"evicted", count,
		"bytes_reclaimed", reclaimed,
		"budget", maxSizeBytes,
	)
	s.publisher.Publish(event.EvictionPerformed{Count: count, BytesReclaimed: reclaimed})
	return count, reclaimed, nil
}

func (s *Store) evictTx(ctx context.Context, maxSizeBytes int64) (count int, reclaimed int64, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, 0, &asset.StorageError{Op: "evict", Err: err}
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, 0, &asset.StorageError{Op: "evict: begin", Err: err}
	}
	defer endTransaction(&err)

	total, err := totalSizeOn(conn)
	if err != nil {
		return 0, 0, err
	}
	if total <= maxSizeBytes {
		return 0, 0, nil
	}
	overflow := total - maxSizeBytes

	// Select the minimal oldest-first prefix covering the overflow.
	var victims []string
	err = sqlitex.Execute(conn,
		"SELECT key, size FROM assets ORDER BY last_accessed ASC, key ASC",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				if reclaimed >= overflow {
					return nil
				}
				victims = append(victims, stmt.ColumnText(0))
				reclaimed += stmt.ColumnInt64(1)
				return nil
			},
		})
	if err != nil {
		return 0, 0, &asset.StorageError{Op: "evict: scan", Err: err}
	}

	// Chunked deletes, all inside the same transaction.
	for start := 0; start < len(victims); start += evictDeleteChunk {
		chunk := victims[start:min(start+evictDeleteChunk, len(victims))]
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")
		args := make([]any, len(chunk))
		for i, key := range chunk {
			args[i] = key
		}
		err = sqlitex.Execute(conn, "DELETE FROM assets WHERE key IN ("+placeholders+")",
			&sqlitex.ExecOptions{Args: args})
		if err != nil {
			return 0, 0, &asset.StorageError{Op: "evict: delete", Err: err}
		}
		count += conn.Changes()
	}
	return count, reclaimed, nil
}

// Stats returns store-wide aggregates.
func (s *Store) Stats(ctx context.Context) (asset.CacheStats, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return asset.CacheStats{}, &asset.StorageError{Op: "stats", Err: err}
	}
	defer s.pool.Put(conn)

	var stats asset.CacheStats
	err = sqlitex.Execute(conn, `
		SELECT COUNT(*), COALESCE(SUM(size), 0),
		       COALESCE(MIN(last_accessed), 0), COALESCE(MAX(last_accessed), 0)
		FROM assets`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				stats.AssetCount = stmt.ColumnInt64(0)
				stats.TotalBytes = stmt.ColumnInt64(1)
				stats.OldestAccess = nanosToTime(stmt.ColumnInt64(2))
				stats.NewestAccess = nanosToTime(stmt.ColumnInt64(3))
				return nil
			},
		})
	if err != nil {
		return asset.CacheStats{}, &asset.StorageError{Op: "stats: assets", Err: err}
	}

	err = sqlitex.Execute(conn, "SELECT COUNT(*) FROM bundles",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				stats.BundleCount = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return asset.CacheStats{}, &asset.StorageError{Op: "stats: bundles", Err: err}
	}
	return stats, nil
}
