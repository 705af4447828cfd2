// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package assetstore

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lanternworks/assetvault/lib/asset"
	"github.com/lanternworks/assetvault/lib/event"
)

// putAged stores an asset and advances the clock so each subsequent
// asset has a strictly newer last-accessed time.
func putAged(t *testing.T, store *Store, fakeClock interface{ Advance(time.Duration) }, name string, size int) asset.Key {
	t.Helper()
	content := strings.Repeat("x", size)
	a := makeAsset("main", "default", asset.TypeData, name, content)
	if err := store.Put(context.Background(), a); err != nil {
		t.Fatalf("Put %s failed: %v", name, err)
	}
	fakeClock.Advance(time.Minute)
	return a.Key
}

func TestEvictLRUGreedyOldestFirst(t *testing.T) {
	store, fakeClock, recorder := newTestStore(t)
	ctx := context.Background()

	// Sizes 10, 20, 30 with last-accessed ascending in that order.
	oldest := putAged(t, store, fakeClock, "oldest.bin", 10)
	middle := putAged(t, store, fakeClock, "middle.bin", 20)
	newest := putAged(t, store, fakeClock, "newest.bin", 30)

	// Total 60, budget 40 → overflow 20. Greedy oldest-first prefix:
	// 10 is not enough, 10+20=30 covers it. Exactly the two oldest go.
	count, reclaimed, err := store.EvictLRU(ctx, 40)
	if err != nil {
		t.Fatalf("EvictLRU failed: %v", err)
	}
	if count != 2 {
		t.Errorf("evicted %d assets, want 2", count)
	}
	if reclaimed != 30 {
		t.Errorf("reclaimed %d bytes, want 30", reclaimed)
	}

	total, err := store.TotalSize(ctx)
	if err != nil {
		t.Fatalf("TotalSize failed: %v", err)
	}
	if total > 40 {
		t.Errorf("total size %d exceeds budget 40 after eviction", total)
	}

	if _, ok, _ := store.Get(ctx, newest); !ok {
		t.Error("newest asset did not survive eviction")
	}
	for _, victim := range []asset.Key{oldest, middle} {
		if _, ok, _ := store.Get(ctx, victim); ok {
			t.Errorf("%s survived eviction", victim)
		}
	}

	found := false
	for _, e := range recorder.Events() {
		if ev, ok := e.(event.EvictionPerformed); ok {
			found = true
			if ev.Count != 2 || ev.BytesReclaimed != 30 {
				t.Errorf("eviction event = %+v", ev)
			}
		}
	}
	if !found {
		t.Error("no eviction-performed event published")
	}
}

func TestEvictLRUNoOpUnderBudget(t *testing.T) {
	store, fakeClock, _ := newTestStore(t)
	ctx := context.Background()

	putAged(t, store, fakeClock, "small.bin", 10)

	count, reclaimed, err := store.EvictLRU(ctx, 1000)
	if err != nil {
		t.Fatalf("EvictLRU failed: %v", err)
	}
	if count != 0 || reclaimed != 0 {
		t.Errorf("eviction under budget removed %d assets (%d bytes)", count, reclaimed)
	}
}

func TestEvictLRUReadRefreshesRecency(t *testing.T) {
	store, fakeClock, _ := newTestStore(t)
	ctx := context.Background()

	first := putAged(t, store, fakeClock, "first.bin", 30)
	second := putAged(t, store, fakeClock, "second.bin", 30)

	// Reading the older asset makes it the newest.
	if _, ok, err := store.Get(ctx, first); !ok || err != nil {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}

	// Budget forces one eviction; the unread asset must go.
	if _, _, err := store.EvictLRU(ctx, 30); err != nil {
		t.Fatalf("EvictLRU failed: %v", err)
	}

	if _, ok, _ := store.Get(ctx, first); !ok {
		t.Error("recently read asset was evicted")
	}
	if _, ok, _ := store.Get(ctx, second); ok {
		t.Error("least recently used asset survived")
	}
}

func TestStats(t *testing.T) {
	store, fakeClock, _ := newTestStore(t)
	ctx := context.Background()

	putAged(t, store, fakeClock, "a.bin", 10)
	putAged(t, store, fakeClock, "b.bin", 20)
	if err := store.PutBundle(ctx, asset.Bundle{Name: "main", Version: "1.0", BuildNumber: 1}); err != nil {
		t.Fatalf("PutBundle failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.AssetCount != 2 || stats.BundleCount != 1 || stats.TotalBytes != 30 {
		t.Errorf("stats = %+v", stats)
	}
	if !stats.OldestAccess.Before(stats.NewestAccess) {
		t.Errorf("access range not ordered: %v .. %v", stats.OldestAccess, stats.NewestAccess)
	}
}

func TestEvictLRULargePassSpansDeleteChunks(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	// More victims than one DELETE chunk holds. One survivor stays
	// under the budget.
	victimCount := evictDeleteChunk + 20
	assets := make([]asset.Asset, 0, victimCount+1)
	for i := 0; i < victimCount; i++ {
		assets = append(assets, makeAsset("main", "default", asset.TypeData, fmt.Sprintf("old-%04d.bin", i), "x"))
	}
	if err := store.PutMany(ctx, assets); err != nil {
		t.Fatalf("PutMany failed: %v", err)
	}

	count, reclaimed, err := store.EvictLRU(ctx, 1)
	if err != nil {
		t.Fatalf("EvictLRU failed: %v", err)
	}
	if count != victimCount-1 {
		t.Errorf("evicted %d assets, want %d", count, victimCount-1)
	}
	if reclaimed != int64(victimCount-1) {
		t.Errorf("reclaimed %d bytes, want %d", reclaimed, victimCount-1)
	}

	total, err := store.TotalSize(ctx)
	if err != nil {
		t.Fatalf("TotalSize failed: %v", err)
	}
	if total != 1 {
		t.Errorf("total size after eviction = %d, want 1", total)
	}
}
