// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package assetstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lanternworks/assetvault/lib/asset"
	"github.com/lanternworks/assetvault/lib/clock"
	"github.com/lanternworks/assetvault/lib/event"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *clock.FakeClock, *event.Recorder) {
	t.Helper()
	fakeClock := clock.Fake(testEpoch)
	recorder := &event.Recorder{}
	store, err := Open(Config{
		Path:      filepath.Join(t.TempDir(), "assets.db"),
		PoolSize:  1,
		Clock:     fakeClock,
		Publisher: recorder,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, fakeClock, recorder
}

func makeAsset(bundle, locale, assetType, name, content string) asset.Asset {
	return asset.Asset{
		Key:     asset.NewKey(bundle, locale, assetType, name),
		Content: []byte(content),
		Size:    int64(len(content)),
		Hash:    asset.HashContent([]byte(content)),
	}
}

func TestPutGetRoundtrip(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	original := makeAsset("main", "en", asset.TypeScript, "intro.lua", "print('hello')")
	original.Version = 3
	original.ContentType = "text/x-lua"
	if err := store.Put(ctx, original); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok, err := store.Get(ctx, original.Key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("Get reported a miss for a stored asset")
	}
	if string(got.Content) != "print('hello')" {
		t.Errorf("content = %q", got.Content)
	}
	if got.Hash != original.Hash {
		t.Error("stored hash mismatch")
	}
	// The written-then-read digest property: content must hash to the
	// stored hash.
	if asset.HashContent(got.Content) != got.Hash {
		t.Error("content digest does not match stored hash")
	}
	if got.Version != 3 || got.ContentType != "text/x-lua" {
		t.Errorf("metadata mismatch: %+v", got)
	}
}

func TestGetMissIsNotError(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, ok, err := store.Get(context.Background(), asset.NewKey("main", "en", "images", "missing.png"))
	if err != nil {
		t.Fatalf("miss should not be an error: %v", err)
	}
	if ok {
		t.Error("miss reported ok=true")
	}
}

func TestGetBumpsLastAccessed(t *testing.T) {
	store, fakeClock, _ := newTestStore(t)
	ctx := context.Background()

	a := makeAsset("main", "default", asset.TypeData, "config.json", "{}")
	if err := store.Put(ctx, a); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	first, _, err := store.Get(ctx, a.Key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	fakeClock.Advance(time.Minute)
	second, _, err := store.Get(ctx, a.Key)
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}

	if !second.LastAccessed.After(first.LastAccessed) {
		t.Errorf("last accessed did not advance: %v then %v",
			first.LastAccessed, second.LastAccessed)
	}
}

func TestPutPreservesCreatedAt(t *testing.T) {
	store, fakeClock, _ := newTestStore(t)
	ctx := context.Background()

	a := makeAsset("main", "default", asset.TypeData, "save.bin", "v1")
	if err := store.Put(ctx, a); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	first, _, _ := store.Get(ctx, a.Key)

	fakeClock.Advance(time.Hour)
	a.Content = []byte("v2")
	a.Size = 2
	a.Hash = asset.HashContent(a.Content)
	if err := store.Put(ctx, a); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	second, _, _ := store.Get(ctx, a.Key)

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created at changed on upsert: %v then %v", first.CreatedAt, second.CreatedAt)
	}
	if string(second.Content) != "v2" {
		t.Errorf("content not updated: %q", second.Content)
	}
}

func TestFindByCriteria(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	assets := []asset.Asset{
		makeAsset("main", "en", asset.TypeScript, "intro.lua", "a"),
		makeAsset("main", "fr", asset.TypeScript, "intro.lua", "b"),
		makeAsset("main", "en", asset.TypeImage, "logo.png", "c"),
		makeAsset("ui", "en", asset.TypeScript, "menu.lua", "d"),
	}
	if err := store.PutMany(ctx, assets); err != nil {
		t.Fatalf("PutMany failed: %v", err)
	}

	tests := []struct {
		name     string
		criteria Criteria
		want     int
	}{
		{"all", Criteria{}, 4},
		{"by bundle", Criteria{Bundle: "main"}, 3},
		{"by type", Criteria{Type: asset.TypeScript}, 3},
		{"bundle and type", Criteria{Bundle: "main", Type: asset.TypeScript}, 2},
		{"full key", Criteria{Bundle: "main", Type: asset.TypeScript, Locale: "fr", Name: "intro.lua"}, 1},
		{"no match", Criteria{Bundle: "absent"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.FindByCriteria(ctx, tt.criteria)
			if err != nil {
				t.Fatalf("FindByCriteria failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d assets, want %d", len(got), tt.want)
			}
		})
	}
}

func TestResolveWithLocaleFallback(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.PutMany(ctx, []asset.Asset{
		makeAsset("main", "en", asset.TypeScript, "intro.lua", "english"),
		makeAsset("main", "ja", asset.TypeScript, "intro.lua", "japanese"),
		makeAsset("main", "default", asset.TypeScript, "menu.lua", "default menu"),
		makeAsset("main", "zz", asset.TypeScript, "rare.lua", "zz"),
		makeAsset("main", "aa", asset.TypeScript, "rare.lua", "aa"),
	}); err != nil {
		t.Fatalf("PutMany failed: %v", err)
	}

	t.Run("preferred locale wins", func(t *testing.T) {
		got, ok, err := store.ResolveWithLocaleFallback(ctx, "main", asset.TypeScript, "intro.lua", "ja")
		if err != nil || !ok {
			t.Fatalf("resolve failed: ok=%v err=%v", ok, err)
		}
		if string(got.Content) != "japanese" {
			t.Errorf("got %q, want japanese variant", got.Content)
		}
	})

	t.Run("falls back to default locale", func(t *testing.T) {
		got, ok, err := store.ResolveWithLocaleFallback(ctx, "main", asset.TypeScript, "menu.lua", "fr")
		if err != nil || !ok {
			t.Fatalf("resolve failed: ok=%v err=%v", ok, err)
		}
		if string(got.Content) != "default menu" {
			t.Errorf("got %q, want default variant", got.Content)
		}
	})

	t.Run("any locale when preferred and default absent", func(t *testing.T) {
		// Only "en" and "ja" variants exist; requesting "fr" must
		// still resolve, never miss.
		got, ok, err := store.ResolveWithLocaleFallback(ctx, "main", asset.TypeScript, "intro.lua", "fr")
		if err != nil || !ok {
			t.Fatalf("resolve failed: ok=%v err=%v", ok, err)
		}
		if got.Key.Locale != "en" {
			t.Errorf("tie-break should pick lexicographically lowest locale, got %q", got.Key.Locale)
		}
	})

	t.Run("lexicographic tie-break", func(t *testing.T) {
		got, ok, err := store.ResolveWithLocaleFallback(ctx, "main", asset.TypeScript, "rare.lua", "fr")
		if err != nil || !ok {
			t.Fatalf("resolve failed: ok=%v err=%v", ok, err)
		}
		if got.Key.Locale != "aa" {
			t.Errorf("got locale %q, want aa", got.Key.Locale)
		}
	})

	t.Run("true miss", func(t *testing.T) {
		_, ok, err := store.ResolveWithLocaleFallback(ctx, "main", asset.TypeScript, "nothing.lua", "fr")
		if err != nil {
			t.Fatalf("miss should not error: %v", err)
		}
		if ok {
			t.Error("resolved an asset that does not exist")
		}
	})
}

func TestDeleteBundleCascades(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.PutMany(ctx, []asset.Asset{
		makeAsset("main", "en", asset.TypeScript, "a.lua", "a"),
		makeAsset("main", "en", asset.TypeScript, "b.lua", "b"),
		makeAsset("other", "en", asset.TypeScript, "c.lua", "c"),
	}); err != nil {
		t.Fatalf("PutMany failed: %v", err)
	}
	if err := store.PutBundle(ctx, asset.Bundle{Name: "main", Version: "1.0", BuildNumber: 1}); err != nil {
		t.Fatalf("PutBundle failed: %v", err)
	}

	count, err := store.DeleteBundle(ctx, "main")
	if err != nil {
		t.Fatalf("DeleteBundle failed: %v", err)
	}
	if count != 2 {
		t.Errorf("deleted %d assets, want 2", count)
	}

	if _, ok, _ := store.GetBundle(ctx, "main"); ok {
		t.Error("bundle row survived DeleteBundle")
	}
	// The unrelated bundle's asset must survive.
	if _, ok, _ := store.Get(ctx, asset.NewKey("other", "en", asset.TypeScript, "c.lua")); !ok {
		t.Error("cascade deleted an asset from another bundle")
	}
}

func TestBundleIndex(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	a := makeAsset("main", "en", asset.TypeScript, "a.lua", "a")
	b := makeAsset("main", "en", asset.TypeScript, "b.lua", "b")
	if err := store.PutMany(ctx, []asset.Asset{a, b}); err != nil {
		t.Fatalf("PutMany failed: %v", err)
	}

	index, err := store.BundleIndex(ctx, "main")
	if err != nil {
		t.Fatalf("BundleIndex failed: %v", err)
	}
	if len(index) != 2 {
		t.Fatalf("index has %d entries, want 2", len(index))
	}
	if index[a.Key] != a.Hash {
		t.Error("index hash mismatch")
	}
}

func TestPutManyEmitsEvents(t *testing.T) {
	store, _, recorder := newTestStore(t)
	ctx := context.Background()

	a := makeAsset("main", "en", asset.TypeScript, "a.lua", "a")
	if err := store.Put(ctx, a); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var stored []event.AssetStored
	for _, e := range recorder.Events() {
		if s, ok := e.(event.AssetStored); ok {
			stored = append(stored, s)
		}
	}
	if len(stored) != 1 || stored[0].Key != a.Key {
		t.Errorf("asset-stored events = %+v", stored)
	}
}

// readBackPublisher reads each stored key back through the store from
// inside Publish. With a pool of one connection this only works when
// events fire after the write transaction has committed and released
// its connection.
type readBackPublisher struct {
	store   *Store
	visible []bool
}

func (p *readBackPublisher) Publish(e event.Event) {
	stored, ok := e.(event.AssetStored)
	if !ok {
		return
	}
	_, found, err := p.store.Peek(context.Background(), stored.Key)
	p.visible = append(p.visible, found && err == nil)
}

func TestEventsObserveCommittedState(t *testing.T) {
	publisher := &readBackPublisher{}
	store, err := Open(Config{
		Path:      filepath.Join(t.TempDir(), "assets.db"),
		PoolSize:  1,
		Clock:     clock.Fake(testEpoch),
		Publisher: publisher,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	publisher.store = store
	ctx := context.Background()

	assets := []asset.Asset{
		makeAsset("main", "en", asset.TypeScript, "a.lua", "a"),
		makeAsset("main", "en", asset.TypeScript, "b.lua", "b"),
	}
	if err := store.PutMany(ctx, assets); err != nil {
		t.Fatalf("PutMany failed: %v", err)
	}
	if err := store.CommitBundle(ctx, asset.Bundle{Name: "main", Version: "1.0.0", BuildNumber: 1}, assets); err != nil {
		t.Fatalf("CommitBundle failed: %v", err)
	}

	if len(publisher.visible) != 4 {
		t.Fatalf("got %d asset-stored events, want 4", len(publisher.visible))
	}
	for i, visible := range publisher.visible {
		if !visible {
			t.Errorf("event %d fired before its row was readable", i)
		}
	}
}
