// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package assetstore

import (
	"context"
	"testing"
	"time"

	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/lanternworks/assetvault/lib/asset"
	"github.com/lanternworks/assetvault/lib/event"
)

// corruptContent rewrites the stored content of key without updating
// the recorded hash, simulating on-disk corruption.
func corruptContent(t *testing.T, store *Store, key asset.Key) {
	t.Helper()
	conn, err := store.pool.Take(context.Background())
	if err != nil {
		t.Fatalf("taking connection: %v", err)
	}
	defer store.pool.Put(conn)

	err = sqlitex.Execute(conn, "UPDATE assets SET content = ? WHERE key = ?",
		&sqlitex.ExecOptions{Args: []any{[]byte("corrupted"), key.String()}})
	if err != nil {
		t.Fatalf("corrupting content: %v", err)
	}
}

func TestVerifyIntegrity(t *testing.T) {
	store, _, recorder := newTestStore(t)
	ctx := context.Background()

	good := makeAsset("main", "en", asset.TypeData, "good.json", `{"ok":true}`)
	bad := makeAsset("main", "en", asset.TypeData, "bad.json", `{"ok":false}`)
	if err := store.PutMany(ctx, []asset.Asset{good, bad}); err != nil {
		t.Fatalf("PutMany failed: %v", err)
	}
	corruptContent(t, store, bad.Key)

	ok, err := store.VerifyIntegrity(ctx, good.Key)
	if err != nil {
		t.Fatalf("VerifyIntegrity failed: %v", err)
	}
	if !ok {
		t.Error("intact asset reported invalid")
	}

	ok, err = store.VerifyIntegrity(ctx, bad.Key)
	if err != nil {
		t.Fatalf("VerifyIntegrity failed: %v", err)
	}
	if ok {
		t.Error("corrupted asset reported valid")
	}

	var failures []event.IntegrityFailure
	for _, e := range recorder.Events() {
		if f, ok := e.(event.IntegrityFailure); ok {
			failures = append(failures, f)
		}
	}
	if len(failures) != 1 || failures[0].Key != bad.Key {
		t.Errorf("integrity-failure events = %+v", failures)
	}
}

func TestVerifyIntegrityMissingKey(t *testing.T) {
	store, _, _ := newTestStore(t)

	ok, err := store.VerifyIntegrity(context.Background(),
		asset.NewKey("main", "en", asset.TypeData, "absent.json"))
	if err != nil {
		t.Fatalf("VerifyIntegrity of missing key errored: %v", err)
	}
	if ok {
		t.Error("missing key verified as valid")
	}
}

func TestVerifyBundleIntegrity(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	assets := []asset.Asset{
		makeAsset("main", "en", asset.TypeData, "a.json", "aaa"),
		makeAsset("main", "en", asset.TypeData, "b.json", "bbb"),
		makeAsset("main", "en", asset.TypeData, "c.json", "ccc"),
	}
	if err := store.PutMany(ctx, assets); err != nil {
		t.Fatalf("PutMany failed: %v", err)
	}
	corruptContent(t, store, assets[1].Key)

	report, err := store.VerifyBundleIntegrity(ctx, "main")
	if err != nil {
		t.Fatalf("VerifyBundleIntegrity failed: %v", err)
	}
	if report.Total != 3 || report.Valid != 2 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Invalid) != 1 || report.Invalid[0] != assets[1].Key {
		t.Errorf("invalid keys = %v", report.Invalid)
	}
}

func TestVerifyDoesNotBumpRecency(t *testing.T) {
	store, fakeClock, _ := newTestStore(t)
	ctx := context.Background()

	a := makeAsset("main", "en", asset.TypeData, "a.json", "aaa")
	if err := store.Put(ctx, a); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	before, _, _ := store.Peek(ctx, a.Key)

	fakeClock.Advance(time.Second)
	if _, err := store.VerifyIntegrity(ctx, a.Key); err != nil {
		t.Fatalf("VerifyIntegrity failed: %v", err)
	}

	after, _, _ := store.Peek(ctx, a.Key)
	if !after.LastAccessed.Equal(before.LastAccessed) {
		t.Error("verification sweep changed LRU ordering")
	}
}
