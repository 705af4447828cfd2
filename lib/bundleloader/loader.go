// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package bundleloader downloads complete bundles into the asset
// store: it fetches a bundle's manifest, fetches and decodes every
// asset through the plugin pipeline with a bounded worker pool,
// verifies each asset's content hash against its descriptor, and
// commits the whole bundle in one store transaction. Cancellation or
// failure before the commit leaves the store untouched.
package bundleloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/lanternworks/assetvault/lib/asset"
	"github.com/lanternworks/assetvault/lib/assetstore"
	"github.com/lanternworks/assetvault/lib/event"
	"github.com/lanternworks/assetvault/lib/keylock"
	"github.com/lanternworks/assetvault/lib/plugin"
)

// State is the phase a bundle load is in. Loads move strictly forward
// through the fetching and verification phases and terminate in
// StateLoaded or StateFailed.
type State int

const (
	// StateIdle means no load has been started for the bundle.
	StateIdle State = iota

	// StateFetchingManifest means the manifest is being retrieved.
	StateFetchingManifest

	// StateFetchingAssets means asset workers are fetching and
	// decoding content.
	StateFetchingAssets

	// StateVerifying means per-asset results are being checked and
	// the aggregate bundle hash computed.
	StateVerifying

	// StateCommitting means the store transaction is in progress.
	StateCommitting

	// StateLoaded means the bundle committed successfully.
	StateLoaded

	// StateFailed means the load aborted; the store holds whatever
	// was committed before the load began.
	StateFailed
)

// String returns the phase name for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingManifest:
		return "fetching-manifest"
	case StateFetchingAssets:
		return "fetching-assets"
	case StateVerifying:
		return "verifying"
	case StateCommitting:
		return "committing"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Config configures a Loader.
type Config struct {
	// Store receives committed bundles. Required.
	Store *assetstore.Store

	// Registry decodes fetched bytes (decryption, decompression).
	// Required.
	Registry *plugin.Registry

	// Fetcher retrieves manifests and asset bytes. Required.
	Fetcher Fetcher

	// Workers bounds concurrent asset fetches. Defaults to 4.
	Workers int

	// MaxAttempts is the per-asset attempt limit for fetch, decode,
	// and integrity verification. Defaults to 3.
	MaxAttempts int

	// AllowPartial makes the loader commit bundles even when some
	// assets failed after all attempts. Failed assets are reported in
	// the Result and the bundle is marked partial. When false, any
	// asset failure aborts the whole load.
	AllowPartial bool

	// Logger receives load progress. Defaults to a discard logger.
	Logger *slog.Logger

	// Publisher receives integrity failure events. Defaults to
	// event.Discard.
	Publisher event.Publisher

	// Locks serializes writers per bundle name. Supply a shared
	// instance when the loader coexists with a patcher so both honor
	// the single-writer-per-bundle discipline. Defaults to a private
	// lock set.
	Locks *keylock.Keyed
}

// Loader loads bundles. Safe for concurrent use; loads of the same
// bundle are serialized by a per-bundle lock, loads of different
// bundles proceed in parallel.
type Loader struct {
	store        *assetstore.Store
	registry     *plugin.Registry
	fetcher      Fetcher
	workers      int
	maxAttempts  int
	allowPartial bool
	logger       *slog.Logger
	publisher    event.Publisher

	locks *keylock.Keyed

	mu     sync.RWMutex
	states map[string]State
}

// AssetFailure records one asset that could not be loaded after all
// attempts.
type AssetFailure struct {
	Key asset.Key
	Err error
}

// Result reports a completed load.
type Result struct {
	// Bundle is the committed bundle record.
	Bundle asset.Bundle

	// Loaded is the number of assets committed.
	Loaded int

	// Failed lists assets skipped in partial mode. Empty unless
	// AllowPartial is set.
	Failed []AssetFailure
}

// New creates a Loader.
func New(cfg Config) (*Loader, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("bundleloader: Store is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("bundleloader: Registry is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("bundleloader: Fetcher is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Publisher == nil {
		cfg.Publisher = event.Discard
	}
	if cfg.Locks == nil {
		cfg.Locks = keylock.New()
	}
	return &Loader{
		store:        cfg.Store,
		registry:     cfg.Registry,
		fetcher:      cfg.Fetcher,
		workers:      cfg.Workers,
		maxAttempts:  cfg.MaxAttempts,
		allowPartial: cfg.AllowPartial,
		logger:       cfg.Logger,
		publisher:    cfg.Publisher,
		locks:        cfg.Locks,
		states:       make(map[string]State),
	}, nil
}

// State returns the current phase of the named bundle's most recent
// load, or StateIdle if the bundle has never been loaded.
func (l *Loader) State(bundle string) State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.states[bundle]
}

func (l *Loader) setState(bundle string, s State) {
	l.mu.Lock()
	l.states[bundle] = s
	l.mu.Unlock()
	l.logger.Debug("load state", "bundle", bundle, "state", s.String())
}

// Load fetches, decodes, verifies, and commits the named bundle.
// Returns a *asset.LoadError on failure; the store is unchanged unless
// the commit phase was reached.
func (l *Loader) Load(ctx context.Context, bundle string) (*Result, error) {
	unlock := l.locks.Lock(bundle)
	defer unlock()

	result, err := l.load(ctx, bundle)
	if err != nil {
		l.setState(bundle, StateFailed)
		l.logger.Error("bundle load failed", "bundle", bundle, "error", err)
		return nil, &asset.LoadError{Bundle: bundle, Err: err}
	}
	l.setState(bundle, StateLoaded)
	return result, nil
}

func (l *Loader) load(ctx context.Context, bundle string) (*Result, error) {
	l.setState(bundle, StateFetchingManifest)
	manifest, err := l.fetcher.FetchManifest(ctx, bundle)
	if err != nil {
		return nil, err
	}
	if manifest.Bundle != bundle {
		return nil, fmt.Errorf("manifest names bundle %q, expected %q", manifest.Bundle, bundle)
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	l.setState(bundle, StateFetchingAssets)
	loaded, failed, err := l.fetchAll(ctx, manifest)
	if err != nil {
		return nil, err
	}

	l.setState(bundle, StateVerifying)
	if len(failed) > 0 && !l.allowPartial {
		// fetchAll aborts eagerly in strict mode; this covers failures
		// that raced the abort.
		return nil, failed[0].Err
	}

	// The aggregate hash covers the assets actually committed, so a
	// partial bundle's hash differs from the manifest's full set.
	hashes := make([]asset.Hash, len(loaded))
	for i, a := range loaded {
		hashes[i] = a.Hash
	}

	buildNumber := int64(1)
	if previous, ok, err := l.store.GetBundle(ctx, bundle); err != nil {
		return nil, err
	} else if ok {
		buildNumber = previous.BuildNumber + 1
	}

	record := asset.Bundle{
		Name:        bundle,
		Version:     manifest.Version,
		BuildNumber: buildNumber,
		Hash:        asset.BundleDigest(hashes),
		Partial:     len(failed) > 0,
	}

	l.setState(bundle, StateCommitting)
	if err := l.store.CommitBundle(ctx, record, loaded); err != nil {
		return nil, err
	}

	l.logger.Info("bundle loaded",
		"bundle", bundle,
		"version", record.Version,
		"build", record.BuildNumber,
		"assets", len(loaded),
		"failed", len(failed),
	)
	return &Result{Bundle: record, Loaded: len(loaded), Failed: failed}, nil
}

// fetchAll runs the worker pool over the manifest's descriptors.
// In strict mode the first failure cancels outstanding work and is
// returned as the error; in partial mode failures accumulate. The
// returned assets are sorted by key for deterministic commit order.
func (l *Loader) fetchAll(ctx context.Context, manifest asset.Manifest) ([]asset.Asset, []AssetFailure, error) {
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan asset.Descriptor)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var loaded []asset.Asset
	var failed []AssetFailure

	for i := 0; i < l.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range jobs {
				if workerCtx.Err() != nil {
					continue
				}
				a, err := l.FetchDecode(workerCtx, manifest.Bundle, d)
				mu.Lock()
				if err != nil {
					failed = append(failed, AssetFailure{Key: d.Key(manifest.Bundle), Err: err})
					if !l.allowPartial {
						cancel()
					}
				} else {
					loaded = append(loaded, a)
				}
				mu.Unlock()
			}
		}()
	}

	for _, d := range manifest.Descriptors {
		select {
		case jobs <- d:
		case <-workerCtx.Done():
		}
		if workerCtx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if len(failed) > 0 && !l.allowPartial {
		return nil, nil, failed[0].Err
	}

	sort.Slice(loaded, func(i, j int) bool {
		return loaded[i].Key.String() < loaded[j].Key.String()
	})
	return loaded, failed, nil
}

// FetchDecode fetches one asset's raw bytes, runs them through the
// decode pipeline, and verifies the decoded content against the
// descriptor hash. Retries up to the attempt limit; a final integrity
// mismatch surfaces as *asset.IntegrityError and publishes an
// integrity failure event. The bundle patcher shares this method for
// per-operation fetches.
func (l *Loader) FetchDecode(ctx context.Context, bundle string, d asset.Descriptor) (asset.Asset, error) {
	key := d.Key(bundle)

	var lastErr error
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return asset.Asset{}, err
		}

		a, err := l.fetchDecodeOnce(ctx, bundle, key, d)
		if err == nil {
			return a, nil
		}
		lastErr = err
		l.logger.Warn("asset fetch attempt failed",
			"key", key.String(),
			"attempt", attempt,
			"max_attempts", l.maxAttempts,
			"error", err,
		)
	}
	return asset.Asset{}, lastErr
}

func (l *Loader) fetchDecodeOnce(ctx context.Context, bundle string, key asset.Key, d asset.Descriptor) (asset.Asset, error) {
	sourcePath := d.SourcePath
	if sourcePath == "" {
		sourcePath = d.Name
	}

	raw, err := l.fetcher.FetchAsset(ctx, bundle, sourcePath)
	if err != nil {
		return asset.Asset{}, err
	}

	content, err := l.registry.Decode(raw, d)
	if err != nil {
		return asset.Asset{}, err
	}

	actual := asset.HashContent(content)
	if !bytes.Equal(actual[:], d.Hash[:]) {
		l.publisher.Publish(event.IntegrityFailure{Key: key, Expected: d.Hash, Actual: actual})
		return asset.Asset{}, &asset.IntegrityError{Key: key, Expected: d.Hash, Actual: actual}
	}

	return asset.Asset{
		Key:         key,
		Content:     content,
		Size:        int64(len(content)),
		Hash:        actual,
		Version:     d.Version,
		ModTime:     d.ModTime,
		ContentType: d.ContentType,
	}, nil
}
