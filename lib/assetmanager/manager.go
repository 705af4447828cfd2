// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package assetmanager is the read-side facade over the asset store:
// locale-aware blob resolution, post-load processing, addressable
// handles over decoded content, and a cached Lua evaluator for script
// assets.
package assetmanager

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/lanternworks/assetvault/lib/asset"
	"github.com/lanternworks/assetvault/lib/assetstore"
	"github.com/lanternworks/assetvault/lib/plugin"
)

// Options scopes a lookup. The zero value searches every bundle with
// the default locale.
type Options struct {
	// Bundle restricts resolution to one bundle. Empty searches all
	// bundles; the first match in ascending (bundle, locale, key)
	// order wins, so results are deterministic across runs.
	Bundle string

	// Locale is the preferred locale. Resolution falls back to the
	// default locale and then to the lexicographically lowest locale
	// that has the asset.
	Locale string
}

// CacheStats reports the manager's cache occupancy.
type CacheStats struct {
	// Handles is the number of live (unreleased) content handles.
	Handles int

	// Executions is the number of cached script results.
	Executions int
}

// Config configures a Manager.
type Config struct {
	// Store resolves and serves assets. Required.
	Store *assetstore.Store

	// Registry supplies post-load processors. Defaults to an empty
	// registry.
	Registry *plugin.Registry

	// Logger receives resolution diagnostics. Defaults to a discard
	// logger.
	Logger *slog.Logger
}

// Manager serves decoded assets to the rest of the engine. Safe for
// concurrent use.
type Manager struct {
	store    *assetstore.Store
	registry *plugin.Registry
	logger   *slog.Logger

	mu         sync.Mutex
	handles    map[asset.Key]map[*Handle]struct{}
	executions map[executionKey]any
}

type executionKey struct {
	key  asset.Key
	hash asset.Hash
}

// New creates a Manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("assetmanager: Store is required")
	}
	if cfg.Registry == nil {
		cfg.Registry = plugin.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		store:      cfg.Store,
		registry:   cfg.Registry,
		logger:     cfg.Logger,
		handles:    make(map[asset.Key]map[*Handle]struct{}),
		executions: make(map[executionKey]any),
	}, nil
}

// RegisterProcessor appends a post-load processor. Processors run in
// registration order on every blob whose type they support.
func (m *Manager) RegisterProcessor(p plugin.Processor) {
	m.registry.RegisterProcessor(p)
}

// GetBlob resolves an asset by type and name, applies matching
// processors, and returns it. Returns *asset.NotFoundError when no
// locale fallback path resolves.
func (m *Manager) GetBlob(ctx context.Context, assetType, name string, opts Options) (asset.Asset, error) {
	a, ok, err := m.resolve(ctx, assetType, name, opts)
	if err != nil {
		return asset.Asset{}, err
	}
	if !ok {
		return asset.Asset{}, &asset.NotFoundError{Type: assetType, Name: name, Bundle: opts.Bundle}
	}

	for _, p := range m.registry.ProcessorsFor(a.Key.Type) {
		a, err = p.Process(a)
		if err != nil {
			return asset.Asset{}, fmt.Errorf("processor %q on %s: %w", p.Name(), a.Key, err)
		}
	}
	return a, nil
}

func (m *Manager) resolve(ctx context.Context, assetType, name string, opts Options) (asset.Asset, bool, error) {
	if opts.Bundle != "" {
		return m.store.ResolveWithLocaleFallback(ctx, opts.Bundle, assetType, name, opts.Locale)
	}

	// Cross-bundle lookup: candidates come back in ascending key
	// order (bundle, then locale). The first bundle holding the asset
	// wins; within it the usual locale preference applies.
	candidates, err := m.store.FindByCriteria(ctx, assetstore.Criteria{Type: assetType, Name: name})
	if err != nil {
		return asset.Asset{}, false, err
	}
	if len(candidates) == 0 {
		return asset.Asset{}, false, nil
	}
	return m.store.ResolveWithLocaleFallback(ctx, candidates[0].Key.Bundle, assetType, name, opts.Locale)
}

// ClearAssetCache evicts everything the manager derived from a key:
// cached script results across all content versions, and any live
// handles over the key's content. Releasing an already released handle
// stays a no-op, so acquirers racing with a clear are safe.
func (m *Manager) ClearAssetCache(key asset.Key) {
	m.mu.Lock()
	for ek := range m.executions {
		if ek.key == key {
			delete(m.executions, ek)
		}
	}
	held := make([]*Handle, 0, len(m.handles[key]))
	for h := range m.handles[key] {
		held = append(held, h)
	}
	m.mu.Unlock()

	for _, h := range held {
		h.Release()
	}
}

// Cleanup releases every live handle and drops all cached script
// results. Idempotent; the manager remains usable afterwards.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	var handles []*Handle
	for _, set := range m.handles {
		for h := range set {
			handles = append(handles, h)
		}
	}
	m.executions = make(map[executionKey]any)
	m.mu.Unlock()

	for _, h := range handles {
		h.Release()
	}
}

// CacheStats returns current cache occupancy.
func (m *Manager) CacheStats() CacheStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, set := range m.handles {
		total += len(set)
	}
	return CacheStats{
		Handles:    total,
		Executions: len(m.executions),
	}
}
