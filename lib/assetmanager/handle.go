// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package assetmanager

import (
	"context"
	"sync"

	"github.com/lanternworks/assetvault/lib/asset"
)

// Handle is an addressable reference to one resolved, processed asset.
// Handles pin decoded content in memory until released, independent of
// store eviction. Each Acquire returns a distinct handle; release it
// when done, or let [Manager.ClearAssetCache] release every handle for
// a key at once. Extra releases are no-ops.
type Handle struct {
	manager *Manager
	a       asset.Asset

	mu       sync.Mutex
	released bool
}

// Acquire resolves an asset like GetBlob and returns a live handle
// over its content. The handle counts toward CacheStats until
// released.
func (m *Manager) Acquire(ctx context.Context, assetType, name string, opts Options) (*Handle, error) {
	a, err := m.GetBlob(ctx, assetType, name, opts)
	if err != nil {
		return nil, err
	}

	h := &Handle{manager: m, a: a}
	m.mu.Lock()
	set, ok := m.handles[a.Key]
	if !ok {
		set = make(map[*Handle]struct{})
		m.handles[a.Key] = set
	}
	set[h] = struct{}{}
	m.mu.Unlock()
	return h, nil
}

// Key returns the resolved composite key, which may differ from the
// requested locale when fallback applied.
func (h *Handle) Key() asset.Key { return h.a.Key }

// Hash returns the content hash of the pinned bytes.
func (h *Handle) Hash() asset.Hash { return h.a.Hash }

// Bytes returns the pinned content. The slice must not be mutated and
// must not be used after Release.
func (h *Handle) Bytes() []byte { return h.a.Content }

// Asset returns the full pinned asset record.
func (h *Handle) Asset() asset.Asset { return h.a }

// Release unpins the handle. Safe to call more than once.
func (h *Handle) Release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	h.mu.Unlock()

	h.manager.mu.Lock()
	if set, ok := h.manager.handles[h.a.Key]; ok {
		delete(set, h)
		if len(set) == 0 {
			delete(h.manager.handles, h.a.Key)
		}
	}
	h.manager.mu.Unlock()
}
