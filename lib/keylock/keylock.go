// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package keylock provides a mutex per string key.
//
// The cache engine requires a single-writer-per-bundle discipline: at
// most one bundle load or patch apply may be active for a given bundle
// name. keylock enforces it without serializing writers of unrelated
// bundles. Lock entries are reference counted and removed when the
// last holder releases, so the map does not grow with the set of
// bundle names ever seen.
package keylock

import "sync"

// Keyed is a set of mutexes addressed by string key. The zero value is
// not usable; call New.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New returns an empty keyed lock set.
func New() *Keyed {
	return &Keyed{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key, blocking while another goroutine
// holds it. The returned function releases the lock and must be called
// exactly once, typically via defer.
func (k *Keyed) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
