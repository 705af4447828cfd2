// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package event defines the engine's outbound notification boundary.
//
// The cache engine emits typed events as it mutates state: asset
// writes, bundle commits, integrity failures, and eviction passes.
// Delivery to a real pub/sub pipeline is the host application's
// concern; the engine only calls [Publisher.Publish] and never blocks
// on delivery semantics, so implementations must be non-blocking or
// buffer internally.
package event

import (
	"sync"
	"time"

	"github.com/lanternworks/assetvault/lib/asset"
)

// AssetStored is emitted once per asset committed to the store.
type AssetStored struct {
	Key  asset.Key
	Hash asset.Hash
	Size int64
}

// BundleUpdated is emitted when a bundle row is committed (initial
// load or completed patch cycle).
type BundleUpdated struct {
	Bundle      string
	Version     string
	BuildNumber int64
	Partial     bool
}

// IntegrityFailure is emitted when decoded bytes do not match their
// declared hash, either during a fetch pipeline or a store-side
// verification pass.
type IntegrityFailure struct {
	Key      asset.Key
	Expected asset.Hash
	Actual   asset.Hash
}

// EvictionPerformed is emitted after an LRU eviction pass deletes at
// least one asset.
type EvictionPerformed struct {
	Count          int
	BytesReclaimed int64
}

// Event is a marker for the payload types above.
type Event any

// Publisher receives engine events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(e Event)
}

// Discard is a Publisher that drops all events. The zero dependency
// default throughout the engine.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}

// Recorder is a Publisher that appends events to an in-memory list.
// Intended for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish appends the event.
func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a snapshot of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make([]Event, len(r.events))
	copy(snapshot, r.events)
	return snapshot
}

// WaitFor polls until predicate matches some published event or the
// timeout elapses. Returns the matching event and true, or nil and
// false on timeout.
func (r *Recorder) WaitFor(timeout time.Duration, predicate func(Event) bool) (Event, bool) {
	deadline := time.Now().Add(timeout)
	for {
		for _, e := range r.Events() {
			if predicate(e) {
				return e, true
			}
		}
		if time.Now().After(deadline) {
			return nil, false
		}
		time.Sleep(time.Millisecond)
	}
}
