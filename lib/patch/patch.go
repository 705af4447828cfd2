// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package patch brings a stored bundle up to a new manifest version
// incrementally: it diffs the stored index against the manifest, plans
// an ordered operation list (removals, then modifications, then
// additions), and applies each operation as its own store commit. The
// bundle's version, build number, and aggregate hash are bumped only
// after every operation succeeds, so an interrupted apply leaves the
// bundle at its old version with a mixed asset set that the next apply
// re-diffs away.
package patch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/lanternworks/assetvault/lib/asset"
	"github.com/lanternworks/assetvault/lib/assetstore"
	"github.com/lanternworks/assetvault/lib/bundleloader"
	"github.com/lanternworks/assetvault/lib/keylock"
)

// Kind classifies a patch operation.
type Kind int

const (
	// OpRemove deletes an asset that the new manifest no longer lists.
	OpRemove Kind = iota

	// OpModify replaces an asset whose content hash changed.
	OpModify

	// OpAdd stores an asset the old index did not have.
	OpAdd
)

// String returns the operation kind for logs.
func (k Kind) String() string {
	switch k {
	case OpRemove:
		return "remove"
	case OpModify:
		return "modify"
	case OpAdd:
		return "add"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Operation is one step of a patch plan. Descriptor is zero for
// removals.
type Operation struct {
	Kind       Kind
	Key        asset.Key
	Descriptor asset.Descriptor
}

// Modification pairs a changed key with its old and new content
// hashes.
type Modification struct {
	Key        asset.Key
	OldHash    asset.Hash
	NewHash    asset.Hash
	Descriptor asset.Descriptor
}

// Diff is the difference between a stored bundle index and a new
// manifest. It is derived state, recomputed at the start of every
// patch cycle, never persisted.
type Diff struct {
	Bundle   string
	Added    []asset.Descriptor
	Removed  []asset.Key
	Modified []Modification
}

// Empty reports whether the diff contains no changes.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// ComputeDiff compares the stored index of a bundle against a new
// manifest by key and content hash.
func ComputeDiff(old asset.Index, manifest asset.Manifest) Diff {
	diff := Diff{Bundle: manifest.Bundle}

	newIndex := make(map[asset.Key]asset.Descriptor, len(manifest.Descriptors))
	for _, d := range manifest.Descriptors {
		newIndex[d.Key(manifest.Bundle)] = d
	}

	for key, descriptor := range newIndex {
		oldHash, exists := old[key]
		switch {
		case !exists:
			diff.Added = append(diff.Added, descriptor)
		case oldHash != descriptor.Hash:
			diff.Modified = append(diff.Modified, Modification{
				Key:        key,
				OldHash:    oldHash,
				NewHash:    descriptor.Hash,
				Descriptor: descriptor,
			})
		}
	}

	for key := range old {
		if _, kept := newIndex[key]; !kept {
			diff.Removed = append(diff.Removed, key)
		}
	}

	return diff
}

// Plan orders a diff into an operation list: removals first (frees
// budget before new content arrives), then modifications, then
// additions, each group in ascending key order for determinism.
func Plan(diff Diff) []Operation {
	ops := make([]Operation, 0, len(diff.Removed)+len(diff.Modified)+len(diff.Added))

	sort.Slice(diff.Removed, func(i, j int) bool {
		return diff.Removed[i].String() < diff.Removed[j].String()
	})
	for _, key := range diff.Removed {
		ops = append(ops, Operation{Kind: OpRemove, Key: key})
	}

	sort.Slice(diff.Modified, func(i, j int) bool {
		return diff.Modified[i].Key.String() < diff.Modified[j].Key.String()
	})
	for _, m := range diff.Modified {
		ops = append(ops, Operation{Kind: OpModify, Key: m.Key, Descriptor: m.Descriptor})
	}

	sort.Slice(diff.Added, func(i, j int) bool {
		return diff.Added[i].Key(diff.Bundle).String() < diff.Added[j].Key(diff.Bundle).String()
	})
	for _, d := range diff.Added {
		ops = append(ops, Operation{Kind: OpAdd, Key: d.Key(diff.Bundle), Descriptor: d})
	}

	return ops
}

// Config configures a Patcher.
type Config struct {
	// Store holds the bundle being patched. Required.
	Store *assetstore.Store

	// Loader supplies the per-asset fetch and decode pipeline.
	// Required.
	Loader *bundleloader.Loader

	// Logger receives patch progress. Defaults to a discard logger.
	Logger *slog.Logger

	// Locks serializes writers per bundle name. Pass the loader's
	// lock set so a load and a patch of the same bundle cannot
	// interleave. Defaults to a private lock set.
	Locks *keylock.Keyed
}

// Patcher applies incremental bundle updates.
type Patcher struct {
	store  *assetstore.Store
	loader *bundleloader.Loader
	logger *slog.Logger
	locks  *keylock.Keyed
}

// Result reports a completed patch cycle.
type Result struct {
	// Bundle is the bundle record after the cycle. Unchanged when the
	// diff was empty.
	Bundle asset.Bundle

	Removed  int
	Modified int
	Added    int
}

// Changed reports whether the cycle applied any operations.
func (r *Result) Changed() bool {
	return r.Removed+r.Modified+r.Added > 0
}

// New creates a Patcher.
func New(cfg Config) (*Patcher, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("patch: Store is required")
	}
	if cfg.Loader == nil {
		return nil, fmt.Errorf("patch: Loader is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Locks == nil {
		cfg.Locks = keylock.New()
	}
	return &Patcher{
		store:  cfg.Store,
		loader: cfg.Loader,
		logger: cfg.Logger,
		locks:  cfg.Locks,
	}, nil
}

// CurrentIndex reconstructs the bundle's key → hash index from the
// store. A retry after a halted apply diffs against this, so already
// committed operations drop out of the new plan.
func (p *Patcher) CurrentIndex(ctx context.Context, bundle string) (asset.Index, error) {
	return p.store.BundleIndex(ctx, bundle)
}

// Sync diffs the stored bundle against the manifest and applies the
// resulting plan. A bundle that already matches the manifest is left
// untouched: no operations, no version bump. Safe to call repeatedly;
// each call re-diffs, so a cycle interrupted by *asset.PatchError is
// resumed by calling Sync again.
func (p *Patcher) Sync(ctx context.Context, manifest asset.Manifest) (*Result, error) {
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	unlock := p.locks.Lock(manifest.Bundle)
	defer unlock()

	old, err := p.store.BundleIndex(ctx, manifest.Bundle)
	if err != nil {
		return nil, err
	}
	diff := ComputeDiff(old, manifest)

	current, exists, err := p.store.GetBundle(ctx, manifest.Bundle)
	if err != nil {
		return nil, err
	}
	if diff.Empty() && exists && current.Version == manifest.Version && !current.Partial {
		p.logger.Debug("bundle already current", "bundle", manifest.Bundle, "version", manifest.Version)
		return &Result{Bundle: current}, nil
	}

	return p.apply(ctx, manifest, current, exists, Plan(diff))
}

// apply executes the operation list, then bumps the bundle record.
// The caller holds the bundle lock.
func (p *Patcher) apply(ctx context.Context, manifest asset.Manifest, previous asset.Bundle, exists bool, ops []Operation) (*Result, error) {
	result := &Result{}

	for i, op := range ops {
		if err := p.applyOne(ctx, manifest.Bundle, op, result); err != nil {
			p.logger.Error("patch halted",
				"bundle", manifest.Bundle,
				"operation", i,
				"kind", op.Kind.String(),
				"key", op.Key.String(),
				"error", err,
			)
			return nil, &asset.PatchError{Bundle: manifest.Bundle, OpIndex: i, Err: err}
		}
	}

	record := asset.Bundle{
		Name:        manifest.Bundle,
		Version:     manifest.Version,
		BuildNumber: 1,
		Hash:        manifest.AggregateHash(),
	}
	if exists {
		record.BuildNumber = previous.BuildNumber + 1
		record.CreatedAt = previous.CreatedAt
	}
	if err := p.store.PutBundle(ctx, record); err != nil {
		return nil, err
	}
	result.Bundle = record

	p.logger.Info("bundle patched",
		"bundle", record.Name,
		"version", record.Version,
		"build", record.BuildNumber,
		"removed", result.Removed,
		"modified", result.Modified,
		"added", result.Added,
	)
	return result, nil
}

// applyOne commits a single operation. Removals of absent keys are
// no-ops so a resumed cycle can replay them.
func (p *Patcher) applyOne(ctx context.Context, bundle string, op Operation, result *Result) error {
	switch op.Kind {
	case OpRemove:
		if _, err := p.store.Delete(ctx, op.Key); err != nil {
			return err
		}
		result.Removed++
		return nil

	case OpModify, OpAdd:
		a, err := p.loader.FetchDecode(ctx, bundle, op.Descriptor)
		if err != nil {
			return err
		}
		if err := p.store.Put(ctx, a); err != nil {
			return err
		}
		if op.Kind == OpModify {
			result.Modified++
		} else {
			result.Added++
		}
		return nil

	default:
		return fmt.Errorf("unknown operation kind %d", int(op.Kind))
	}
}
