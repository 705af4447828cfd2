// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import "fmt"

// NotFoundError is returned by the read-side facade when an asset that
// "must exist" cannot be resolved through any locale fallback path.
// Store-level misses are not errors; they become NotFoundError only at
// the manager layer.
type NotFoundError struct {
	Type   string
	Name   string
	Bundle string // empty for cross-bundle lookups
}

func (e *NotFoundError) Error() string {
	if e.Bundle == "" {
		return fmt.Sprintf("asset %s/%s not found in any bundle", e.Type, e.Name)
	}
	return fmt.Sprintf("asset %s/%s not found in bundle %q", e.Type, e.Name, e.Bundle)
}

// IntegrityError reports a content hash mismatch: either a fetched
// asset that decoded to the wrong bytes, or a stored asset whose
// content no longer matches its recorded hash.
type IntegrityError struct {
	Key      Key
	Expected Hash
	Actual   Hash
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity failure for %s: expected %s, got %s",
		e.Key, e.Expected, e.Actual)
}

// LoadError reports a bundle load that failed after per-asset retries
// were exhausted: a manifest fetch failure, or a fetch/decode failure
// outside partial-load mode.
type LoadError struct {
	Bundle string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading bundle %q: %v", e.Bundle, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PatchError reports a patch apply that halted at operation OpIndex.
// Operations before OpIndex remain committed; the bundle version is
// not bumped. A retry re-diffs against the stored index, so the
// committed prefix becomes a set of no-ops.
type PatchError struct {
	Bundle  string
	OpIndex int
	Err     error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("patching bundle %q: operation %d: %v", e.Bundle, e.OpIndex, e.Err)
}

func (e *PatchError) Unwrap() error { return e.Err }

// StorageError reports an underlying persistence failure. Fatal to the
// current operation, not to the process.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("asset storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
