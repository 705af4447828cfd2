// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package assetstore

import (
	"context"

	"github.com/lanternworks/assetvault/lib/asset"
	"github.com/lanternworks/assetvault/lib/event"
)

// VerifyIntegrity recomputes the digest of the stored content for key
// and compares it to the recorded hash. Returns false for a mismatch
// or a missing asset. Corruption is detected, never repaired here;
// the caller decides whether to re-fetch or delete.
//
// Verification reads via Peek so a sweep does not distort LRU order.
func (s *Store) VerifyIntegrity(ctx context.Context, key asset.Key) (bool, error) {
	a, ok, err := s.Peek(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	actual := asset.HashContent(a.Content)
	if actual != a.Hash {
		s.logger.Warn("integrity failure",
			"key", key.String(),
			"expected", a.Hash.String(),
			"actual", actual.String(),
		)
		s.publisher.Publish(event.IntegrityFailure{
			Key:      key,
			Expected: a.Hash,
			Actual:   actual,
		})
		return false, nil
	}
	return true, nil
}

// VerifyReport summarizes a bundle-wide integrity pass.
type VerifyReport struct {
	Total   int
	Valid   int
	Invalid []asset.Key
}

// VerifyBundleIntegrity applies VerifyIntegrity to every asset in the
// bundle.
func (s *Store) VerifyBundleIntegrity(ctx context.Context, bundle string) (VerifyReport, error) {
	index, err := s.BundleIndex(ctx, bundle)
	if err != nil {
		return VerifyReport{}, err
	}

	report := VerifyReport{Total: len(index)}
	for key := range index {
		ok, err := s.VerifyIntegrity(ctx, key)
		if err != nil {
			return VerifyReport{}, err
		}
		if ok {
			report.Valid++
		} else {
			report.Invalid = append(report.Invalid, key)
		}
	}
	return report, nil
}
