// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package bundleloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lanternworks/assetvault/lib/asset"
	"github.com/lanternworks/assetvault/lib/codec"
)

// ManifestFileName is the manifest file inside a bundle directory.
const ManifestFileName = "manifest.cbor"

// Fetcher retrieves bundle manifests and raw (still encoded) asset
// bytes from a source: a content server, a CDN, or a local directory.
// Implementations must be safe for concurrent use; the loader calls
// FetchAsset from multiple workers.
type Fetcher interface {
	// FetchManifest retrieves and decodes the manifest for a bundle.
	FetchManifest(ctx context.Context, bundle string) (asset.Manifest, error)

	// FetchAsset retrieves the raw bytes for one asset, identified by
	// the source path from its descriptor. The bytes are as stored at
	// the source: possibly encrypted and compressed.
	FetchAsset(ctx context.Context, bundle string, sourcePath string) ([]byte, error)
}

// DirFetcher reads bundles from a local directory tree. Each bundle is
// a subdirectory of Root containing a manifest.cbor and the asset
// files at their descriptor source paths.
type DirFetcher struct {
	Root string
}

// FetchManifest reads and decodes <root>/<bundle>/manifest.cbor.
func (f DirFetcher) FetchManifest(ctx context.Context, bundle string) (asset.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(f.Root, bundle, ManifestFileName))
	if err != nil {
		return asset.Manifest{}, fmt.Errorf("reading manifest for bundle %q: %w", bundle, err)
	}

	var manifest asset.Manifest
	if err := codec.Unmarshal(data, &manifest); err != nil {
		return asset.Manifest{}, fmt.Errorf("decoding manifest for bundle %q: %w", bundle, err)
	}
	return manifest, nil
}

// FetchAsset reads <root>/<bundle>/<sourcePath>. The source path must
// be a local relative path; anything escaping the bundle directory is
// rejected.
func (f DirFetcher) FetchAsset(ctx context.Context, bundle string, sourcePath string) ([]byte, error) {
	if !filepath.IsLocal(sourcePath) {
		return nil, fmt.Errorf("source path %q escapes the bundle directory", sourcePath)
	}
	data, err := os.ReadFile(filepath.Join(f.Root, bundle, filepath.FromSlash(sourcePath)))
	if err != nil {
		return nil, fmt.Errorf("reading asset %q: %w", sourcePath, err)
	}
	return data, nil
}

// WriteManifest encodes a manifest and writes it into the bundle's
// directory under root, creating the directory if needed. Helper for
// bundle authoring tooling and tests.
func WriteManifest(root string, manifest asset.Manifest) error {
	if err := manifest.Validate(); err != nil {
		return err
	}
	data, err := codec.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest for bundle %q: %w", manifest.Bundle, err)
	}
	dir := filepath.Join(root, manifest.Bundle)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ManifestFileName), data, 0o644)
}
