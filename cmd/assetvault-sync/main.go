// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

// assetvault-sync loads or patches bundles from a local distribution
// directory into the asset cache.
//
// A full load fetches every asset of a bundle; sync diffs the bundle's
// manifest against the cache and transfers only what changed. After a
// successful cycle the cache is evicted down to the configured size
// budget.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/lanternworks/assetvault/lib/assetstore"
	"github.com/lanternworks/assetvault/lib/bundleloader"
	"github.com/lanternworks/assetvault/lib/config"
	"github.com/lanternworks/assetvault/lib/keylock"
	"github.com/lanternworks/assetvault/lib/patch"
	"github.com/lanternworks/assetvault/lib/plugin"
	"github.com/lanternworks/assetvault/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var sourceRoot string
	var fullLoad bool
	var verbose bool

	flagSet := pflag.NewFlagSet("assetvault-sync", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to assetvault.yaml (default: $ASSETVAULT_CONFIG)")
	flagSet.StringVar(&sourceRoot, "source", "", "bundle distribution directory (overrides config)")
	flagSet.BoolVar(&fullLoad, "full", false, "force a full load instead of an incremental sync")
	flagSet.BoolVar(&verbose, "verbose", false, "enable debug logging")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("assetvault-sync %s\n", version.Info())
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	bundles := flagSet.Args()
	if len(bundles) == 0 {
		return fmt.Errorf("usage: assetvault-sync [flags] BUNDLE...")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if sourceRoot != "" {
		cfg.Loader.SourceRoot = sourceRoot
	}
	if cfg.Loader.SourceRoot == "" {
		return fmt.Errorf("no bundle source: set loader.source_root or pass --source")
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := assetstore.Open(assetstore.Config{
		Path:     cfg.Cache.Path,
		PoolSize: cfg.Cache.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	locks := keylock.New()
	loader, err := bundleloader.New(bundleloader.Config{
		Store:        store,
		Registry:     plugin.NewDefaultRegistry(),
		Fetcher:      bundleloader.DirFetcher{Root: cfg.Loader.SourceRoot},
		Workers:      cfg.Loader.Workers,
		MaxAttempts:  cfg.Loader.MaxAttempts,
		AllowPartial: cfg.Loader.AllowPartial,
		Logger:       logger,
		Locks:        locks,
	})
	if err != nil {
		return err
	}
	patcher, err := patch.New(patch.Config{
		Store:  store,
		Loader: loader,
		Logger: logger,
		Locks:  locks,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	fetcher := bundleloader.DirFetcher{Root: cfg.Loader.SourceRoot}

	for _, bundle := range bundles {
		if fullLoad {
			result, err := loader.Load(ctx, bundle)
			if err != nil {
				return err
			}
			fmt.Printf("%s: loaded %d assets (build %d)\n",
				bundle, result.Loaded, result.Bundle.BuildNumber)
			continue
		}

		manifest, err := fetcher.FetchManifest(ctx, bundle)
		if err != nil {
			return err
		}
		result, err := patcher.Sync(ctx, manifest)
		if err != nil {
			return err
		}
		if !result.Changed() {
			fmt.Printf("%s: up to date (version %s)\n", bundle, result.Bundle.Version)
			continue
		}
		fmt.Printf("%s: +%d ~%d -%d (version %s, build %d)\n",
			bundle, result.Added, result.Modified, result.Removed,
			result.Bundle.Version, result.Bundle.BuildNumber)
	}

	maxSize, err := cfg.MaxSizeBytes()
	if err != nil {
		return err
	}
	if maxSize > 0 {
		count, reclaimed, err := store.EvictLRU(ctx, maxSize)
		if err != nil {
			return err
		}
		if count > 0 {
			fmt.Printf("evicted %d assets (%s reclaimed)\n",
				count, humanize.IBytes(uint64(reclaimed)))
		}
	}

	total, err := store.TotalSize(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("cache size: %s\n", humanize.IBytes(uint64(total)))
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
