// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

// assetvault-verify checks the integrity of cached bundles and prints
// cache statistics. Every stored asset's content is re-hashed and
// compared against its recorded hash; mismatches indicate on-disk
// corruption.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/lanternworks/assetvault/lib/assetstore"
	"github.com/lanternworks/assetvault/lib/config"
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
	var cachePath string
	var statsOnly bool

	flagSet := pflag.NewFlagSet("assetvault-verify", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to assetvault.yaml (default: $ASSETVAULT_CONFIG)")
	flagSet.StringVar(&cachePath, "cache", "", "cache database path (overrides config)")
	flagSet.BoolVar(&statsOnly, "stats", false, "print statistics without verifying content")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("assetvault-verify %s\n", version.Info())
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	bundles := flagSet.Args()

	if cachePath == "" {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		cachePath = cfg.Cache.Path
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	store, err := assetstore.Open(assetstore.Config{Path: cachePath, Logger: logger})
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()

	if !statsOnly {
		if len(bundles) == 0 {
			all, err := store.ListBundles(ctx)
			if err != nil {
				return err
			}
			for _, b := range all {
				bundles = append(bundles, b.Name)
			}
		}

		corrupt := 0
		for _, bundle := range bundles {
			report, err := store.VerifyBundleIntegrity(ctx, bundle)
			if err != nil {
				return err
			}
			corrupt += len(report.Invalid)
			fmt.Printf("%s: %d assets, %d valid, %d corrupt\n",
				bundle, report.Total, report.Valid, len(report.Invalid))
			for _, key := range report.Invalid {
				fmt.Printf("  corrupt: %s\n", key)
			}
		}
		if corrupt > 0 {
			return fmt.Errorf("%d corrupt assets found", corrupt)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("bundles: %d\n", stats.BundleCount)
	fmt.Printf("assets: %d\n", stats.AssetCount)
	fmt.Printf("total size: %s\n", humanize.IBytes(uint64(stats.TotalBytes)))
	if stats.AssetCount > 0 {
		fmt.Printf("oldest access: %s\n", stats.OldestAccess.Format("2006-01-02 15:04:05"))
		fmt.Printf("newest access: %s\n", stats.NewestAccess.Format("2006-01-02 15:04:05"))
	}
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
