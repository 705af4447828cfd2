// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package plugin

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/lanternworks/assetvault/lib/asset"
)

// zstdEncoder and zstdDecoder are reused across calls to avoid
// repeated initialization overhead. zstd.Encoder and zstd.Decoder
// are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("plugin: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("plugin: zstd decoder initialization failed: " + err.Error())
	}
}

// Zstd is the built-in zstd decompressor. Bundles compress text-like
// content (scripts, JSON data) with zstd at the default level: better
// ratios than LZ4 on text at acceptable decode speed.
type Zstd struct{}

// Format returns the compression format name stored in descriptors.
func (Zstd) Format() string { return asset.CompressionZstd }

// Decompress expands zstd-compressed data. The result length must
// match uncompressedSize exactly.
func (Zstd) Decompress(compressed []byte, uncompressedSize int64) ([]byte, error) {
	destination := make([]byte, 0, uncompressedSize)
	result, err := zstdDecoder.DecodeAll(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if int64(len(result)) != uncompressedSize {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
	}
	return result, nil
}

// CompressZstd compresses data with zstd at the default level. Used
// by bundle authoring tooling and tests; the read path only ever
// decompresses.
func CompressZstd(data []byte) []byte {
	return zstdEncoder.EncodeAll(data, nil)
}

// LZ4 is the built-in LZ4 block decompressor. Bundles compress binary
// content (images, audio) with LZ4 when the authoring pipeline decides
// zstd's ratio does not justify its CPU cost.
type LZ4 struct{}

// Format returns the compression format name stored in descriptors.
func (LZ4) Format() string { return asset.CompressionLZ4 }

// Decompress expands an LZ4 block. The result length must match
// uncompressedSize exactly.
func (LZ4) Decompress(compressed []byte, uncompressedSize int64) ([]byte, error) {
	destination := make([]byte, uncompressedSize)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if int64(read) != uncompressedSize {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
	}
	return destination, nil
}

// CompressLZ4 compresses data as a single LZ4 block. Returns an error
// when the data is incompressible (LZ4 block mode cannot store data
// that does not shrink); callers should store such content
// uncompressed.
func CompressLZ4(data []byte) ([]byte, error) {
	// CompressBlockBound returns the maximum compressed size.
	bound := lz4.CompressBlockBound(len(data))
	destination := make([]byte, bound)

	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}

	// CompressBlock returns 0 when it determines the data is
	// incompressible.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}

	return destination[:written], nil
}

// errIncompressible is returned by CompressLZ4 when the compressed
// output is not smaller than the input. The caller should store the
// data uncompressed.
var errIncompressible = fmt.Errorf("data is incompressible")

// IsIncompressible reports whether the error indicates that data could
// not be compressed smaller than its original size.
func IsIncompressible(err error) bool {
	return err == errIncompressible
}
