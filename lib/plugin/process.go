// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package plugin

import (
	"bytes"

	"github.com/lanternworks/assetvault/lib/asset"
)

// utf8BOM is the UTF-8 byte order mark some authoring tools prepend to
// script files. Lua rejects it, so the normalizer strips it.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ScriptNormalizer normalizes script assets before execution: strips a
// leading UTF-8 BOM and converts CRLF line endings to LF. Content
// hashes are computed over the stored (pre-processing) bytes, so
// normalization does not affect integrity verification.
type ScriptNormalizer struct{}

// Name identifies the processor in logs.
func (ScriptNormalizer) Name() string { return "script-normalizer" }

// SupportedTypes returns the asset types this processor applies to.
func (ScriptNormalizer) SupportedTypes() []string {
	return []string{asset.TypeScript}
}

// Process returns the asset with normalized content. When the content
// needs no changes the asset is returned untouched, without copying.
func (ScriptNormalizer) Process(a asset.Asset) (asset.Asset, error) {
	content := a.Content

	changed := false
	if bytes.HasPrefix(content, utf8BOM) {
		content = content[len(utf8BOM):]
		changed = true
	}
	if bytes.Contains(content, []byte("\r\n")) {
		content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
		changed = true
	}

	if !changed {
		return a, nil
	}

	normalized := a
	normalized.Content = content
	normalized.Size = int64(len(content))
	return normalized, nil
}
