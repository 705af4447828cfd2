// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package assetmanager

import (
	"context"
	"fmt"

	"github.com/Shopify/go-lua"

	"github.com/lanternworks/assetvault/lib/asset"
)

// ExecuteScript resolves a script asset, evaluates it in a fresh Lua
// state, and returns the script's return value converted to a Go value
// (string, float64, bool, or nil). Results are cached by composite key
// and content hash, so a patched script re-executes on its next call
// while the old version's entry is dropped.
func (m *Manager) ExecuteScript(ctx context.Context, name string, opts Options) (any, error) {
	a, err := m.GetBlob(ctx, asset.TypeScript, name, opts)
	if err != nil {
		return nil, err
	}

	ek := executionKey{key: a.Key, hash: a.Hash}
	m.mu.Lock()
	if cached, ok := m.executions[ek]; ok {
		m.mu.Unlock()
		return cached, nil
	}
	m.mu.Unlock()

	value, err := evalScript(a)
	if err != nil {
		return nil, fmt.Errorf("executing script %s: %w", a.Key, err)
	}

	m.mu.Lock()
	// Content changed since a previous execution: entries for the
	// same key under older hashes are stale.
	for existing := range m.executions {
		if existing.key == ek.key && existing.hash != ek.hash {
			delete(m.executions, existing)
		}
	}
	m.executions[ek] = value
	m.mu.Unlock()

	m.logger.Debug("script executed", "key", a.Key.String(), "hash", a.Hash.String())
	return value, nil
}

// evalScript runs the script in an isolated interpreter and converts
// its first return value.
func evalScript(a asset.Asset) (any, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	if err := lua.LoadBuffer(state, string(a.Content), "@"+a.Key.String(), ""); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}

	defer state.Pop(1)
	switch state.TypeOf(-1) {
	case lua.TypeString:
		value, _ := state.ToString(-1)
		return value, nil
	case lua.TypeNumber:
		value, _ := state.ToNumber(-1)
		return value, nil
	case lua.TypeBoolean:
		return state.ToBoolean(-1), nil
	default:
		return nil, nil
	}
}
