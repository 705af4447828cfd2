// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"fmt"
	"strings"
)

// DefaultLocale is the locale assigned to assets that carry no
// locale-specific variant. Locale fallback resolution ends here before
// trying arbitrary locales.
const DefaultLocale = "default"

// Key is the composite identity of an asset: bundle, locale, type, and
// name. The string form bundle:locale:type:name is the primary key in
// the persistent store and the canonical form in logs and events.
//
// Components must not contain the ':' separator. Names may contain
// path separators ("scripts/intro.lua"); only ':' is reserved.
type Key struct {
	Bundle string
	Locale string
	Type   string
	Name   string
}

// NewKey builds a Key, substituting DefaultLocale when locale is empty.
func NewKey(bundle, locale, assetType, name string) Key {
	if locale == "" {
		locale = DefaultLocale
	}
	return Key{Bundle: bundle, Locale: locale, Type: assetType, Name: name}
}

// String returns the canonical composite form bundle:locale:type:name.
func (k Key) String() string {
	return k.Bundle + ":" + k.Locale + ":" + k.Type + ":" + k.Name
}

// IsZero reports whether the key has no components set.
func (k Key) IsZero() bool {
	return k == Key{}
}

// Validate checks that all components are present and separator-free.
func (k Key) Validate() error {
	for _, part := range []struct {
		field string
		value string
	}{
		{"bundle", k.Bundle},
		{"locale", k.Locale},
		{"type", k.Type},
		{"name", k.Name},
	} {
		if part.value == "" {
			return fmt.Errorf("asset key: %s is empty", part.field)
		}
		if strings.Contains(part.value, ":") {
			return fmt.Errorf("asset key: %s %q contains ':'", part.field, part.value)
		}
	}
	return nil
}

// ParseKey parses the canonical composite form produced by
// [Key.String]. The name component may itself contain ':' only if it
// was never valid to begin with, so exactly four components are
// required.
func ParseKey(s string) (Key, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) != 4 {
		return Key{}, fmt.Errorf("asset key %q: want bundle:locale:type:name", s)
	}
	key := Key{Bundle: parts[0], Locale: parts[1], Type: parts[2], Name: parts[3]}
	if err := key.Validate(); err != nil {
		return Key{}, err
	}
	return key, nil
}

// WithLocale returns a copy of the key with the locale replaced.
func (k Key) WithLocale(locale string) Key {
	if locale == "" {
		locale = DefaultLocale
	}
	k.Locale = locale
	return k
}
