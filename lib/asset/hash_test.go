// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import "testing"

func TestHashContentDeterministic(t *testing.T) {
	data := []byte("the same bytes must always produce the same digest")
	if HashContent(data) != HashContent(data) {
		t.Error("HashContent is not deterministic")
	}
}

func TestHashContentDiffers(t *testing.T) {
	a := HashContent([]byte("content a"))
	b := HashContent([]byte("content b"))
	if a == b {
		t.Error("different content produced the same hash")
	}
}

func TestHashHexRoundtrip(t *testing.T) {
	original := HashContent([]byte("roundtrip"))
	parsed, err := ParseHash(original.String())
	if err != nil {
		t.Fatalf("ParseHash failed: %v", err)
	}
	if parsed != original {
		t.Errorf("hex roundtrip: got %s, want %s", parsed, original)
	}
}

func TestParseHashRejectsBadInput(t *testing.T) {
	for _, input := range []string{"", "zz", "abcd", "not hex at all"} {
		if _, err := ParseHash(input); err == nil {
			t.Errorf("ParseHash(%q) should fail", input)
		}
	}
}

func TestBundleDigestOrderIndependent(t *testing.T) {
	a := HashContent([]byte("first"))
	b := HashContent([]byte("second"))
	c := HashContent([]byte("third"))

	forward := BundleDigest([]Hash{a, b, c})
	reversed := BundleDigest([]Hash{c, b, a})
	if forward != reversed {
		t.Error("BundleDigest depends on input order")
	}
}

func TestBundleDigestSensitiveToMembership(t *testing.T) {
	a := HashContent([]byte("first"))
	b := HashContent([]byte("second"))

	if BundleDigest([]Hash{a}) == BundleDigest([]Hash{a, b}) {
		t.Error("adding an asset did not change the bundle digest")
	}
}

func TestBundleDigestDomainSeparation(t *testing.T) {
	// A bundle digest over a single content hash must not equal a
	// content hash of those 32 bytes; the domains are keyed apart.
	content := HashContent([]byte("payload"))
	aggregate := BundleDigest([]Hash{content})
	direct := HashContent(content[:])
	if aggregate == direct {
		t.Error("bundle digest collided with content-domain hash")
	}
}
