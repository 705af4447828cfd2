// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package plugin

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/lanternworks/assetvault/lib/asset"
)

// SchemeXChaCha20Poly1305 is the default encryption scheme. Descriptors
// that set Encrypted without naming a scheme use this one.
const SchemeXChaCha20Poly1305 = "xchacha20poly1305"

// KeySize is the size in bytes of the bundle encryption key and of
// every derived per-asset key.
const KeySize = 32

// EncryptedBlobVersion is the version byte prepended to all encrypted
// blobs. Included as additional authenticated data (AAD) in the AEAD
// Seal/Open call, so tampering with the version byte causes
// authentication failure.
const EncryptedBlobVersion byte = 0x01

// EncryptedBlobOverhead is the total byte overhead per encrypted blob:
// 1 (version) + 24 (XChaCha20-Poly1305 nonce) + 16 (Poly1305 tag).
const EncryptedBlobOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// hkdfInfoPerAsset is the "info" parameter to HKDF-SHA256 for
// per-asset key derivation, providing domain separation. Changing it
// invalidates all ciphertext encrypted under this derivation path.
var hkdfInfoPerAsset = []byte("assetvault.asset.enc.v1")

// XChaCha20 decrypts assets encrypted with XChaCha20-Poly1305. Each
// asset is encrypted under a key derived from the bundle key and the
// asset's content hash, so leaking one per-asset key exposes only that
// asset.
type XChaCha20 struct {
	bundleKey []byte
}

// NewXChaCha20 creates a decryptor from a 32-byte bundle encryption
// key. The key is copied; the caller's slice may be reused.
func NewXChaCha20(bundleKey []byte) (*XChaCha20, error) {
	if len(bundleKey) != KeySize {
		return nil, fmt.Errorf("bundle encryption key must be %d bytes, got %d", KeySize, len(bundleKey))
	}
	key := make([]byte, KeySize)
	copy(key, bundleKey)
	return &XChaCha20{bundleKey: key}, nil
}

// Scheme returns the scheme name stored in descriptors.
func (x *XChaCha20) Scheme() string { return SchemeXChaCha20Poly1305 }

// Decrypt authenticates and decrypts an encrypted blob. The
// descriptor's content hash selects the per-asset key and binds the
// ciphertext as AAD, so a blob swapped between assets fails
// authentication.
func (x *XChaCha20) Decrypt(ciphertext []byte, d asset.Descriptor) ([]byte, error) {
	key, err := derivePerAssetKey(x.bundleKey, d.Hash)
	if err != nil {
		return nil, err
	}
	return DecryptBlob(ciphertext, key, d.Hash)
}

// Encrypt encrypts plaintext for the asset identified by the
// descriptor's content hash. Used by bundle authoring tooling and
// tests; the read path only ever decrypts.
func (x *XChaCha20) Encrypt(plaintext []byte, d asset.Descriptor) ([]byte, error) {
	key, err := derivePerAssetKey(x.bundleKey, d.Hash)
	if err != nil {
		return nil, err
	}
	return EncryptBlob(plaintext, key, d.Hash)
}

// EncryptBlob encrypts plaintext using XChaCha20-Poly1305 and returns
// the encrypted blob in the standard format:
//
//	[Version: 1 byte (0x01)] [Nonce: 24 bytes (random)] [Ciphertext+Tag: N+16 bytes]
//
// The version byte and identityHash are included as additional
// authenticated data (AAD). The version byte authenticates the format
// version; the identityHash binds the ciphertext to the asset it
// belongs to.
func EncryptBlob(plaintext []byte, encryptionKey []byte, identityHash asset.Hash) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	// Generate a random 24-byte nonce.
	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating random nonce: %w", err)
	}

	aad := buildAAD(EncryptedBlobVersion, identityHash)

	// Allocate output: version + nonce + ciphertext + tag.
	output := make([]byte, 1+chacha20poly1305.NonceSizeX, 1+chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	output[0] = EncryptedBlobVersion
	copy(output[1:], nonce[:])

	// Seal appends the ciphertext+tag to output.
	output = aead.Seal(output, nonce[:], plaintext, aad)
	return output, nil
}

// DecryptBlob decrypts an encrypted blob produced by EncryptBlob.
// It verifies the version byte, extracts the nonce, and authenticates
// the ciphertext against the AAD (version byte + identityHash).
//
// Returns an error if:
//   - The blob is too short to contain version + nonce + tag
//   - The version byte is not EncryptedBlobVersion
//   - AEAD authentication fails (wrong key, tampered ciphertext,
//     wrong identity hash)
func DecryptBlob(encryptedBlob []byte, encryptionKey []byte, identityHash asset.Hash) ([]byte, error) {
	if len(encryptedBlob) < EncryptedBlobOverhead {
		return nil, fmt.Errorf("encrypted blob is %d bytes, minimum is %d (version + nonce + tag)",
			len(encryptedBlob), EncryptedBlobOverhead)
	}

	version := encryptedBlob[0]
	if version != EncryptedBlobVersion {
		return nil, fmt.Errorf("encrypted blob version %d is not supported (expected %d)",
			version, EncryptedBlobVersion)
	}

	nonce := encryptedBlob[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := encryptedBlob[1+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	aad := buildAAD(version, identityHash)

	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("AEAD decryption failed (wrong key, tampered data, or mismatched identity): %w", err)
	}

	return plaintext, nil
}

// derivePerAssetKey derives the per-asset encryption key from the
// bundle key and the asset's content hash via HKDF-SHA256. The salt is
// nil: the bundle key is already uniformly random, so HKDF's extract
// phase with nil salt (HMAC-SHA256 with zero key) is appropriate per
// RFC 5869.
func derivePerAssetKey(bundleKey []byte, contentHash asset.Hash) ([]byte, error) {
	info := make([]byte, len(hkdfInfoPerAsset)+len(contentHash))
	copy(info, hkdfInfoPerAsset)
	copy(info[len(hkdfInfoPerAsset):], contentHash[:])

	reader := hkdf.New(sha256.New, bundleKey, nil, info)
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	return derived, nil
}

// buildAAD constructs the additional authenticated data for AEAD
// operations: the version byte followed by the identity hash.
func buildAAD(version byte, identityHash asset.Hash) []byte {
	aad := make([]byte, 1+len(identityHash))
	aad[0] = version
	copy(aad[1:], identityHash[:])
	return aad
}
