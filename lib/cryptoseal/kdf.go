// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cryptoseal

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	secret "github.com/secretkeeper/secretkeeper/lib/secretmem"
)

const (
	// SaltSize is the length in bytes of the salt used by DeriveKey and
	// embedded in every ciphertext blob.
	SaltSize = 32

	// KeySize is the length in bytes of the derived AES-256 key.
	KeySize = 32

	// NonceSize is the length in bytes of the AES-GCM nonce embedded in
	// every ciphertext blob.
	NonceSize = 12

	// KDFIterations is the PBKDF2 iteration count. Chosen to keep a
	// single derivation in the low hundreds of milliseconds on
	// commodity hardware while remaining expensive to brute force.
	KDFIterations = 600_000
)

// DeriveKey derives a 32-byte AES-256 key from keyMaterial and salt
// using PBKDF2-HMAC-SHA-256 with [KDFIterations] iterations. The
// returned key lives in protected memory and must be closed by the
// caller.
func DeriveKey(keyMaterial *secret.Buffer, salt []byte) (*secret.Buffer, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("cryptoseal: salt must be %d bytes, got %d", SaltSize, len(salt))
	}

	derived := pbkdf2.Key(keyMaterial.Bytes(), salt, KDFIterations, KeySize, sha256.New)
	key, err := secret.NewFromBytes(derived)
	if err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("cryptoseal: protecting derived key: %w", err)
	}
	return key, nil
}
