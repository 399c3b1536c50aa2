// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cryptoseal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	secret "github.com/secretkeeper/secretkeeper/lib/secretmem"
)

// ErrDecryptionFailed is returned for every decryption failure —
// authentication-tag mismatch, truncated blob, or malformed base64 —
// without distinguishing the cause. Distinguishing "wrong key" from
// "corrupted blob" would give an attacker an oracle.
var ErrDecryptionFailed = errors.New("cryptoseal: decryption failed")

// minBlobSize is the smallest a valid blob can be: salt + nonce + the
// GCM tag on an empty plaintext.
const minBlobSize = SaltSize + NonceSize + 16

// Encrypt encrypts plaintext under a key derived from keyMaterial and a
// fresh salt, using AES-256-GCM with a fresh nonce. The returned string
// is base64(salt ‖ nonce ‖ ciphertext-with-tag).
func Encrypt(plaintext []byte, keyMaterial *secret.Buffer) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("cryptoseal: generating salt: %w", err)
	}

	key, err := DeriveKey(keyMaterial, salt)
	if err != nil {
		return "", err
	}
	defer key.Close()

	block, err := aes.NewCipher(key.Bytes())
	if err != nil {
		return "", fmt.Errorf("cryptoseal: creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return "", fmt.Errorf("cryptoseal: creating GCM: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("cryptoseal: generating nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	blob := make([]byte, 0, SaltSize+NonceSize+len(sealed))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt decrypts a blob produced by Encrypt using a key derived from
// keyMaterial and the salt embedded in the blob. Any failure — bad
// base64, a truncated blob, or a failed authentication check — returns
// [ErrDecryptionFailed].
func Decrypt(blob string, keyMaterial *secret.Buffer) (*secret.Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if len(raw) < minBlobSize {
		return nil, ErrDecryptionFailed
	}

	salt := raw[:SaltSize]
	nonce := raw[SaltSize : SaltSize+NonceSize]
	ciphertext := raw[SaltSize+NonceSize:]

	key, err := DeriveKey(keyMaterial, salt)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	defer key.Close()

	block, err := aes.NewCipher(key.Bytes())
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	if len(plaintext) == 0 {
		// secret.New requires a positive size; an empty secret value
		// is represented as a single zero byte with length 0 reported
		// by callers that track length separately. The vault never
		// stores empty values, so this path is defensive only.
		buffer, bufErr := secret.New(1)
		if bufErr != nil {
			return nil, fmt.Errorf("cryptoseal: protecting empty plaintext: %w", bufErr)
		}
		return buffer, nil
	}

	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("cryptoseal: protecting decrypted plaintext: %w", err)
	}
	return buffer, nil
}
