// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cryptoseal provides authenticated symmetric encryption and
// password-derived key material for vault secrets.
//
// [Encrypt] and [Decrypt] operate on AES-256-GCM ciphertext blobs laid
// out as base64(salt ‖ nonce ‖ AEAD-ciphertext-with-tag). Every call to
// Encrypt draws a fresh 32-byte salt and a fresh 12-byte nonce and
// derives a one-time AES key from the caller's key material and that
// salt via [DeriveKey] (PBKDF2-HMAC-SHA-256, 600,000 iterations).
// Decrypt re-derives the same key from the salt embedded in the blob.
// No derived key is ever cached across entries — correctness does not
// depend on it, only on the salt and nonce being fresh per write.
//
// Any failure during decryption — a bad authentication tag, a
// truncated blob, a base64 decode error — surfaces as the single
// [ErrDecryptionFailed] value. The cause is deliberately not
// distinguishable from the outside: telling a caller "the key was
// wrong" versus "the blob was corrupted" would be an oracle.
//
// [GenerateToken] produces printable master tokens for non-interactive
// vault workflows. [SecureErase] makes a best-effort attempt to
// destroy a file's on-disk contents before unlinking it.
//
// Depends on golang.org/x/crypto/pbkdf2 and lib/secretmem for
// protected key and plaintext memory.
package cryptoseal
