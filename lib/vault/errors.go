// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import "errors"

// ErrVaultNotInitialized is returned by any operation performed before
// [Vault.Initialize] has been called on this path.
var ErrVaultNotInitialized = errors.New("vault: not initialized")

// ErrVaultAlreadyInitialized is returned by [Vault.Initialize] when the
// vault metadata row already exists. A vault is created once per path;
// resetting it is a destroy-then-create sequence, not an in-place
// re-initialize.
var ErrVaultAlreadyInitialized = errors.New("vault: already initialized")

// ErrVaultLocked is returned by any operation that needs a loaded
// master key when none has been loaded.
var ErrVaultLocked = errors.New("vault: locked, call LoadKey first")

// ErrInvalidKey is returned for every decryption failure on read —
// wrong master key or corrupted ciphertext are deliberately
// indistinguishable from the outside, to avoid giving an attacker an
// oracle.
var ErrInvalidKey = errors.New("vault: invalid key")

// ErrSecretNotFound is returned when a named secret does not exist.
var ErrSecretNotFound = errors.New("vault: secret not found")

// ErrInvalidSecretName is returned when a secret name does not match
// the required identifier pattern.
var ErrInvalidSecretName = errors.New("vault: invalid secret name")

// ErrRotationConfigNotFound is returned when a secret has no rotation
// configuration row.
var ErrRotationConfigNotFound = errors.New("vault: rotation config not found")
