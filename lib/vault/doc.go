// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package vault implements the encrypted secret store: a SQLite-backed
// table of AES-256-GCM-encrypted secret values, an append-only audit
// log, and the rotation-config/rotation-history tables consumed by
// lib/rotation.
//
// A Vault is opened at a filesystem path resolved by [ResolvePath]. It
// must be [Vault.Initialize]d once before use and have a master key
// loaded via [Vault.LoadKey] (or supplied to Initialize) before any
// operation that touches secret values. The store tolerates opening a
// vault created by an older schema version: missing tables and columns
// are added lazily by [Open], never by destructive migration.
//
// Every decryption failure — wrong key or corrupted ciphertext — comes
// back as the single [ErrInvalidKey] value. The store never reveals
// which of the two actually happened.
package vault
