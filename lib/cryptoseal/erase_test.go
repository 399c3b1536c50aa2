// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cryptoseal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSecureErase_RemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(path, []byte("sensitive contents"), 0600); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	if !SecureErase(path, 1) {
		t.Fatal("SecureErase reported failure")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected file to be gone, stat error: %v", err)
	}
}

func TestSecureErase_NonexistentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist")
	// Removing a file that never existed fails, but SecureErase should
	// not panic.
	SecureErase(path, 1)
}

func TestSecureErase_DefaultsPassesWhenNonPositive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	if !SecureErase(path, 0) {
		t.Fatal("SecureErase reported failure with passes=0")
	}
}
