// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vault_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/secretkeeper/secretkeeper/lib/vault"
)

func TestResolvePathPrefersLocalVault(t *testing.T) {
	tmp := t.TempDir()
	localDB := filepath.Join(tmp, vault.DirName, vault.FileName)
	if err := os.MkdirAll(filepath.Dir(localDB), 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(localDB, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	chdir(t, tmp)

	path, err := vault.ResolvePath("", false)
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	if path != localDB {
		t.Errorf("ResolvePath = %q, want %q", path, localDB)
	}
}

func TestResolvePathForceLocalUsesCwd(t *testing.T) {
	tmp := t.TempDir()
	chdir(t, tmp)

	path, err := vault.ResolvePath("", true)
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	want := filepath.Join(tmp, vault.DirName, vault.FileName)
	if path != want {
		t.Errorf("ResolvePath = %q, want %q", path, want)
	}
}

func TestEnsureDirWritesGitignoreForProjectVault(t *testing.T) {
	tmp := t.TempDir()
	vaultPath := filepath.Join(tmp, vault.DirName, vault.FileName)

	if err := vault.EnsureDir(vaultPath, true); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}

	info, err := os.Stat(filepath.Dir(vaultPath))
	if err != nil {
		t.Fatalf("Stat vault dir: %v", err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Errorf("vault dir mode = %v, want 0700", info.Mode().Perm())
	}

	gitignore, err := os.ReadFile(filepath.Join(filepath.Dir(vaultPath), ".gitignore"))
	if err != nil {
		t.Fatalf("reading .gitignore: %v", err)
	}
	if string(gitignore) != "*\n" {
		t.Errorf(".gitignore = %q, want %q", gitignore, "*\n")
	}
}

func TestWriteKeyfileIsAtomicAndRestricted(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, vault.KeyfileName)

	if err := vault.WriteKeyfile(path, "top-secret-token"); err != nil {
		t.Fatalf("WriteKeyfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading keyfile: %v", err)
	}
	if string(data) != "top-secret-token" {
		t.Errorf("keyfile contents = %q", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat keyfile: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("keyfile mode = %v, want 0600", info.Mode().Perm())
	}

	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries after WriteKeyfile, want 1 (no leftover temp files)", len(entries))
	}
}

// chdir changes the working directory for the duration of the test and
// restores it afterward.
func chdir(t *testing.T, dir string) {
	t.Helper()
	original, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(original) })
}
