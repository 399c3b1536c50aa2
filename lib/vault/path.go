// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DirName is the directory a vault (and its keyfile, when one is
// generated) lives under, relative to either a project root or the
// user's home directory.
const DirName = ".secret-keeper"

// FileName is the SQLite database file name inside [DirName].
const FileName = "secrets.db"

// KeyfileName is the generated-key workflow's keyfile name inside
// [DirName]. Mode 0600 when written.
const KeyfileName = ".keyfile"

// ResolvePath resolves the vault path given an optional project path
// and a force-local flag:
//
//   - If projectPath is non-empty or forceLocal is true, the vault is
//     rooted at projectPath (or the current working directory, if
//     projectPath is empty).
//   - Otherwise, if a local vault already exists under the current
//     working directory, that vault is used.
//   - Otherwise, the vault is rooted at the user's home directory.
func ResolvePath(projectPath string, forceLocal bool) (string, error) {
	if projectPath != "" || forceLocal {
		base := projectPath
		if base == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf("vault: resolving path: %w", err)
			}
			base = cwd
		}
		return filepath.Join(base, DirName, FileName), nil
	}

	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, DirName, FileName)
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("vault: resolving home directory: %w", err)
	}
	return filepath.Join(home, DirName, FileName), nil
}

// IsLocalVault reports whether a vault exists under dir (a project
// directory or the current working directory), without resolving the
// full precedence chain. Used by clients deciding whether to talk to a
// project-scoped or the global daemon.
func IsLocalVault(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, DirName, FileName))
	return err == nil
}

// EnsureDir creates the vault's parent directory with owner-only
// permissions (0700) if it does not already exist, and — for vaults
// that are not rooted at the home directory — writes a `.gitignore`
// containing `*` so the encrypted database and keyfile are never
// accidentally committed.
func EnsureDir(vaultPath string, isProjectVault bool) error {
	dir := filepath.Dir(vaultPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("vault: creating vault directory: %w", err)
	}
	// MkdirAll does not change the mode of a directory that already
	// existed; enforce it explicitly.
	if err := os.Chmod(dir, 0o700); err != nil {
		return fmt.Errorf("vault: setting vault directory permissions: %w", err)
	}

	if isProjectVault {
		gitignore := filepath.Join(dir, ".gitignore")
		if _, err := os.Stat(gitignore); os.IsNotExist(err) {
			if err := os.WriteFile(gitignore, []byte("*\n"), 0o644); err != nil {
				return fmt.Errorf("vault: writing .gitignore: %w", err)
			}
		}
	}

	return nil
}

// KeyfilePath returns the keyfile path alongside vaultPath.
func KeyfilePath(vaultPath string) string {
	return filepath.Join(filepath.Dir(vaultPath), KeyfileName)
}

// WriteKeyfile atomically writes token to path with mode 0600: it
// writes to a temp file in the same directory, fsyncs it, renames it
// into place, and fsyncs the parent directory so the rename itself is
// durable.
func WriteKeyfile(path, token string) error {
	dir := filepath.Dir(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", KeyfileName, uuid.NewString()))

	file, err := os.OpenFile(temp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("vault: creating keyfile temp file: %w", err)
	}
	if _, err := file.WriteString(token); err != nil {
		file.Close()
		os.Remove(temp)
		return fmt.Errorf("vault: writing keyfile: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temp)
		return fmt.Errorf("vault: syncing keyfile: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temp)
		return fmt.Errorf("vault: closing keyfile: %w", err)
	}
	if err := os.Rename(temp, path); err != nil {
		os.Remove(temp)
		return fmt.Errorf("vault: installing keyfile: %w", err)
	}

	if dirHandle, err := os.Open(dir); err == nil {
		dirHandle.Sync()
		dirHandle.Close()
	}

	return nil
}
