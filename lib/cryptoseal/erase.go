// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cryptoseal

import (
	"crypto/rand"
	"os"
)

// DefaultErasePasses is the default number of random-overwrite passes
// performed by SecureErase before the final zero pass.
const DefaultErasePasses = 3

// SecureErase makes a best-effort attempt to destroy the on-disk
// contents of path before removing it: passes random-overwrite passes
// (syncing after each), one final zero-overwrite pass (synced), then
// unlink. If the file cannot be opened for writing, or any overwrite
// pass fails, it falls back to a plain unlink. Returns whether the
// file was removed by either path.
//
// This is defense against casual disk forensics on commodity
// filesystems, not a guarantee — copy-on-write filesystems, SSD wear
// leveling, and filesystem snapshots can all leave the original
// contents recoverable regardless.
func SecureErase(path string, passes int) bool {
	if passes <= 0 {
		passes = DefaultErasePasses
	}

	if overwriteAndSync(path, passes) {
		return os.Remove(path) == nil
	}

	return os.Remove(path) == nil
}

// overwriteAndSync opens path and overwrites its contents with
// `passes` rounds of random bytes followed by one round of zero bytes,
// fsyncing after each round. Returns false on any failure, in which
// case the caller falls back to a plain unlink.
func overwriteAndSync(path string, passes int) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	size := info.Size()
	if size == 0 {
		return true
	}

	file, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	defer file.Close()

	buffer := make([]byte, size)

	for pass := 0; pass < passes; pass++ {
		if _, err := rand.Read(buffer); err != nil {
			return false
		}
		if !writeAndSync(file, buffer) {
			return false
		}
	}

	for index := range buffer {
		buffer[index] = 0
	}
	if !writeAndSync(file, buffer) {
		return false
	}

	return true
}

func writeAndSync(file *os.File, data []byte) bool {
	if _, err := file.WriteAt(data, 0); err != nil {
		return false
	}
	return file.Sync() == nil
}
