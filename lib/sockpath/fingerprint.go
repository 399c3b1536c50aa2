// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sockpath

import "fmt"

// Fingerprint computes the stable 8-hex-digit identifier for a
// project's absolute path: fold each byte into a 32-bit accumulator
// via h = h*31 + byte (wrapping modulo 2^32, which is exactly what an
// unsigned 32-bit multiply-add already does), then encode the result
// as lowercase hex, zero-padded to width 8.
//
// The same path always yields the same fingerprint; two distinct paths
// collide with probability at most 2^-32.
func Fingerprint(absPath string) string {
	var h uint32
	for i := 0; i < len(absPath); i++ {
		h = h*31 + uint32(absPath[i])
	}
	return fmt.Sprintf("%08x", h)
}
