// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cryptoseal

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes is the number of random bytes in a generated master
// token, before base64 encoding.
const tokenBytes = 24

// GenerateToken generates a new master token: 24 cryptographically
// random bytes encoded as URL-safe base64. Suitable for keyfile-based
// non-interactive vault workflows.
func GenerateToken() (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("cryptoseal: generating token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}
