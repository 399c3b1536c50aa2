// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package skclient

import (
	"fmt"
	"os"

	"github.com/secretkeeper/secretkeeper/lib/sockpath"
	"github.com/secretkeeper/secretkeeper/lib/vault"
)

// ResolveSocketPath returns the socket a client in the current working
// directory should dial: the project-scoped socket if a local vault
// exists at the cwd, otherwise the global socket.
func ResolveSocketPath(socketDir string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("skclient: resolving working directory: %w", err)
	}
	if vault.IsLocalVault(cwd) {
		return sockpath.ProjectSocket(socketDir, cwd), nil
	}
	return sockpath.GlobalSocket(socketDir), nil
}
