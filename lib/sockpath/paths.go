// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sockpath

import (
	"fmt"
	"path/filepath"
)

// GlobalSocketName is the socket file name used by the daemon that is
// not scoped to any particular project.
const GlobalSocketName = "sk.sock"

// RotationLogName is the append-only rotation log written alongside
// the daemon's socket(s).
const RotationLogName = "rotation.log"

// DaemonLogName is the daemon's own stdout/stderr log when started
// detached.
const DaemonLogName = "daemon.log"

// GlobalSocket returns the path to the global daemon's socket inside
// socketDir.
func GlobalSocket(socketDir string) string {
	return filepath.Join(socketDir, GlobalSocketName)
}

// ProjectSocket returns the path to a project-scoped daemon's socket
// inside socketDir, named from the project's absolute path fingerprint.
func ProjectSocket(socketDir, projectAbsPath string) string {
	return filepath.Join(socketDir, fmt.Sprintf("project-%s.sock", Fingerprint(projectAbsPath)))
}

// RotationLog returns the path to the rotation log inside socketDir.
func RotationLog(socketDir string) string {
	return filepath.Join(socketDir, RotationLogName)
}

// DaemonLog returns the path to the daemon's detached log inside
// socketDir.
func DaemonLog(socketDir string) string {
	return filepath.Join(socketDir, DaemonLogName)
}
